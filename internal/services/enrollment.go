package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/coursemarket-backend/internal/data/repos"
	types "github.com/yungbote/coursemarket-backend/internal/domain"
	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/domain/events"
	"github.com/yungbote/coursemarket-backend/internal/observability"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

// EnrollOutcome holds exactly one of a direct enrollment (free courses) or a
// checkout to complete (paid courses).
type EnrollOutcome struct {
	Enrollment *types.Enrollment
	Checkout   *CheckoutResult
}

type EnrolledCourse struct {
	Enrollment *types.Enrollment `json:"enrollment"`
	Course     *types.Course     `json:"course"`
}

type LessonProgress struct {
	*types.Lesson
	IsCompleted bool `json:"is_completed"`
}

type ModuleContent struct {
	*types.Module
	Lessons []LessonProgress `json:"lessons"`
}

type CourseContent struct {
	Course     *types.Course     `json:"course"`
	Modules    []ModuleContent   `json:"modules"`
	Enrollment *types.Enrollment `json:"enrollment"`
	Progress   float64           `json:"progress"`
}

type EnrollmentService interface {
	Enroll(ctx context.Context, courseID uuid.UUID) (*EnrollOutcome, error)
	GetEnrollment(ctx context.Context, enrollmentID uuid.UUID) (*types.Enrollment, error)
	ListMyEnrollments(ctx context.Context) ([]EnrolledCourse, error)
	GetCourseContent(ctx context.Context, courseID uuid.UUID) (*CourseContent, error)
}

type enrollmentService struct {
	log         *logger.Logger
	clock       Clock
	bus         EventPublisher
	notifier    Notifier
	ledger      domainagg.EnrollmentLedger
	payments    PaymentService
	courses     repos.CourseRepo
	modules     repos.ModuleRepo
	lessons     repos.LessonRepo
	users       repos.UserRepo
	enrollments repos.EnrollmentRepo
	completions repos.EnrollmentLessonRepo
}

func NewEnrollmentService(
	baseLog *logger.Logger,
	clock Clock,
	bus EventPublisher,
	notifier Notifier,
	ledger domainagg.EnrollmentLedger,
	payments PaymentService,
	courses repos.CourseRepo,
	modules repos.ModuleRepo,
	lessons repos.LessonRepo,
	users repos.UserRepo,
	enrollments repos.EnrollmentRepo,
	completions repos.EnrollmentLessonRepo,
) EnrollmentService {
	return &enrollmentService{
		log:         baseLog.With("service", "EnrollmentService"),
		clock:       clockOrSystem(clock),
		bus:         bus,
		notifier:    notifier,
		ledger:      ledger,
		payments:    payments,
		courses:     courses,
		modules:     modules,
		lessons:     lessons,
		users:       users,
		enrollments: enrollments,
		completions: completions,
	}
}

// Enroll grants free courses immediately and opens a checkout for paid ones.
func (s *enrollmentService) Enroll(ctx context.Context, courseID uuid.UUID) (*EnrollOutcome, error) {
	const op = "enrollment.enroll"
	rd, err := requirePrincipal(ctx, op)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	course, err := s.courses.GetByID(dbc, courseID)
	if err != nil {
		return nil, internalErr(op, err)
	}
	if course == nil {
		return nil, fail(domainagg.CodeNotFound, op, "course not found")
	}
	if !course.Available() {
		return nil, fail(domainagg.CodeCourseUnavailable, op, "course is not available for enrollment")
	}

	if !course.IsFree() {
		checkout, err := s.payments.CreateCheckout(ctx, courseID)
		if err != nil {
			return nil, err
		}
		return &EnrollOutcome{Checkout: checkout}, nil
	}

	res, err := s.ledger.Enroll(ctx, domainagg.EnrollInput{
		UserID:     rd.UserID,
		CourseID:   courseID,
		EnrolledAt: s.clock(),
	})
	if err != nil {
		return nil, err
	}
	observability.Current().IncEnrollment("free")
	publish(ctx, s.bus, s.log, events.New(events.EnrollmentCreated, rd.UserID, courseID, map[string]any{
		"enrollment_id": res.Enrollment.ID,
	}))
	if s.notifier != nil {
		if user, err := s.users.GetByID(dbctx.Context{Ctx: context.WithoutCancel(ctx)}, rd.UserID); err == nil {
			s.notifier.EnrollmentConfirmed(ctx, user, course, nil)
		}
	}
	s.log.Info("Enrolled in free course", "course_id", courseID, "user_id", rd.UserID)
	return &EnrollOutcome{Enrollment: res.Enrollment}, nil
}

// GetEnrollment is visible to the learner, the course creator and admins.
func (s *enrollmentService) GetEnrollment(ctx context.Context, enrollmentID uuid.UUID) (*types.Enrollment, error) {
	const op = "enrollment.get"
	rd, err := requirePrincipal(ctx, op)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	enr, err := s.enrollments.GetByID(dbc, enrollmentID)
	if err != nil {
		return nil, internalErr(op, err)
	}
	if enr == nil {
		return nil, fail(domainagg.CodeNotFound, op, "enrollment not found")
	}
	if enr.UserID != rd.UserID && !rd.IsAdmin() {
		course, err := s.courses.GetByID(dbc, enr.CourseID)
		if err != nil {
			return nil, internalErr(op, err)
		}
		if course == nil || course.CreatorID != rd.UserID {
			return nil, fail(domainagg.CodeForbidden, op, "not authorized to view this enrollment")
		}
	}
	if err := s.completions.LoadCompleted(dbc, enr); err != nil {
		return nil, internalErr(op, err)
	}
	return enr, nil
}

func (s *enrollmentService) ListMyEnrollments(ctx context.Context) ([]EnrolledCourse, error) {
	const op = "enrollment.list_mine"
	rd, err := requirePrincipal(ctx, op)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	rows, err := s.enrollments.ListByUser(dbc, rd.UserID)
	if err != nil {
		return nil, internalErr(op, err)
	}
	out := make([]EnrolledCourse, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	if err := s.completions.LoadCompleted(dbc, rows...); err != nil {
		return nil, internalErr(op, err)
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, e := range rows {
		ids = append(ids, e.CourseID)
	}
	courses, err := s.courses.GetByIDs(dbc, ids)
	if err != nil {
		return nil, internalErr(op, err)
	}
	byID := make(map[uuid.UUID]*types.Course, len(courses))
	for _, c := range courses {
		byID[c.ID] = c
	}
	for _, e := range rows {
		out = append(out, EnrolledCourse{Enrollment: e, Course: byID[e.CourseID]})
	}
	return out, nil
}

func (s *enrollmentService) GetCourseContent(ctx context.Context, courseID uuid.UUID) (*CourseContent, error) {
	const op = "enrollment.course_content"
	rd, err := requirePrincipal(ctx, op)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	course, err := s.courses.GetByID(dbc, courseID)
	if err != nil {
		return nil, internalErr(op, err)
	}
	if course == nil {
		return nil, fail(domainagg.CodeNotFound, op, "course not found")
	}
	enr, err := s.enrollments.GetByUserCourse(dbc, rd.UserID, courseID)
	if err != nil {
		return nil, internalErr(op, err)
	}
	if enr == nil {
		return nil, fail(domainagg.CodeNotEnrolled, op, "you need to be enrolled in the course")
	}
	if err := s.completions.LoadCompleted(dbc, enr); err != nil {
		return nil, internalErr(op, err)
	}
	modules, err := s.modules.ListByCourse(dbc, courseID)
	if err != nil {
		return nil, internalErr(op, err)
	}
	lessons, err := s.lessons.ListByCourse(dbc, courseID)
	if err != nil {
		return nil, internalErr(op, err)
	}
	return &CourseContent{
		Course:     course,
		Modules:    contentTree(modules, lessons, enr, canManageCourse(rd, course)),
		Enrollment: enr,
		Progress:   enr.Progress,
	}, nil
}

func contentTree(modules []*types.Module, lessons []*types.Lesson, enr *types.Enrollment, privileged bool) []ModuleContent {
	byModule := make(map[uuid.UUID][]LessonProgress, len(modules))
	for _, l := range lessons {
		view := l.Redacted()
		if privileged {
			view = l
		}
		byModule[l.ModuleID] = append(byModule[l.ModuleID], LessonProgress{Lesson: view, IsCompleted: enr.HasCompleted(l.ID)})
	}
	out := make([]ModuleContent, 0, len(modules))
	for _, m := range modules {
		cp := *m
		cp.Lessons = nil
		items := byModule[m.ID]
		if items == nil {
			items = []LessonProgress{}
		}
		out = append(out, ModuleContent{Module: &cp, Lessons: items})
	}
	return out
}
