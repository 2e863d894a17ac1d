package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/coursemarket-backend/internal/data/repos"
	types "github.com/yungbote/coursemarket-backend/internal/domain"
	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

const courseReviewLimit = 20

type CoursePage struct {
	Courses []*types.Course `json:"courses"`
	Total   int64           `json:"total"`
	Page    int             `json:"page"`
	Pages   int             `json:"pages"`
}

type CreatorSummary struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Bio      string    `json:"bio,omitempty"`
}

type CourseDetail struct {
	Course     *types.Course     `json:"course"`
	Creator    *CreatorSummary   `json:"creator,omitempty"`
	Modules    []*types.Module   `json:"modules"`
	Reviews    []*types.Review   `json:"reviews,omitempty"`
	IsEnrolled bool              `json:"is_enrolled"`
	Enrollment *types.Enrollment `json:"enrollment,omitempty"`
}

// CourseService serves the public catalog.
type CourseService interface {
	ListCourses(ctx context.Context, filter repos.CourseFilter) (*CoursePage, error)
	GetCourse(ctx context.Context, courseID uuid.UUID) (*CourseDetail, error)
	GetCoursePreview(ctx context.Context, courseID uuid.UUID) (*CourseDetail, error)
	AddReview(ctx context.Context, courseID uuid.UUID, rating int, comment string) (*domainagg.ReviewResult, error)
}

type courseService struct {
	log         *logger.Logger
	courses     repos.CourseRepo
	modules     repos.ModuleRepo
	lessons     repos.LessonRepo
	reviews     repos.ReviewRepo
	users       repos.UserRepo
	enrollments repos.EnrollmentRepo
	completions repos.EnrollmentLessonRepo
	catalog     domainagg.CatalogAggregate
}

func NewCourseService(
	baseLog *logger.Logger,
	courses repos.CourseRepo,
	modules repos.ModuleRepo,
	lessons repos.LessonRepo,
	reviews repos.ReviewRepo,
	users repos.UserRepo,
	enrollments repos.EnrollmentRepo,
	completions repos.EnrollmentLessonRepo,
	catalog domainagg.CatalogAggregate,
) CourseService {
	return &courseService{
		log:         baseLog.With("service", "CourseService"),
		courses:     courses,
		modules:     modules,
		lessons:     lessons,
		reviews:     reviews,
		users:       users,
		enrollments: enrollments,
		completions: completions,
		catalog:     catalog,
	}
}

func (s *courseService) ListCourses(ctx context.Context, filter repos.CourseFilter) (*CoursePage, error) {
	const op = "course.list"
	filter.OnlyAvailable = true
	filter.CreatorID = nil
	filter.Status = ""
	filter = filter.Normalize()
	if filter.MinPrice != nil && filter.MaxPrice != nil && *filter.MinPrice > *filter.MaxPrice {
		return nil, fail(domainagg.CodeValidation, op, "minPrice must not exceed maxPrice")
	}
	rows, total, err := s.courses.List(dbctx.Context{Ctx: ctx}, filter)
	if err != nil {
		return nil, internalErr(op, err)
	}
	if rows == nil {
		rows = []*types.Course{}
	}
	pages := int((total + int64(filter.Limit) - 1) / int64(filter.Limit))
	return &CoursePage{Courses: rows, Total: total, Page: filter.Page, Pages: pages}, nil
}

func (s *courseService) GetCourse(ctx context.Context, courseID uuid.UUID) (*CourseDetail, error) {
	const op = "course.get"
	dbc := dbctx.Context{Ctx: ctx}
	course, err := s.courses.GetByID(dbc, courseID)
	if err != nil {
		return nil, internalErr(op, err)
	}
	if course == nil {
		return nil, fail(domainagg.CodeNotFound, op, "course not found")
	}
	rd := ctxutil.GetRequestData(ctx)
	privileged := canManageCourse(rd, course)
	if !course.Available() && !privileged {
		return nil, fail(domainagg.CodeCourseUnavailable, op, "course is not available")
	}

	var (
		modules []*types.Module
		lessons []*types.Lesson
		reviews []*types.Review
		creator *types.User
		enr     *types.Enrollment
	)
	g, gctx := errgroup.WithContext(ctx)
	gdbc := dbctx.Context{Ctx: gctx}
	g.Go(func() (err error) {
		modules, err = s.modules.ListByCourse(gdbc, course.ID)
		return err
	})
	g.Go(func() (err error) {
		lessons, err = s.lessons.ListByCourse(gdbc, course.ID)
		return err
	})
	g.Go(func() (err error) {
		reviews, err = s.reviews.ListByCourse(gdbc, course.ID, courseReviewLimit)
		return err
	})
	g.Go(func() (err error) {
		creator, err = s.users.GetByID(gdbc, course.CreatorID)
		return err
	})
	if rd != nil && rd.UserID != uuid.Nil {
		g.Go(func() error {
			row, err := s.enrollments.GetByUserCourse(gdbc, rd.UserID, course.ID)
			if err != nil || row == nil {
				return err
			}
			if err := s.completions.LoadCompleted(gdbc, row); err != nil {
				return err
			}
			enr = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, internalErr(op, err)
	}

	out := &CourseDetail{
		Course:     course,
		Modules:    attachLessons(modules, lessons, func(l *types.Lesson) *types.Lesson { return lessonForViewer(l, privileged, enr != nil) }),
		Reviews:    reviews,
		IsEnrolled: enr != nil,
		Enrollment: enr,
	}
	if creator != nil {
		out.Creator = &CreatorSummary{ID: creator.ID, FullName: creator.FullName, Bio: creator.Bio}
	}
	return out, nil
}

func (s *courseService) GetCoursePreview(ctx context.Context, courseID uuid.UUID) (*CourseDetail, error) {
	const op = "course.preview"
	dbc := dbctx.Context{Ctx: ctx}
	course, err := s.courses.GetByID(dbc, courseID)
	if err != nil {
		return nil, internalErr(op, err)
	}
	if course == nil {
		return nil, fail(domainagg.CodeNotFound, op, "course not found")
	}
	if !course.Available() {
		return nil, fail(domainagg.CodeCourseUnavailable, op, "course is not available")
	}
	modules, err := s.modules.ListByCourse(dbc, course.ID)
	if err != nil {
		return nil, internalErr(op, err)
	}
	lessons, err := s.lessons.ListByCourse(dbc, course.ID)
	if err != nil {
		return nil, internalErr(op, err)
	}
	preview := make([]*types.Lesson, 0, len(lessons))
	for _, l := range lessons {
		if l.IsPreview {
			preview = append(preview, l)
		}
	}
	return &CourseDetail{
		Course:  course,
		Modules: attachLessons(modules, preview, (*types.Lesson).Redacted),
	}, nil
}

func (s *courseService) AddReview(ctx context.Context, courseID uuid.UUID, rating int, comment string) (*domainagg.ReviewResult, error) {
	const op = "course.add_review"
	rd, err := requirePrincipal(ctx, op)
	if err != nil {
		return nil, err
	}
	res, err := s.catalog.UpsertReview(ctx, domainagg.ReviewInput{
		UserID:   rd.UserID,
		CourseID: courseID,
		Rating:   rating,
		Comment:  strings.TrimSpace(comment),
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// canManageCourse reports whether the caller created the course or is an admin.
func canManageCourse(rd *ctxutil.RequestData, course *types.Course) bool {
	if rd == nil || course == nil {
		return false
	}
	return rd.IsAdmin() || (rd.UserID != uuid.Nil && rd.UserID == course.CreatorID)
}

// lessonForViewer hides quiz answers from learners and all content of locked
// lessons from visitors.
func lessonForViewer(l *types.Lesson, privileged, enrolled bool) *types.Lesson {
	switch {
	case privileged:
		return l
	case enrolled || l.IsPreview:
		return l.Redacted()
	default:
		return l.Outline()
	}
}

// attachLessons groups lessons under their modules, keeping position order.
func attachLessons(modules []*types.Module, lessons []*types.Lesson, view func(*types.Lesson) *types.Lesson) []*types.Module {
	byModule := make(map[uuid.UUID][]*types.Lesson, len(modules))
	for _, l := range lessons {
		byModule[l.ModuleID] = append(byModule[l.ModuleID], view(l))
	}
	out := make([]*types.Module, 0, len(modules))
	for _, m := range modules {
		cp := *m
		cp.Lessons = byModule[m.ID]
		if cp.Lessons == nil {
			cp.Lessons = []*types.Lesson{}
		}
		out = append(out, &cp)
	}
	return out
}
