package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/coursemarket-backend/internal/data/repos"
	types "github.com/yungbote/coursemarket-backend/internal/domain"
	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/domain/catalog"
	"github.com/yungbote/coursemarket-backend/internal/domain/events"
	"github.com/yungbote/coursemarket-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

const earningsMonths = 6

type CreateCourseInput struct {
	Title              string     `json:"title" validate:"required,min=3,max=200"`
	Description        string     `json:"description" validate:"required"`
	Category           string     `json:"category" validate:"required,max=100"`
	Level              string     `json:"level" validate:"omitempty,oneof=beginner intermediate advanced"`
	Thumbnail          string     `json:"thumbnail" validate:"omitempty,url"`
	Price              float64    `json:"price" validate:"gte=0"`
	DiscountPrice      *float64   `json:"discount_price" validate:"omitempty,gte=0"`
	DiscountValidUntil *time.Time `json:"discount_valid_until"`
	Tags               []string   `json:"tags" validate:"max=20,dive,max=50"`
	WhatYouWillLearn   []string   `json:"what_you_will_learn" validate:"max=50"`
	Requirements       []string   `json:"requirements" validate:"max=50"`
}

// UpdateCourseInput carries only the fields the caller sent.
type UpdateCourseInput struct {
	Title              *string    `json:"title" validate:"omitempty,min=3,max=200"`
	Description        *string    `json:"description" validate:"omitempty,min=1"`
	Category           *string    `json:"category" validate:"omitempty,min=1,max=100"`
	Level              *string    `json:"level" validate:"omitempty,oneof=beginner intermediate advanced"`
	Thumbnail          *string    `json:"thumbnail" validate:"omitempty,url"`
	Price              *float64   `json:"price" validate:"omitempty,gte=0"`
	DiscountPrice      *float64   `json:"discount_price" validate:"omitempty,gte=0"`
	DiscountValidUntil *time.Time `json:"discount_valid_until"`
	Tags               []string   `json:"tags" validate:"omitempty,max=20,dive,max=50"`
	WhatYouWillLearn   []string   `json:"what_you_will_learn" validate:"omitempty,max=50"`
	Requirements       []string   `json:"requirements" validate:"omitempty,max=50"`
}

type ModuleInput struct {
	Title       *string `json:"title" validate:"omitempty,max=200"`
	Description *string `json:"description"`
	Order       *int    `json:"order" validate:"omitempty,gte=1"`
}

type LessonInput struct {
	Title       *string                `json:"title" validate:"omitempty,max=200"`
	Description *string                `json:"description"`
	Type        string                 `json:"type" validate:"omitempty,oneof=video text quiz assignment"`
	Content     *catalog.LessonContent `json:"content"`
	IsPreview   *bool                  `json:"is_preview"`
}

type CourseEarnings struct {
	CourseID    uuid.UUID `json:"course_id"`
	Title       string    `json:"title"`
	Enrollments int       `json:"enrollments"`
	Sales       int64     `json:"sales"`
	Revenue     float64   `json:"revenue"`
	Earnings    float64   `json:"earnings"`
}

type Earnings struct {
	TotalEarnings  float64              `json:"total_earnings"`
	PendingAmount  float64              `json:"pending_amount"`
	PaidOut        float64              `json:"paid_out"`
	CourseEarnings []CourseEarnings     `json:"course_earnings"`
	MonthlyData    []repos.MonthlyPoint `json:"monthly_data"`
}

type CourseStudent struct {
	UserID         uuid.UUID  `json:"id"`
	FullName       string     `json:"full_name"`
	Email          string     `json:"email"`
	EnrollmentID   uuid.UUID  `json:"enrollment_id"`
	EnrolledAt     time.Time  `json:"enrolled_at"`
	Progress       float64    `json:"progress"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
}

// CreatorService covers course authoring and creator reporting.
type CreatorService interface {
	CreateCourse(ctx context.Context, in CreateCourseInput) (*types.Course, error)
	UpdateCourse(ctx context.Context, courseID uuid.UUID, in UpdateCourseInput) (*types.Course, error)
	ListCreatorCourses(ctx context.Context, filter repos.CourseFilter) (*CoursePage, error)
	PublishCourse(ctx context.Context, courseID uuid.UUID) (*types.Course, error)

	AddModule(ctx context.Context, courseID uuid.UUID, in ModuleInput) (*types.Module, error)
	UpdateModule(ctx context.Context, moduleID uuid.UUID, in ModuleInput) (*types.Module, error)
	DeleteModule(ctx context.Context, moduleID uuid.UUID) (domainagg.DeleteModuleResult, error)

	AddLesson(ctx context.Context, moduleID uuid.UUID, in LessonInput) (*types.Lesson, error)
	UpdateLesson(ctx context.Context, lessonID uuid.UUID, in LessonInput) (*types.Lesson, error)
	DeleteLesson(ctx context.Context, lessonID uuid.UUID) error

	GetEarnings(ctx context.Context) (*Earnings, error)
	GetCourseStudents(ctx context.Context, courseID uuid.UUID) ([]CourseStudent, error)
}

type creatorService struct {
	log         *logger.Logger
	clock       Clock
	bus         EventPublisher
	courses     repos.CourseRepo
	modules     repos.ModuleRepo
	lessons     repos.LessonRepo
	enrollments repos.EnrollmentRepo
	payments    repos.PaymentRepo
	users       repos.UserRepo
	catalog     domainagg.CatalogAggregate
}

func NewCreatorService(
	baseLog *logger.Logger,
	clock Clock,
	bus EventPublisher,
	courses repos.CourseRepo,
	modules repos.ModuleRepo,
	lessons repos.LessonRepo,
	enrollments repos.EnrollmentRepo,
	payments repos.PaymentRepo,
	users repos.UserRepo,
	catalogAgg domainagg.CatalogAggregate,
) CreatorService {
	return &creatorService{
		log:         baseLog.With("service", "CreatorService"),
		clock:       clockOrSystem(clock),
		bus:         bus,
		courses:     courses,
		modules:     modules,
		lessons:     lessons,
		enrollments: enrollments,
		payments:    payments,
		users:       users,
		catalog:     catalogAgg,
	}
}

func isCreator(rd *ctxutil.RequestData) bool { return rd.IsCreator() }

func (s *creatorService) CreateCourse(ctx context.Context, in CreateCourseInput) (*types.Course, error) {
	const op = "creator.create_course"
	rd, err := requireRole(ctx, op, isCreator, "only creators can create courses")
	if err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	if err := validateInput(op, in); err != nil {
		return nil, err
	}
	if err := checkDiscount(op, in.Price, in.DiscountPrice); err != nil {
		return nil, err
	}
	level := in.Level
	if level == "" {
		level = catalog.LevelBeginner
	}
	course := &types.Course{
		ID:                 uuid.New(),
		CreatorID:          rd.UserID,
		Title:              in.Title,
		Description:        in.Description,
		Category:           in.Category,
		Level:              level,
		Thumbnail:          strings.TrimSpace(in.Thumbnail),
		Tags:               datatypes.NewJSONSlice(nonNilStrings(in.Tags)),
		WhatYouWillLearn:   datatypes.NewJSONSlice(nonNilStrings(in.WhatYouWillLearn)),
		Requirements:       datatypes.NewJSONSlice(nonNilStrings(in.Requirements)),
		Price:              in.Price,
		DiscountPrice:      in.DiscountPrice,
		DiscountValidUntil: in.DiscountValidUntil,
	}
	if err := s.courses.Create(dbctx.Context{Ctx: ctx}, course); err != nil {
		return nil, internalErr(op, err)
	}
	s.log.Info("Course created", "course_id", course.ID, "creator_id", rd.UserID)
	return course, nil
}

// UpdateCourse applies a partial update. Once a course is live its title,
// description, price, category and level are frozen; other fields stay editable.
func (s *creatorService) UpdateCourse(ctx context.Context, courseID uuid.UUID, in UpdateCourseInput) (*types.Course, error) {
	const op = "creator.update_course"
	course, err := s.ownedCourse(ctx, op, courseID)
	if err != nil {
		return nil, err
	}
	if err := validateInput(op, in); err != nil {
		return nil, err
	}

	live := course.Available()
	updates := map[string]interface{}{}
	if !live {
		if in.Title != nil {
			updates["title"] = strings.TrimSpace(*in.Title)
		}
		if in.Description != nil {
			updates["description"] = strings.TrimSpace(*in.Description)
		}
		if in.Category != nil {
			updates["category"] = strings.TrimSpace(*in.Category)
		}
		if in.Level != nil {
			updates["level"] = *in.Level
		}
		if in.Price != nil {
			updates["price"] = *in.Price
		}
	}
	if in.Thumbnail != nil {
		updates["thumbnail"] = strings.TrimSpace(*in.Thumbnail)
	}
	if in.DiscountPrice != nil {
		updates["discount_price"] = *in.DiscountPrice
	}
	if in.DiscountValidUntil != nil {
		updates["discount_valid_until"] = *in.DiscountValidUntil
	}
	if in.Tags != nil {
		updates["tags"] = datatypes.NewJSONSlice(in.Tags)
	}
	if in.WhatYouWillLearn != nil {
		updates["what_you_will_learn"] = datatypes.NewJSONSlice(in.WhatYouWillLearn)
	}
	if in.Requirements != nil {
		updates["requirements"] = datatypes.NewJSONSlice(in.Requirements)
	}

	price := course.Price
	if p, ok := updates["price"].(float64); ok {
		price = p
	}
	discount := course.DiscountPrice
	if in.DiscountPrice != nil {
		discount = in.DiscountPrice
	}
	if err := checkDiscount(op, price, discount); err != nil {
		return nil, err
	}

	if len(updates) > 0 {
		if err := s.courses.UpdateFields(dbctx.Context{Ctx: ctx}, course.ID, updates); err != nil {
			return nil, internalErr(op, err)
		}
	}
	return s.reloadCourse(ctx, op, course.ID)
}

func (s *creatorService) ListCreatorCourses(ctx context.Context, filter repos.CourseFilter) (*CoursePage, error) {
	const op = "creator.list_courses"
	rd, err := requireRole(ctx, op, isCreator, "only creators can list their courses")
	if err != nil {
		return nil, err
	}
	creatorID := rd.UserID
	filter.CreatorID = &creatorID
	filter.OnlyAvailable = false
	filter = filter.Normalize()
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

// PublishCourse submits the course for review; approval is always reset.
func (s *creatorService) PublishCourse(ctx context.Context, courseID uuid.UUID) (*types.Course, error) {
	const op = "creator.publish_course"
	course, err := s.ownedCourse(ctx, op, courseID)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}

	var missing []string
	if strings.TrimSpace(course.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(course.Description) == "" {
		missing = append(missing, "description")
	}
	if strings.TrimSpace(course.Thumbnail) == "" {
		missing = append(missing, "thumbnail")
	}
	modules, err := s.modules.ListByCourse(dbc, course.ID)
	if err != nil {
		return nil, internalErr(op, err)
	}
	if len(modules) == 0 {
		missing = append(missing, "at least one module")
	}
	lessonCount, err := s.lessons.CountByCourse(dbc, course.ID)
	if err != nil {
		return nil, internalErr(op, err)
	}
	if lessonCount == 0 {
		missing = append(missing, "at least one lesson")
	}
	if len(missing) > 0 {
		return nil, fail(domainagg.CodeValidation, op, "course is missing required fields: "+strings.Join(missing, ", "))
	}

	if err := s.courses.UpdateFields(dbc, course.ID, map[string]interface{}{
		"is_published": true,
		"is_approved":  false,
	}); err != nil {
		return nil, internalErr(op, err)
	}
	out, err := s.reloadCourse(ctx, op, course.ID)
	if err != nil {
		return nil, err
	}
	publish(ctx, s.bus, s.log, events.New(events.CoursePublished, course.CreatorID, course.ID, nil))
	return out, nil
}

func (s *creatorService) AddModule(ctx context.Context, courseID uuid.UUID, in ModuleInput) (*types.Module, error) {
	const op = "creator.add_module"
	if _, err := s.ownedCourse(ctx, op, courseID); err != nil {
		return nil, err
	}
	if err := validateInput(op, in); err != nil {
		return nil, err
	}
	return s.catalog.AddModule(ctx, domainagg.AddModuleInput{
		CourseID:    courseID,
		Title:       derefString(in.Title),
		Description: derefString(in.Description),
	})
}

func (s *creatorService) UpdateModule(ctx context.Context, moduleID uuid.UUID, in ModuleInput) (*types.Module, error) {
	const op = "creator.update_module"
	if _, err := s.ownedModule(ctx, op, moduleID); err != nil {
		return nil, err
	}
	if err := validateInput(op, in); err != nil {
		return nil, err
	}
	return s.catalog.UpdateModule(ctx, domainagg.UpdateModuleInput{
		ModuleID:    moduleID,
		Title:       in.Title,
		Description: in.Description,
		Position:    in.Order,
	})
}

func (s *creatorService) DeleteModule(ctx context.Context, moduleID uuid.UUID) (domainagg.DeleteModuleResult, error) {
	const op = "creator.delete_module"
	if _, err := s.ownedModule(ctx, op, moduleID); err != nil {
		return domainagg.DeleteModuleResult{}, err
	}
	return s.catalog.DeleteModule(ctx, moduleID)
}

func (s *creatorService) AddLesson(ctx context.Context, moduleID uuid.UUID, in LessonInput) (*types.Lesson, error) {
	const op = "creator.add_lesson"
	if _, err := s.ownedModule(ctx, op, moduleID); err != nil {
		return nil, err
	}
	if err := validateInput(op, in); err != nil {
		return nil, err
	}
	if in.Type == "" {
		return nil, fail(domainagg.CodeValidation, op, "type is required")
	}
	var content catalog.LessonContent
	if in.Content != nil {
		content = *in.Content
	}
	isPreview := false
	if in.IsPreview != nil {
		isPreview = *in.IsPreview
	}
	return s.catalog.AddLesson(ctx, domainagg.AddLessonInput{
		ModuleID:    moduleID,
		Title:       derefString(in.Title),
		Description: derefString(in.Description),
		Type:        in.Type,
		Content:     content,
		IsPreview:   isPreview,
	})
}

// UpdateLesson cannot change the lesson type; a different type means a new lesson.
func (s *creatorService) UpdateLesson(ctx context.Context, lessonID uuid.UUID, in LessonInput) (*types.Lesson, error) {
	const op = "creator.update_lesson"
	lesson, err := s.ownedLesson(ctx, op, lessonID)
	if err != nil {
		return nil, err
	}
	if err := validateInput(op, in); err != nil {
		return nil, err
	}
	if in.Type != "" && in.Type != lesson.Type {
		return nil, fail(domainagg.CodeValidation, op, "lesson type cannot be changed")
	}
	return s.catalog.UpdateLesson(ctx, domainagg.UpdateLessonInput{
		LessonID:    lessonID,
		Title:       in.Title,
		Description: in.Description,
		Content:     in.Content,
		IsPreview:   in.IsPreview,
	})
}

func (s *creatorService) DeleteLesson(ctx context.Context, lessonID uuid.UUID) error {
	const op = "creator.delete_lesson"
	if _, err := s.ownedLesson(ctx, op, lessonID); err != nil {
		return err
	}
	return s.catalog.DeleteLesson(ctx, lessonID)
}

func (s *creatorService) GetEarnings(ctx context.Context) (*Earnings, error) {
	const op = "creator.earnings"
	rd, err := requireRole(ctx, op, isCreator, "only creators have earnings")
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	ids, err := s.courses.ListIDsByCreator(dbc, rd.UserID)
	if err != nil {
		return nil, internalErr(op, err)
	}
	out := &Earnings{CourseEarnings: []CourseEarnings{}, MonthlyData: []repos.MonthlyPoint{}}
	if len(ids) == 0 {
		return out, nil
	}

	courses, err := s.courses.GetByIDs(dbc, ids)
	if err != nil {
		return nil, internalErr(op, err)
	}
	for _, c := range courses {
		t, err := s.payments.TotalsByStatus(dbc, []uuid.UUID{c.ID}, types.PaymentStatusCompleted)
		if err != nil {
			return nil, internalErr(op, err)
		}
		out.TotalEarnings += t.CreatorPayout
		out.CourseEarnings = append(out.CourseEarnings, CourseEarnings{
			CourseID:    c.ID,
			Title:       c.Title,
			Enrollments: c.EnrolledStudents,
			Sales:       t.Count,
			Revenue:     t.Revenue,
			Earnings:    t.CreatorPayout,
		})
	}
	pending, err := s.payments.PendingPayout(dbc, ids)
	if err != nil {
		return nil, internalErr(op, err)
	}
	out.PendingAmount = pending
	out.PaidOut = out.TotalEarnings - pending
	if out.PaidOut < 0 {
		out.PaidOut = 0
	}

	monthly, err := s.payments.MonthlyRevenue(dbc, monthsAgo(s.clock(), earningsMonths), ids)
	if err != nil {
		return nil, internalErr(op, err)
	}
	out.MonthlyData = monthly
	return out, nil
}

func (s *creatorService) GetCourseStudents(ctx context.Context, courseID uuid.UUID) ([]CourseStudent, error) {
	const op = "creator.course_students"
	course, err := s.ownedCourse(ctx, op, courseID)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	rows, err := s.enrollments.ListByCourses(dbc, []uuid.UUID{course.ID})
	if err != nil {
		return nil, internalErr(op, err)
	}
	userIDs := make([]uuid.UUID, 0, len(rows))
	for _, e := range rows {
		userIDs = append(userIDs, e.UserID)
	}
	users, err := s.users.GetByIDs(dbc, userIDs)
	if err != nil {
		return nil, internalErr(op, err)
	}
	byID := make(map[uuid.UUID]*types.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	out := make([]CourseStudent, 0, len(rows))
	for _, e := range rows {
		st := CourseStudent{
			UserID:         e.UserID,
			EnrollmentID:   e.ID,
			EnrolledAt:     e.EnrolledAt,
			Progress:       e.Progress,
			LastAccessedAt: e.LastAccessedAt,
		}
		if u := byID[e.UserID]; u != nil {
			st.FullName = u.FullName
			st.Email = u.Email
		}
		out = append(out, st)
	}
	return out, nil
}

// ownedCourse loads the course and checks the caller created it or is an admin.
func (s *creatorService) ownedCourse(ctx context.Context, op string, courseID uuid.UUID) (*types.Course, error) {
	rd, err := requireRole(ctx, op, isCreator, "only creators can manage courses")
	if err != nil {
		return nil, err
	}
	course, err := s.courses.GetByID(dbctx.Context{Ctx: ctx}, courseID)
	if err != nil {
		return nil, internalErr(op, err)
	}
	if course == nil {
		return nil, fail(domainagg.CodeNotFound, op, "course not found")
	}
	if !canManageCourse(rd, course) {
		return nil, fail(domainagg.CodeForbidden, op, "you do not own this course")
	}
	return course, nil
}

func (s *creatorService) ownedModule(ctx context.Context, op string, moduleID uuid.UUID) (*types.Module, error) {
	if _, err := requireRole(ctx, op, isCreator, "only creators can manage courses"); err != nil {
		return nil, err
	}
	module, err := s.modules.GetByID(dbctx.Context{Ctx: ctx}, moduleID)
	if err != nil {
		return nil, internalErr(op, err)
	}
	if module == nil {
		return nil, fail(domainagg.CodeNotFound, op, "module not found")
	}
	if _, err := s.ownedCourse(ctx, op, module.CourseID); err != nil {
		return nil, err
	}
	return module, nil
}

func (s *creatorService) ownedLesson(ctx context.Context, op string, lessonID uuid.UUID) (*types.Lesson, error) {
	if _, err := requireRole(ctx, op, isCreator, "only creators can manage courses"); err != nil {
		return nil, err
	}
	lesson, err := s.lessons.GetByID(dbctx.Context{Ctx: ctx}, lessonID)
	if err != nil {
		return nil, internalErr(op, err)
	}
	if lesson == nil {
		return nil, fail(domainagg.CodeNotFound, op, "lesson not found")
	}
	if _, err := s.ownedCourse(ctx, op, lesson.CourseID); err != nil {
		return nil, err
	}
	return lesson, nil
}

func (s *creatorService) reloadCourse(ctx context.Context, op string, id uuid.UUID) (*types.Course, error) {
	course, err := s.courses.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, internalErr(op, err)
	}
	if course == nil {
		return nil, fail(domainagg.CodeNotFound, op, "course not found")
	}
	return course, nil
}

func checkDiscount(op string, price float64, discount *float64) error {
	if discount != nil && *discount > price {
		return fail(domainagg.CodeValidation, op, "discount_price must not exceed price")
	}
	return nil
}

// monthsAgo returns the first instant of the month n-1 months before now, so
// the window holds n calendar months including the current one.
func monthsAgo(now time.Time, n int) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month()-time.Month(n-1), 1, 0, 0, 0, 0, time.UTC)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
