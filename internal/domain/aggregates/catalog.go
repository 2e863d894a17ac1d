package aggregates

import (
	"context"

	"github.com/google/uuid"
	"github.com/yungbote/coursemarket-backend/internal/domain/catalog"
)

var CatalogAggregateContract = Contract{
	Name:             "Marketplace.Catalog",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Tables:           []string{"course", "course_module", "lesson", "course_review", "enrollment", "enrollment_lesson"},
	Notes:            "Keeps course lesson counters, module/lesson ordering and rating summary consistent with their rows.",
}

// CatalogAggregate owns writes that touch course counters or derived fields.
//
// Structural edits fail with CodePreconditionFailed while the course is both
// published and approved.
type CatalogAggregate interface {
	Aggregate

	AddModule(ctx context.Context, in AddModuleInput) (*catalog.Module, error)
	UpdateModule(ctx context.Context, in UpdateModuleInput) (*catalog.Module, error)
	DeleteModule(ctx context.Context, moduleID uuid.UUID) (DeleteModuleResult, error)

	AddLesson(ctx context.Context, in AddLessonInput) (*catalog.Lesson, error)
	UpdateLesson(ctx context.Context, in UpdateLessonInput) (*catalog.Lesson, error)
	DeleteLesson(ctx context.Context, lessonID uuid.UUID) error

	// RecountCourse recomputes counters from the live lesson and enrollment sets.
	RecountCourse(ctx context.Context, courseID uuid.UUID) (*catalog.Course, error)

	// UpsertReview creates or replaces the learner's review and refreshes the rating summary.
	UpsertReview(ctx context.Context, in ReviewInput) (ReviewResult, error)
}

type AddModuleInput struct {
	CourseID    uuid.UUID
	Title       string
	Description string
}

type UpdateModuleInput struct {
	ModuleID    uuid.UUID
	Title       *string
	Description *string
	Position    *int
}

type DeleteModuleResult struct {
	LessonsRemoved  int
	DurationRemoved float64
}

type AddLessonInput struct {
	ModuleID    uuid.UUID
	Title       string
	Description string
	Type        string
	Content     catalog.LessonContent
	IsPreview   bool
}

type UpdateLessonInput struct {
	LessonID    uuid.UUID
	Title       *string
	Description *string
	Content     *catalog.LessonContent
	IsPreview   *bool
}

type ReviewInput struct {
	UserID   uuid.UUID
	CourseID uuid.UUID
	Rating   int
	Comment  string
}

type ReviewResult struct {
	Review  *catalog.Review
	Course  *catalog.Course
	Created bool
}
