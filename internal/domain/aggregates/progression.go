package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/yungbote/coursemarket-backend/internal/domain/enrollment"
)

var ProgressionEngineContract = Contract{
	Name:             "Marketplace.ProgressionEngine",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Tables:           []string{"enrollment", "enrollment_lesson"},
	Notes:            "Keeps enrollment.progress equal to 100 * completed lessons / course lessons after every completion.",
}

// ProgressionPolicy holds the completion thresholds.
type ProgressionPolicy struct {
	VideoCompletionRatio float64 `yaml:"video_completion_ratio"`
	QuizPassPercent      float64 `yaml:"quiz_pass_percent"`
}

func DefaultProgressionPolicy() ProgressionPolicy {
	return ProgressionPolicy{VideoCompletionRatio: 0.9, QuizPassPercent: 70}
}

// ProgressionEngine turns learner activity into enrollment mutations.
//
// Every method requires an enrollment for the lesson's course and fails with
// CodeNotEnrolled otherwise. MarkLessonComplete fails with CodeAlreadyCompleted
// on repeats; the other methods complete silently.
type ProgressionEngine interface {
	Aggregate

	MarkLessonComplete(ctx context.Context, in LessonActivityInput) (ProgressResult, error)
	RecordVideoProgress(ctx context.Context, in VideoProgressInput) (ProgressResult, error)
	GradeQuiz(ctx context.Context, in QuizSubmissionInput) (QuizResult, error)
	SubmitAssignment(ctx context.Context, in AssignmentInput) (ProgressResult, error)

	// TouchLesson records the lesson as last accessed without completing it.
	TouchLesson(ctx context.Context, in LessonActivityInput) (ProgressResult, error)
}

type LessonActivityInput struct {
	UserID   uuid.UUID
	LessonID uuid.UUID
	At       time.Time
}

type VideoProgressInput struct {
	UserID      uuid.UUID
	LessonID    uuid.UUID
	CurrentTime float64
	At          time.Time
}

type QuizSubmissionInput struct {
	UserID   uuid.UUID
	LessonID uuid.UUID
	Answers  []int
	At       time.Time
}

type AssignmentInput struct {
	UserID        uuid.UUID
	LessonID      uuid.UUID
	SubmissionURL string
	Comments      string
	At            time.Time
}

type ProgressResult struct {
	Enrollment *enrollment.Enrollment
	CourseID   uuid.UUID
	// NewlyCompleted is true when this call added the lesson to the completed set.
	NewlyCompleted bool
}

type QuizResult struct {
	ProgressResult
	Grade enrollment.QuizGrade
}
