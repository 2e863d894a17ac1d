package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/coursemarket-backend/internal/data/repos"
	types "github.com/yungbote/coursemarket-backend/internal/domain"
	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/domain/enrollment"
	"github.com/yungbote/coursemarket-backend/internal/domain/events"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

type ProgressUpdate struct {
	Enrollment      *types.Enrollment `json:"enrollment"`
	Progress        float64           `json:"progress"`
	LessonCompleted bool              `json:"lesson_completed"`
	CourseCompleted bool              `json:"course_completed"`
}

type QuizOutcome struct {
	ProgressUpdate
	Grade types.QuizGrade `json:"grade"`
}

type LessonService interface {
	GetLesson(ctx context.Context, lessonID uuid.UUID) (*LessonProgress, error)
	MarkComplete(ctx context.Context, lessonID uuid.UUID) (*ProgressUpdate, error)
	RecordVideoProgress(ctx context.Context, lessonID uuid.UUID, currentTime float64) (*ProgressUpdate, error)
	GradeQuiz(ctx context.Context, lessonID uuid.UUID, answers []int) (*QuizOutcome, error)
	SubmitAssignment(ctx context.Context, lessonID uuid.UUID, submissionURL, comments string) (*ProgressUpdate, error)
}

type lessonService struct {
	log         *logger.Logger
	clock       Clock
	bus         EventPublisher
	engine      domainagg.ProgressionEngine
	courses     repos.CourseRepo
	lessons     repos.LessonRepo
	enrollments repos.EnrollmentRepo
}

func NewLessonService(
	baseLog *logger.Logger,
	clock Clock,
	bus EventPublisher,
	engine domainagg.ProgressionEngine,
	courses repos.CourseRepo,
	lessons repos.LessonRepo,
	enrollments repos.EnrollmentRepo,
) LessonService {
	return &lessonService{
		log:         baseLog.With("service", "LessonService"),
		clock:       clockOrSystem(clock),
		bus:         bus,
		engine:      engine,
		courses:     courses,
		lessons:     lessons,
		enrollments: enrollments,
	}
}

// GetLesson returns the lesson with quiz answers removed. Reading a lesson as
// an enrolled learner records it as last accessed.
func (s *lessonService) GetLesson(ctx context.Context, lessonID uuid.UUID) (*LessonProgress, error) {
	const op = "lesson.get"
	rd, err := requirePrincipal(ctx, op)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	lesson, err := s.lessons.GetByID(dbc, lessonID)
	if err != nil {
		return nil, internalErr(op, err)
	}
	if lesson == nil {
		return nil, fail(domainagg.CodeNotFound, op, "lesson not found")
	}
	course, err := s.courses.GetByID(dbc, lesson.CourseID)
	if err != nil {
		return nil, internalErr(op, err)
	}
	if course == nil {
		return nil, fail(domainagg.CodeNotFound, op, "course not found")
	}
	if canManageCourse(rd, course) {
		return &LessonProgress{Lesson: lesson}, nil
	}

	enr, err := s.enrollments.GetByUserCourse(dbc, rd.UserID, course.ID)
	if err != nil {
		return nil, internalErr(op, err)
	}
	if enr == nil {
		if lesson.IsPreview && course.Available() {
			return &LessonProgress{Lesson: lesson.Redacted()}, nil
		}
		return nil, fail(domainagg.CodeNotEnrolled, op, "you need to be enrolled in the course to access this lesson")
	}

	res, err := s.engine.TouchLesson(ctx, domainagg.LessonActivityInput{UserID: rd.UserID, LessonID: lesson.ID, At: s.clock()})
	if err != nil {
		return nil, err
	}
	return &LessonProgress{Lesson: lesson.Redacted(), IsCompleted: res.Enrollment.HasCompleted(lesson.ID)}, nil
}

func (s *lessonService) MarkComplete(ctx context.Context, lessonID uuid.UUID) (*ProgressUpdate, error) {
	const op = "lesson.complete"
	rd, err := requirePrincipal(ctx, op)
	if err != nil {
		return nil, err
	}
	res, err := s.engine.MarkLessonComplete(ctx, domainagg.LessonActivityInput{UserID: rd.UserID, LessonID: lessonID, At: s.clock()})
	if err != nil {
		return nil, err
	}
	return s.progressed(ctx, lessonID, res), nil
}

func (s *lessonService) RecordVideoProgress(ctx context.Context, lessonID uuid.UUID, currentTime float64) (*ProgressUpdate, error) {
	const op = "lesson.video_progress"
	rd, err := requirePrincipal(ctx, op)
	if err != nil {
		return nil, err
	}
	res, err := s.engine.RecordVideoProgress(ctx, domainagg.VideoProgressInput{
		UserID:      rd.UserID,
		LessonID:    lessonID,
		CurrentTime: currentTime,
		At:          s.clock(),
	})
	if err != nil {
		return nil, err
	}
	return s.progressed(ctx, lessonID, res), nil
}

func (s *lessonService) GradeQuiz(ctx context.Context, lessonID uuid.UUID, answers []int) (*QuizOutcome, error) {
	const op = "lesson.quiz"
	rd, err := requirePrincipal(ctx, op)
	if err != nil {
		return nil, err
	}
	if answers == nil {
		return nil, fail(domainagg.CodeValidation, op, "answers are required")
	}
	res, err := s.engine.GradeQuiz(ctx, domainagg.QuizSubmissionInput{
		UserID:   rd.UserID,
		LessonID: lessonID,
		Answers:  answers,
		At:       s.clock(),
	})
	if err != nil {
		return nil, err
	}
	return &QuizOutcome{ProgressUpdate: *s.progressed(ctx, lessonID, res.ProgressResult), Grade: res.Grade}, nil
}

func (s *lessonService) SubmitAssignment(ctx context.Context, lessonID uuid.UUID, submissionURL, comments string) (*ProgressUpdate, error) {
	const op = "lesson.assignment"
	rd, err := requirePrincipal(ctx, op)
	if err != nil {
		return nil, err
	}
	res, err := s.engine.SubmitAssignment(ctx, domainagg.AssignmentInput{
		UserID:        rd.UserID,
		LessonID:      lessonID,
		SubmissionURL: submissionURL,
		Comments:      comments,
		At:            s.clock(),
	})
	if err != nil {
		return nil, err
	}
	return s.progressed(ctx, lessonID, res), nil
}

func (s *lessonService) progressed(ctx context.Context, lessonID uuid.UUID, res domainagg.ProgressResult) *ProgressUpdate {
	out := &ProgressUpdate{Enrollment: res.Enrollment, LessonCompleted: res.NewlyCompleted}
	if res.Enrollment != nil {
		out.Progress = res.Enrollment.Progress
		out.CourseCompleted = enrollment.IsComplete(res.Enrollment.Progress)
	}
	if res.NewlyCompleted && res.Enrollment != nil {
		publish(ctx, s.bus, s.log, events.New(events.LessonCompleted, res.Enrollment.UserID, res.CourseID, map[string]any{
			"lesson_id": lessonID,
			"progress":  out.Progress,
		}))
	}
	return out
}
