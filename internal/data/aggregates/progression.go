package aggregates

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/coursemarket-backend/internal/data/repos"
	types "github.com/yungbote/coursemarket-backend/internal/domain"
	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/domain/catalog"
	"github.com/yungbote/coursemarket-backend/internal/domain/enrollment"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
)

type ProgressionEngineDeps struct {
	Base        BaseDeps
	Policy      domainagg.ProgressionPolicy
	Lessons     repos.LessonRepo
	Enrollments repos.EnrollmentRepo
	Completions repos.EnrollmentLessonRepo
}

type progressionEngine struct {
	deps ProgressionEngineDeps
}

func NewProgressionEngine(deps ProgressionEngineDeps) domainagg.ProgressionEngine {
	deps.Base = deps.Base.withDefaults()
	if deps.Policy.VideoCompletionRatio <= 0 || deps.Policy.QuizPassPercent <= 0 {
		deps.Policy = domainagg.DefaultProgressionPolicy()
	}
	return &progressionEngine{deps: deps}
}

func (a *progressionEngine) Contract() domainagg.Contract {
	return domainagg.ProgressionEngineContract
}

func (a *progressionEngine) MarkLessonComplete(ctx context.Context, in domainagg.LessonActivityInput) (domainagg.ProgressResult, error) {
	const op = "progression.mark_complete"
	if err := requireActivityIDs(op, in.UserID, in.LessonID); err != nil {
		return domainagg.ProgressResult{}, err
	}
	var out domainagg.ProgressResult
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		lesson, enr, err := a.load(dbc, op, in.UserID, in.LessonID, "")
		if err != nil {
			return err
		}
		added, err := a.complete(dbc, lesson, enr, in.At)
		if err != nil {
			return err
		}
		if !added {
			return fail(domainagg.CodeAlreadyCompleted, op, "lesson already marked as complete")
		}
		out, err = a.result(dbc, lesson, enr, added)
		return err
	})
	if err != nil {
		return domainagg.ProgressResult{}, err
	}
	return out, nil
}

func (a *progressionEngine) RecordVideoProgress(ctx context.Context, in domainagg.VideoProgressInput) (domainagg.ProgressResult, error) {
	const op = "progression.video_progress"
	if err := requireActivityIDs(op, in.UserID, in.LessonID); err != nil {
		return domainagg.ProgressResult{}, err
	}
	if in.CurrentTime < 0 {
		return domainagg.ProgressResult{}, fail(domainagg.CodeValidation, op, "current_time must not be negative")
	}
	var out domainagg.ProgressResult
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		lesson, enr, err := a.load(dbc, op, in.UserID, in.LessonID, "")
		if err != nil {
			return err
		}
		if err := a.touch(dbc, lesson, enr, in.At); err != nil {
			return err
		}
		added := false
		if a.videoWatched(lesson, in.CurrentTime) {
			if added, err = a.complete(dbc, lesson, enr, in.At); err != nil {
				return err
			}
		}
		out, err = a.result(dbc, lesson, enr, added)
		return err
	})
	if err != nil {
		return domainagg.ProgressResult{}, err
	}
	return out, nil
}

// videoWatched applies the inclusive completion threshold. Lessons without a
// known duration never auto-complete.
func (a *progressionEngine) videoWatched(lesson *types.Lesson, currentTime float64) bool {
	if lesson.Type != catalog.LessonTypeVideo {
		return false
	}
	duration := lesson.Content.Data().Duration
	if duration <= 0 {
		return false
	}
	return currentTime >= duration*a.deps.Policy.VideoCompletionRatio
}

func (a *progressionEngine) GradeQuiz(ctx context.Context, in domainagg.QuizSubmissionInput) (domainagg.QuizResult, error) {
	const op = "progression.grade_quiz"
	if err := requireActivityIDs(op, in.UserID, in.LessonID); err != nil {
		return domainagg.QuizResult{}, err
	}
	var out domainagg.QuizResult
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		lesson, enr, err := a.load(dbc, op, in.UserID, in.LessonID, catalog.LessonTypeQuiz)
		if err != nil {
			return err
		}
		questions := lesson.Content.Data().Questions
		if len(questions) == 0 {
			return fail(domainagg.CodeValidation, op, "quiz has no questions")
		}
		grade := enrollment.GradeQuiz(questions, in.Answers, a.deps.Policy.QuizPassPercent)
		added := false
		if grade.Passed {
			if added, err = a.complete(dbc, lesson, enr, in.At); err != nil {
				return err
			}
		}
		res, err := a.result(dbc, lesson, enr, added)
		if err != nil {
			return err
		}
		out = domainagg.QuizResult{ProgressResult: res, Grade: grade}
		return nil
	})
	if err != nil {
		return domainagg.QuizResult{}, err
	}
	return out, nil
}

func (a *progressionEngine) SubmitAssignment(ctx context.Context, in domainagg.AssignmentInput) (domainagg.ProgressResult, error) {
	const op = "progression.submit_assignment"
	if err := requireActivityIDs(op, in.UserID, in.LessonID); err != nil {
		return domainagg.ProgressResult{}, err
	}
	if strings.TrimSpace(in.SubmissionURL) == "" {
		return domainagg.ProgressResult{}, fail(domainagg.CodeValidation, op, "submission_url is required")
	}
	var out domainagg.ProgressResult
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		lesson, enr, err := a.load(dbc, op, in.UserID, in.LessonID, catalog.LessonTypeAssignment)
		if err != nil {
			return err
		}
		added, err := a.complete(dbc, lesson, enr, in.At)
		if err != nil {
			return err
		}
		out, err = a.result(dbc, lesson, enr, added)
		return err
	})
	if err != nil {
		return domainagg.ProgressResult{}, err
	}
	return out, nil
}

func (a *progressionEngine) TouchLesson(ctx context.Context, in domainagg.LessonActivityInput) (domainagg.ProgressResult, error) {
	const op = "progression.touch"
	if err := requireActivityIDs(op, in.UserID, in.LessonID); err != nil {
		return domainagg.ProgressResult{}, err
	}
	var out domainagg.ProgressResult
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		lesson, enr, err := a.load(dbc, op, in.UserID, in.LessonID, "")
		if err != nil {
			return err
		}
		if err := a.touch(dbc, lesson, enr, in.At); err != nil {
			return err
		}
		out, err = a.result(dbc, lesson, enr, false)
		return err
	})
	if err != nil {
		return domainagg.ProgressResult{}, err
	}
	return out, nil
}

func requireActivityIDs(op string, userID, lessonID uuid.UUID) error {
	if userID == uuid.Nil {
		return fail(domainagg.CodeValidation, op, "missing user_id")
	}
	if lessonID == uuid.Nil {
		return fail(domainagg.CodeValidation, op, "missing lesson_id")
	}
	return nil
}

// load resolves the lesson and locks the learner's enrollment for its course.
// A non-empty wantType hides lessons of other types behind not_found.
func (a *progressionEngine) load(dbc dbctx.Context, op string, userID, lessonID uuid.UUID, wantType string) (*types.Lesson, *types.Enrollment, error) {
	lesson, err := a.deps.Lessons.GetByID(dbc, lessonID)
	if err != nil {
		return nil, nil, err
	}
	if lesson == nil || (wantType != "" && lesson.Type != wantType) {
		msg := "lesson not found"
		if wantType != "" {
			msg = wantType + " lesson not found"
		}
		return nil, nil, fail(domainagg.CodeNotFound, op, msg)
	}
	enr, err := a.deps.Enrollments.LockByUserCourse(dbc, userID, lesson.CourseID)
	if err != nil {
		return nil, nil, err
	}
	if enr == nil {
		return nil, nil, fail(domainagg.CodeNotEnrolled, op, "you need to be enrolled in the course")
	}
	return lesson, enr, nil
}

// complete adds the lesson to the completed set and, when it was new,
// rewrites progress from the set size over the course's live lesson count.
func (a *progressionEngine) complete(dbc dbctx.Context, lesson *types.Lesson, enr *types.Enrollment, at time.Time) (bool, error) {
	when := nowOr(at)
	added, err := a.deps.Completions.Insert(dbc, enr.ID, lesson.ID, when)
	if err != nil || !added {
		return added, err
	}
	progress, err := a.progressOf(dbc, enr.ID, lesson.CourseID)
	if err != nil {
		return false, err
	}
	if err := a.deps.Enrollments.UpdateFields(dbc, enr.ID, map[string]interface{}{"progress": progress, "updated_at": when}); err != nil {
		return false, err
	}
	enr.Progress = progress
	return true, nil
}

func (a *progressionEngine) progressOf(dbc dbctx.Context, enrollmentID, courseID uuid.UUID) (float64, error) {
	done, err := a.deps.Completions.CountByEnrollment(dbc, enrollmentID)
	if err != nil {
		return 0, err
	}
	total, err := a.deps.Lessons.CountByCourse(dbc, courseID)
	if err != nil {
		return 0, err
	}
	return enrollment.ComputeProgress(int(done), int(total)), nil
}

func (a *progressionEngine) touch(dbc dbctx.Context, lesson *types.Lesson, enr *types.Enrollment, at time.Time) error {
	when := nowOr(at)
	err := a.deps.Enrollments.UpdateFields(dbc, enr.ID, map[string]interface{}{
		"last_accessed_lesson_id": lesson.ID,
		"last_accessed_at":        when,
		"updated_at":              when,
	})
	if err != nil {
		return err
	}
	id := lesson.ID
	enr.LastAccessedLessonID = &id
	enr.LastAccessedAt = &when
	return nil
}

func (a *progressionEngine) result(dbc dbctx.Context, lesson *types.Lesson, enr *types.Enrollment, added bool) (domainagg.ProgressResult, error) {
	if err := a.deps.Completions.LoadCompleted(dbc, enr); err != nil {
		return domainagg.ProgressResult{}, err
	}
	return domainagg.ProgressResult{Enrollment: enr, CourseID: lesson.CourseID, NewlyCompleted: added}, nil
}
