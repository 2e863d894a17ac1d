package aggregates

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/coursemarket-backend/internal/data/repos"
	types "github.com/yungbote/coursemarket-backend/internal/domain"
	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/domain/catalog"
	"github.com/yungbote/coursemarket-backend/internal/domain/enrollment"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
)

type CatalogAggregateDeps struct {
	Base        BaseDeps
	Courses     repos.CourseRepo
	Modules     repos.ModuleRepo
	Lessons     repos.LessonRepo
	Reviews     repos.ReviewRepo
	Enrollments repos.EnrollmentRepo
	Completions repos.EnrollmentLessonRepo
}

type catalogAggregate struct {
	deps CatalogAggregateDeps
}

func NewCatalogAggregate(deps CatalogAggregateDeps) domainagg.CatalogAggregate {
	deps.Base = deps.Base.withDefaults()
	return &catalogAggregate{deps: deps}
}

func (a *catalogAggregate) Contract() domainagg.Contract {
	return domainagg.CatalogAggregateContract
}

func (a *catalogAggregate) AddModule(ctx context.Context, in domainagg.AddModuleInput) (*catalog.Module, error) {
	const op = "catalog.add_module"
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fail(domainagg.CodeValidation, op, "module title is required")
	}
	var out *catalog.Module
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if _, err := a.editableCourse(dbc, op, in.CourseID, "add modules to"); err != nil {
			return err
		}
		pos, err := a.deps.Modules.NextPosition(dbc, in.CourseID)
		if err != nil {
			return err
		}
		m := &catalog.Module{
			CourseID:    in.CourseID,
			Title:       title,
			Description: strings.TrimSpace(in.Description),
			Position:    pos,
		}
		if err := a.deps.Modules.Create(dbc, m); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *catalogAggregate) UpdateModule(ctx context.Context, in domainagg.UpdateModuleInput) (*catalog.Module, error) {
	const op = "catalog.update_module"
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return nil, fail(domainagg.CodeValidation, op, "module title must not be empty")
	}
	if in.Position != nil && *in.Position < 1 {
		return nil, fail(domainagg.CodeValidation, op, "order must be at least 1")
	}
	var out *catalog.Module
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		m, err := a.deps.Modules.GetByID(dbc, in.ModuleID)
		if err != nil {
			return err
		}
		if m == nil {
			return fail(domainagg.CodeNotFound, op, "module not found")
		}
		if _, err := a.editableCourse(dbc, op, m.CourseID, "update modules of"); err != nil {
			return err
		}
		updates := map[string]interface{}{}
		if in.Title != nil {
			m.Title = strings.TrimSpace(*in.Title)
			updates["title"] = m.Title
		}
		if in.Description != nil {
			m.Description = strings.TrimSpace(*in.Description)
			updates["description"] = m.Description
		}
		if in.Position != nil {
			m.Position = *in.Position
			updates["position"] = m.Position
		}
		if err := a.deps.Modules.UpdateFields(dbc, m.ID, updates); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *catalogAggregate) DeleteModule(ctx context.Context, moduleID uuid.UUID) (domainagg.DeleteModuleResult, error) {
	const op = "catalog.delete_module"
	var out domainagg.DeleteModuleResult
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		m, err := a.deps.Modules.GetByID(dbc, moduleID)
		if err != nil {
			return err
		}
		if m == nil {
			return fail(domainagg.CodeNotFound, op, "module not found")
		}
		if _, err := a.editableCourse(dbc, op, m.CourseID, "delete modules of"); err != nil {
			return err
		}
		lessons, err := a.deps.Lessons.ListByModule(dbc, m.ID)
		if err != nil {
			return err
		}
		removed, duration, err := a.removeLessons(dbc, m.CourseID, lessons)
		if err != nil {
			return err
		}
		if err := a.deps.Modules.Delete(dbc, m.ID); err != nil {
			return err
		}
		out = domainagg.DeleteModuleResult{LessonsRemoved: removed, DurationRemoved: duration}
		return nil
	})
	if err != nil {
		return domainagg.DeleteModuleResult{}, err
	}
	return out, nil
}

func (a *catalogAggregate) AddLesson(ctx context.Context, in domainagg.AddLessonInput) (*catalog.Lesson, error) {
	const op = "catalog.add_lesson"
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fail(domainagg.CodeValidation, op, "lesson title is required")
	}
	if !catalog.ValidLessonType(in.Type) {
		return nil, fail(domainagg.CodeValidation, op, "lesson type must be one of video, text, quiz, assignment")
	}
	if err := in.Content.Validate(in.Type); err != nil {
		return nil, fail(domainagg.CodeValidation, op, err.Error())
	}
	var out *catalog.Lesson
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		m, err := a.deps.Modules.GetByID(dbc, in.ModuleID)
		if err != nil {
			return err
		}
		if m == nil {
			return fail(domainagg.CodeNotFound, op, "module not found")
		}
		if _, err := a.editableCourse(dbc, op, m.CourseID, "add lessons to"); err != nil {
			return err
		}
		pos, err := a.deps.Lessons.NextPosition(dbc, m.ID)
		if err != nil {
			return err
		}
		l := &catalog.Lesson{
			ModuleID:    m.ID,
			CourseID:    m.CourseID,
			Title:       title,
			Description: strings.TrimSpace(in.Description),
			Type:        in.Type,
			Content:     datatypes.NewJSONType(in.Content),
			Position:    pos,
			IsPreview:   in.IsPreview,
		}
		if err := a.deps.Lessons.Create(dbc, l); err != nil {
			return err
		}
		if err := a.deps.Courses.AdjustCounters(dbc, m.CourseID, 1, l.VideoDuration(), 0); err != nil {
			return err
		}
		if err := a.recomputeProgress(dbc, m.CourseID); err != nil {
			return err
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *catalogAggregate) UpdateLesson(ctx context.Context, in domainagg.UpdateLessonInput) (*catalog.Lesson, error) {
	const op = "catalog.update_lesson"
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return nil, fail(domainagg.CodeValidation, op, "lesson title must not be empty")
	}
	var out *catalog.Lesson
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		l, err := a.deps.Lessons.GetByID(dbc, in.LessonID)
		if err != nil {
			return err
		}
		if l == nil {
			return fail(domainagg.CodeNotFound, op, "lesson not found")
		}
		if _, err := a.editableCourse(dbc, op, l.CourseID, "update lessons of"); err != nil {
			return err
		}
		updates := map[string]interface{}{}
		if in.Title != nil {
			l.Title = strings.TrimSpace(*in.Title)
			updates["title"] = l.Title
		}
		if in.Description != nil {
			l.Description = strings.TrimSpace(*in.Description)
			updates["description"] = l.Description
		}
		if in.IsPreview != nil {
			l.IsPreview = *in.IsPreview
			updates["is_preview"] = l.IsPreview
		}
		delta := 0.0
		if in.Content != nil {
			if err := in.Content.Validate(l.Type); err != nil {
				return fail(domainagg.CodeValidation, op, err.Error())
			}
			before := l.VideoDuration()
			l.Content = datatypes.NewJSONType(*in.Content)
			delta = l.VideoDuration() - before
			updates["content"] = l.Content
		}
		if err := a.deps.Lessons.UpdateFields(dbc, l.ID, updates); err != nil {
			return err
		}
		if delta != 0 {
			if err := a.deps.Courses.AdjustCounters(dbc, l.CourseID, 0, delta, 0); err != nil {
				return err
			}
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *catalogAggregate) DeleteLesson(ctx context.Context, lessonID uuid.UUID) error {
	const op = "catalog.delete_lesson"
	return executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		l, err := a.deps.Lessons.GetByID(dbc, lessonID)
		if err != nil {
			return err
		}
		if l == nil {
			return fail(domainagg.CodeNotFound, op, "lesson not found")
		}
		if _, err := a.editableCourse(dbc, op, l.CourseID, "delete lessons of"); err != nil {
			return err
		}
		_, _, err = a.removeLessons(dbc, l.CourseID, []*types.Lesson{l})
		return err
	})
}

func (a *catalogAggregate) RecountCourse(ctx context.Context, courseID uuid.UUID) (*catalog.Course, error) {
	const op = "catalog.recount_course"
	var out *catalog.Course
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		course, err := a.deps.Courses.LockByID(dbc, courseID)
		if err != nil {
			return err
		}
		if course == nil {
			return fail(domainagg.CodeNotFound, op, "course not found")
		}
		lessons, err := a.deps.Lessons.ListByCourse(dbc, courseID)
		if err != nil {
			return err
		}
		duration := 0.0
		for _, l := range lessons {
			duration += l.VideoDuration()
		}
		students, err := a.deps.Enrollments.CountByCourse(dbc, courseID)
		if err != nil {
			return err
		}
		course.TotalLessons = len(lessons)
		course.TotalDuration = duration
		course.EnrolledStudents = int(students)
		err = a.deps.Courses.UpdateFields(dbc, courseID, map[string]interface{}{
			"total_lessons":     course.TotalLessons,
			"total_duration":    course.TotalDuration,
			"enrolled_students": course.EnrolledStudents,
		})
		if err != nil {
			return err
		}
		if err := a.recomputeProgress(dbc, courseID); err != nil {
			return err
		}
		out = course
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *catalogAggregate) UpsertReview(ctx context.Context, in domainagg.ReviewInput) (domainagg.ReviewResult, error) {
	const op = "catalog.upsert_review"
	if in.Rating < catalog.MinRating || in.Rating > catalog.MaxRating {
		return domainagg.ReviewResult{}, fail(domainagg.CodeValidation, op, "rating must be between 1 and 5")
	}
	var out domainagg.ReviewResult
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		course, err := a.deps.Courses.LockByID(dbc, in.CourseID)
		if err != nil {
			return err
		}
		if course == nil {
			return fail(domainagg.CodeNotFound, op, "course not found")
		}
		enr, err := a.deps.Enrollments.GetByUserCourse(dbc, in.UserID, in.CourseID)
		if err != nil {
			return err
		}
		if enr == nil {
			return fail(domainagg.CodeNotEnrolled, op, "you need to be enrolled in the course to review it")
		}

		comment := strings.TrimSpace(in.Comment)
		review, err := a.deps.Reviews.GetByUserCourse(dbc, in.UserID, in.CourseID)
		if err != nil {
			return err
		}
		created := review == nil
		if created {
			review = &catalog.Review{CourseID: in.CourseID, UserID: in.UserID, Rating: in.Rating, Comment: comment}
			if err := a.deps.Reviews.Create(dbc, review); err != nil {
				return err
			}
		} else {
			review.Rating = in.Rating
			review.Comment = comment
			review.UpdatedAt = time.Now().UTC()
			err := a.deps.Reviews.UpdateFields(dbc, review.ID, map[string]interface{}{
				"rating":     review.Rating,
				"comment":    review.Comment,
				"updated_at": review.UpdatedAt,
			})
			if err != nil {
				return err
			}
		}

		summary, err := a.deps.Reviews.Summary(dbc, in.CourseID)
		if err != nil {
			return err
		}
		course.RatingAverage = math.Round(summary.Average*10) / 10
		course.RatingCount = int(summary.Count)
		err = a.deps.Courses.UpdateFields(dbc, course.ID, map[string]interface{}{
			"rating_average": course.RatingAverage,
			"rating_count":   course.RatingCount,
		})
		if err != nil {
			return err
		}
		out = domainagg.ReviewResult{Review: review, Course: course, Created: created}
		return nil
	})
	if err != nil {
		return domainagg.ReviewResult{}, err
	}
	return out, nil
}

// editableCourse loads the course and refuses structural edits while it is
// live in the catalog.
func (a *catalogAggregate) editableCourse(dbc dbctx.Context, op string, courseID uuid.UUID, verb string) (*catalog.Course, error) {
	course, err := a.deps.Courses.GetByID(dbc, courseID)
	if err != nil {
		return nil, err
	}
	if course == nil {
		return nil, fail(domainagg.CodeNotFound, op, "course not found")
	}
	if course.Available() {
		return nil, fail(domainagg.CodePreconditionFailed, op, "cannot "+verb+" a published and approved course")
	}
	return course, nil
}

// removeLessons deletes lessons, drops them from every completed set and
// decrements the course counters by what was removed.
func (a *catalogAggregate) removeLessons(dbc dbctx.Context, courseID uuid.UUID, lessons []*types.Lesson) (int, float64, error) {
	if len(lessons) == 0 {
		return 0, 0, nil
	}
	ids := make([]uuid.UUID, 0, len(lessons))
	duration := 0.0
	for _, l := range lessons {
		ids = append(ids, l.ID)
		duration += l.VideoDuration()
	}
	if _, err := a.deps.Completions.DeleteByLessonIDs(dbc, ids); err != nil {
		return 0, 0, err
	}
	if err := a.deps.Lessons.DeleteByIDs(dbc, ids); err != nil {
		return 0, 0, err
	}
	if err := a.deps.Courses.AdjustCounters(dbc, courseID, -len(ids), -duration, 0); err != nil {
		return 0, 0, err
	}
	if err := a.recomputeProgress(dbc, courseID); err != nil {
		return 0, 0, err
	}
	return len(ids), duration, nil
}

// recomputeProgress rewrites stored progress for every enrollment of the
// course after its lesson set changed.
func (a *catalogAggregate) recomputeProgress(dbc dbctx.Context, courseID uuid.UUID) error {
	rows, err := a.deps.Enrollments.ListByCourses(dbc, []uuid.UUID{courseID})
	if err != nil || len(rows) == 0 {
		return err
	}
	total, err := a.deps.Lessons.CountByCourse(dbc, courseID)
	if err != nil {
		return err
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	counts, err := a.deps.Completions.CountByEnrollments(dbc, ids)
	if err != nil {
		return err
	}
	for _, row := range rows {
		p := enrollment.ComputeProgress(counts[row.ID], int(total))
		if p == row.Progress {
			continue
		}
		if err := a.deps.Enrollments.UpdateFields(dbc, row.ID, map[string]interface{}{"progress": p}); err != nil {
			return err
		}
	}
	return nil
}
