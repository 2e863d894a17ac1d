package aggregates_test

import (
	"context"
	"testing"

	aggtest "github.com/yungbote/coursemarket-backend/internal/data/aggregates/testutil"
	repotest "github.com/yungbote/coursemarket-backend/internal/data/repos/testutil"
	types "github.com/yungbote/coursemarket-backend/internal/domain"
	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/domain/catalog"
)

func TestLiveCourseRejectsStructuralEdits(t *testing.T) {
	db := repotest.DB(t)
	ctx := context.Background()
	l := aggtest.NewLedgers(t, db)

	creator := repotest.SeedUser(t, ctx, db, "creator")
	course := repotest.SeedCourse(t, ctx, db, creator.ID)
	module := repotest.SeedModule(t, ctx, db, course.ID, 1)
	lesson := textLessons(t, ctx, db, module, 1)[0]

	_, err := l.Catalog.AddModule(ctx, domainagg.AddModuleInput{CourseID: course.ID, Title: "Extra"})
	wantCode(t, err, domainagg.CodePreconditionFailed)

	_, err = l.Catalog.AddLesson(ctx, domainagg.AddLessonInput{ModuleID: module.ID, Title: "Extra", Type: catalog.LessonTypeText})
	wantCode(t, err, domainagg.CodePreconditionFailed)

	err = l.Catalog.DeleteLesson(ctx, lesson.ID)
	wantCode(t, err, domainagg.CodePreconditionFailed)

	_, err = l.Catalog.DeleteModule(ctx, module.ID)
	wantCode(t, err, domainagg.CodePreconditionFailed)
}

func TestLessonCountersTrackEdits(t *testing.T) {
	db := repotest.DB(t)
	ctx := context.Background()
	l := aggtest.NewLedgers(t, db)

	creator := repotest.SeedUser(t, ctx, db, "creator")
	course := repotest.SeedCourse(t, ctx, db, creator.ID, repotest.Unpublished())

	first, err := l.Catalog.AddModule(ctx, domainagg.AddModuleInput{CourseID: course.ID, Title: " Basics "})
	if err != nil {
		t.Fatalf("AddModule: %v", err)
	}
	second, err := l.Catalog.AddModule(ctx, domainagg.AddModuleInput{CourseID: course.ID, Title: "Advanced"})
	if err != nil {
		t.Fatalf("AddModule: %v", err)
	}
	if first.Position != 1 || second.Position != 2 || first.Title != "Basics" {
		t.Fatalf("module positions: %d %d %q", first.Position, second.Position, first.Title)
	}

	_, err = l.Catalog.AddLesson(ctx, domainagg.AddLessonInput{ModuleID: first.ID, Title: "Quiz", Type: catalog.LessonTypeQuiz})
	wantCode(t, err, domainagg.CodeValidation)

	video, err := l.Catalog.AddLesson(ctx, domainagg.AddLessonInput{
		ModuleID: first.ID,
		Title:    "Intro",
		Type:     catalog.LessonTypeVideo,
		Content:  types.LessonContent{VideoURL: "https://cdn/intro.mp4", Duration: 120},
	})
	if err != nil {
		t.Fatalf("AddLesson: %v", err)
	}
	if _, err := l.Catalog.AddLesson(ctx, domainagg.AddLessonInput{ModuleID: second.ID, Title: "Notes", Type: catalog.LessonTypeText}); err != nil {
		t.Fatalf("AddLesson: %v", err)
	}
	c := loadCourse(t, db, course.ID)
	if c.TotalLessons != 2 || c.TotalDuration != 120 {
		t.Fatalf("counters after adds: lessons=%d duration=%v", c.TotalLessons, c.TotalDuration)
	}

	longer := types.LessonContent{VideoURL: "https://cdn/intro.mp4", Duration: 200}
	if _, err := l.Catalog.UpdateLesson(ctx, domainagg.UpdateLessonInput{LessonID: video.ID, Content: &longer}); err != nil {
		t.Fatalf("UpdateLesson: %v", err)
	}
	if got := loadCourse(t, db, course.ID).TotalDuration; got != 200 {
		t.Fatalf("duration after update: %v", got)
	}

	removed, err := l.Catalog.DeleteModule(ctx, first.ID)
	if err != nil {
		t.Fatalf("DeleteModule: %v", err)
	}
	if removed.LessonsRemoved != 1 || removed.DurationRemoved != 200 {
		t.Fatalf("delete result: %+v", removed)
	}
	c = loadCourse(t, db, course.ID)
	if c.TotalLessons != 1 || c.TotalDuration != 0 {
		t.Fatalf("counters after delete: lessons=%d duration=%v", c.TotalLessons, c.TotalDuration)
	}
}

func TestLessonSetChangesRecomputeProgress(t *testing.T) {
	db := repotest.DB(t)
	ctx := context.Background()
	l := aggtest.NewLedgers(t, db)

	creator := repotest.SeedUser(t, ctx, db, "creator")
	learner := repotest.SeedUser(t, ctx, db, "student")
	course := repotest.SeedCourse(t, ctx, db, creator.ID, repotest.Unpublished())
	module := repotest.SeedModule(t, ctx, db, course.ID, 1)
	lessons := textLessons(t, ctx, db, module, 2)
	repotest.SeedEnrollment(t, ctx, db, learner.ID, course.ID)

	if _, err := l.Progression.MarkLessonComplete(ctx, domainagg.LessonActivityInput{UserID: learner.ID, LessonID: lessons[0].ID}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := l.Catalog.AddLesson(ctx, domainagg.AddLessonInput{ModuleID: module.ID, Title: "More", Type: catalog.LessonTypeText}); err != nil {
			t.Fatalf("AddLesson: %v", err)
		}
	}
	if got := loadEnrollment(t, db, learner.ID, course.ID).Progress; got != 25 {
		t.Fatalf("progress after growth: %v", got)
	}

	if err := l.Catalog.DeleteLesson(ctx, lessons[0].ID); err != nil {
		t.Fatalf("DeleteLesson: %v", err)
	}
	if got := loadEnrollment(t, db, learner.ID, course.ID).Progress; got != 0 {
		t.Fatalf("progress after deleting the completed lesson: %v", got)
	}
	if n := countRows(t, db, &types.EnrollmentLesson{}, "lesson_id = ?", lessons[0].ID); n != 0 {
		t.Fatalf("completion rows left for deleted lesson: %d", n)
	}
}

func TestRecountCourseRepairsCounters(t *testing.T) {
	db := repotest.DB(t)
	ctx := context.Background()
	l := aggtest.NewLedgers(t, db)

	creator := repotest.SeedUser(t, ctx, db, "creator")
	learner := repotest.SeedUser(t, ctx, db, "student")
	course := repotest.SeedCourse(t, ctx, db, creator.ID)
	module := repotest.SeedModule(t, ctx, db, course.ID, 1)
	repotest.SeedLesson(t, ctx, db, module, catalog.LessonTypeVideo, types.LessonContent{Duration: 30})
	textLessons(t, ctx, db, module, 1)
	repotest.SeedEnrollment(t, ctx, db, learner.ID, course.ID)

	err := db.Model(&types.Course{}).Where("id = ?", course.ID).Updates(map[string]interface{}{
		"total_lessons":     99,
		"total_duration":    999,
		"enrolled_students": 42,
	}).Error
	if err != nil {
		t.Fatalf("tamper counters: %v", err)
	}

	c, err := l.Catalog.RecountCourse(ctx, course.ID)
	if err != nil {
		t.Fatalf("RecountCourse: %v", err)
	}
	if c.TotalLessons != 2 || c.TotalDuration != 30 || c.EnrolledStudents != 1 {
		t.Fatalf("recount result: %+v", c)
	}
	stored := loadCourse(t, db, course.ID)
	if stored.TotalLessons != 2 || stored.EnrolledStudents != 1 {
		t.Fatalf("recount not persisted: %+v", stored)
	}
}

func TestUpsertReviewRefreshesRating(t *testing.T) {
	db := repotest.DB(t)
	ctx := context.Background()
	l := aggtest.NewLedgers(t, db)

	creator := repotest.SeedUser(t, ctx, db, "creator")
	alice := repotest.SeedUser(t, ctx, db, "student")
	bob := repotest.SeedUser(t, ctx, db, "student")
	stranger := repotest.SeedUser(t, ctx, db, "student")
	course := repotest.SeedCourse(t, ctx, db, creator.ID)
	repotest.SeedEnrollment(t, ctx, db, alice.ID, course.ID)
	repotest.SeedEnrollment(t, ctx, db, bob.ID, course.ID)

	_, err := l.Catalog.UpsertReview(ctx, domainagg.ReviewInput{UserID: stranger.ID, CourseID: course.ID, Rating: 5})
	wantCode(t, err, domainagg.CodeNotEnrolled)

	_, err = l.Catalog.UpsertReview(ctx, domainagg.ReviewInput{UserID: alice.ID, CourseID: course.ID, Rating: 6})
	wantCode(t, err, domainagg.CodeValidation)

	res, err := l.Catalog.UpsertReview(ctx, domainagg.ReviewInput{UserID: alice.ID, CourseID: course.ID, Rating: 5, Comment: "great"})
	if err != nil || !res.Created {
		t.Fatalf("first review: %+v %v", res, err)
	}
	if _, err := l.Catalog.UpsertReview(ctx, domainagg.ReviewInput{UserID: bob.ID, CourseID: course.ID, Rating: 4}); err != nil {
		t.Fatalf("second review: %v", err)
	}
	c := loadCourse(t, db, course.ID)
	if c.RatingAverage != 4.5 || c.RatingCount != 2 {
		t.Fatalf("rating after two reviews: %v/%d", c.RatingAverage, c.RatingCount)
	}

	res, err = l.Catalog.UpsertReview(ctx, domainagg.ReviewInput{UserID: alice.ID, CourseID: course.ID, Rating: 3, Comment: "meh"})
	if err != nil || res.Created {
		t.Fatalf("updated review: %+v %v", res, err)
	}
	if res.Course.RatingAverage != 3.5 || res.Course.RatingCount != 2 {
		t.Fatalf("rating after update: %v/%d", res.Course.RatingAverage, res.Course.RatingCount)
	}
	if n := countRows(t, db, &types.Review{}, "course_id = ?", course.ID); n != 2 {
		t.Fatalf("reviews: %d", n)
	}
}
