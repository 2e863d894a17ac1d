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

func TestProgressFollowsCompletedShare(t *testing.T) {
	db := repotest.DB(t)
	ctx := context.Background()
	l := aggtest.NewLedgers(t, db)

	creator := repotest.SeedUser(t, ctx, db, "creator")
	learner := repotest.SeedUser(t, ctx, db, "student")
	course := repotest.SeedCourse(t, ctx, db, creator.ID)
	module := repotest.SeedModule(t, ctx, db, course.ID, 1)
	lessons := textLessons(t, ctx, db, module, 4)
	repotest.SeedEnrollment(t, ctx, db, learner.ID, course.ID)

	res, err := l.Progression.MarkLessonComplete(ctx, domainagg.LessonActivityInput{UserID: learner.ID, LessonID: lessons[0].ID})
	if err != nil {
		t.Fatalf("complete first: %v", err)
	}
	if res.Enrollment.Progress != 25 || !res.NewlyCompleted {
		t.Fatalf("after one of four: %+v", res)
	}

	res, err = l.Progression.MarkLessonComplete(ctx, domainagg.LessonActivityInput{UserID: learner.ID, LessonID: lessons[1].ID})
	if err != nil {
		t.Fatalf("complete second: %v", err)
	}
	if res.Enrollment.Progress != 50 {
		t.Fatalf("after two of four: %v", res.Enrollment.Progress)
	}
	if len(res.Enrollment.CompletedLessons) != 2 || !res.Enrollment.HasCompleted(lessons[1].ID) {
		t.Fatalf("completed set: %v", res.Enrollment.CompletedLessons)
	}

	_, err = l.Progression.MarkLessonComplete(ctx, domainagg.LessonActivityInput{UserID: learner.ID, LessonID: lessons[1].ID})
	wantCode(t, err, domainagg.CodeAlreadyCompleted)

	if got := loadEnrollment(t, db, learner.ID, course.ID).Progress; got != 50 {
		t.Fatalf("repeat changed progress: %v", got)
	}
	for _, lesson := range lessons[2:] {
		if _, err := l.Progression.MarkLessonComplete(ctx, domainagg.LessonActivityInput{UserID: learner.ID, LessonID: lesson.ID}); err != nil {
			t.Fatalf("complete: %v", err)
		}
	}
	if got := loadEnrollment(t, db, learner.ID, course.ID).Progress; got != 100 {
		t.Fatalf("all lessons done: %v", got)
	}
}

func TestVideoProgressCompletesAtThreshold(t *testing.T) {
	db := repotest.DB(t)
	ctx := context.Background()
	l := aggtest.NewLedgers(t, db)

	creator := repotest.SeedUser(t, ctx, db, "creator")
	learner := repotest.SeedUser(t, ctx, db, "student")
	course := repotest.SeedCourse(t, ctx, db, creator.ID)
	module := repotest.SeedModule(t, ctx, db, course.ID, 1)
	video := repotest.SeedLesson(t, ctx, db, module, catalog.LessonTypeVideo, types.LessonContent{VideoURL: "https://cdn/v.mp4", Duration: 100})
	textLessons(t, ctx, db, module, 1)
	repotest.SeedEnrollment(t, ctx, db, learner.ID, course.ID)

	res, err := l.Progression.RecordVideoProgress(ctx, domainagg.VideoProgressInput{UserID: learner.ID, LessonID: video.ID, CurrentTime: 89})
	if err != nil {
		t.Fatalf("record 89s: %v", err)
	}
	if res.NewlyCompleted || res.Enrollment.Progress != 0 {
		t.Fatalf("89%% must not complete: %+v", res)
	}
	if res.Enrollment.LastAccessedLessonID == nil || *res.Enrollment.LastAccessedLessonID != video.ID {
		t.Fatalf("last accessed lesson not recorded: %+v", res.Enrollment)
	}

	res, err = l.Progression.RecordVideoProgress(ctx, domainagg.VideoProgressInput{UserID: learner.ID, LessonID: video.ID, CurrentTime: 90})
	if err != nil {
		t.Fatalf("record 90s: %v", err)
	}
	if !res.NewlyCompleted || res.Enrollment.Progress != 50 {
		t.Fatalf("90%% must complete: %+v", res)
	}

	res, err = l.Progression.RecordVideoProgress(ctx, domainagg.VideoProgressInput{UserID: learner.ID, LessonID: video.ID, CurrentTime: 99})
	if err != nil {
		t.Fatalf("repeat video completion must be silent: %v", err)
	}
	if res.NewlyCompleted || res.Enrollment.Progress != 50 {
		t.Fatalf("repeat changed state: %+v", res)
	}

	_, err = l.Progression.RecordVideoProgress(ctx, domainagg.VideoProgressInput{UserID: learner.ID, LessonID: video.ID, CurrentTime: -1})
	wantCode(t, err, domainagg.CodeValidation)
}

func TestQuizPassesAtSeventyPercent(t *testing.T) {
	db := repotest.DB(t)
	ctx := context.Background()
	l := aggtest.NewLedgers(t, db)

	creator := repotest.SeedUser(t, ctx, db, "creator")
	learner := repotest.SeedUser(t, ctx, db, "student")
	course := repotest.SeedCourse(t, ctx, db, creator.ID)
	module := repotest.SeedModule(t, ctx, db, course.ID, 1)
	quiz := repotest.SeedLesson(t, ctx, db, module, catalog.LessonTypeQuiz, quizContent(0, 1, 2, 3, 0))
	text := textLessons(t, ctx, db, module, 1)[0]
	repotest.SeedEnrollment(t, ctx, db, learner.ID, course.ID)

	res, err := l.Progression.GradeQuiz(ctx, domainagg.QuizSubmissionInput{UserID: learner.ID, LessonID: quiz.ID, Answers: []int{0, 1, 2, 0, 1}})
	if err != nil {
		t.Fatalf("grade 60%%: %v", err)
	}
	if res.Grade.Score != 3 || res.Grade.Percentage != 60 || res.Grade.Passed || res.NewlyCompleted {
		t.Fatalf("60%% result: %+v", res.Grade)
	}

	res, err = l.Progression.GradeQuiz(ctx, domainagg.QuizSubmissionInput{UserID: learner.ID, LessonID: quiz.ID, Answers: []int{0, 1, 2, 3, 1}})
	if err != nil {
		t.Fatalf("grade 80%%: %v", err)
	}
	if res.Grade.Score != 4 || res.Grade.Percentage != 80 || !res.Grade.Passed || !res.NewlyCompleted {
		t.Fatalf("80%% result: %+v", res.Grade)
	}
	if res.Enrollment.Progress != 50 {
		t.Fatalf("progress after quiz: %v", res.Enrollment.Progress)
	}

	res, err = l.Progression.GradeQuiz(ctx, domainagg.QuizSubmissionInput{UserID: learner.ID, LessonID: quiz.ID, Answers: []int{0}})
	if err != nil {
		t.Fatalf("short answer list: %v", err)
	}
	if res.Grade.Results[4].UserAnswer != nil || res.Grade.Results[4].CorrectAnswer != nil {
		t.Fatalf("unanswered question disclosed its answer: %+v", res.Grade.Results[4])
	}

	_, err = l.Progression.GradeQuiz(ctx, domainagg.QuizSubmissionInput{UserID: learner.ID, LessonID: text.ID, Answers: []int{0}})
	wantCode(t, err, domainagg.CodeNotFound)
}

func TestAssignmentAndEnrollmentChecks(t *testing.T) {
	db := repotest.DB(t)
	ctx := context.Background()
	l := aggtest.NewLedgers(t, db)

	creator := repotest.SeedUser(t, ctx, db, "creator")
	learner := repotest.SeedUser(t, ctx, db, "student")
	stranger := repotest.SeedUser(t, ctx, db, "student")
	course := repotest.SeedCourse(t, ctx, db, creator.ID)
	module := repotest.SeedModule(t, ctx, db, course.ID, 1)
	task := repotest.SeedLesson(t, ctx, db, module, catalog.LessonTypeAssignment, types.LessonContent{Instructions: "ship it", SubmissionType: "url"})
	repotest.SeedEnrollment(t, ctx, db, learner.ID, course.ID)

	_, err := l.Progression.SubmitAssignment(ctx, domainagg.AssignmentInput{UserID: learner.ID, LessonID: task.ID})
	wantCode(t, err, domainagg.CodeValidation)

	res, err := l.Progression.SubmitAssignment(ctx, domainagg.AssignmentInput{UserID: learner.ID, LessonID: task.ID, SubmissionURL: "https://git.example.com/pr/1"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.NewlyCompleted || res.Enrollment.Progress != 100 {
		t.Fatalf("submission result: %+v", res)
	}

	res, err = l.Progression.SubmitAssignment(ctx, domainagg.AssignmentInput{UserID: learner.ID, LessonID: task.ID, SubmissionURL: "https://git.example.com/pr/2"})
	if err != nil || res.NewlyCompleted {
		t.Fatalf("resubmission must be silent: %+v %v", res, err)
	}

	_, err = l.Progression.MarkLessonComplete(ctx, domainagg.LessonActivityInput{UserID: stranger.ID, LessonID: task.ID})
	wantCode(t, err, domainagg.CodeNotEnrolled)

	_, err = l.Progression.TouchLesson(ctx, domainagg.LessonActivityInput{UserID: stranger.ID, LessonID: task.ID})
	wantCode(t, err, domainagg.CodeNotEnrolled)
}
