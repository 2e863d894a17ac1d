package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/coursemarket-backend/internal/data/repos"
	repotest "github.com/yungbote/coursemarket-backend/internal/data/repos/testutil"
	types "github.com/yungbote/coursemarket-backend/internal/domain"
	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/domain/catalog"
)

func TestListCoursesShowsOnlyAvailable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	creator, _ := h.user(t, "creator")
	live := repotest.SeedCourse(t, ctx, h.db, creator.ID)
	repotest.SeedCourse(t, ctx, h.db, creator.ID, repotest.Unpublished())
	repotest.SeedCourse(t, ctx, h.db, creator.ID, repotest.Unapproved())

	page, err := h.courses.ListCourses(ctx, repos.CourseFilter{Status: "draft"})
	if err != nil {
		t.Fatalf("ListCourses: %v", err)
	}
	if page.Total != 1 || len(page.Courses) != 1 || page.Courses[0].ID != live.ID {
		t.Fatalf("ListCourses: want only %s, got %+v", live.ID, page)
	}
	if page.Page != 1 || page.Pages != 1 {
		t.Fatalf("ListCourses paging: %+v", page)
	}

	_, err = h.courses.ListCourses(ctx, repos.CourseFilter{MinPrice: ptr(500.0), MaxPrice: ptr(100.0)})
	wantCode(t, err, domainagg.CodeValidation)
}

func TestGetCourseVisibility(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	creator, creatorCtx := h.user(t, "creator")
	_, strangerCtx := h.user(t, "student")
	draft := repotest.SeedCourse(t, ctx, h.db, creator.ID, repotest.Unpublished())

	if _, err := h.courses.GetCourse(strangerCtx, draft.ID); !domainagg.IsCode(err, domainagg.CodeCourseUnavailable) {
		t.Fatalf("stranger on draft: want course_unavailable, got %v", err)
	}
	if _, err := h.courses.GetCourse(ctx, draft.ID); !domainagg.IsCode(err, domainagg.CodeCourseUnavailable) {
		t.Fatalf("anonymous on draft: want course_unavailable, got %v", err)
	}
	detail, err := h.courses.GetCourse(creatorCtx, draft.ID)
	if err != nil {
		t.Fatalf("creator on draft: %v", err)
	}
	if detail.Creator == nil || detail.Creator.ID != creator.ID {
		t.Fatalf("creator summary missing: %+v", detail.Creator)
	}

	_, err = h.courses.GetCourse(ctx, uuid.New())
	wantCode(t, err, domainagg.CodeNotFound)
}

func TestGetCourseHidesLockedContent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	creator, _ := h.user(t, "creator")
	learner, learnerCtx := h.user(t, "student")
	course := repotest.SeedCourse(t, ctx, h.db, creator.ID)
	module := repotest.SeedModule(t, ctx, h.db, course.ID, 1)
	quiz := repotest.SeedLesson(t, ctx, h.db, module, catalog.LessonTypeQuiz, quizAnswers(2))
	text := repotest.SeedLesson(t, ctx, h.db, module, catalog.LessonTypeText, types.LessonContent{HTMLContent: "<p>secret</p>"})

	detail, err := h.courses.GetCourse(learnerCtx, course.ID)
	if err != nil {
		t.Fatalf("GetCourse: %v", err)
	}
	if detail.IsEnrolled {
		t.Fatalf("learner should not be enrolled yet")
	}
	lessons := detail.Modules[0].Lessons
	if len(lessons) != 2 {
		t.Fatalf("want 2 lessons, got %d", len(lessons))
	}
	for _, l := range lessons {
		if l.ID == text.ID && l.Content.Data().HTMLContent != "" {
			t.Fatalf("locked text lesson leaked content")
		}
		if l.ID == quiz.ID && len(l.Content.Data().Questions) != 0 {
			t.Fatalf("locked quiz leaked questions")
		}
	}

	repotest.SeedEnrollment(t, ctx, h.db, learner.ID, course.ID)
	detail, err = h.courses.GetCourse(learnerCtx, course.ID)
	if err != nil {
		t.Fatalf("GetCourse enrolled: %v", err)
	}
	if !detail.IsEnrolled || detail.Enrollment == nil {
		t.Fatalf("want enrollment attached, got %+v", detail)
	}
	for _, l := range detail.Modules[0].Lessons {
		if l.ID != quiz.ID {
			continue
		}
		qs := l.Content.Data().Questions
		if len(qs) != 1 || qs[0].CorrectOption != nil {
			t.Fatalf("enrolled quiz view must keep questions and drop answers: %+v", qs)
		}
	}
}

func TestGetCoursePreviewOnlyPreviewLessons(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	creator, _ := h.user(t, "creator")
	course := repotest.SeedCourse(t, ctx, h.db, creator.ID)
	module := repotest.SeedModule(t, ctx, h.db, course.ID, 1)
	preview := repotest.SeedLesson(t, ctx, h.db, module, catalog.LessonTypeText, types.LessonContent{HTMLContent: "free"})
	repotest.SeedLesson(t, ctx, h.db, module, catalog.LessonTypeText, types.LessonContent{HTMLContent: "paid"})
	if err := h.db.Model(&types.Lesson{}).Where("id = ?", preview.ID).Update("is_preview", true).Error; err != nil {
		t.Fatalf("mark preview: %v", err)
	}

	detail, err := h.courses.GetCoursePreview(ctx, course.ID)
	if err != nil {
		t.Fatalf("GetCoursePreview: %v", err)
	}
	lessons := detail.Modules[0].Lessons
	if len(lessons) != 1 || lessons[0].ID != preview.ID {
		t.Fatalf("want only the preview lesson, got %+v", lessons)
	}

	draft := repotest.SeedCourse(t, ctx, h.db, creator.ID, repotest.Unapproved())
	_, err = h.courses.GetCoursePreview(ctx, draft.ID)
	wantCode(t, err, domainagg.CodeCourseUnavailable)
}

func TestAddReviewRequiresEnrollment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	creator, _ := h.user(t, "creator")
	learner, learnerCtx := h.user(t, "student")
	course := repotest.SeedCourse(t, ctx, h.db, creator.ID)

	_, err := h.courses.AddReview(learnerCtx, course.ID, 5, "great")
	wantCode(t, err, domainagg.CodeNotEnrolled)

	_, err = h.courses.AddReview(ctx, course.ID, 5, "anonymous")
	wantCode(t, err, domainagg.CodeForbidden)

	repotest.SeedEnrollment(t, ctx, h.db, learner.ID, course.ID)
	res, err := h.courses.AddReview(learnerCtx, course.ID, 4, "  solid  ")
	if err != nil {
		t.Fatalf("AddReview: %v", err)
	}
	if !res.Created || res.Review.Comment != "solid" || res.Course.RatingCount != 1 || res.Course.RatingAverage != 4 {
		t.Fatalf("unexpected review result: %+v / %+v", res.Review, res.Course)
	}

	_, err = h.courses.AddReview(learnerCtx, course.ID, 6, "")
	wantCode(t, err, domainagg.CodeValidation)
}

func quizAnswers(correct ...int) types.LessonContent {
	qs := make([]types.QuizQuestion, 0, len(correct))
	for i := range correct {
		c := correct[i]
		qs = append(qs, types.QuizQuestion{Question: "pick one", Options: []string{"a", "b", "c", "d"}, CorrectOption: &c})
	}
	return types.LessonContent{Questions: qs}
}
