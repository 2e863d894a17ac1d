package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	repotest "github.com/yungbote/coursemarket-backend/internal/data/repos/testutil"
	types "github.com/yungbote/coursemarket-backend/internal/domain"
	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/domain/catalog"
	"github.com/yungbote/coursemarket-backend/internal/domain/events"
)

func TestEnrollFreeCourse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	creator, _ := h.user(t, "creator")
	_, learnerCtx := h.user(t, "student")
	course := repotest.SeedCourse(t, ctx, h.db, creator.ID, repotest.WithPrice(0))

	out, err := h.enrollment.Enroll(learnerCtx, course.ID)
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if out.Enrollment == nil || out.Checkout != nil {
		t.Fatalf("free course should enroll directly: %+v", out)
	}
	if h.bus.count(events.EnrollmentCreated) != 1 || h.notifier.enrollments != 1 {
		t.Fatalf("want one event and one receipt, got events=%v receipts=%d", h.bus.kinds(), h.notifier.enrollments)
	}

	_, err = h.enrollment.Enroll(learnerCtx, course.ID)
	wantCode(t, err, domainagg.CodeAlreadyEnrolled)

	var reloaded types.Course
	if err := h.db.Where("id = ?", course.ID).First(&reloaded).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.EnrolledStudents != 1 {
		t.Fatalf("enrolled_students=%d, want 1", reloaded.EnrolledStudents)
	}
}

func TestEnrollPaidCourseOpensCheckout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	creator, _ := h.user(t, "creator")
	_, learnerCtx := h.user(t, "student")
	course := repotest.SeedCourse(t, ctx, h.db, creator.ID)

	out, err := h.enrollment.Enroll(learnerCtx, course.ID)
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if out.Enrollment != nil || out.Checkout == nil {
		t.Fatalf("paid course should open a checkout: %+v", out)
	}
	if out.Checkout.Amount != course.Price || out.Checkout.URL == "" {
		t.Fatalf("unexpected checkout: %+v", out.Checkout)
	}
	if got := h.gateway.lastOrderID(t); got != out.Checkout.SessionID {
		t.Fatalf("gateway saw %q, caller got %q", got, out.Checkout.SessionID)
	}
	if h.bus.count(events.EnrollmentCreated) != 0 {
		t.Fatalf("no enrollment before payment")
	}
}

func TestEnrollRejectsUnavailable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	creator, _ := h.user(t, "creator")
	_, learnerCtx := h.user(t, "student")
	draft := repotest.SeedCourse(t, ctx, h.db, creator.ID, repotest.Unapproved(), repotest.WithPrice(0))

	_, err := h.enrollment.Enroll(learnerCtx, draft.ID)
	wantCode(t, err, domainagg.CodeCourseUnavailable)

	_, err = h.enrollment.Enroll(learnerCtx, uuid.New())
	wantCode(t, err, domainagg.CodeNotFound)

	_, err = h.enrollment.Enroll(context.Background(), draft.ID)
	wantCode(t, err, domainagg.CodeForbidden)
}

func TestCourseContentAndEnrollmentAccess(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	creator, creatorCtx := h.user(t, "creator")
	learner, learnerCtx := h.user(t, "student")
	_, strangerCtx := h.user(t, "student")
	course := repotest.SeedCourse(t, ctx, h.db, creator.ID)
	module := repotest.SeedModule(t, ctx, h.db, course.ID, 1)
	quiz := repotest.SeedLesson(t, ctx, h.db, module, catalog.LessonTypeQuiz, types.LessonContent{
		Questions: []types.QuizQuestion{{Question: "2+2", Options: []string{"3", "4"}, CorrectOption: ptr(1)}},
	})

	_, err := h.enrollment.GetCourseContent(learnerCtx, course.ID)
	wantCode(t, err, domainagg.CodeNotEnrolled)

	enr := repotest.SeedEnrollment(t, ctx, h.db, learner.ID, course.ID)
	content, err := h.enrollment.GetCourseContent(learnerCtx, course.ID)
	if err != nil {
		t.Fatalf("GetCourseContent: %v", err)
	}
	if len(content.Modules) != 1 || len(content.Modules[0].Lessons) != 1 {
		t.Fatalf("unexpected content tree: %+v", content.Modules)
	}
	got := content.Modules[0].Lessons[0]
	if got.ID != quiz.ID || got.IsCompleted {
		t.Fatalf("unexpected lesson: %+v", got)
	}
	if got.Content.Data().Questions[0].CorrectOption != nil {
		t.Fatalf("learners must not see quiz answers")
	}

	if _, err := h.enrollment.GetEnrollment(learnerCtx, enr.ID); err != nil {
		t.Fatalf("learner GetEnrollment: %v", err)
	}
	if _, err := h.enrollment.GetEnrollment(creatorCtx, enr.ID); err != nil {
		t.Fatalf("creator GetEnrollment: %v", err)
	}
	_, err = h.enrollment.GetEnrollment(strangerCtx, enr.ID)
	wantCode(t, err, domainagg.CodeForbidden)

	mine, err := h.enrollment.ListMyEnrollments(learnerCtx)
	if err != nil {
		t.Fatalf("ListMyEnrollments: %v", err)
	}
	if len(mine) != 1 || mine[0].Course == nil || mine[0].Course.ID != course.ID {
		t.Fatalf("unexpected enrollments: %+v", mine)
	}
}
