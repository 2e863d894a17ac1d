package aggregates_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"

	aggtest "github.com/yungbote/coursemarket-backend/internal/data/aggregates/testutil"
	repotest "github.com/yungbote/coursemarket-backend/internal/data/repos/testutil"
	types "github.com/yungbote/coursemarket-backend/internal/domain"
	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
)

func TestEnrollFreeCourseOnce(t *testing.T) {
	db := repotest.DB(t)
	ctx := context.Background()
	l := aggtest.NewLedgers(t, db)

	creator := repotest.SeedUser(t, ctx, db, "creator")
	learner := repotest.SeedUser(t, ctx, db, "student")
	course := repotest.SeedCourse(t, ctx, db, creator.ID, repotest.WithPrice(0))

	res, err := l.Enrollment.Enroll(ctx, domainagg.EnrollInput{UserID: learner.ID, CourseID: course.ID})
	if err != nil {
		t.Fatalf("Enroll: %v", err)
	}
	if res.Enrollment == nil || res.Enrollment.Progress != 0 || res.Enrollment.PaymentID != nil {
		t.Fatalf("unexpected enrollment: %+v", res.Enrollment)
	}
	if len(res.Enrollment.CompletedLessons) != 0 {
		t.Fatalf("fresh enrollment has completions: %v", res.Enrollment.CompletedLessons)
	}

	_, err = l.Enrollment.Enroll(ctx, domainagg.EnrollInput{UserID: learner.ID, CourseID: course.ID})
	wantCode(t, err, domainagg.CodeAlreadyEnrolled)

	if got := loadCourse(t, db, course.ID).EnrolledStudents; got != 1 {
		t.Fatalf("enrolled_students: want 1 got %d", got)
	}
	if got := l.Hooks.LastStatus("enrollment.enroll"); got != string(domainagg.CodeAlreadyEnrolled) {
		t.Fatalf("last enroll status: %q", got)
	}
}

func TestEnrollConcurrentRequestsCreateOneRow(t *testing.T) {
	db := repotest.DB(t)
	ctx := context.Background()
	l := aggtest.NewLedgers(t, db)

	creator := repotest.SeedUser(t, ctx, db, "creator")
	learner := repotest.SeedUser(t, ctx, db, "student")
	course := repotest.SeedCourse(t, ctx, db, creator.ID, repotest.WithPrice(0))

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		dupes   int
		other   []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Enrollment.Enroll(ctx, domainagg.EnrollInput{UserID: learner.ID, CourseID: course.ID})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case domainagg.IsCode(err, domainagg.CodeAlreadyEnrolled):
				dupes++
			default:
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	if len(other) > 0 {
		t.Fatalf("unexpected errors: %v", other)
	}
	if created != 1 || dupes != workers-1 {
		t.Fatalf("want 1 created and %d duplicates, got %d/%d", workers-1, created, dupes)
	}
	if n := countRows(t, db, &types.Enrollment{}, "user_id = ? AND course_id = ?", learner.ID, course.ID); n != 1 {
		t.Fatalf("enrollment rows: %d", n)
	}
	if got := loadCourse(t, db, course.ID).EnrolledStudents; got != 1 {
		t.Fatalf("enrolled_students: want 1 got %d", got)
	}
}

func TestEnrollRejections(t *testing.T) {
	db := repotest.DB(t)
	ctx := context.Background()
	l := aggtest.NewLedgers(t, db)

	creator := repotest.SeedUser(t, ctx, db, "creator")
	learner := repotest.SeedUser(t, ctx, db, "student")
	paid := repotest.SeedCourse(t, ctx, db, creator.ID)
	draft := repotest.SeedCourse(t, ctx, db, creator.ID, repotest.WithPrice(0), repotest.Unpublished())
	pending := repotest.SeedCourse(t, ctx, db, creator.ID, repotest.WithPrice(0), repotest.Unapproved())

	_, err := l.Enrollment.Enroll(ctx, domainagg.EnrollInput{UserID: learner.ID, CourseID: paid.ID})
	wantCode(t, err, domainagg.CodePreconditionFailed)

	_, err = l.Enrollment.Enroll(ctx, domainagg.EnrollInput{UserID: learner.ID, CourseID: draft.ID})
	wantCode(t, err, domainagg.CodeCourseUnavailable)

	_, err = l.Enrollment.Enroll(ctx, domainagg.EnrollInput{UserID: learner.ID, CourseID: pending.ID})
	wantCode(t, err, domainagg.CodeCourseUnavailable)

	_, err = l.Enrollment.Enroll(ctx, domainagg.EnrollInput{UserID: learner.ID, CourseID: uuid.New()})
	wantCode(t, err, domainagg.CodeNotFound)

	_, err = l.Enrollment.Enroll(ctx, domainagg.EnrollInput{CourseID: paid.ID})
	wantCode(t, err, domainagg.CodeValidation)

	if n := countRows(t, db, &types.Enrollment{}, ""); n != 0 {
		t.Fatalf("rejected enrollments were written: %d", n)
	}
}
