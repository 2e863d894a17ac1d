package aggregates_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	repotest "github.com/yungbote/coursemarket-backend/internal/data/repos/testutil"
	types "github.com/yungbote/coursemarket-backend/internal/domain"
	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/domain/catalog"
)

func wantCode(t *testing.T, err error, code domainagg.ErrorCode) {
	t.Helper()
	if !domainagg.IsCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func loadCourse(t *testing.T, db *gorm.DB, id uuid.UUID) *types.Course {
	t.Helper()
	var c types.Course
	if err := db.Where("id = ?", id).First(&c).Error; err != nil {
		t.Fatalf("load course: %v", err)
	}
	return &c
}

func loadEnrollment(t *testing.T, db *gorm.DB, userID, courseID uuid.UUID) *types.Enrollment {
	t.Helper()
	var rows []types.Enrollment
	if err := db.Where("user_id = ? AND course_id = ?", userID, courseID).Find(&rows).Error; err != nil {
		t.Fatalf("load enrollment: %v", err)
	}
	if len(rows) == 0 {
		return nil
	}
	return &rows[0]
}

func countRows(t *testing.T, db *gorm.DB, model interface{}, where string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := db.Model(model)
	if where != "" {
		q = q.Where(where, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func textLessons(t *testing.T, ctx context.Context, db *gorm.DB, module *types.Module, n int) []*types.Lesson {
	t.Helper()
	out := make([]*types.Lesson, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, repotest.SeedLesson(t, ctx, db, module, catalog.LessonTypeText, types.LessonContent{HTMLContent: "<p>read me</p>"}))
	}
	return out
}

func quizContent(correct ...int) types.LessonContent {
	qs := make([]types.QuizQuestion, 0, len(correct))
	for i := range correct {
		c := correct[i]
		qs = append(qs, types.QuizQuestion{
			Question:      "question",
			Options:       []string{"a", "b", "c", "d"},
			CorrectOption: &c,
		})
	}
	return types.LessonContent{Questions: qs}
}
