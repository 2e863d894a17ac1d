package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/coursemarket-backend/internal/domain"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, role string) *types.User {
	tb.Helper()
	id := uuid.New()
	u := &types.User{
		ID:       id,
		Email:    fmt.Sprintf("%s@example.com", id.String()[:8]),
		FullName: "Ada Lovelace",
		Role:     role,
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

type CourseOpt func(*types.Course)

func WithPrice(price float64) CourseOpt {
	return func(c *types.Course) { c.Price = price }
}

func WithDiscount(price float64, until time.Time) CourseOpt {
	return func(c *types.Course) {
		c.DiscountPrice = &price
		c.DiscountValidUntil = &until
	}
}

func Unpublished() CourseOpt {
	return func(c *types.Course) { c.IsPublished = false }
}

func Unapproved() CourseOpt {
	return func(c *types.Course) { c.IsApproved = false }
}

// SeedCourse creates a published, approved course. Counters start at zero;
// SeedLesson keeps total_lessons in step.
func SeedCourse(tb testing.TB, ctx context.Context, tx *gorm.DB, creatorID uuid.UUID, opts ...CourseOpt) *types.Course {
	tb.Helper()
	c := &types.Course{
		ID:          uuid.New(),
		CreatorID:   creatorID,
		Title:       "Go for backend engineers",
		Description: "course",
		Category:    "programming",
		Level:       "beginner",
		Price:       100000,
		IsPublished: true,
		IsApproved:  true,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed course: %v", err)
	}
	return c
}

func SeedModule(tb testing.TB, ctx context.Context, tx *gorm.DB, courseID uuid.UUID, position int) *types.Module {
	tb.Helper()
	m := &types.Module{
		ID:       uuid.New(),
		CourseID: courseID,
		Title:    fmt.Sprintf("module %d", position),
		Position: position,
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed module: %v", err)
	}
	return m
}

// SeedLesson creates a lesson and bumps the owning course's counters.
func SeedLesson(tb testing.TB, ctx context.Context, tx *gorm.DB, module *types.Module, lessonType string, content types.LessonContent) *types.Lesson {
	tb.Helper()
	l := &types.Lesson{
		ID:       uuid.New(),
		ModuleID: module.ID,
		CourseID: module.CourseID,
		Title:    lessonType + " lesson",
		Type:     lessonType,
		Content:  datatypes.NewJSONType(content),
	}
	if err := tx.WithContext(ctx).Create(l).Error; err != nil {
		tb.Fatalf("seed lesson: %v", err)
	}
	err := tx.WithContext(ctx).
		Model(&types.Course{}).
		Where("id = ?", module.CourseID).
		Updates(map[string]interface{}{
			"total_lessons":  gorm.Expr("total_lessons + 1"),
			"total_duration": gorm.Expr("total_duration + ?", l.VideoDuration()),
		}).Error
	if err != nil {
		tb.Fatalf("bump course counters: %v", err)
	}
	return l
}

func SeedEnrollment(tb testing.TB, ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID) *types.Enrollment {
	tb.Helper()
	e := &types.Enrollment{
		ID:         uuid.New(),
		UserID:     userID,
		CourseID:   courseID,
		EnrolledAt: time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(e).Error; err != nil {
		tb.Fatalf("seed enrollment: %v", err)
	}
	return e
}

func SeedPayment(tb testing.TB, ctx context.Context, tx *gorm.DB, userID, courseID uuid.UUID, amount float64, status string, createdAt time.Time) *types.Payment {
	tb.Helper()
	fee := amount * 0.15
	p := &types.Payment{
		ID:            uuid.New(),
		UserID:        userID,
		CourseID:      courseID,
		Amount:        amount,
		Currency:      "idr",
		Status:        status,
		TransactionID: "txn-" + uuid.NewString(),
		PlatformFee:   fee,
		CreatorPayout: amount - fee,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed payment: %v", err)
	}
	return p
}

func PtrUUID(v uuid.UUID) *uuid.UUID { return &v }

func PtrTime(v time.Time) *time.Time { return &v }

func PtrFloat(v float64) *float64 { return &v }
