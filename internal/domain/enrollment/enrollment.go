package enrollment

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Enrollment grants a user access to a course. At most one row exists per
// (user_id, course_id); the unique index is the source of truth.
type Enrollment struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_enrollment_user_course" json:"user_id"`
	CourseID  uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_enrollment_user_course;index" json:"course_id"`
	PaymentID *uuid.UUID `gorm:"type:uuid;index" json:"payment_id,omitempty"`

	EnrolledAt time.Time `gorm:"column:enrolled_at;not null" json:"enrolled_at"`
	Progress   float64   `gorm:"column:progress;not null;default:0" json:"progress"`

	LastAccessedLessonID *uuid.UUID `gorm:"type:uuid;column:last_accessed_lesson_id" json:"last_accessed_lesson_id,omitempty"`
	LastAccessedAt       *time.Time `gorm:"column:last_accessed_at" json:"last_accessed_at,omitempty"`

	CertificateIssued bool   `gorm:"column:certificate_issued;not null;default:false" json:"certificate_issued"`
	CertificateURL    string `gorm:"column:certificate_url" json:"certificate_url,omitempty"`

	// Loaded from enrollment_lesson rows.
	CompletedLessons []uuid.UUID `gorm:"-" json:"completed_lessons"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Enrollment) TableName() string { return "enrollment" }

func (e *Enrollment) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.EnrolledAt.IsZero() {
		e.EnrolledAt = time.Now().UTC()
	}
	return nil
}

func (e *Enrollment) HasCompleted(lessonID uuid.UUID) bool {
	if e == nil {
		return false
	}
	for _, id := range e.CompletedLessons {
		if id == lessonID {
			return true
		}
	}
	return false
}

// EnrollmentLesson is one member of an enrollment's completed-lesson set.
type EnrollmentLesson struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	EnrollmentID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_enrollment_lesson" json:"enrollment_id"`
	LessonID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_enrollment_lesson;index" json:"lesson_id"`
	CompletedAt  time.Time `gorm:"column:completed_at;not null" json:"completed_at"`
}

func (EnrollmentLesson) TableName() string { return "enrollment_lesson" }

func (l *EnrollmentLesson) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.CompletedAt.IsZero() {
		l.CompletedAt = time.Now().UTC()
	}
	return nil
}
