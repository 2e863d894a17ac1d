package catalog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	MinRating = 1
	MaxRating = 5
)

type Review struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CourseID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_review_course_user" json:"course_id"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_review_course_user" json:"user_id"`
	Rating   int       `gorm:"column:rating;not null" json:"rating"`
	Comment  string    `gorm:"column:comment;type:text" json:"comment"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Review) TableName() string { return "course_review" }

func (r *Review) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
