package catalog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
)

type Course struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CreatorID uuid.UUID `gorm:"type:uuid;not null;index" json:"creator_id"`

	Title            string                      `gorm:"column:title;not null" json:"title"`
	Description      string                      `gorm:"column:description;type:text" json:"description"`
	Category         string                      `gorm:"column:category;index" json:"category"`
	Level            string                      `gorm:"column:level;not null;default:'beginner'" json:"level"`
	Thumbnail        string                      `gorm:"column:thumbnail" json:"thumbnail"`
	Tags             datatypes.JSONSlice[string] `gorm:"column:tags" json:"tags"`
	WhatYouWillLearn datatypes.JSONSlice[string] `gorm:"column:what_you_will_learn" json:"what_you_will_learn"`
	Requirements     datatypes.JSONSlice[string] `gorm:"column:requirements" json:"requirements"`

	Price              float64    `gorm:"column:price;not null;default:0" json:"price"`
	DiscountPrice      *float64   `gorm:"column:discount_price" json:"discount_price,omitempty"`
	DiscountValidUntil *time.Time `gorm:"column:discount_valid_until" json:"discount_valid_until,omitempty"`

	IsPublished bool `gorm:"column:is_published;not null;default:false;index" json:"is_published"`
	IsApproved  bool `gorm:"column:is_approved;not null;default:false;index" json:"is_approved"`

	// Maintained with atomic increments by the catalog and enrollment aggregates.
	TotalLessons     int     `gorm:"column:total_lessons;not null;default:0" json:"total_lessons"`
	TotalDuration    float64 `gorm:"column:total_duration;not null;default:0" json:"total_duration"`
	EnrolledStudents int     `gorm:"column:enrolled_students;not null;default:0" json:"enrolled_students"`

	RatingAverage float64 `gorm:"column:rating_average;not null;default:0" json:"rating_average"`
	RatingCount   int     `gorm:"column:rating_count;not null;default:0" json:"rating_count"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Course) TableName() string { return "course" }

func (c *Course) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Available reports whether learners may discover and enroll in the course.
func (c *Course) Available() bool {
	return c != nil && c.IsPublished && c.IsApproved
}

// EffectivePrice applies a positive discount price while its validity window
// is open. A zero discount is treated as unset and the list price is charged.
func (c *Course) EffectivePrice(now time.Time) float64 {
	if c == nil {
		return 0
	}
	if c.DiscountPrice != nil && *c.DiscountPrice > 0 && c.DiscountValidUntil != nil && c.DiscountValidUntil.After(now) {
		return *c.DiscountPrice
	}
	return c.Price
}

// IsFree reports whether enrolling needs no payment.
func (c *Course) IsFree() bool {
	return c != nil && c.Price == 0
}
