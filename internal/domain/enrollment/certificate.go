package enrollment

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Certificate struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID            uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_certificate_user_course" json:"user_id"`
	CourseID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_certificate_user_course" json:"course_id"`
	CertificateNumber string    `gorm:"column:certificate_number;not null;uniqueIndex" json:"certificate_number"`
	CertificateURL    string    `gorm:"column:certificate_url" json:"certificate_url"`
	IssuedAt          time.Time `gorm:"column:issued_at;not null" json:"issued_at"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (Certificate) TableName() string { return "certificate" }

func (c *Certificate) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
