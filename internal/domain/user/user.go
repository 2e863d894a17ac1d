package user

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleStudent = "student"
	RoleCreator = "creator"
	RoleAdmin   = "admin"
)

// User is the principal behind a bearer token. Accounts are provisioned by
// the identity service; this backend only reads them.
type User struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email    string    `gorm:"uniqueIndex;not null;column:email" json:"email"`
	FullName string    `gorm:"not null;column:full_name" json:"full_name"`
	Role     string    `gorm:"not null;default:'student';column:role;index" json:"role"`
	Bio      string    `gorm:"column:bio;type:text" json:"bio,omitempty"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string { return "user" }

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if strings.TrimSpace(u.Role) == "" {
		u.Role = RoleStudent
	}
	return nil
}

// FirstName is the leading word of FullName.
func (u *User) FirstName() string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FullName)
	if i := strings.IndexByte(name, ' '); i > 0 {
		return name[:i]
	}
	return name
}
