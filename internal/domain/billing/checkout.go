package billing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	CheckoutStatusOpen   = "open"
	CheckoutStatusPaid   = "paid"
	CheckoutStatusFailed = "failed"
)

// CheckoutSession remembers who is buying what for a provider order id, so
// confirmations that only carry the order id can be reconciled.
type CheckoutSession struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID     string    `gorm:"column:order_id;not null;uniqueIndex" json:"session_id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	CourseID    uuid.UUID `gorm:"type:uuid;not null;index" json:"course_id"`
	Amount      float64   `gorm:"column:amount;not null" json:"amount"`
	ListPrice   float64   `gorm:"column:list_price;not null" json:"list_price"`
	Currency    string    `gorm:"column:currency;not null" json:"currency"`
	Status      string    `gorm:"column:status;not null;index" json:"status"`
	RedirectURL string    `gorm:"column:redirect_url" json:"url"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (CheckoutSession) TableName() string { return "checkout_session" }

func (s *CheckoutSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// DiscountAmount is the list price minus what was charged, never negative.
func (s *CheckoutSession) DiscountAmount() float64 {
	if s == nil || s.ListPrice <= s.Amount {
		return 0
	}
	return s.ListPrice - s.Amount
}
