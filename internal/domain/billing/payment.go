package billing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PaymentStatusPending       = "pending"
	PaymentStatusCompleted     = "completed"
	PaymentStatusFailed        = "failed"
	PaymentStatusPendingRefund = "pending_refund"
	PaymentStatusRefunded      = "refunded"
)

// Payment records one confirmed checkout. TransactionID is the provider's
// transaction identifier and is unique across all payments.
type Payment struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID            uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	CourseID          uuid.UUID  `gorm:"type:uuid;not null;index" json:"course_id"`
	CheckoutSessionID *uuid.UUID `gorm:"type:uuid;index" json:"checkout_session_id,omitempty"`

	Amount         float64 `gorm:"column:amount;not null" json:"amount"`
	Currency       string  `gorm:"column:currency;not null" json:"currency"`
	Status         string  `gorm:"column:status;not null;index" json:"status"`
	PaymentMethod  string  `gorm:"column:payment_method" json:"payment_method,omitempty"`
	TransactionID  string  `gorm:"column:transaction_id;not null;uniqueIndex" json:"transaction_id"`
	PlatformFee    float64 `gorm:"column:platform_fee;not null" json:"platform_fee"`
	CreatorPayout  float64 `gorm:"column:creator_payout;not null" json:"creator_payout"`
	DiscountAmount float64 `gorm:"column:discount_amount;not null;default:0" json:"discount_amount"`

	PayoutProcessed bool       `gorm:"column:payout_processed;not null;default:false;index" json:"payout_processed"`
	PayoutDate      *time.Time `gorm:"column:payout_date" json:"payout_date,omitempty"`

	RefundReason      string     `gorm:"column:refund_reason;type:text" json:"refund_reason,omitempty"`
	RefundRequestedAt *time.Time `gorm:"column:refund_requested_at" json:"refund_requested_at,omitempty"`
	RefundedAt        *time.Time `gorm:"column:refunded_at" json:"refunded_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Payment) TableName() string { return "payment" }

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
