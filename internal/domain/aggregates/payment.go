package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/yungbote/coursemarket-backend/internal/domain/billing"
	"github.com/yungbote/coursemarket-backend/internal/domain/enrollment"
)

var PaymentLedgerContract = Contract{
	Name:             "Marketplace.PaymentLedger",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Tables:           []string{"payment", "checkout_session", "enrollment", "course"},
	Notes:            "Turns one provider transaction into exactly one payment and one enrollment; owns refund and payout transitions.",
}

const (
	ReconcileSourceVerify  = "verify"
	ReconcileSourceWebhook = "webhook"
)

// PaymentLedger owns checkout sessions, payments and their status transitions.
//
// Payment status only moves forward: pending -> completed -> pending_refund -> refunded,
// or to failed.
type PaymentLedger interface {
	Aggregate

	OpenCheckout(ctx context.Context, in OpenCheckoutInput) (*billing.CheckoutSession, error)
	AttachRedirect(ctx context.Context, orderID, redirectURL string) error

	// Reconcile creates the completed payment and its enrollment atomically.
	// A transaction id that was already recorded yields Duplicate=true and no writes.
	Reconcile(ctx context.Context, in ReconcileInput) (ReconcileResult, error)

	FailCheckout(ctx context.Context, orderID string) error

	RequestRefund(ctx context.Context, in RefundInput) (*billing.Payment, error)
	CompleteRefund(ctx context.Context, paymentID uuid.UUID, at time.Time) (*billing.Payment, error)

	ProcessPayouts(ctx context.Context, in PayoutInput) (PayoutResult, error)
}

// OpenCheckoutInput prices the course at At (discount applied while valid)
// and records the session under OrderID.
type OpenCheckoutInput struct {
	OrderID  string
	UserID   uuid.UUID
	CourseID uuid.UUID
	At       time.Time
}

type ReconcileInput struct {
	OrderID       string
	TransactionID string
	PaymentMethod string
	// Amount reported by the provider; zero skips the amount check.
	Amount float64
	Source string
	At     time.Time
}

type ReconcileResult struct {
	Payment    *billing.Payment
	Enrollment *enrollment.Enrollment
	Duplicate  bool
	// EnrollmentCreated is false when the learner was already enrolled.
	EnrollmentCreated bool
}

type RefundInput struct {
	UserID    uuid.UUID
	PaymentID uuid.UUID
	Reason    string
	At        time.Time
}

type PayoutInput struct {
	CreatorID     uuid.UUID
	MinimumPayout float64
	At            time.Time
}

type PayoutResult struct {
	Count       int       `json:"count"`
	TotalPayout float64   `json:"total_payout"`
	PaidAt      time.Time `json:"paid_at"`
}
