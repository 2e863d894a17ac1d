package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/coursemarket-backend/internal/data/repos"
	types "github.com/yungbote/coursemarket-backend/internal/domain"
	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/domain/events"
	"github.com/yungbote/coursemarket-backend/internal/observability"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
	"github.com/yungbote/coursemarket-backend/internal/platform/midtrans"
)

const orderIDPrefix = "order-"

type CheckoutResult struct {
	SessionID string  `json:"session_id"`
	URL       string  `json:"url"`
	Token     string  `json:"token"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
}

type VerifyResult struct {
	Message    string            `json:"message"`
	Enrollment *types.Enrollment `json:"enrollment"`
	Payment    *types.Payment    `json:"payment"`
}

type WebhookResult struct {
	OrderID   string `json:"order_id"`
	Outcome   string `json:"outcome"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

type PaymentService interface {
	CreateCheckout(ctx context.Context, courseID uuid.UUID) (*CheckoutResult, error)
	Verify(ctx context.Context, orderID string) (*VerifyResult, error)
	HandleWebhook(ctx context.Context, n midtrans.Notification) (*WebhookResult, error)

	RequestRefund(ctx context.Context, paymentID uuid.UUID, reason string) (*types.Payment, error)
	GetPayment(ctx context.Context, paymentID uuid.UUID) (*types.Payment, error)
	History(ctx context.Context) ([]*types.Payment, error)
}

type PaymentServiceDeps struct {
	Log      *logger.Logger
	Clock    Clock
	Bus      EventPublisher
	Notifier Notifier
	Gateway  midtrans.Gateway
	Ledger   domainagg.PaymentLedger

	Courses  repos.CourseRepo
	Users    repos.UserRepo
	Payments repos.PaymentRepo
	Sessions repos.CheckoutSessionRepo
}

type paymentService struct {
	log  *logger.Logger
	deps PaymentServiceDeps
	now  Clock
}

func NewPaymentService(deps PaymentServiceDeps) PaymentService {
	return &paymentService{
		log:  deps.Log.With("service", "PaymentService"),
		deps: deps,
		now:  clockOrSystem(deps.Clock),
	}
}

// CreateCheckout opens a checkout session and asks the gateway for a payment
// page. A gateway failure marks the session failed so it can never settle.
func (s *paymentService) CreateCheckout(ctx context.Context, courseID uuid.UUID) (*CheckoutResult, error) {
	const op = "payment.create_checkout"
	rd, err := requirePrincipal(ctx, op)
	if err != nil {
		return nil, err
	}
	orderID := orderIDPrefix + uuid.NewString()
	session, err := s.deps.Ledger.OpenCheckout(ctx, domainagg.OpenCheckoutInput{
		OrderID:  orderID,
		UserID:   rd.UserID,
		CourseID: courseID,
		At:       s.now(),
	})
	if err != nil {
		return nil, err
	}

	dbc := dbctx.Context{Ctx: ctx}
	course, err := s.deps.Courses.GetByID(dbc, courseID)
	if err != nil {
		return nil, internalErr(op, err)
	}
	user, err := s.deps.Users.GetByID(dbc, rd.UserID)
	if err != nil {
		return nil, internalErr(op, err)
	}
	req := midtrans.CheckoutRequest{
		OrderID: orderID,
		Amount:  session.Amount,
		ItemID:  courseID.String(),
	}
	if course != nil {
		req.ItemName = course.Title
		req.Category = course.Category
	}
	if user != nil {
		req.CustomerFirstName = user.FirstName()
		req.CustomerEmail = user.Email
	}

	checkout, err := s.deps.Gateway.CreateCheckout(ctx, req)
	if err != nil {
		observability.Current().IncPaymentEvent("checkout_failed")
		if ferr := s.deps.Ledger.FailCheckout(context.WithoutCancel(ctx), orderID); ferr != nil {
			s.log.Error("Failed to close checkout after gateway error", "order_id", orderID, "error", ferr)
		}
		return nil, domainagg.NewError(domainagg.CodeUpstream, op, "payment provider is unavailable", err)
	}
	if err := s.deps.Ledger.AttachRedirect(ctx, orderID, checkout.RedirectURL); err != nil {
		return nil, err
	}
	observability.Current().IncPaymentEvent("checkout_opened")
	s.log.Info("Checkout opened", "order_id", orderID, "course_id", courseID, "user_id", rd.UserID)
	return &CheckoutResult{
		SessionID: orderID,
		URL:       checkout.RedirectURL,
		Token:     checkout.Token,
		Amount:    session.Amount,
		Currency:  session.Currency,
	}, nil
}

// Verify settles an order on the learner's return from the payment page.
// Confirming an order that was already settled is an error here, unlike the
// webhook path.
func (s *paymentService) Verify(ctx context.Context, orderID string) (*VerifyResult, error) {
	const op = "payment.verify"
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fail(domainagg.CodeValidation, op, "session_id is required")
	}
	session, err := s.deps.Sessions.GetByOrderID(dbctx.Context{Ctx: ctx}, orderID)
	if err != nil {
		return nil, internalErr(op, err)
	}
	if session == nil {
		return nil, fail(domainagg.CodeNotFound, op, "checkout session not found")
	}

	status, err := s.deps.Gateway.CheckStatus(ctx, orderID)
	switch {
	case errors.Is(err, midtrans.ErrOrderNotFound):
		return nil, fail(domainagg.CodeNotFound, op, "payment not found at provider")
	case err != nil:
		return nil, domainagg.NewError(domainagg.CodeUpstream, op, "payment provider is unavailable", err)
	}

	switch status.Outcome() {
	case midtrans.OutcomePaid:
	case midtrans.OutcomeFailed:
		if err := s.deps.Ledger.FailCheckout(ctx, orderID); err != nil {
			return nil, err
		}
		s.afterFailure(ctx, session)
		return nil, fail(domainagg.CodePreconditionFailed, op, "payment failed")
	default:
		return nil, fail(domainagg.CodePreconditionFailed, op, "payment not completed")
	}

	res, err := s.deps.Ledger.Reconcile(ctx, domainagg.ReconcileInput{
		OrderID:       orderID,
		TransactionID: status.TransactionID,
		PaymentMethod: status.PaymentType,
		Amount:        status.Amount(),
		Source:        domainagg.ReconcileSourceVerify,
		At:            s.now(),
	})
	if err != nil {
		return nil, err
	}
	if res.Duplicate {
		return nil, fail(domainagg.CodeAlreadyProcessed, op, "payment already processed")
	}
	s.afterSettlement(ctx, res)
	return &VerifyResult{Message: "Payment successful", Enrollment: res.Enrollment, Payment: res.Payment}, nil
}

// HandleWebhook applies a provider notification. Replays and unknown orders
// are acknowledged so the provider stops retrying.
func (s *paymentService) HandleWebhook(ctx context.Context, n midtrans.Notification) (*WebhookResult, error) {
	const op = "payment.webhook"
	status := strings.ToLower(strings.TrimSpace(n.TransactionStatus))
	if !s.deps.Gateway.VerifySignature(n) {
		observability.Current().IncWebhook(status, "rejected")
		return nil, fail(domainagg.CodeForbidden, op, "invalid notification signature")
	}
	out := &WebhookResult{OrderID: n.OrderID, Outcome: string(n.Outcome())}

	switch n.Outcome() {
	case midtrans.OutcomePaid:
		res, err := s.deps.Ledger.Reconcile(ctx, domainagg.ReconcileInput{
			OrderID:       n.OrderID,
			TransactionID: n.TransactionID,
			PaymentMethod: n.PaymentType,
			Amount:        n.Amount(),
			Source:        domainagg.ReconcileSourceWebhook,
			At:            s.now(),
		})
		if domainagg.IsCode(err, domainagg.CodeNotFound) {
			return s.ignoreUnknown(out, status), nil
		}
		if err != nil {
			observability.Current().IncWebhook(status, "error")
			return nil, err
		}
		out.Duplicate = res.Duplicate
		if !res.Duplicate {
			s.afterSettlement(ctx, res)
		}
	case midtrans.OutcomeFailed:
		session, err := s.deps.Sessions.GetByOrderID(dbctx.Context{Ctx: ctx}, n.OrderID)
		if err != nil {
			observability.Current().IncWebhook(status, "error")
			return nil, internalErr(op, err)
		}
		if session == nil {
			return s.ignoreUnknown(out, status), nil
		}
		if err := s.deps.Ledger.FailCheckout(ctx, n.OrderID); err != nil {
			observability.Current().IncWebhook(status, "error")
			return nil, err
		}
		s.afterFailure(ctx, session)
	}

	observability.Current().IncWebhook(status, out.Outcome)
	s.log.Info("Payment notification handled", "order_id", n.OrderID, "transaction_status", status, "outcome", out.Outcome, "duplicate", out.Duplicate)
	return out, nil
}

func (s *paymentService) ignoreUnknown(out *WebhookResult, status string) *WebhookResult {
	observability.Current().IncWebhook(status, "unknown_order")
	s.log.Warn("Notification for unknown order ignored", "order_id", out.OrderID)
	out.Outcome = string(midtrans.OutcomeIgnored)
	return out
}

func (s *paymentService) afterSettlement(ctx context.Context, res domainagg.ReconcileResult) {
	p := res.Payment
	if p == nil {
		return
	}
	m := observability.Current()
	m.IncPaymentEvent("completed")
	m.AddRevenue(p.Currency, p.Amount)
	publish(ctx, s.deps.Bus, s.log, events.New(events.PaymentCompleted, p.UserID, p.CourseID, map[string]any{
		"payment_id":     p.ID,
		"transaction_id": p.TransactionID,
		"amount":         p.Amount,
		"currency":       p.Currency,
	}))
	if !res.EnrollmentCreated || res.Enrollment == nil {
		return
	}
	m.IncEnrollment("payment")
	publish(ctx, s.deps.Bus, s.log, events.New(events.EnrollmentCreated, p.UserID, p.CourseID, map[string]any{
		"enrollment_id": res.Enrollment.ID,
		"payment_id":    p.ID,
	}))
	if s.deps.Notifier != nil {
		dbc := dbctx.Context{Ctx: context.WithoutCancel(ctx)}
		user, uerr := s.deps.Users.GetByID(dbc, p.UserID)
		course, cerr := s.deps.Courses.GetByID(dbc, p.CourseID)
		if uerr != nil || cerr != nil {
			s.log.Warn("Skipping enrollment receipt", "payment_id", p.ID, "error", errors.Join(uerr, cerr))
			return
		}
		s.deps.Notifier.EnrollmentConfirmed(ctx, user, course, p)
	}
}

func (s *paymentService) afterFailure(ctx context.Context, session *types.CheckoutSession) {
	observability.Current().IncPaymentEvent("failed")
	publish(ctx, s.deps.Bus, s.log, events.New(events.PaymentFailed, session.UserID, session.CourseID, map[string]any{
		"order_id": session.OrderID,
	}))
}

func (s *paymentService) RequestRefund(ctx context.Context, paymentID uuid.UUID, reason string) (*types.Payment, error) {
	const op = "payment.request_refund"
	rd, err := requirePrincipal(ctx, op)
	if err != nil {
		return nil, err
	}
	if paymentID == uuid.Nil {
		return nil, fail(domainagg.CodeValidation, op, "payment_id is required")
	}
	payment, err := s.deps.Ledger.RequestRefund(ctx, domainagg.RefundInput{
		UserID:    rd.UserID,
		PaymentID: paymentID,
		Reason:    reason,
		At:        s.now(),
	})
	if err != nil {
		return nil, err
	}
	observability.Current().IncPaymentEvent("refund_requested")
	publish(ctx, s.deps.Bus, s.log, events.New(events.RefundRequested, payment.UserID, payment.CourseID, map[string]any{
		"payment_id": payment.ID,
	}))
	if s.deps.Notifier != nil {
		dbc := dbctx.Context{Ctx: context.WithoutCancel(ctx)}
		user, _ := s.deps.Users.GetByID(dbc, payment.UserID)
		course, _ := s.deps.Courses.GetByID(dbc, payment.CourseID)
		s.deps.Notifier.RefundRequested(ctx, user, course, payment)
	}
	return payment, nil
}

func (s *paymentService) GetPayment(ctx context.Context, paymentID uuid.UUID) (*types.Payment, error) {
	const op = "payment.get"
	rd, err := requirePrincipal(ctx, op)
	if err != nil {
		return nil, err
	}
	payment, err := s.deps.Payments.GetByID(dbctx.Context{Ctx: ctx}, paymentID)
	if err != nil {
		return nil, internalErr(op, err)
	}
	if payment == nil {
		return nil, fail(domainagg.CodeNotFound, op, "payment not found")
	}
	if payment.UserID != rd.UserID && !rd.IsAdmin() {
		return nil, fail(domainagg.CodeForbidden, op, "not authorized to view this payment")
	}
	return payment, nil
}

func (s *paymentService) History(ctx context.Context) ([]*types.Payment, error) {
	const op = "payment.history"
	rd, err := requirePrincipal(ctx, op)
	if err != nil {
		return nil, err
	}
	rows, err := s.deps.Payments.ListByUser(dbctx.Context{Ctx: ctx}, rd.UserID)
	if err != nil {
		return nil, internalErr(op, err)
	}
	if rows == nil {
		rows = []*types.Payment{}
	}
	return rows, nil
}
