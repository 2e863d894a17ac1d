package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	repotest "github.com/yungbote/coursemarket-backend/internal/data/repos/testutil"
	types "github.com/yungbote/coursemarket-backend/internal/domain"
	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/domain/events"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
	"github.com/yungbote/coursemarket-backend/internal/platform/midtrans"
)

// openCheckout seeds a paid course and opens a checkout for a new learner.
func openCheckout(t *testing.T, h *harness) (*types.User, context.Context, *types.Course, *CheckoutResult) {
	t.Helper()
	creator, _ := h.user(t, "creator")
	learner, learnerCtx := h.user(t, "student")
	course := repotest.SeedCourse(t, context.Background(), h.db, creator.ID)
	checkout, err := h.payments.CreateCheckout(learnerCtx, course.ID)
	if err != nil {
		t.Fatalf("CreateCheckout: %v", err)
	}
	return learner, learnerCtx, course, checkout
}

func TestVerifySettlesOnce(t *testing.T) {
	h := newHarness(t)
	learner, learnerCtx, course, checkout := openCheckout(t, h)

	_, err := h.payments.Verify(learnerCtx, checkout.SessionID)
	wantCode(t, err, domainagg.CodeNotFound)

	h.gateway.settle(checkout.SessionID, "pending", "100000.00")
	_, err = h.payments.Verify(learnerCtx, checkout.SessionID)
	wantCode(t, err, domainagg.CodePreconditionFailed)

	h.gateway.settle(checkout.SessionID, "settlement", "100000.00")
	res, err := h.payments.Verify(learnerCtx, checkout.SessionID)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Payment == nil || res.Payment.Status != types.PaymentStatusCompleted || res.Payment.Amount != course.Price {
		t.Fatalf("unexpected payment: %+v", res.Payment)
	}
	if res.Enrollment == nil || res.Enrollment.UserID != learner.ID {
		t.Fatalf("unexpected enrollment: %+v", res.Enrollment)
	}
	if res.Payment.PlatformFee != 15000 || res.Payment.CreatorPayout != 85000 {
		t.Fatalf("unexpected split: fee=%v payout=%v", res.Payment.PlatformFee, res.Payment.CreatorPayout)
	}

	_, err = h.payments.Verify(learnerCtx, checkout.SessionID)
	wantCode(t, err, domainagg.CodeAlreadyProcessed)

	if h.bus.count(events.PaymentCompleted) != 1 || h.bus.count(events.EnrollmentCreated) != 1 {
		t.Fatalf("events emitted more than once: %v", h.bus.kinds())
	}
	if h.notifier.enrollments != 1 {
		t.Fatalf("receipts=%d, want 1", h.notifier.enrollments)
	}
}

func TestVerifyFailedPaymentClosesSession(t *testing.T) {
	h := newHarness(t)
	_, learnerCtx, _, checkout := openCheckout(t, h)

	h.gateway.settle(checkout.SessionID, "deny", "100000.00")
	_, err := h.payments.Verify(learnerCtx, checkout.SessionID)
	wantCode(t, err, domainagg.CodePreconditionFailed)

	session, err := h.sessionRepo.GetByOrderID(dbctx.Context{Ctx: context.Background()}, checkout.SessionID)
	if err != nil || session == nil {
		t.Fatalf("load session: %v", err)
	}
	if session.Status != types.CheckoutStatusFailed {
		t.Fatalf("session status=%q, want failed", session.Status)
	}
	if h.bus.count(events.PaymentFailed) != 1 {
		t.Fatalf("want payment.failed, got %v", h.bus.kinds())
	}
}

func TestWebhook(t *testing.T) {
	h := newHarness(t)
	_, learnerCtx, _, checkout := openCheckout(t, h)
	n := h.gateway.settle(checkout.SessionID, "settlement", "100000.00")

	forged := n
	forged.SignatureKey = "nope"
	_, err := h.payments.HandleWebhook(context.Background(), forged)
	wantCode(t, err, domainagg.CodeForbidden)

	res, err := h.payments.HandleWebhook(context.Background(), n)
	if err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if res.Outcome != string(midtrans.OutcomePaid) || res.Duplicate {
		t.Fatalf("unexpected result: %+v", res)
	}

	res, err = h.payments.HandleWebhook(context.Background(), n)
	if err != nil {
		t.Fatalf("replayed webhook should be acknowledged: %v", err)
	}
	if !res.Duplicate {
		t.Fatalf("replay should be flagged duplicate")
	}
	if h.bus.count(events.PaymentCompleted) != 1 {
		t.Fatalf("replay must not emit again: %v", h.bus.kinds())
	}

	_, err = h.payments.Verify(learnerCtx, checkout.SessionID)
	wantCode(t, err, domainagg.CodeAlreadyProcessed)

	history, err := h.payments.History(learnerCtx)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("want exactly one payment, got %d", len(history))
	}
}

func TestWebhookUnknownAndFailedOrders(t *testing.T) {
	h := newHarness(t)
	stray := h.gateway.settle("order-unknown", "settlement", "5000.00")
	res, err := h.payments.HandleWebhook(context.Background(), stray)
	if err != nil {
		t.Fatalf("unknown order should be acknowledged: %v", err)
	}
	if res.Outcome != string(midtrans.OutcomeIgnored) {
		t.Fatalf("outcome=%q, want ignored", res.Outcome)
	}

	_, _, _, checkout := openCheckout(t, h)
	expired := h.gateway.settle(checkout.SessionID, "expire", "100000.00")
	res, err = h.payments.HandleWebhook(context.Background(), expired)
	if err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if res.Outcome != string(midtrans.OutcomeFailed) {
		t.Fatalf("outcome=%q, want failed", res.Outcome)
	}
	if h.bus.count(events.PaymentFailed) != 1 {
		t.Fatalf("want payment.failed, got %v", h.bus.kinds())
	}

	pending := h.gateway.settle(checkout.SessionID, "pending", "100000.00")
	res, err = h.payments.HandleWebhook(context.Background(), pending)
	if err != nil || res.Outcome != string(midtrans.OutcomePending) {
		t.Fatalf("pending should be acknowledged: %+v %v", res, err)
	}
}

func TestWebhookAmountMismatch(t *testing.T) {
	h := newHarness(t)
	_, _, _, checkout := openCheckout(t, h)
	n := h.gateway.settle(checkout.SessionID, "settlement", "1.00")
	_, err := h.payments.HandleWebhook(context.Background(), n)
	wantCode(t, err, domainagg.CodeInvariantViolation)
}

func TestCheckoutGatewayFailure(t *testing.T) {
	h := newHarness(t)
	creator, _ := h.user(t, "creator")
	_, learnerCtx := h.user(t, "student")
	course := repotest.SeedCourse(t, context.Background(), h.db, creator.ID)
	h.gateway.createErr = errGatewayDown

	_, err := h.payments.CreateCheckout(learnerCtx, course.ID)
	wantCode(t, err, domainagg.CodeUpstream)

	var sessions []*types.CheckoutSession
	if err := h.db.Where("course_id = ?", course.ID).Find(&sessions).Error; err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Status != types.CheckoutStatusFailed {
		t.Fatalf("gateway failure should leave one failed session: %+v", sessions)
	}
}

func TestRefundRequestAndAccess(t *testing.T) {
	h := newHarness(t)
	_, learnerCtx, _, checkout := openCheckout(t, h)
	h.gateway.settle(checkout.SessionID, "settlement", "100000.00")
	res, err := h.payments.Verify(learnerCtx, checkout.SessionID)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	_, strangerCtx := h.user(t, "student")
	_, err = h.payments.GetPayment(strangerCtx, res.Payment.ID)
	wantCode(t, err, domainagg.CodeForbidden)
	_, adminCtx := h.user(t, "admin")
	if _, err := h.payments.GetPayment(adminCtx, res.Payment.ID); err != nil {
		t.Fatalf("admin GetPayment: %v", err)
	}
	_, err = h.payments.GetPayment(learnerCtx, uuid.New())
	wantCode(t, err, domainagg.CodeNotFound)

	_, err = h.payments.RequestRefund(strangerCtx, res.Payment.ID, "changed my mind")
	wantCode(t, err, domainagg.CodeForbidden)

	refunded, err := h.payments.RequestRefund(learnerCtx, res.Payment.ID, "changed my mind")
	if err != nil {
		t.Fatalf("RequestRefund: %v", err)
	}
	if refunded.Status != types.PaymentStatusPendingRefund || refunded.RefundReason != "changed my mind" {
		t.Fatalf("unexpected payment: %+v", refunded)
	}
	if h.notifier.refunds != 1 || h.bus.count(events.RefundRequested) != 1 {
		t.Fatalf("refund side effects missing: %v", h.bus.kinds())
	}

	_, err = h.payments.RequestRefund(learnerCtx, res.Payment.ID, "again")
	wantCode(t, err, domainagg.CodeConflict)
}
