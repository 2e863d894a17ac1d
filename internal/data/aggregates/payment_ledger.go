package aggregates

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/coursemarket-backend/internal/data/repos"
	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/domain/billing"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
)

const (
	DefaultRefundWindow = 30 * 24 * time.Hour

	// Gateways report gross amounts as decimal strings; anything closer than
	// this is the same charge.
	amountTolerance = 0.5
)

type PaymentLedgerDeps struct {
	Base         BaseDeps
	Fees         billing.FeeConfig
	RefundWindow time.Duration
	Courses      repos.CourseRepo
	Enrollments  repos.EnrollmentRepo
	Payments     repos.PaymentRepo
	Sessions     repos.CheckoutSessionRepo
}

type paymentLedger struct {
	deps PaymentLedgerDeps
}

func NewPaymentLedger(deps PaymentLedgerDeps) domainagg.PaymentLedger {
	deps.Base = deps.Base.withDefaults()
	if deps.Fees.Validate() != nil {
		deps.Fees = billing.DefaultFeeConfig()
	}
	if deps.RefundWindow <= 0 {
		deps.RefundWindow = DefaultRefundWindow
	}
	return &paymentLedger{deps: deps}
}

func (a *paymentLedger) Contract() domainagg.Contract {
	return domainagg.PaymentLedgerContract
}

func (a *paymentLedger) OpenCheckout(ctx context.Context, in domainagg.OpenCheckoutInput) (*billing.CheckoutSession, error) {
	const op = "payment.open_checkout"
	if strings.TrimSpace(in.OrderID) == "" {
		return nil, fail(domainagg.CodeValidation, op, "missing order_id")
	}
	if in.UserID == uuid.Nil || in.CourseID == uuid.Nil {
		return nil, fail(domainagg.CodeValidation, op, "missing user_id or course_id")
	}
	at := nowOr(in.At)

	var out *billing.CheckoutSession
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		course, err := a.deps.Courses.GetByID(dbc, in.CourseID)
		if err != nil {
			return err
		}
		if course == nil {
			return fail(domainagg.CodeNotFound, op, "course not found")
		}
		if !course.Available() {
			return fail(domainagg.CodeCourseUnavailable, op, "course is not available for purchase")
		}
		if course.IsFree() {
			return fail(domainagg.CodePreconditionFailed, op, "course is free; enroll directly")
		}
		existing, err := a.deps.Enrollments.GetByUserCourse(dbc, in.UserID, course.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return fail(domainagg.CodeAlreadyEnrolled, op, "already enrolled in this course")
		}

		session := &billing.CheckoutSession{
			OrderID:   strings.TrimSpace(in.OrderID),
			UserID:    in.UserID,
			CourseID:  course.ID,
			Amount:    course.EffectivePrice(at),
			ListPrice: course.Price,
			Currency:  a.deps.Fees.Currency,
			Status:    billing.CheckoutStatusOpen,
			CreatedAt: at,
			UpdatedAt: at,
		}
		if err := a.deps.Sessions.Create(dbc, session); err != nil {
			return err
		}
		out = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *paymentLedger) AttachRedirect(ctx context.Context, orderID, redirectURL string) error {
	const op = "payment.attach_redirect"
	return executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		session, err := a.deps.Sessions.GetByOrderID(dbc, orderID)
		if err != nil {
			return err
		}
		if session == nil {
			return fail(domainagg.CodeNotFound, op, "checkout session not found")
		}
		return a.deps.Sessions.UpdateFields(dbc, session.ID, map[string]interface{}{"redirect_url": redirectURL})
	})
}

func (a *paymentLedger) Reconcile(ctx context.Context, in domainagg.ReconcileInput) (domainagg.ReconcileResult, error) {
	op := "payment.reconcile." + strings.TrimSpace(in.Source)
	if strings.TrimSpace(in.OrderID) == "" {
		return domainagg.ReconcileResult{}, fail(domainagg.CodeValidation, op, "missing order_id")
	}
	if strings.TrimSpace(in.TransactionID) == "" {
		return domainagg.ReconcileResult{}, fail(domainagg.CodeValidation, op, "missing transaction_id")
	}
	at := nowOr(in.At)

	var out domainagg.ReconcileResult
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		out = domainagg.ReconcileResult{}
		session, err := a.deps.Sessions.LockByOrderID(dbc, in.OrderID)
		if err != nil {
			return err
		}
		if session == nil {
			return fail(domainagg.CodeNotFound, op, "checkout session not found")
		}

		// Fast path: the unique index below is what actually guarantees one
		// payment per transaction id.
		prior, err := a.deps.Payments.GetByTransactionID(dbc, in.TransactionID)
		if err != nil {
			return err
		}
		if prior == nil && session.Status == billing.CheckoutStatusPaid {
			if prior, err = a.deps.Payments.GetByCheckoutSession(dbc, session.ID); err != nil {
				return err
			}
		}
		if prior != nil {
			return a.duplicate(dbc, prior, &out)
		}

		if in.Amount > 0 && math.Abs(in.Amount-session.Amount) > amountTolerance {
			return InvariantError(fmt.Sprintf("gateway amount %.2f does not match checkout amount %.2f", in.Amount, session.Amount))
		}

		platformFee, creatorPayout := a.deps.Fees.Split(session.Amount)
		sessionID := session.ID
		payment := &billing.Payment{
			UserID:            session.UserID,
			CourseID:          session.CourseID,
			CheckoutSessionID: &sessionID,
			Amount:            session.Amount,
			Currency:          session.Currency,
			Status:            billing.PaymentStatusCompleted,
			PaymentMethod:     strings.TrimSpace(in.PaymentMethod),
			TransactionID:     strings.TrimSpace(in.TransactionID),
			PlatformFee:       platformFee,
			CreatorPayout:     creatorPayout,
			DiscountAmount:    session.DiscountAmount(),
			CreatedAt:         at,
			UpdatedAt:         at,
		}
		created, err := a.deps.Payments.CreateIfAbsent(dbc, payment)
		if err != nil {
			return err
		}
		if !created {
			existing, err := a.deps.Payments.GetByTransactionID(dbc, in.TransactionID)
			if err != nil {
				return err
			}
			if existing == nil {
				return ConflictError("payment insert skipped but no row found")
			}
			return a.duplicate(dbc, existing, &out)
		}

		ok, err := a.deps.Base.CASGuard.UpdateByStatus(dbc, "checkout_session", session.ID,
			[]string{billing.CheckoutStatusOpen, billing.CheckoutStatusFailed},
			map[string]any{"status": billing.CheckoutStatusPaid, "updated_at": at})
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "checkout session already settled"); err != nil {
			return err
		}

		enr, enrolled, err := recordEnrollment(dbc, a.deps.Courses, a.deps.Enrollments, session.UserID, session.CourseID, &payment.ID, at)
		if err != nil {
			return err
		}
		if !enrolled {
			a.deps.Base.Log.Warn("payment settled for an existing enrollment",
				"op", op,
				"payment_id", payment.ID,
				"enrollment_id", enr.ID,
			)
		}
		out.Payment = payment
		out.Enrollment = enr
		out.EnrollmentCreated = enrolled
		return nil
	})
	if err != nil {
		return domainagg.ReconcileResult{}, err
	}
	return out, nil
}

func (a *paymentLedger) duplicate(dbc dbctx.Context, prior *billing.Payment, out *domainagg.ReconcileResult) error {
	enr, err := a.deps.Enrollments.GetByUserCourse(dbc, prior.UserID, prior.CourseID)
	if err != nil {
		return err
	}
	out.Payment = prior
	out.Enrollment = enr
	out.Duplicate = true
	return nil
}

func (a *paymentLedger) FailCheckout(ctx context.Context, orderID string) error {
	const op = "payment.fail_checkout"
	return executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		session, err := a.deps.Sessions.LockByOrderID(dbc, orderID)
		if err != nil {
			return err
		}
		if session == nil {
			return fail(domainagg.CodeNotFound, op, "checkout session not found")
		}
		// A paid session stays paid; late failure notices are ignored.
		_, err = a.deps.Base.CASGuard.UpdateByStatus(dbc, "checkout_session", session.ID,
			[]string{billing.CheckoutStatusOpen},
			map[string]any{"status": billing.CheckoutStatusFailed, "updated_at": time.Now().UTC()})
		return err
	})
}

func (a *paymentLedger) RequestRefund(ctx context.Context, in domainagg.RefundInput) (*billing.Payment, error) {
	const op = "payment.request_refund"
	if in.UserID == uuid.Nil || in.PaymentID == uuid.Nil {
		return nil, fail(domainagg.CodeValidation, op, "missing user_id or payment_id")
	}
	at := nowOr(in.At)

	var out *billing.Payment
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		payment, err := a.deps.Payments.GetByID(dbc, in.PaymentID)
		if err != nil {
			return err
		}
		if payment == nil {
			return fail(domainagg.CodeNotFound, op, "payment not found")
		}
		if payment.UserID != in.UserID {
			return fail(domainagg.CodeForbidden, op, "not authorized to request refund for this payment")
		}
		switch payment.Status {
		case billing.PaymentStatusRefunded:
			return fail(domainagg.CodeAlreadyRefunded, op, "payment already refunded")
		case billing.PaymentStatusPendingRefund:
			return fail(domainagg.CodeConflict, op, "refund already requested")
		case billing.PaymentStatusCompleted:
		default:
			return fail(domainagg.CodePreconditionFailed, op, "payment is not eligible for refund")
		}
		if at.Sub(payment.CreatedAt) > a.deps.RefundWindow {
			return fail(domainagg.CodePreconditionFailed, op, "payment is not eligible for refund")
		}

		updates := map[string]any{
			"status":              billing.PaymentStatusPendingRefund,
			"refund_reason":       strings.TrimSpace(in.Reason),
			"refund_requested_at": at,
			"updated_at":          at,
		}
		ok, err := a.deps.Base.CASGuard.UpdateByStatus(dbc, "payment", payment.ID, []string{billing.PaymentStatusCompleted}, updates)
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "payment changed concurrently"); err != nil {
			return err
		}
		payment.Status = billing.PaymentStatusPendingRefund
		payment.RefundReason = strings.TrimSpace(in.Reason)
		payment.RefundRequestedAt = &at
		payment.UpdatedAt = at
		out = payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *paymentLedger) CompleteRefund(ctx context.Context, paymentID uuid.UUID, at time.Time) (*billing.Payment, error) {
	const op = "payment.complete_refund"
	if paymentID == uuid.Nil {
		return nil, fail(domainagg.CodeValidation, op, "missing payment_id")
	}
	at = nowOr(at)

	var out *billing.Payment
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		payment, err := a.deps.Payments.GetByID(dbc, paymentID)
		if err != nil {
			return err
		}
		if payment == nil {
			return fail(domainagg.CodeNotFound, op, "payment not found")
		}
		switch payment.Status {
		case billing.PaymentStatusRefunded:
			return fail(domainagg.CodeAlreadyRefunded, op, "payment already refunded")
		case billing.PaymentStatusPendingRefund:
		default:
			return fail(domainagg.CodeConflict, op, "no refund was requested for this payment")
		}
		ok, err := a.deps.Base.CASGuard.UpdateByStatus(dbc, "payment", payment.ID,
			[]string{billing.PaymentStatusPendingRefund},
			map[string]any{"status": billing.PaymentStatusRefunded, "refunded_at": at, "updated_at": at})
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "payment changed concurrently"); err != nil {
			return err
		}
		payment.Status = billing.PaymentStatusRefunded
		payment.RefundedAt = &at
		payment.UpdatedAt = at
		out = payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *paymentLedger) ProcessPayouts(ctx context.Context, in domainagg.PayoutInput) (domainagg.PayoutResult, error) {
	const op = "payment.process_payouts"
	if in.CreatorID == uuid.Nil {
		return domainagg.PayoutResult{}, fail(domainagg.CodeValidation, op, "missing creator_id")
	}
	at := nowOr(in.At)

	var out domainagg.PayoutResult
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		courseIDs, err := a.deps.Courses.ListIDsByCreator(dbc, in.CreatorID)
		if err != nil {
			return err
		}
		eligible, err := a.deps.Payments.ListPayoutEligible(dbc, courseIDs)
		if err != nil {
			return err
		}
		ids := make([]uuid.UUID, 0, len(eligible))
		total := 0.0
		for _, p := range eligible {
			ids = append(ids, p.ID)
			total += p.CreatorPayout
		}
		if len(ids) == 0 || total < in.MinimumPayout {
			return fail(domainagg.CodeValidation, op,
				fmt.Sprintf("pending payout %.2f is below the minimum payout of %.2f", total, in.MinimumPayout))
		}
		n, err := a.deps.Payments.MarkPayoutProcessed(dbc, ids, at)
		if err != nil {
			return err
		}
		if int(n) != len(ids) {
			return ConflictError("payments changed while processing payout")
		}
		out = domainagg.PayoutResult{Count: len(ids), TotalPayout: total, PaidAt: at}
		return nil
	})
	if err != nil {
		return domainagg.PayoutResult{}, err
	}
	return out, nil
}
