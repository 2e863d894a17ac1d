package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/coursemarket-backend/internal/data/repos"
	types "github.com/yungbote/coursemarket-backend/internal/domain"
	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/domain/events"
	"github.com/yungbote/coursemarket-backend/internal/observability"
	"github.com/yungbote/coursemarket-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

const analyticsMonths = 6

type AdminPaymentFilter struct {
	Status    string
	CreatorID *uuid.UUID
	From      *time.Time
	To        *time.Time
	Sort      string
	Page      int
	Limit     int
}

type PaymentPage struct {
	Payments []*types.Payment `json:"payments"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	Pages    int              `json:"pages"`
}

type Analytics struct {
	TotalUsers       int64                `json:"total_users"`
	UsersByRole      map[string]int64     `json:"users_by_role"`
	TotalCourses     int64                `json:"total_courses"`
	PublishedCourses int64                `json:"published_courses"`
	TotalEnrollments int64                `json:"total_enrollments"`
	Certificates     int64                `json:"certificates"`
	Revenue          repos.PaymentTotals  `json:"revenue"`
	Refunds          repos.PaymentTotals  `json:"refunds"`
	MonthlyRevenue   []repos.MonthlyPoint `json:"monthly_revenue"`
}

type AdminService interface {
	ApproveCourse(ctx context.Context, courseID uuid.UUID, approve bool) (*types.Course, error)
	RecountCourse(ctx context.Context, courseID uuid.UUID) (*types.Course, error)
	ListPayments(ctx context.Context, filter AdminPaymentFilter) (*PaymentPage, error)
	CompleteRefund(ctx context.Context, paymentID uuid.UUID) (*types.Payment, error)
	ProcessPayouts(ctx context.Context, creatorID uuid.UUID) (*domainagg.PayoutResult, error)
	GetAnalytics(ctx context.Context) (*Analytics, error)
}

type AdminServiceDeps struct {
	Log           *logger.Logger
	Clock         Clock
	Bus           EventPublisher
	MinimumPayout float64

	Payments domainagg.PaymentLedger
	Catalog  domainagg.CatalogAggregate

	Users        repos.UserRepo
	Courses      repos.CourseRepo
	Enrollments  repos.EnrollmentRepo
	Certificates repos.CertificateRepo
	PaymentRows  repos.PaymentRepo
}

type adminService struct {
	log  *logger.Logger
	deps AdminServiceDeps
	now  Clock
}

func NewAdminService(deps AdminServiceDeps) AdminService {
	return &adminService{
		log:  deps.Log.With("service", "AdminService"),
		deps: deps,
		now:  clockOrSystem(deps.Clock),
	}
}

func isAdmin(rd *ctxutil.RequestData) bool { return rd.IsAdmin() }

func (s *adminService) requireAdmin(ctx context.Context, op string) (*ctxutil.RequestData, error) {
	return requireRole(ctx, op, isAdmin, "admin access required")
}

func (s *adminService) ApproveCourse(ctx context.Context, courseID uuid.UUID, approve bool) (*types.Course, error) {
	const op = "admin.approve_course"
	if _, err := s.requireAdmin(ctx, op); err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	course, err := s.deps.Courses.GetByID(dbc, courseID)
	if err != nil {
		return nil, internalErr(op, err)
	}
	if course == nil {
		return nil, fail(domainagg.CodeNotFound, op, "course not found")
	}
	if approve && !course.IsPublished {
		return nil, fail(domainagg.CodePreconditionFailed, op, "course must be published before it can be approved")
	}
	if err := s.deps.Courses.UpdateFields(dbc, course.ID, map[string]interface{}{"is_approved": approve}); err != nil {
		return nil, internalErr(op, err)
	}
	course.IsApproved = approve
	if approve {
		publish(ctx, s.deps.Bus, s.log, events.New(events.CourseApproved, course.CreatorID, course.ID, nil))
	}
	s.log.Info("Course approval changed", "course_id", course.ID, "approved", approve)
	return course, nil
}

func (s *adminService) RecountCourse(ctx context.Context, courseID uuid.UUID) (*types.Course, error) {
	const op = "admin.recount_course"
	if _, err := s.requireAdmin(ctx, op); err != nil {
		return nil, err
	}
	return s.deps.Catalog.RecountCourse(ctx, courseID)
}

func (s *adminService) ListPayments(ctx context.Context, filter AdminPaymentFilter) (*PaymentPage, error) {
	const op = "admin.list_payments"
	if _, err := s.requireAdmin(ctx, op); err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	pf := repos.PaymentFilter{
		Sort:   filter.Sort,
		Status: filter.Status,
		From:   filter.From,
		To:     filter.To,
		Page:   filter.Page,
		Limit:  filter.Limit,
	}
	if pf.Page < 1 {
		pf.Page = 1
	}
	if pf.Limit <= 0 || pf.Limit > 100 {
		pf.Limit = 20
	}
	if filter.CreatorID != nil {
		ids, err := s.deps.Courses.ListIDsByCreator(dbc, *filter.CreatorID)
		if err != nil {
			return nil, internalErr(op, err)
		}
		if ids == nil {
			ids = []uuid.UUID{}
		}
		pf.CourseIDs = ids
	}
	rows, total, err := s.deps.PaymentRows.List(dbc, pf)
	if err != nil {
		return nil, internalErr(op, err)
	}
	if rows == nil {
		rows = []*types.Payment{}
	}
	pages := int((total + int64(pf.Limit) - 1) / int64(pf.Limit))
	return &PaymentPage{Payments: rows, Total: total, Page: pf.Page, Pages: pages}, nil
}

func (s *adminService) CompleteRefund(ctx context.Context, paymentID uuid.UUID) (*types.Payment, error) {
	const op = "admin.complete_refund"
	if _, err := s.requireAdmin(ctx, op); err != nil {
		return nil, err
	}
	payment, err := s.deps.Payments.CompleteRefund(ctx, paymentID, s.now())
	if err != nil {
		return nil, err
	}
	observability.Current().IncPaymentEvent("refunded")
	publish(ctx, s.deps.Bus, s.log, events.New(events.RefundCompleted, payment.UserID, payment.CourseID, map[string]any{
		"payment_id": payment.ID,
		"amount":     payment.Amount,
	}))
	return payment, nil
}

func (s *adminService) ProcessPayouts(ctx context.Context, creatorID uuid.UUID) (*domainagg.PayoutResult, error) {
	const op = "admin.process_payouts"
	if _, err := s.requireAdmin(ctx, op); err != nil {
		return nil, err
	}
	if creatorID == uuid.Nil {
		return nil, fail(domainagg.CodeValidation, op, "creator_id is required")
	}
	res, err := s.deps.Payments.ProcessPayouts(ctx, domainagg.PayoutInput{
		CreatorID:     creatorID,
		MinimumPayout: s.deps.MinimumPayout,
		At:            s.now(),
	})
	if err != nil {
		return nil, err
	}
	observability.Current().IncPaymentEvent("payout")
	publish(ctx, s.deps.Bus, s.log, events.New(events.PayoutProcessed, creatorID, uuid.Nil, map[string]any{
		"count":        res.Count,
		"total_payout": res.TotalPayout,
	}))
	s.log.Info("Payout processed", "creator_id", creatorID, "count", res.Count, "total", res.TotalPayout)
	return &res, nil
}

// GetAnalytics runs its independent counts concurrently.
func (s *adminService) GetAnalytics(ctx context.Context) (*Analytics, error) {
	const op = "admin.analytics"
	if _, err := s.requireAdmin(ctx, op); err != nil {
		return nil, err
	}
	out := &Analytics{}
	g, gctx := errgroup.WithContext(ctx)
	dbc := dbctx.Context{Ctx: gctx}

	g.Go(func() (err error) {
		out.UsersByRole, err = s.deps.Users.CountByRole(dbc)
		return err
	})
	g.Go(func() (err error) {
		out.TotalCourses, err = s.deps.Courses.Count(dbc, false)
		return err
	})
	g.Go(func() (err error) {
		out.PublishedCourses, err = s.deps.Courses.Count(dbc, true)
		return err
	})
	g.Go(func() (err error) {
		out.TotalEnrollments, err = s.deps.Enrollments.Count(dbc)
		return err
	})
	g.Go(func() (err error) {
		out.Certificates, err = s.deps.Certificates.Count(dbc)
		return err
	})
	g.Go(func() (err error) {
		out.Revenue, err = s.deps.PaymentRows.TotalsByStatus(dbc, nil, types.PaymentStatusCompleted)
		return err
	})
	g.Go(func() (err error) {
		out.Refunds, err = s.deps.PaymentRows.TotalsByStatus(dbc, nil, types.PaymentStatusRefunded)
		return err
	})
	g.Go(func() (err error) {
		out.MonthlyRevenue, err = s.deps.PaymentRows.MonthlyRevenue(dbc, monthsAgo(s.now(), analyticsMonths), nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, internalErr(op, err)
	}
	for _, n := range out.UsersByRole {
		out.TotalUsers += n
	}
	if out.MonthlyRevenue == nil {
		out.MonthlyRevenue = []repos.MonthlyPoint{}
	}
	return out, nil
}
