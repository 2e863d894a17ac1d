package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	aggtest "github.com/yungbote/coursemarket-backend/internal/data/aggregates/testutil"
	"github.com/yungbote/coursemarket-backend/internal/data/repos"
	repotest "github.com/yungbote/coursemarket-backend/internal/data/repos/testutil"
	types "github.com/yungbote/coursemarket-backend/internal/domain"
	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/domain/events"
	"github.com/yungbote/coursemarket-backend/internal/platform/ctxutil"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
	"github.com/yungbote/coursemarket-backend/internal/platform/midtrans"
)

const testServerKey = "server-key"

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, ev events.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return nil
}

func (b *recordingBus) kinds() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, ev := range b.events {
		out = append(out, ev.Type)
	}
	return out
}

func (b *recordingBus) count(eventType string) int {
	n := 0
	for _, t := range b.kinds() {
		if t == eventType {
			n++
		}
	}
	return n
}

type recordingNotifier struct {
	mu           sync.Mutex
	enrollments  int
	certificates int
	refunds      int
}

func (n *recordingNotifier) EnrollmentConfirmed(context.Context, *types.User, *types.Course, *types.Payment) {
	n.mu.Lock()
	n.enrollments++
	n.mu.Unlock()
}

func (n *recordingNotifier) CertificateIssued(context.Context, *types.User, *types.Course, *types.Certificate) {
	n.mu.Lock()
	n.certificates++
	n.mu.Unlock()
}

func (n *recordingNotifier) RefundRequested(context.Context, *types.User, *types.Course, *types.Payment) {
	n.mu.Lock()
	n.refunds++
	n.mu.Unlock()
}

// fakeGateway settles orders from an in-memory status table.
type fakeGateway struct {
	mu        sync.Mutex
	checkouts []midtrans.CheckoutRequest
	statuses  map[string]*midtrans.Notification
	createErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{statuses: map[string]*midtrans.Notification{}}
}

func (g *fakeGateway) CreateCheckout(_ context.Context, req midtrans.CheckoutRequest) (*midtrans.Checkout, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.checkouts = append(g.checkouts, req)
	return &midtrans.Checkout{
		OrderID:     req.OrderID,
		Token:       "snap-" + req.OrderID,
		RedirectURL: "https://pay.example.com/" + req.OrderID,
	}, nil
}

func (g *fakeGateway) CheckStatus(_ context.Context, orderID string) (*midtrans.Notification, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.statuses[orderID]
	if !ok {
		return nil, midtrans.ErrOrderNotFound
	}
	cp := *n
	return &cp, nil
}

func (g *fakeGateway) VerifySignature(n midtrans.Notification) bool {
	return n.SignatureKey == midtrans.Signature(n.OrderID, n.StatusCode, n.GrossAmount, testServerKey)
}

func (g *fakeGateway) settle(orderID, status, gross string) midtrans.Notification {
	n := midtrans.Notification{
		OrderID:           orderID,
		TransactionID:     "txn-" + orderID,
		TransactionStatus: status,
		StatusCode:        "200",
		GrossAmount:       gross,
		PaymentType:       "bank_transfer",
		FraudStatus:       "accept",
	}
	n.SignatureKey = midtrans.Signature(n.OrderID, n.StatusCode, n.GrossAmount, testServerKey)
	g.mu.Lock()
	g.statuses[orderID] = &n
	g.mu.Unlock()
	return n
}

func (g *fakeGateway) lastOrderID(t *testing.T) string {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.checkouts) == 0 {
		t.Fatalf("no checkout was created")
	}
	return g.checkouts[len(g.checkouts)-1].OrderID
}

type harness struct {
	db       *gorm.DB
	log      *logger.Logger
	now      time.Time
	ledgers  *aggtest.Ledgers
	bus      *recordingBus
	notifier *recordingNotifier
	gateway  *fakeGateway

	courseRepo      repos.CourseRepo
	moduleRepo      repos.ModuleRepo
	lessonRepo      repos.LessonRepo
	reviewRepo      repos.ReviewRepo
	userRepo        repos.UserRepo
	enrollmentRepo  repos.EnrollmentRepo
	completionRepo  repos.EnrollmentLessonRepo
	certificateRepo repos.CertificateRepo
	paymentRepo     repos.PaymentRepo
	sessionRepo     repos.CheckoutSessionRepo

	courses      CourseService
	creator      CreatorService
	payments     PaymentService
	enrollment   EnrollmentService
	lessons      LessonService
	certificates CertificateService
	admin        AdminService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := repotest.DB(t)
	log := logger.Nop()
	h := &harness{
		db:       db,
		log:      log,
		now:      time.Now().UTC().Truncate(time.Second),
		ledgers:  aggtest.NewLedgers(t, db),
		bus:      &recordingBus{},
		notifier: &recordingNotifier{},
		gateway:  newFakeGateway(),

		courseRepo:      repos.NewCourseRepo(db, log),
		moduleRepo:      repos.NewModuleRepo(db, log),
		lessonRepo:      repos.NewLessonRepo(db, log),
		reviewRepo:      repos.NewReviewRepo(db, log),
		userRepo:        repos.NewUserRepo(db, log),
		enrollmentRepo:  repos.NewEnrollmentRepo(db, log),
		completionRepo:  repos.NewEnrollmentLessonRepo(db, log),
		certificateRepo: repos.NewCertificateRepo(db, log),
		paymentRepo:     repos.NewPaymentRepo(db, log),
		sessionRepo:     repos.NewCheckoutSessionRepo(db, log),
	}
	clock := func() time.Time { return h.now }

	h.courses = NewCourseService(log, h.courseRepo, h.moduleRepo, h.lessonRepo, h.reviewRepo, h.userRepo, h.enrollmentRepo, h.completionRepo, h.ledgers.Catalog)
	h.creator = NewCreatorService(log, clock, h.bus, h.courseRepo, h.moduleRepo, h.lessonRepo, h.enrollmentRepo, h.paymentRepo, h.userRepo, h.ledgers.Catalog)
	h.payments = NewPaymentService(PaymentServiceDeps{
		Log:      log,
		Clock:    clock,
		Bus:      h.bus,
		Notifier: h.notifier,
		Gateway:  h.gateway,
		Ledger:   h.ledgers.Payments,
		Courses:  h.courseRepo,
		Users:    h.userRepo,
		Payments: h.paymentRepo,
		Sessions: h.sessionRepo,
	})
	h.enrollment = NewEnrollmentService(log, clock, h.bus, h.notifier, h.ledgers.Enrollment, h.payments,
		h.courseRepo, h.moduleRepo, h.lessonRepo, h.userRepo, h.enrollmentRepo, h.completionRepo)
	h.lessons = NewLessonService(log, clock, h.bus, h.ledgers.Progression, h.courseRepo, h.lessonRepo, h.enrollmentRepo)
	h.certificates = NewCertificateService(log, clock, h.bus, h.notifier, h.ledgers.Certificates, h.certificateRepo, h.courseRepo, h.userRepo)
	h.admin = NewAdminService(AdminServiceDeps{
		Log:           log,
		Clock:         clock,
		Bus:           h.bus,
		MinimumPayout: 1000,
		Payments:      h.ledgers.Payments,
		Catalog:       h.ledgers.Catalog,
		Users:         h.userRepo,
		Courses:       h.courseRepo,
		Enrollments:   h.enrollmentRepo,
		Certificates:  h.certificateRepo,
		PaymentRows:   h.paymentRepo,
	})
	return h
}

func (h *harness) user(t *testing.T, role string) (*types.User, context.Context) {
	t.Helper()
	u := repotest.SeedUser(t, context.Background(), h.db, role)
	return u, as(u)
}

func as(u *types.User) context.Context {
	return ctxutil.WithRequestData(context.Background(), &ctxutil.RequestData{UserID: u.ID, Role: u.Role})
}

func wantCode(t *testing.T, err error, code domainagg.ErrorCode) {
	t.Helper()
	if !domainagg.IsCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func ptr[T any](v T) *T { return &v }

var errGatewayDown = errors.New("gateway down")
