package billing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/yungbote/coursemarket-backend/internal/data/repos/testutil"
	types "github.com/yungbote/coursemarket-backend/internal/domain"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
)

func TestPaymentTransactionIDIsUnique(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewPaymentRepo(db, testutil.Logger(t))

	learner := testutil.SeedUser(t, ctx, tx, "student")
	creator := testutil.SeedUser(t, ctx, tx, "creator")
	course := testutil.SeedCourse(t, ctx, tx, creator.ID)

	mk := func() *types.Payment {
		return &types.Payment{
			UserID:        learner.ID,
			CourseID:      course.ID,
			Amount:        100,
			Currency:      "idr",
			Status:        types.PaymentStatusCompleted,
			TransactionID: "txn-1",
			PlatformFee:   15,
			CreatorPayout: 85,
		}
	}
	ok, err := repo.CreateIfAbsent(dbc, mk())
	if err != nil || !ok {
		t.Fatalf("CreateIfAbsent(first): ok=%v err=%v", ok, err)
	}
	ok, err = repo.CreateIfAbsent(dbc, mk())
	if err != nil || ok {
		t.Fatalf("CreateIfAbsent(replay): ok=%v err=%v", ok, err)
	}
	got, err := repo.GetByTransactionID(dbc, "txn-1")
	if err != nil || got == nil {
		t.Fatalf("GetByTransactionID: %v", err)
	}
}

func TestPaymentPayoutQueries(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewPaymentRepo(db, testutil.Logger(t))

	learner := testutil.SeedUser(t, ctx, tx, "student")
	creator := testutil.SeedUser(t, ctx, tx, "creator")
	course := testutil.SeedCourse(t, ctx, tx, creator.ID)
	now := time.Now().UTC()

	p1 := testutil.SeedPayment(t, ctx, tx, learner.ID, course.ID, 1000, types.PaymentStatusCompleted, now)
	p2 := testutil.SeedPayment(t, ctx, tx, learner.ID, course.ID, 2000, types.PaymentStatusCompleted, now)
	testutil.SeedPayment(t, ctx, tx, learner.ID, course.ID, 3000, types.PaymentStatusRefunded, now)

	eligible, err := repo.ListPayoutEligible(dbc, []uuid.UUID{course.ID})
	if err != nil || len(eligible) != 2 {
		t.Fatalf("ListPayoutEligible: got %d, %v", len(eligible), err)
	}
	pending, err := repo.PendingPayout(dbc, []uuid.UUID{course.ID})
	if err != nil || pending != p1.CreatorPayout+p2.CreatorPayout {
		t.Fatalf("PendingPayout: got %v, %v", pending, err)
	}

	n, err := repo.MarkPayoutProcessed(dbc, []uuid.UUID{p1.ID, p2.ID}, now)
	if err != nil || n != 2 {
		t.Fatalf("MarkPayoutProcessed: n=%d err=%v", n, err)
	}
	n, err = repo.MarkPayoutProcessed(dbc, []uuid.UUID{p1.ID}, now)
	if err != nil || n != 0 {
		t.Fatalf("MarkPayoutProcessed(repeat): n=%d err=%v", n, err)
	}

	totals, err := repo.TotalsByStatus(dbc, nil, types.PaymentStatusCompleted)
	if err != nil {
		t.Fatalf("TotalsByStatus: %v", err)
	}
	if totals.Count != 2 || totals.Revenue != 3000 {
		t.Fatalf("TotalsByStatus: got %+v", totals)
	}

	rows, total, err := repo.List(dbc, PaymentFilter{Status: types.PaymentStatusRefunded})
	if err != nil || total != 1 || len(rows) != 1 {
		t.Fatalf("List(refunded): total=%d err=%v", total, err)
	}
}

func TestMonthlyRevenueBuckets(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewPaymentRepo(db, testutil.Logger(t))

	learner := testutil.SeedUser(t, ctx, tx, "student")
	creator := testutil.SeedUser(t, ctx, tx, "creator")
	course := testutil.SeedCourse(t, ctx, tx, creator.ID)

	jan := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC)
	testutil.SeedPayment(t, ctx, tx, learner.ID, course.ID, 100, types.PaymentStatusCompleted, jan)
	testutil.SeedPayment(t, ctx, tx, learner.ID, course.ID, 200, types.PaymentStatusCompleted, jan.Add(24*time.Hour))
	testutil.SeedPayment(t, ctx, tx, learner.ID, course.ID, 300, types.PaymentStatusCompleted, feb)

	points, err := repo.MonthlyRevenue(dbc, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), nil)
	if err != nil {
		t.Fatalf("MonthlyRevenue: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("MonthlyRevenue: expected 2 buckets, got %d", len(points))
	}
	if points[0].Month != "2026-01" || points[0].Count != 2 || points[0].Revenue != 300 {
		t.Fatalf("MonthlyRevenue: bad january bucket %+v", points[0])
	}
	if points[1].Month != "2026-02" || points[1].Revenue != 300 {
		t.Fatalf("MonthlyRevenue: bad february bucket %+v", points[1])
	}

	other, err := repo.MonthlyRevenue(dbc, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), []uuid.UUID{uuid.New()})
	if err != nil {
		t.Fatalf("MonthlyRevenue(scoped): %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("MonthlyRevenue(scoped): expected no buckets, got %+v", other)
	}
}

func TestCheckoutSessionLookup(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewCheckoutSessionRepo(db, testutil.Logger(t))

	learner := testutil.SeedUser(t, ctx, tx, "student")
	creator := testutil.SeedUser(t, ctx, tx, "creator")
	course := testutil.SeedCourse(t, ctx, tx, creator.ID)

	err := repo.Create(dbc, &types.CheckoutSession{
		OrderID:   "order-1",
		UserID:    learner.ID,
		CourseID:  course.ID,
		Amount:    100,
		ListPrice: 100,
		Currency:  "idr",
		Status:    types.CheckoutStatusOpen,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := repo.LockByOrderID(dbc, "order-1")
	if err != nil || got == nil || got.CourseID != course.ID {
		t.Fatalf("LockByOrderID: got %+v, %v", got, err)
	}
	missing, err := repo.GetByOrderID(dbc, "order-missing")
	if err != nil || missing != nil {
		t.Fatalf("GetByOrderID(missing): got %+v, %v", missing, err)
	}
}
