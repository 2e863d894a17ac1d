package billing

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/coursemarket-backend/internal/domain"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
	"github.com/yungbote/coursemarket-backend/internal/platform/logger"
)

const (
	PaymentSortNewest     = "newest"
	PaymentSortOldest     = "oldest"
	PaymentSortAmountHigh = "amount-high"
	PaymentSortAmountLow  = "amount-low"
)

type PaymentFilter struct {
	Sort      string
	Status    string
	UserID    *uuid.UUID
	CourseIDs []uuid.UUID
	From      *time.Time
	To        *time.Time
	Page      int
	Limit     int
}

// Totals aggregates amounts over a set of payments.
type Totals struct {
	Count         int64   `json:"count"`
	Revenue       float64 `json:"revenue"`
	PlatformFees  float64 `json:"platform_fees"`
	CreatorPayout float64 `json:"creator_payout"`
}

// MonthlyPoint is one bucket of the revenue time series.
type MonthlyPoint struct {
	Month         string  `json:"month"`
	Count         int64   `json:"count"`
	Revenue       float64 `json:"revenue"`
	PlatformFees  float64 `json:"platform_fees"`
	CreatorPayout float64 `json:"creator_payout"`
}

type PaymentRepo interface {
	// CreateIfAbsent inserts unless transaction_id is already recorded.
	CreateIfAbsent(dbc dbctx.Context, row *types.Payment) (bool, error)

	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Payment, error)
	GetByTransactionID(dbc dbctx.Context, transactionID string) (*types.Payment, error)
	GetByCheckoutSession(dbc dbctx.Context, sessionID uuid.UUID) (*types.Payment, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.Payment, error)
	List(dbc dbctx.Context, filter PaymentFilter) ([]*types.Payment, int64, error)

	// ListPayoutEligible returns completed, unpaid payments for the given courses.
	ListPayoutEligible(dbc dbctx.Context, courseIDs []uuid.UUID) ([]*types.Payment, error)
	// MarkPayoutProcessed flips payout_processed for ids that are still unpaid
	// and returns how many rows changed.
	MarkPayoutProcessed(dbc dbctx.Context, ids []uuid.UUID, at time.Time) (int64, error)

	TotalsByStatus(dbc dbctx.Context, courseIDs []uuid.UUID, statuses ...string) (Totals, error)
	PendingPayout(dbc dbctx.Context, courseIDs []uuid.UUID) (float64, error)
	// MonthlyRevenue covers every course when courseIDs is nil.
	MonthlyRevenue(dbc dbctx.Context, since time.Time, courseIDs []uuid.UUID) ([]MonthlyPoint, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type paymentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPaymentRepo(db *gorm.DB, baseLog *logger.Logger) PaymentRepo {
	return &paymentRepo{db: db, log: baseLog.With("repo", "PaymentRepo")}
}

func (r *paymentRepo) CreateIfAbsent(dbc dbctx.Context, row *types.Payment) (bool, error) {
	if row == nil {
		return false, nil
	}
	res := dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "transaction_id"}},
			DoNothing: true,
		}).
		Create(row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *paymentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Payment, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Payment
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *paymentRepo) GetByTransactionID(dbc dbctx.Context, transactionID string) (*types.Payment, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, nil
	}
	var row types.Payment
	if err := dbc.DB(r.db).Where("transaction_id = ?", transactionID).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *paymentRepo) GetByCheckoutSession(dbc dbctx.Context, sessionID uuid.UUID) (*types.Payment, error) {
	if sessionID == uuid.Nil {
		return nil, nil
	}
	var row types.Payment
	if err := dbc.DB(r.db).Where("checkout_session_id = ?", sessionID).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *paymentRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.Payment, error) {
	var out []*types.Payment
	if userID == uuid.Nil {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("user_id = ?", userID).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *paymentRepo) List(dbc dbctx.Context, filter PaymentFilter) ([]*types.Payment, int64, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	q := dbc.DB(r.db).Model(&types.Payment{})
	if s := strings.TrimSpace(filter.Status); s != "" {
		q = q.Where("status = ?", s)
	}
	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}
	if filter.CourseIDs != nil {
		if len(filter.CourseIDs) == 0 {
			return []*types.Payment{}, 0, nil
		}
		q = q.Where("course_id IN ?", filter.CourseIDs)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at < ?", *filter.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []*types.Payment
	err := q.Order(paymentOrder(filter.Sort)).
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&out).Error
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *paymentRepo) ListPayoutEligible(dbc dbctx.Context, courseIDs []uuid.UUID) ([]*types.Payment, error) {
	var out []*types.Payment
	if len(courseIDs) == 0 {
		return out, nil
	}
	err := dbc.DB(r.db).
		Where("course_id IN ? AND status = ? AND payout_processed = ?", courseIDs, types.PaymentStatusCompleted, false).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *paymentRepo) MarkPayoutProcessed(dbc dbctx.Context, ids []uuid.UUID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := dbc.DB(r.db).
		Model(&types.Payment{}).
		Where("id IN ? AND payout_processed = ? AND status = ?", ids, false, types.PaymentStatusCompleted).
		Updates(map[string]interface{}{
			"payout_processed": true,
			"payout_date":      at,
			"updated_at":       at,
		})
	return res.RowsAffected, res.Error
}

func (r *paymentRepo) TotalsByStatus(dbc dbctx.Context, courseIDs []uuid.UUID, statuses ...string) (Totals, error) {
	q := dbc.DB(r.db).
		Model(&types.Payment{}).
		Select("COUNT(*) AS count, COALESCE(SUM(amount), 0) AS revenue, COALESCE(SUM(platform_fee), 0) AS platform_fees, COALESCE(SUM(creator_payout), 0) AS creator_payout")
	if courseIDs != nil {
		if len(courseIDs) == 0 {
			return Totals{}, nil
		}
		q = q.Where("course_id IN ?", courseIDs)
	}
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var out Totals
	if err := q.Scan(&out).Error; err != nil {
		return Totals{}, err
	}
	return out, nil
}

func (r *paymentRepo) PendingPayout(dbc dbctx.Context, courseIDs []uuid.UUID) (float64, error) {
	if len(courseIDs) == 0 {
		return 0, nil
	}
	var sum float64
	err := dbc.DB(r.db).
		Model(&types.Payment{}).
		Select("COALESCE(SUM(creator_payout), 0)").
		Where("course_id IN ? AND status = ? AND payout_processed = ?", courseIDs, types.PaymentStatusCompleted, false).
		Scan(&sum).Error
	if err != nil {
		return 0, err
	}
	return sum, nil
}

// MonthlyRevenue buckets completed payments by calendar month (UTC). Bucketing
// happens in Go so the query stays portable across Postgres and SQLite.
func (r *paymentRepo) MonthlyRevenue(dbc dbctx.Context, since time.Time, courseIDs []uuid.UUID) ([]MonthlyPoint, error) {
	var rows []struct {
		CreatedAt     time.Time
		Amount        float64
		PlatformFee   float64
		CreatorPayout float64
	}
	q := dbc.DB(r.db).
		Model(&types.Payment{}).
		Select("created_at, amount, platform_fee, creator_payout").
		Where("status = ? AND created_at >= ?", types.PaymentStatusCompleted, since)
	if courseIDs != nil {
		if len(courseIDs) == 0 {
			return []MonthlyPoint{}, nil
		}
		q = q.Where("course_id IN ?", courseIDs)
	}
	if err := q.Order("created_at ASC").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]MonthlyPoint, 0, 12)
	idx := map[string]int{}
	for _, row := range rows {
		key := row.CreatedAt.UTC().Format("2006-01")
		i, ok := idx[key]
		if !ok {
			i = len(out)
			idx[key] = i
			out = append(out, MonthlyPoint{Month: key})
		}
		out[i].Count++
		out[i].Revenue += row.Amount
		out[i].PlatformFees += row.PlatformFee
		out[i].CreatorPayout += row.CreatorPayout
	}
	return out, nil
}

func (r *paymentRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return dbc.DB(r.db).Model(&types.Payment{}).Where("id = ?", id).Updates(updates).Error
}

func paymentOrder(sort string) string {
	switch sort {
	case PaymentSortOldest:
		return "created_at ASC"
	case PaymentSortAmountHigh:
		return "amount DESC, created_at DESC"
	case PaymentSortAmountLow:
		return "amount ASC, created_at DESC"
	default:
		return "created_at DESC"
	}
}
