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

type CheckoutSessionRepo interface {
	Create(dbc dbctx.Context, row *types.CheckoutSession) error
	GetByOrderID(dbc dbctx.Context, orderID string) (*types.CheckoutSession, error)
	LockByOrderID(dbc dbctx.Context, orderID string) (*types.CheckoutSession, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type checkoutSessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCheckoutSessionRepo(db *gorm.DB, baseLog *logger.Logger) CheckoutSessionRepo {
	return &checkoutSessionRepo{db: db, log: baseLog.With("repo", "CheckoutSessionRepo")}
}

func (r *checkoutSessionRepo) Create(dbc dbctx.Context, row *types.CheckoutSession) error {
	if row == nil {
		return nil
	}
	return dbc.DB(r.db).Create(row).Error
}

func (r *checkoutSessionRepo) GetByOrderID(dbc dbctx.Context, orderID string) (*types.CheckoutSession, error) {
	return r.getByOrderID(dbc, orderID, false)
}

func (r *checkoutSessionRepo) LockByOrderID(dbc dbctx.Context, orderID string) (*types.CheckoutSession, error) {
	return r.getByOrderID(dbc, orderID, true)
}

func (r *checkoutSessionRepo) getByOrderID(dbc dbctx.Context, orderID string, lock bool) (*types.CheckoutSession, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, nil
	}
	q := dbc.DB(r.db)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row types.CheckoutSession
	if err := q.Where("order_id = ?", orderID).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *checkoutSessionRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return dbc.DB(r.db).Model(&types.CheckoutSession{}).Where("id = ?", id).Updates(updates).Error
}
