package aggregates

import (
	"context"
	"time"

	"gorm.io/gorm"

	domainagg "github.com/yungbote/coursemarket-backend/internal/domain/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
)

const (
	defaultTxAttempts = 3
	txRetryBackoff    = 25 * time.Millisecond
)

// TxRunner provides a shared transaction boundary primitive for aggregate writes.
type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

type gormTxRunner struct {
	db       *gorm.DB
	attempts int
}

// NewGormTxRunner returns a transaction runner backed by GORM transactions.
// Transactions aborted by serialization failures or deadlocks are re-run from
// the start, up to a small bound.
func NewGormTxRunner(db *gorm.DB) TxRunner {
	return &gormTxRunner{db: db, attempts: defaultTxAttempts}
}

func (r *gormTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return domainagg.NewError(domainagg.CodeInternal, "aggregate.tx", "transaction runner has nil db", nil)
	}
	var err error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(dbctx.Context{Ctx: ctx, Tx: tx})
		})
		if err == nil || !isRetryableDBError(err) || attempt == r.attempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * txRetryBackoff):
		}
	}
	return err
}
