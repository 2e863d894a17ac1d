package testutil

import (
	"context"
	"sync"

	"gorm.io/gorm"

	"github.com/yungbote/coursemarket-backend/internal/data/aggregates"
	"github.com/yungbote/coursemarket-backend/internal/platform/dbctx"
)

// InjectedTxRunner runs aggregate bodies with injectable failures. With DB set
// the body runs inside a real transaction, so FailAfterBody proves that every
// write of the body is rolled back together.
type InjectedTxRunner struct {
	DB *gorm.DB

	FailBegin     error
	FailAfterBody error

	mu            sync.Mutex
	BeginCalls    int
	CommitCalls   int
	RollbackCalls int
}

var _ aggregates.TxRunner = (*InjectedTxRunner)(nil)

func (r *InjectedTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.mu.Lock()
	r.BeginCalls++
	failBegin, failAfter := r.FailBegin, r.FailAfterBody
	r.mu.Unlock()

	if failBegin != nil {
		return failBegin
	}
	if fn == nil {
		r.count(&r.CommitCalls)
		return nil
	}

	body := func(dbc dbctx.Context) error {
		if err := fn(dbc); err != nil {
			return err
		}
		return failAfter
	}

	var err error
	if r.DB != nil {
		err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return body(dbctx.Context{Ctx: ctx, Tx: tx})
		})
	} else {
		err = body(dbctx.Context{Ctx: ctx})
	}
	if err != nil {
		r.count(&r.RollbackCalls)
		return err
	}
	r.count(&r.CommitCalls)
	return nil
}

func (r *InjectedTxRunner) count(n *int) {
	r.mu.Lock()
	*n++
	r.mu.Unlock()
}
