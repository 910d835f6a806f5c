package engine

import (
	"github.com/google/uuid"
)

// txn is the per-operation undo log. Every mutation registers its inverse;
// on failure the inverses run in reverse order so no partial application is
// ever observable. Inverses for internal state cannot fail; inverses that
// compensate an already-completed external token call can, and are logged.
type txn struct {
	e    *Engine
	undo []func() error
}

func (e *Engine) begin() *txn {
	return &txn{e: e}
}

func (t *txn) onRollback(fn func() error) {
	t.undo = append(t.undo, fn)
}

// capturePosition snapshots the account's position before first mutation.
func (t *txn) capturePosition(account uuid.UUID) {
	prev := t.e.book.Get(account)
	t.onRollback(func() error {
		t.e.book.Restore(account, prev)
		return nil
	})
}

// captureFund snapshots the insurance fund before first mutation.
func (t *txn) captureFund() {
	prev := t.e.fund.State()
	t.onRollback(func() error {
		t.e.fund.Restore(prev)
		return nil
	})
}

// captureParams snapshots the parameter set before first mutation.
func (t *txn) captureParams() {
	prev := t.e.risk.Snapshot()
	t.onRollback(func() error {
		return t.e.risk.Restore(prev)
	})
}

func (t *txn) rollback(opType string) {
	for i := len(t.undo) - 1; i >= 0; i-- {
		if err := t.undo[i](); err != nil {
			t.e.log.Error().
				Err(err).
				Str("op_type", opType).
				Msg("rollback compensation failed")
		}
	}
	t.undo = nil
}
