package engine

import (
	"math/big"
	"time"

	"github.com/google/uuid"

	"SynthVault/internal/ledger"
	"SynthVault/internal/oracle"
	"SynthVault/internal/params"
)

// AccountView is the side-effect-free query result for one account.
// HealthFactor is nil when the position has debt and the feed is stale.
type AccountView struct {
	Collateral   *big.Int
	Debt         *big.Int
	HealthFactor *big.Int
}

// Account returns the account's position and best-effort health factor as of
// now.
func (e *Engine) Account(account uuid.UUID, now time.Time) AccountView {
	e.mu.RLock()
	defer e.mu.RUnlock()

	pos := e.book.Get(account)
	return AccountView{
		Collateral:   pos.Collateral,
		Debt:         pos.Debt,
		HealthFactor: e.bestEffortHealthFactor(account, now),
	}
}

// Params returns the current risk parameter values.
func (e *Engine) Params() params.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.risk.Snapshot()
}

// InsuranceFund returns the fund balance and lifetime totals.
func (e *Engine) InsuranceFund() ledger.FundState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.fund.State()
}

// Price returns the last observed feed sample.
func (e *Engine) Price() (oracle.PriceState, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.prices.Last()
}

// Sequence returns the last applied operation sequence.
func (e *Engine) Sequence() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sequence
}

// ChainTip returns the current head of the state-hash chain.
func (e *Engine) ChainTip() [32]byte {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.hasher.tip()
}
