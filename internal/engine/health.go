package engine

import (
	"math/big"
	"time"

	"github.com/google/uuid"

	"SynthVault/internal/fixedpoint"
	"SynthVault/internal/ledger"
)

// minHealthFactor is 1.0 in wad. Positions below it are liquidatable and
// operations that would push the caller below it are rejected.
var minHealthFactor = fixedpoint.Wad

// healthFactor computes the position's health factor at an 8-decimal price:
// (collateralValueUSD * threshold / 100) * 1e18 / debt, floor at every step.
// A debt-free position gets the sentinel maximum, never a division by zero.
func (e *Engine) healthFactor(pos ledger.Position, price int64) *big.Int {
	if pos.Debt.Sign() == 0 {
		return fixedpoint.Clone(fixedpoint.MaxUint256)
	}
	collValue := fixedpoint.UsdValue(pos.Collateral, price)
	adjusted := fixedpoint.PctMul(collValue, e.risk.LiquidationThresholdPct())
	return fixedpoint.MulDiv(adjusted, fixedpoint.Wad, pos.Debt)
}

// bestEffortHealthFactor is for event payloads and queries on operations
// that do not themselves require a fresh price. Returns nil when the feed is
// stale and the position carries debt.
func (e *Engine) bestEffortHealthFactor(account uuid.UUID, now time.Time) *big.Int {
	pos := e.book.Get(account)
	if pos.Debt.Sign() == 0 {
		return fixedpoint.Clone(fixedpoint.MaxUint256)
	}
	price, err := e.prices.FreshPrice(now)
	if err != nil {
		return nil
	}
	return e.healthFactor(pos, price)
}

func renderHF(hf *big.Int) string {
	if hf == nil {
		return ""
	}
	return hf.String()
}
