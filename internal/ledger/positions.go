package ledger

import (
	"errors"
	"math/big"
	"sort"

	"github.com/google/uuid"

	"SynthVault/internal/fixedpoint"
)

var (
	ErrInsufficientCollateral = errors.New("ledger: withdrawal exceeds collateral balance")
	ErrInsufficientDebt       = errors.New("ledger: repayment exceeds outstanding debt")
)

// Position is one account's collateral and synthetic debt, both in wad
// smallest units. Balances are unsigned: any operation that would drive one
// negative fails instead.
type Position struct {
	Collateral *big.Int
	Debt       *big.Int
}

// Clone returns a deep copy, used for rollback captures.
func (p Position) Clone() Position {
	return Position{
		Collateral: fixedpoint.Clone(p.Collateral),
		Debt:       fixedpoint.Clone(p.Debt),
	}
}

// IsEmpty reports whether the position carries no collateral and no debt.
func (p Position) IsEmpty() bool {
	return p.Collateral.Sign() == 0 && p.Debt.Sign() == 0
}

// PositionBook tracks every account's position. Pure bookkeeping: valuation
// and health checks live in the engine.
//
// Not thread-safe: only accessed from the single-threaded engine loop.
type PositionBook struct {
	positions map[uuid.UUID]*Position
}

func NewPositionBook() *PositionBook {
	return &PositionBook{
		positions: make(map[uuid.UUID]*Position),
	}
}

// Get returns a copy of the account's position, zero-valued if unknown.
func (b *PositionBook) Get(account uuid.UUID) Position {
	if p, ok := b.positions[account]; ok {
		return p.Clone()
	}
	return Position{Collateral: new(big.Int), Debt: new(big.Int)}
}

// CreditCollateral adds amount to the account's collateral balance.
func (b *PositionBook) CreditCollateral(account uuid.UUID, amount *big.Int) {
	p := b.ensure(account)
	p.Collateral.Add(p.Collateral, amount)
}

// DebitCollateral removes amount from the account's collateral balance.
func (b *PositionBook) DebitCollateral(account uuid.UUID, amount *big.Int) error {
	p := b.ensure(account)
	if p.Collateral.Cmp(amount) < 0 {
		return ErrInsufficientCollateral
	}
	p.Collateral.Sub(p.Collateral, amount)
	return nil
}

// RecordDebt adds amount to the account's outstanding debt.
func (b *PositionBook) RecordDebt(account uuid.UUID, amount *big.Int) {
	p := b.ensure(account)
	p.Debt.Add(p.Debt, amount)
}

// RecordRepayment removes amount from the account's outstanding debt.
func (b *PositionBook) RecordRepayment(account uuid.UUID, amount *big.Int) error {
	p := b.ensure(account)
	if p.Debt.Cmp(amount) < 0 {
		return ErrInsufficientDebt
	}
	p.Debt.Sub(p.Debt, amount)
	return nil
}

// Restore overwrites the account's position, used for rollback.
func (b *PositionBook) Restore(account uuid.UUID, p Position) {
	b.positions[account] = &Position{
		Collateral: fixedpoint.Clone(p.Collateral),
		Debt:       fixedpoint.Clone(p.Debt),
	}
}

// Accounts returns every known account in deterministic (sorted) order.
func (b *PositionBook) Accounts() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(b.positions))
	for account := range b.positions {
		out = append(out, account)
	}
	sort.Slice(out, func(i, j int) bool {
		x, y := out[i], out[j]
		for k := 0; k < len(x); k++ {
			if x[k] != y[k] {
				return x[k] < y[k]
			}
		}
		return false
	})
	return out
}

// Len returns the number of tracked accounts.
func (b *PositionBook) Len() int {
	return len(b.positions)
}

func (b *PositionBook) ensure(account uuid.UUID) *Position {
	p, ok := b.positions[account]
	if !ok {
		p = &Position{Collateral: new(big.Int), Debt: new(big.Int)}
		b.positions[account] = p
	}
	return p
}
