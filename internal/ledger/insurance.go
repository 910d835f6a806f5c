package ledger

import (
	"errors"
	"math/big"

	"SynthVault/internal/fixedpoint"
)

var ErrInsufficientInsuranceFunds = errors.New("ledger: insurance fund cannot cover shortfall")

// InsuranceFund is the protocol's wad-USD buffer. It is credited by mint
// fees and debited only to cover bad-debt shortfalls during liquidation.
// A debit that exceeds the balance is a hard failure, never a partial draw.
//
// Not thread-safe: only accessed from the single-threaded engine loop.
type InsuranceFund struct {
	balance       *big.Int
	totalCredited *big.Int
	totalDebited  *big.Int
}

func NewInsuranceFund() *InsuranceFund {
	return &InsuranceFund{
		balance:       new(big.Int),
		totalCredited: new(big.Int),
		totalDebited:  new(big.Int),
	}
}

// Balance returns a copy of the current fund balance.
func (f *InsuranceFund) Balance() *big.Int {
	return new(big.Int).Set(f.balance)
}

// TotalCredited returns lifetime fee income.
func (f *InsuranceFund) TotalCredited() *big.Int {
	return new(big.Int).Set(f.totalCredited)
}

// TotalDebited returns lifetime shortfall payouts.
func (f *InsuranceFund) TotalDebited() *big.Int {
	return new(big.Int).Set(f.totalDebited)
}

// CanCover reports whether the fund balance covers the full shortfall.
func (f *InsuranceFund) CanCover(shortfall *big.Int) bool {
	return f.balance.Cmp(shortfall) >= 0
}

// Credit adds amount to the fund.
func (f *InsuranceFund) Credit(amount *big.Int) {
	f.balance.Add(f.balance, amount)
	f.totalCredited.Add(f.totalCredited, amount)
}

// Debit removes amount from the fund, failing if the balance is short.
func (f *InsuranceFund) Debit(amount *big.Int) error {
	if f.balance.Cmp(amount) < 0 {
		return ErrInsufficientInsuranceFunds
	}
	f.balance.Sub(f.balance, amount)
	f.totalDebited.Add(f.totalDebited, amount)
	return nil
}

// FundState captures the fund for rollback and snapshots.
type FundState struct {
	Balance       *big.Int
	TotalCredited *big.Int
	TotalDebited  *big.Int
}

func (f *InsuranceFund) State() FundState {
	return FundState{
		Balance:       fixedpoint.Clone(f.balance),
		TotalCredited: fixedpoint.Clone(f.totalCredited),
		TotalDebited:  fixedpoint.Clone(f.totalDebited),
	}
}

func (f *InsuranceFund) Restore(s FundState) {
	f.balance = fixedpoint.Clone(s.Balance)
	f.totalCredited = fixedpoint.Clone(s.TotalCredited)
	f.totalDebited = fixedpoint.Clone(s.TotalDebited)
}
