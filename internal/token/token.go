package token

import (
	"errors"
	"math/big"

	"github.com/google/uuid"
)

var (
	ErrInsufficientBalance = errors.New("token: insufficient balance")
	ErrInvalidAmount       = errors.New("token: amount must be positive")
)

// Ledger is the capability boundary to an external token contract. The
// engine treats every call as fallible and rolls back its own state when one
// fails mid-operation.
type Ledger interface {
	// Transfer moves amount from one holder to another.
	Transfer(from, to uuid.UUID, amount *big.Int) error

	// Mint creates amount new units credited to the holder. Only meaningful
	// for the synthetic token; collateral ledgers may reject it.
	Mint(to uuid.UUID, amount *big.Int) error

	// Burn destroys amount units held by the holder.
	Burn(from uuid.UUID, amount *big.Int) error

	// BalanceOf returns the holder's current balance (zero if unknown).
	BalanceOf(holder uuid.UUID) *big.Int
}
