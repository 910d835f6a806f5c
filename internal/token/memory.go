package token

import (
	"math/big"

	"github.com/google/uuid"
)

// MemoryLedger is an in-process Ledger used in local mode and tests.
// Not thread-safe: only accessed from the single-threaded engine loop.
type MemoryLedger struct {
	symbol   string
	balances map[uuid.UUID]*big.Int
}

func NewMemoryLedger(symbol string) *MemoryLedger {
	return &MemoryLedger{
		symbol:   symbol,
		balances: make(map[uuid.UUID]*big.Int),
	}
}

func (m *MemoryLedger) Symbol() string {
	return m.symbol
}

func (m *MemoryLedger) Transfer(from, to uuid.UUID, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	bal := m.balance(from)
	if bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	bal.Sub(bal, amount)
	m.balance(to).Add(m.balance(to), amount)
	return nil
}

func (m *MemoryLedger) Mint(to uuid.UUID, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	m.balance(to).Add(m.balance(to), amount)
	return nil
}

func (m *MemoryLedger) Burn(from uuid.UUID, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	bal := m.balance(from)
	if bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	bal.Sub(bal, amount)
	return nil
}

func (m *MemoryLedger) BalanceOf(holder uuid.UUID) *big.Int {
	return new(big.Int).Set(m.balance(holder))
}

func (m *MemoryLedger) balance(holder uuid.UUID) *big.Int {
	bal, ok := m.balances[holder]
	if !ok {
		bal = new(big.Int)
		m.balances[holder] = bal
	}
	return bal
}
