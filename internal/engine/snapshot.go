package engine

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"SynthVault/internal/ledger"
	"SynthVault/internal/oracle"
	"SynthVault/internal/params"
)

// computeStateDigest canonically encodes the state touched by an operation
// plus the global accumulators. Feeding only touched positions keeps the
// digest O(1) per operation while still binding the hash chain to every
// mutation.
func (e *Engine) computeStateDigest(touched []uuid.UUID) []byte {
	buf := make([]byte, 0, 256)

	seen := make(map[uuid.UUID]bool, len(touched))
	ordered := make([]uuid.UUID, 0, len(touched))
	for _, account := range touched {
		if !seen[account] {
			seen[account] = true
			ordered = append(ordered, account)
		}
	}
	sortUUIDs(ordered)

	for _, account := range ordered {
		pos := e.book.Get(account)
		buf = append(buf, account[:]...)
		buf = appendBig(buf, pos.Collateral)
		buf = appendBig(buf, pos.Debt)
	}

	buf = appendBig(buf, e.fund.Balance())

	state, observed := e.prices.Last()
	if observed {
		buf = appendInt64(buf, state.Price)
		buf = appendInt64(buf, state.SourceSequence)
	}

	buf = appendInt64(buf, int64(e.risk.LiquidationThresholdPct()))
	buf = appendInt64(buf, int64(e.risk.LiquidationBonusPct()))
	buf = appendBig(buf, e.risk.TargetHealthFactor())
	buf = appendInt64(buf, int64(e.risk.MintFeeBps()))

	return buf
}

func appendBig(buf []byte, v *big.Int) []byte {
	raw := v.Bytes()
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(raw)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, raw...)
}

func appendInt64(buf []byte, v int64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	return append(buf, b[:]...)
}

func sortUUIDs(ids []uuid.UUID) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && lessUUID(ids[j], ids[j-1]); j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
}

func lessUUID(a, b uuid.UUID) bool {
	for k := 0; k < len(a); k++ {
		if a[k] != b[k] {
			return a[k] < b[k]
		}
	}
	return false
}

// PositionSnapshot is one account's balances in a snapshot.
type PositionSnapshot struct {
	Collateral string `json:"collateral"`
	Debt       string `json:"debt"`
}

// FundSnapshot is the insurance fund in a snapshot.
type FundSnapshot struct {
	Balance       string `json:"balance"`
	TotalCredited string `json:"total_credited"`
	TotalDebited  string `json:"total_debited"`
}

// PriceSnapshot is the last feed sample in a snapshot.
type PriceSnapshot struct {
	Observed       bool      `json:"observed"`
	Price          int64     `json:"price"`
	SourceSequence int64     `json:"source_sequence"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Snapshot is the full engine state at a sequence, serialized periodically
// so recovery replays only the log suffix.
type Snapshot struct {
	Sequence  int64                       `json:"sequence"`
	ChainTip  string                      `json:"chain_tip"`
	Positions map[string]PositionSnapshot `json:"positions"`
	Fund      FundSnapshot                `json:"fund"`
	Params    params.Snapshot             `json:"params"`
	Price     PriceSnapshot               `json:"price"`
}

// ExportSnapshot captures the full engine state.
func (e *Engine) ExportSnapshot() *Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	positions := make(map[string]PositionSnapshot, e.book.Len())
	for _, account := range e.book.Accounts() {
		pos := e.book.Get(account)
		positions[account.String()] = PositionSnapshot{
			Collateral: pos.Collateral.String(),
			Debt:       pos.Debt.String(),
		}
	}

	fund := e.fund.State()
	state, observed := e.prices.Last()
	tip := e.hasher.tip()

	return &Snapshot{
		Sequence:  e.sequence,
		ChainTip:  hex.EncodeToString(tip[:]),
		Positions: positions,
		Fund: FundSnapshot{
			Balance:       fund.Balance.String(),
			TotalCredited: fund.TotalCredited.String(),
			TotalDebited:  fund.TotalDebited.String(),
		},
		Params: e.risk.Snapshot(),
		Price: PriceSnapshot{
			Observed:       observed,
			Price:          state.Price,
			SourceSequence: state.SourceSequence,
			UpdatedAt:      state.UpdatedAt,
		},
	}
}

// RestoreSnapshot resets the engine to a snapshot before log replay.
func (e *Engine) RestoreSnapshot(snap *Snapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tipRaw, err := hex.DecodeString(snap.ChainTip)
	if err != nil || len(tipRaw) != 32 {
		return fmt.Errorf("engine: bad chain tip %q in snapshot", snap.ChainTip)
	}

	book := ledger.NewPositionBook()
	for key, ps := range snap.Positions {
		account, err := uuid.Parse(key)
		if err != nil {
			return fmt.Errorf("engine: bad account %q in snapshot: %w", key, err)
		}
		coll, ok := new(big.Int).SetString(ps.Collateral, 10)
		if !ok {
			return fmt.Errorf("engine: bad collateral %q in snapshot", ps.Collateral)
		}
		debt, ok := new(big.Int).SetString(ps.Debt, 10)
		if !ok {
			return fmt.Errorf("engine: bad debt %q in snapshot", ps.Debt)
		}
		book.Restore(account, ledger.Position{Collateral: coll, Debt: debt})
	}

	fund, err := parseFundSnapshot(snap.Fund)
	if err != nil {
		return err
	}
	if err := e.risk.Restore(snap.Params); err != nil {
		return err
	}

	e.book = book
	e.fund.Restore(fund)
	e.prices.Restore(oracle.PriceState{
		Price:          snap.Price.Price,
		SourceSequence: snap.Price.SourceSequence,
		UpdatedAt:      snap.Price.UpdatedAt,
	}, snap.Price.Observed)
	e.sequence = snap.Sequence

	var tip [32]byte
	copy(tip[:], tipRaw)
	e.hasher.setTip(tip)
	return nil
}

func parseFundSnapshot(fs FundSnapshot) (ledger.FundState, error) {
	balance, ok := new(big.Int).SetString(fs.Balance, 10)
	if !ok {
		return ledger.FundState{}, fmt.Errorf("engine: bad fund balance %q in snapshot", fs.Balance)
	}
	credited, ok := new(big.Int).SetString(fs.TotalCredited, 10)
	if !ok {
		return ledger.FundState{}, fmt.Errorf("engine: bad fund credits %q in snapshot", fs.TotalCredited)
	}
	debited, ok := new(big.Int).SetString(fs.TotalDebited, 10)
	if !ok {
		return ledger.FundState{}, fmt.Errorf("engine: bad fund debits %q in snapshot", fs.TotalDebited)
	}
	return ledger.FundState{Balance: balance, TotalCredited: credited, TotalDebited: debited}, nil
}
