package query

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AccountBalanceResponse is a projected account position. Raw amounts are
// decimal strings of the 18-decimal integer values; the Display fields are
// human-scale renderings.
type AccountBalanceResponse struct {
	AccountID         uuid.UUID `json:"account_id"`
	Collateral        string    `json:"collateral"`
	Debt              string    `json:"debt"`
	CollateralDisplay string    `json:"collateral_display"`
	DebtDisplay       string    `json:"debt_display"`
	AsOfSequence      int64     `json:"as_of_sequence"`
}

// HistoryEntry is one applied operation from the event log.
type HistoryEntry struct {
	Sequence       int64           `json:"sequence"`
	OpType         string          `json:"op_type"`
	IdempotencyKey string          `json:"idempotency_key"`
	Payload        json.RawMessage `json:"payload"`
	Timestamp      time.Time       `json:"timestamp"`
}

// IntegrityReport is the result of a hash-chain verification pass.
type IntegrityReport struct {
	IsHealthy       bool    `json:"is_healthy"`
	EventsChecked   int64   `json:"events_checked"`
	HashChainBreaks []int64 `json:"hash_chain_breaks,omitempty"`
}
