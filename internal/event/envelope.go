package event

import (
	"time"
)

// OpType discriminator for operation payloads
type OpType int32

const (
	OpTypeUnknown OpType = iota
	OpTypeDeposit
	OpTypeMint
	OpTypeBurn
	OpTypeRedeem
	OpTypeDepositAndMint
	OpTypeBurnAndRedeem
	OpTypeLiquidation
	OpTypeParamUpdate
	OpTypePriceUpdate
)

// Envelope wraps every applied operation in the log
type Envelope struct {
	// Global monotonic sequence assigned by the engine
	Sequence int64

	// Stable idempotency key from the submitter
	IdempotencyKey string

	// Operation type discriminator
	OpType OpType

	// Versioned input timestamp (NOT wall-clock)
	Timestamp time.Time

	// Upstream sequence for ordering validation (0 for API operations)
	SourceSequence int64

	// JSON-encoded operation-specific result payload
	Payload []byte

	// SHA-256 of state AFTER applying this operation
	StateHash [32]byte

	// Previous operation's state hash (chain integrity)
	PrevHash [32]byte
}

// Operation is the interface all engine inputs must implement
type Operation interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// OpType returns the discriminator
	OpType() OpType

	// SourceSequence returns the upstream ordering key
	SourceSequence() int64

	// OccurredAt returns the versioned input timestamp
	OccurredAt() time.Time
}

// OpTypeFromString reverses OpType.String for rows read back from the log.
func OpTypeFromString(s string) OpType {
	switch s {
	case "Deposit":
		return OpTypeDeposit
	case "Mint":
		return OpTypeMint
	case "Burn":
		return OpTypeBurn
	case "Redeem":
		return OpTypeRedeem
	case "DepositAndMint":
		return OpTypeDepositAndMint
	case "BurnAndRedeem":
		return OpTypeBurnAndRedeem
	case "Liquidation":
		return OpTypeLiquidation
	case "ParamUpdate":
		return OpTypeParamUpdate
	case "PriceUpdate":
		return OpTypePriceUpdate
	default:
		return OpTypeUnknown
	}
}

func (ot OpType) String() string {
	switch ot {
	case OpTypeDeposit:
		return "Deposit"
	case OpTypeMint:
		return "Mint"
	case OpTypeBurn:
		return "Burn"
	case OpTypeRedeem:
		return "Redeem"
	case OpTypeDepositAndMint:
		return "DepositAndMint"
	case OpTypeBurnAndRedeem:
		return "BurnAndRedeem"
	case OpTypeLiquidation:
		return "Liquidation"
	case OpTypeParamUpdate:
		return "ParamUpdate"
	case OpTypePriceUpdate:
		return "PriceUpdate"
	default:
		return "Unknown"
	}
}
