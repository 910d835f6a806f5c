package event

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// wireOperation is the JSON wire form of every operation, used both on the
// ingestion boundary and in the op_input column of the event log. Amounts
// are decimal strings so 256-bit values survive encoding.
type wireOperation struct {
	OpID          string    `json:"op_id"`
	Account       string    `json:"account,omitempty"`
	Liquidator    string    `json:"liquidator,omitempty"`
	Caller        string    `json:"caller,omitempty"`
	Amount        string    `json:"amount,omitempty"`
	DepositAmount string    `json:"deposit_amount,omitempty"`
	MintAmount    string    `json:"mint_amount,omitempty"`
	BurnAmount    string    `json:"burn_amount,omitempty"`
	RedeemAmount  string    `json:"redeem_amount,omitempty"`
	Name          string    `json:"name,omitempty"`
	Value         string    `json:"value,omitempty"`
	Price         int64     `json:"price,omitempty"`
	Sequence      int64     `json:"sequence,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// EncodeOperation serializes an operation for the event log.
func EncodeOperation(op Operation) ([]byte, error) {
	var w wireOperation
	switch o := op.(type) {
	case *Deposit:
		w = wireOperation{OpID: o.OpID.String(), Account: o.Account.String(), Amount: bigString(o.Amount)}
	case *Mint:
		w = wireOperation{OpID: o.OpID.String(), Account: o.Account.String(), Amount: bigString(o.Amount)}
	case *Burn:
		w = wireOperation{OpID: o.OpID.String(), Account: o.Account.String(), Amount: bigString(o.Amount)}
	case *Redeem:
		w = wireOperation{OpID: o.OpID.String(), Account: o.Account.String(), Amount: bigString(o.Amount)}
	case *DepositAndMint:
		w = wireOperation{
			OpID:          o.OpID.String(),
			Account:       o.Account.String(),
			DepositAmount: bigString(o.DepositAmount),
			MintAmount:    bigString(o.MintAmount),
		}
	case *BurnAndRedeem:
		w = wireOperation{
			OpID:         o.OpID.String(),
			Account:      o.Account.String(),
			BurnAmount:   bigString(o.BurnAmount),
			RedeemAmount: bigString(o.RedeemAmount),
		}
	case *Liquidate:
		w = wireOperation{OpID: o.OpID.String(), Account: o.Account.String(), Liquidator: o.Liquidator.String()}
	case *ParamUpdate:
		w = wireOperation{OpID: o.OpID.String(), Caller: o.Caller.String(), Name: o.Name, Value: o.Value}
	case *PriceUpdate:
		w = wireOperation{OpID: o.UpdateID.String(), Price: o.Price}
	default:
		return nil, fmt.Errorf("event: cannot encode %T", op)
	}
	w.Sequence = op.SourceSequence()
	w.Timestamp = op.OccurredAt()
	return json.Marshal(w)
}

// DecodeOperation reverses EncodeOperation given the stored op type.
func DecodeOperation(ot OpType, raw []byte) (Operation, error) {
	var w wireOperation
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("event: decode %s: %w", ot, err)
	}

	opID, err := uuid.Parse(w.OpID)
	if err != nil {
		return nil, fmt.Errorf("event: decode %s: bad op_id %q", ot, w.OpID)
	}

	switch ot {
	case OpTypeDeposit, OpTypeMint, OpTypeBurn, OpTypeRedeem:
		account, err := uuid.Parse(w.Account)
		if err != nil {
			return nil, fmt.Errorf("event: decode %s: bad account %q", ot, w.Account)
		}
		amount, err := ParseAmount(w.Amount)
		if err != nil {
			return nil, fmt.Errorf("event: decode %s: %w", ot, err)
		}
		switch ot {
		case OpTypeDeposit:
			return &Deposit{OpID: opID, Account: account, Amount: amount, Sequence: w.Sequence, Timestamp: w.Timestamp}, nil
		case OpTypeMint:
			return &Mint{OpID: opID, Account: account, Amount: amount, Sequence: w.Sequence, Timestamp: w.Timestamp}, nil
		case OpTypeBurn:
			return &Burn{OpID: opID, Account: account, Amount: amount, Sequence: w.Sequence, Timestamp: w.Timestamp}, nil
		default:
			return &Redeem{OpID: opID, Account: account, Amount: amount, Sequence: w.Sequence, Timestamp: w.Timestamp}, nil
		}

	case OpTypeDepositAndMint:
		account, err := uuid.Parse(w.Account)
		if err != nil {
			return nil, fmt.Errorf("event: decode %s: bad account %q", ot, w.Account)
		}
		dep, err := ParseAmount(w.DepositAmount)
		if err != nil {
			return nil, fmt.Errorf("event: decode %s: %w", ot, err)
		}
		mint, err := ParseAmount(w.MintAmount)
		if err != nil {
			return nil, fmt.Errorf("event: decode %s: %w", ot, err)
		}
		return &DepositAndMint{OpID: opID, Account: account, DepositAmount: dep, MintAmount: mint, Sequence: w.Sequence, Timestamp: w.Timestamp}, nil

	case OpTypeBurnAndRedeem:
		account, err := uuid.Parse(w.Account)
		if err != nil {
			return nil, fmt.Errorf("event: decode %s: bad account %q", ot, w.Account)
		}
		burn, err := ParseAmount(w.BurnAmount)
		if err != nil {
			return nil, fmt.Errorf("event: decode %s: %w", ot, err)
		}
		redeem, err := ParseAmount(w.RedeemAmount)
		if err != nil {
			return nil, fmt.Errorf("event: decode %s: %w", ot, err)
		}
		return &BurnAndRedeem{OpID: opID, Account: account, BurnAmount: burn, RedeemAmount: redeem, Sequence: w.Sequence, Timestamp: w.Timestamp}, nil

	case OpTypeLiquidation:
		account, err := uuid.Parse(w.Account)
		if err != nil {
			return nil, fmt.Errorf("event: decode %s: bad account %q", ot, w.Account)
		}
		liquidator, err := uuid.Parse(w.Liquidator)
		if err != nil {
			return nil, fmt.Errorf("event: decode %s: bad liquidator %q", ot, w.Liquidator)
		}
		return &Liquidate{OpID: opID, Account: account, Liquidator: liquidator, Sequence: w.Sequence, Timestamp: w.Timestamp}, nil

	case OpTypeParamUpdate:
		caller, err := uuid.Parse(w.Caller)
		if err != nil {
			return nil, fmt.Errorf("event: decode %s: bad caller %q", ot, w.Caller)
		}
		return &ParamUpdate{OpID: opID, Caller: caller, Name: w.Name, Value: w.Value, Sequence: w.Sequence, Timestamp: w.Timestamp}, nil

	case OpTypePriceUpdate:
		return &PriceUpdate{UpdateID: opID, Price: w.Price, Sequence: w.Sequence, Timestamp: w.Timestamp}, nil

	default:
		return nil, fmt.Errorf("event: decode: unknown op type %d", ot)
	}
}

// ParseAmount parses a non-negative decimal string amount.
func ParseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("bad amount %q", s)
	}
	return v, nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}
