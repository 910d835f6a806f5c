package event

import (
	"math/big"
	"time"

	"github.com/google/uuid"
)

// Deposit locks backing-asset collateral into the caller's position.
type Deposit struct {
	OpID      uuid.UUID
	Account   uuid.UUID
	Amount    *big.Int
	Sequence  int64
	Timestamp time.Time
}

func (d *Deposit) IdempotencyKey() string { return d.OpID.String() }
func (d *Deposit) OpType() OpType         { return OpTypeDeposit }
func (d *Deposit) SourceSequence() int64  { return d.Sequence }
func (d *Deposit) OccurredAt() time.Time  { return d.Timestamp }

// Mint creates synthetic tokens against the caller's collateral.
type Mint struct {
	OpID      uuid.UUID
	Account   uuid.UUID
	Amount    *big.Int
	Sequence  int64
	Timestamp time.Time
}

func (m *Mint) IdempotencyKey() string { return m.OpID.String() }
func (m *Mint) OpType() OpType         { return OpTypeMint }
func (m *Mint) SourceSequence() int64  { return m.Sequence }
func (m *Mint) OccurredAt() time.Time  { return m.Timestamp }

// Burn destroys synthetic tokens held by the caller and reduces debt.
type Burn struct {
	OpID      uuid.UUID
	Account   uuid.UUID
	Amount    *big.Int
	Sequence  int64
	Timestamp time.Time
}

func (b *Burn) IdempotencyKey() string { return b.OpID.String() }
func (b *Burn) OpType() OpType         { return OpTypeBurn }
func (b *Burn) SourceSequence() int64  { return b.Sequence }
func (b *Burn) OccurredAt() time.Time  { return b.Timestamp }

// Redeem withdraws collateral from the caller's position.
type Redeem struct {
	OpID      uuid.UUID
	Account   uuid.UUID
	Amount    *big.Int
	Sequence  int64
	Timestamp time.Time
}

func (r *Redeem) IdempotencyKey() string { return r.OpID.String() }
func (r *Redeem) OpType() OpType         { return OpTypeRedeem }
func (r *Redeem) SourceSequence() int64  { return r.Sequence }
func (r *Redeem) OccurredAt() time.Time  { return r.Timestamp }

// DepositAndMint is the atomic deposit-then-mint convenience operation.
type DepositAndMint struct {
	OpID          uuid.UUID
	Account       uuid.UUID
	DepositAmount *big.Int
	MintAmount    *big.Int
	Sequence      int64
	Timestamp     time.Time
}

func (d *DepositAndMint) IdempotencyKey() string { return d.OpID.String() }
func (d *DepositAndMint) OpType() OpType         { return OpTypeDepositAndMint }
func (d *DepositAndMint) SourceSequence() int64  { return d.Sequence }
func (d *DepositAndMint) OccurredAt() time.Time  { return d.Timestamp }

// BurnAndRedeem is the atomic burn-then-redeem convenience operation.
type BurnAndRedeem struct {
	OpID         uuid.UUID
	Account      uuid.UUID
	BurnAmount   *big.Int
	RedeemAmount *big.Int
	Sequence     int64
	Timestamp    time.Time
}

func (b *BurnAndRedeem) IdempotencyKey() string { return b.OpID.String() }
func (b *BurnAndRedeem) OpType() OpType         { return OpTypeBurnAndRedeem }
func (b *BurnAndRedeem) SourceSequence() int64  { return b.Sequence }
func (b *BurnAndRedeem) OccurredAt() time.Time  { return b.Timestamp }

// Liquidate settles an undercollateralized position.
type Liquidate struct {
	OpID       uuid.UUID
	Liquidator uuid.UUID
	Account    uuid.UUID
	Sequence   int64
	Timestamp  time.Time
}

func (l *Liquidate) IdempotencyKey() string { return l.OpID.String() }
func (l *Liquidate) OpType() OpType         { return OpTypeLiquidation }
func (l *Liquidate) SourceSequence() int64  { return l.Sequence }
func (l *Liquidate) OccurredAt() time.Time  { return l.Timestamp }

// ParamUpdate changes one governance-mutable risk parameter. Value is the
// decimal string rendering of the new value in the parameter's native scale.
type ParamUpdate struct {
	OpID      uuid.UUID
	Caller    uuid.UUID
	Name      string
	Value     string
	Sequence  int64
	Timestamp time.Time
}

func (p *ParamUpdate) IdempotencyKey() string { return p.OpID.String() }
func (p *ParamUpdate) OpType() OpType         { return OpTypeParamUpdate }
func (p *ParamUpdate) SourceSequence() int64  { return p.Sequence }
func (p *ParamUpdate) OccurredAt() time.Time  { return p.Timestamp }

// PriceUpdate is a feed sample for the backing asset, 8 decimals.
type PriceUpdate struct {
	UpdateID  uuid.UUID
	Price     int64
	Sequence  int64
	Timestamp time.Time
}

func (p *PriceUpdate) IdempotencyKey() string { return p.UpdateID.String() }
func (p *PriceUpdate) OpType() OpType         { return OpTypePriceUpdate }
func (p *PriceUpdate) SourceSequence() int64  { return p.Sequence }
func (p *PriceUpdate) OccurredAt() time.Time  { return p.Timestamp }
