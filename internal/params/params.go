package params

import (
	"errors"
	"fmt"
	"math/big"
	"time"
)

var (
	ErrInvalidParameter     = errors.New("params: value outside permitted range")
	ErrChangeExceedsMaximum = errors.New("params: change exceeds per-update maximum")
	ErrCooldownNotElapsed   = errors.New("params: cooldown not elapsed")
	ErrUnknownParameter     = errors.New("params: unknown parameter")
)

// UpdateCooldown is the minimum interval between successive updates of the
// same parameter.
const UpdateCooldown = 15 * 24 * time.Hour

// Name identifies a governance-mutable risk parameter.
type Name string

const (
	LiquidationThreshold Name = "liquidation_threshold_pct"
	LiquidationBonus     Name = "liquidation_bonus_pct"
	TargetHealthFactor   Name = "target_health_factor"
	MintFee              Name = "mint_fee_bps"
)

// Bounds and per-update deltas for each parameter. Percent parameters are
// whole percentage points, the fee is basis points, and the target health
// factor is an 18-decimal fixed-point ratio.
const (
	thresholdMin   = 20
	thresholdMax   = 80
	thresholdDelta = 10

	bonusMin   = 5
	bonusMax   = 20
	bonusDelta = 5

	mintFeeMin   = 5
	mintFeeMax   = 50
	mintFeeDelta = 10
)

var (
	targetHFMin   = big.NewInt(1_100_000_000_000_000_000)
	targetHFMax   = big.NewInt(1_500_000_000_000_000_000)
	targetHFDelta = big.NewInt(50_000_000_000_000_000)
)

// Params holds the protocol risk parameters plus the per-parameter update
// stamps that enforce the cooldown.
//
// Not thread-safe: only accessed from the single-threaded engine loop.
type Params struct {
	liquidationThresholdPct uint64
	liquidationBonusPct     uint64
	targetHealthFactor      *big.Int
	mintFeeBps              uint64

	lastUpdate map[Name]time.Time
}

// Default returns the parameter set the engine boots with.
func Default() *Params {
	return &Params{
		liquidationThresholdPct: 50,
		liquidationBonusPct:     10,
		targetHealthFactor:      big.NewInt(1_250_000_000_000_000_000),
		mintFeeBps:              20,
		lastUpdate:              make(map[Name]time.Time),
	}
}

func (p *Params) LiquidationThresholdPct() uint64 { return p.liquidationThresholdPct }
func (p *Params) LiquidationBonusPct() uint64     { return p.liquidationBonusPct }
func (p *Params) MintFeeBps() uint64              { return p.mintFeeBps }

func (p *Params) TargetHealthFactor() *big.Int {
	return new(big.Int).Set(p.targetHealthFactor)
}

// LastUpdate returns when the parameter was last changed (zero if never).
func (p *Params) LastUpdate(name Name) time.Time {
	return p.lastUpdate[name]
}

// SetLiquidationThreshold applies a threshold update at the given logical
// time, enforcing range, max delta, and cooldown in that order.
func (p *Params) SetLiquidationThreshold(value uint64, now time.Time) error {
	if value < thresholdMin || value > thresholdMax {
		return fmt.Errorf("%w: %s=%d not in [%d,%d]", ErrInvalidParameter, LiquidationThreshold, value, thresholdMin, thresholdMax)
	}
	if absDeltaU64(p.liquidationThresholdPct, value) > thresholdDelta {
		return fmt.Errorf("%w: %s delta %d > %d", ErrChangeExceedsMaximum, LiquidationThreshold, absDeltaU64(p.liquidationThresholdPct, value), thresholdDelta)
	}
	if err := p.checkCooldown(LiquidationThreshold, now); err != nil {
		return err
	}
	p.liquidationThresholdPct = value
	p.lastUpdate[LiquidationThreshold] = now
	return nil
}

func (p *Params) SetLiquidationBonus(value uint64, now time.Time) error {
	if value < bonusMin || value > bonusMax {
		return fmt.Errorf("%w: %s=%d not in [%d,%d]", ErrInvalidParameter, LiquidationBonus, value, bonusMin, bonusMax)
	}
	if absDeltaU64(p.liquidationBonusPct, value) > bonusDelta {
		return fmt.Errorf("%w: %s delta %d > %d", ErrChangeExceedsMaximum, LiquidationBonus, absDeltaU64(p.liquidationBonusPct, value), bonusDelta)
	}
	if err := p.checkCooldown(LiquidationBonus, now); err != nil {
		return err
	}
	p.liquidationBonusPct = value
	p.lastUpdate[LiquidationBonus] = now
	return nil
}

func (p *Params) SetTargetHealthFactor(value *big.Int, now time.Time) error {
	if value == nil || value.Cmp(targetHFMin) < 0 || value.Cmp(targetHFMax) > 0 {
		return fmt.Errorf("%w: %s=%v not in [%v,%v]", ErrInvalidParameter, TargetHealthFactor, value, targetHFMin, targetHFMax)
	}
	delta := new(big.Int).Sub(value, p.targetHealthFactor)
	delta.Abs(delta)
	if delta.Cmp(targetHFDelta) > 0 {
		return fmt.Errorf("%w: %s delta %v > %v", ErrChangeExceedsMaximum, TargetHealthFactor, delta, targetHFDelta)
	}
	if err := p.checkCooldown(TargetHealthFactor, now); err != nil {
		return err
	}
	p.targetHealthFactor = new(big.Int).Set(value)
	p.lastUpdate[TargetHealthFactor] = now
	return nil
}

func (p *Params) SetMintFee(value uint64, now time.Time) error {
	if value < mintFeeMin || value > mintFeeMax {
		return fmt.Errorf("%w: %s=%d not in [%d,%d]", ErrInvalidParameter, MintFee, value, mintFeeMin, mintFeeMax)
	}
	if absDeltaU64(p.mintFeeBps, value) > mintFeeDelta {
		return fmt.Errorf("%w: %s delta %d > %d", ErrChangeExceedsMaximum, MintFee, absDeltaU64(p.mintFeeBps, value), mintFeeDelta)
	}
	if err := p.checkCooldown(MintFee, now); err != nil {
		return err
	}
	p.mintFeeBps = value
	p.lastUpdate[MintFee] = now
	return nil
}

func (p *Params) checkCooldown(name Name, now time.Time) error {
	last, ok := p.lastUpdate[name]
	if !ok {
		return nil
	}
	if now.Sub(last) < UpdateCooldown {
		return fmt.Errorf("%w: %s last updated %s", ErrCooldownNotElapsed, name, last.UTC().Format(time.RFC3339))
	}
	return nil
}

func absDeltaU64(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

// Snapshot captures the full parameter state for persistence and replay.
type Snapshot struct {
	LiquidationThresholdPct uint64               `json:"liquidation_threshold_pct"`
	LiquidationBonusPct     uint64               `json:"liquidation_bonus_pct"`
	TargetHealthFactor      string               `json:"target_health_factor"`
	MintFeeBps              uint64               `json:"mint_fee_bps"`
	LastUpdate              map[string]time.Time `json:"last_update"`
}

func (p *Params) Snapshot() Snapshot {
	last := make(map[string]time.Time, len(p.lastUpdate))
	for name, ts := range p.lastUpdate {
		last[string(name)] = ts
	}
	return Snapshot{
		LiquidationThresholdPct: p.liquidationThresholdPct,
		LiquidationBonusPct:     p.liquidationBonusPct,
		TargetHealthFactor:      p.targetHealthFactor.String(),
		MintFeeBps:              p.mintFeeBps,
		LastUpdate:              last,
	}
}

// Restore replaces the parameter state from a snapshot.
func (p *Params) Restore(s Snapshot) error {
	target, ok := new(big.Int).SetString(s.TargetHealthFactor, 10)
	if !ok {
		return fmt.Errorf("params: bad target health factor %q in snapshot", s.TargetHealthFactor)
	}
	p.liquidationThresholdPct = s.LiquidationThresholdPct
	p.liquidationBonusPct = s.LiquidationBonusPct
	p.targetHealthFactor = target
	p.mintFeeBps = s.MintFeeBps
	p.lastUpdate = make(map[Name]time.Time, len(s.LastUpdate))
	for name, ts := range s.LastUpdate {
		p.lastUpdate[Name(name)] = ts
	}
	return nil
}
