package engine

import (
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"SynthVault/internal/event"
	"SynthVault/internal/fixedpoint"
	"SynthVault/internal/ledger"
)

// applyLiquidate settles an undercollateralized position. The debt
// repayment is sized so the position lands back at targetHealthFactor; when
// the algebra says partial recovery is impossible, or seizing the sized
// collateral would exceed what the account holds, the whole position is
// closed and the insurance fund covers any shortfall.
func (e *Engine) applyLiquidate(op *event.Liquidate) (any, []uuid.UUID, *big.Int, error) {
	price, err := e.prices.FreshPrice(op.Timestamp)
	if err != nil {
		return nil, nil, nil, err
	}

	pos := e.book.Get(op.Account)
	startHF := e.healthFactor(pos, price)
	if startHF.Cmp(minHealthFactor) >= 0 {
		return nil, nil, nil, fmt.Errorf("%w: hf=%s", ErrHealthFactorOk, startHF)
	}

	totalDebt := pos.Debt
	collValue := fixedpoint.UsdValue(pos.Collateral, price)
	bonusPct := e.risk.LiquidationBonusPct()
	targetHF := e.risk.TargetHealthFactor()

	debtToCover := e.debtToCover(collValue, totalDebt, targetHF, bonusPct)

	baseCollateral := fixedpoint.TokenAmountFromUsd(debtToCover, price)
	bonusCollateral := fixedpoint.PctMul(baseCollateral, bonusPct)
	collateralToRedeem := new(big.Int).Add(baseCollateral, bonusCollateral)

	t := e.begin()
	t.capturePosition(op.Account)
	t.capturePosition(op.Liquidator)
	t.captureFund()

	var payload event.LiquidationApplied
	if collateralToRedeem.Cmp(pos.Collateral) <= 0 {
		payload, err = e.liquidatePartial(t, op, price, debtToCover, collateralToRedeem, totalDebt)
	} else {
		payload, err = e.liquidateBadDebt(t, op, price, totalDebt, pos.Collateral, collValue)
	}
	if err != nil {
		return nil, nil, nil, err
	}

	// Safety net: liquidators gain collateral and no debt, so their own
	// health factor cannot normally be pushed below minimum here.
	liqHF := e.healthFactor(e.book.Get(op.Liquidator), price)
	if liqHF.Cmp(minHealthFactor) < 0 {
		t.rollback("Liquidation")
		return nil, nil, nil, &BreaksHealthFactorError{HealthFactor: liqHF}
	}

	endHF := e.healthFactor(e.book.Get(op.Account), price)
	payload.HealthFactor = endHF.String()

	if e.metrics != nil {
		e.metrics.RecordLiquidation(payload.Outcome)
	}
	e.log.Info().
		Str("account", op.Account.String()).
		Str("liquidator", op.Liquidator.String()).
		Str("outcome", payload.Outcome).
		Str("debt_covered", payload.DebtCovered).
		Str("collateral_seized", payload.CollateralSeized).
		Msg("position liquidated")

	return payload, []uuid.UUID{op.Account, op.Liquidator}, endHF, nil
}

// debtToCover derives the repayment that restores the position to exactly
// targetHealthFactor:
//
//	numerator   = collValue*thresholdMul - debt*targetHF
//	denominator = targetHF - thresholdMul*bonusMul
//
// with thresholdMul and bonusMul as wad fractions. A non-positive numerator
// or denominator means partial recovery is not mathematically meaningful and
// the full debt is covered instead.
//
// With targetHF >= 1.0 the numerator is negative for every liquidatable
// position (liquidatable means collValue*thresholdMul < debt), so under the
// governance bounds, which cap targetHF at no less than 1.1, the fallback is
// the operative path and every liquidation closes the full debt. The sizing
// formula stays for target factors below 1.0, where a partial repayment can
// land the position back above water.
func (e *Engine) debtToCover(collValue, totalDebt, targetHF *big.Int, bonusPct uint64) *big.Int {
	thresholdMul := fixedpoint.PctWad(e.risk.LiquidationThresholdPct())
	bonusMul := fixedpoint.PctWad(100 + bonusPct)

	numerator := new(big.Int).Sub(
		fixedpoint.MulDiv(collValue, thresholdMul, fixedpoint.Wad),
		fixedpoint.MulDiv(totalDebt, targetHF, fixedpoint.Wad),
	)
	denominator := new(big.Int).Sub(
		targetHF,
		fixedpoint.MulDiv(thresholdMul, bonusMul, fixedpoint.Wad),
	)

	if numerator.Sign() <= 0 || denominator.Sign() <= 0 {
		return fixedpoint.Clone(totalDebt)
	}
	return fixedpoint.Min(fixedpoint.MulDiv(numerator, fixedpoint.Wad, denominator), totalDebt)
}

// liquidatePartial repays debtToCover against the account and hands the
// sized collateral plus bonus to the liquidator. Must not over-liquidate:
// the account has to come out strictly above targetHealthFactor (or debt
// free, when the fallback covered everything).
func (e *Engine) liquidatePartial(t *txn, op *event.Liquidate, price int64, debtToCover, collateralToRedeem, totalDebt *big.Int) (event.LiquidationApplied, error) {
	var zero event.LiquidationApplied

	if err := e.book.RecordRepayment(op.Account, debtToCover); err != nil {
		t.rollback("Liquidation")
		return zero, err
	}
	if err := e.book.DebitCollateral(op.Account, collateralToRedeem); err != nil {
		t.rollback("Liquidation")
		return zero, err
	}

	if err := e.synth.Burn(op.Liquidator, debtToCover); err != nil {
		t.rollback("Liquidation")
		return zero, fmt.Errorf("%w: %v", ErrBurnFailed, err)
	}
	t.onRollback(func() error {
		return e.synth.Mint(op.Liquidator, debtToCover)
	})

	if err := e.collateral.Transfer(e.vault, op.Liquidator, collateralToRedeem); err != nil {
		t.rollback("Liquidation")
		return zero, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	t.onRollback(func() error {
		return e.collateral.Transfer(op.Liquidator, e.vault, collateralToRedeem)
	})

	after := e.book.Get(op.Account)
	endHF := e.healthFactor(after, price)
	fullyClosed := after.Debt.Sign() == 0
	if !fullyClosed && endHF.Cmp(e.risk.TargetHealthFactor()) <= 0 {
		t.rollback("Liquidation")
		return zero, fmt.Errorf("%w: hf=%s", ErrHealthFactorStillBroken, endHF)
	}

	outcome := event.LiquidationOutcomePartial
	if fullyClosed {
		outcome = event.LiquidationOutcomeFull
	}
	return event.LiquidationApplied{
		Account:          op.Account.String(),
		Liquidator:       op.Liquidator.String(),
		DebtCovered:      debtToCover.String(),
		CollateralSeized: collateralToRedeem.String(),
		Shortfall:        "0",
		Outcome:          outcome,
	}, nil
}

// liquidateBadDebt closes the whole position when even full seizure cannot
// cover debt plus bonus. The liquidator burns the full debt, takes every
// remaining collateral unit, and is minted the USD shortfall in synthetic
// tokens, funded by the insurance fund. An underfunded insurance fund is a
// hard failure with no state change.
func (e *Engine) liquidateBadDebt(t *txn, op *event.Liquidate, price int64, totalDebt, collateral, collValue *big.Int) (event.LiquidationApplied, error) {
	var zero event.LiquidationApplied

	bonusPct := e.risk.LiquidationBonusPct()
	owedUsd := new(big.Int).Add(totalDebt, fixedpoint.PctMul(totalDebt, bonusPct))
	shortfall := new(big.Int).Sub(owedUsd, collValue)
	if shortfall.Sign() < 0 {
		shortfall.SetInt64(0)
	}

	if !e.fund.CanCover(shortfall) {
		t.rollback("Liquidation")
		return zero, fmt.Errorf("%w: fund=%s shortfall=%s",
			ledger.ErrInsufficientInsuranceFunds, e.fund.Balance(), shortfall)
	}
	if err := e.fund.Debit(shortfall); err != nil {
		t.rollback("Liquidation")
		return zero, err
	}

	if err := e.book.RecordRepayment(op.Account, totalDebt); err != nil {
		t.rollback("Liquidation")
		return zero, err
	}
	if err := e.book.DebitCollateral(op.Account, collateral); err != nil {
		t.rollback("Liquidation")
		return zero, err
	}

	if err := e.synth.Burn(op.Liquidator, totalDebt); err != nil {
		t.rollback("Liquidation")
		return zero, fmt.Errorf("%w: %v", ErrBurnFailed, err)
	}
	t.onRollback(func() error {
		return e.synth.Mint(op.Liquidator, totalDebt)
	})

	if collateral.Sign() > 0 {
		if err := e.collateral.Transfer(e.vault, op.Liquidator, collateral); err != nil {
			t.rollback("Liquidation")
			return zero, fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
		t.onRollback(func() error {
			return e.collateral.Transfer(op.Liquidator, e.vault, collateral)
		})
	}

	if shortfall.Sign() > 0 {
		if err := e.synth.Mint(op.Liquidator, shortfall); err != nil {
			t.rollback("Liquidation")
			return zero, fmt.Errorf("%w: %v", ErrMintFailed, err)
		}
		t.onRollback(func() error {
			return e.synth.Burn(op.Liquidator, shortfall)
		})
	}

	return event.LiquidationApplied{
		Account:          op.Account.String(),
		Liquidator:       op.Liquidator.String(),
		DebtCovered:      totalDebt.String(),
		CollateralSeized: collateral.String(),
		Shortfall:        shortfall.String(),
		Outcome:          event.LiquidationOutcomeBadDebt,
	}, nil
}
