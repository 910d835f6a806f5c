package engine

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/google/uuid"

	"SynthVault/internal/event"
	"SynthVault/internal/fixedpoint"
	"SynthVault/internal/params"
)

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrNeedsMoreThanZero
	}
	return nil
}

func (e *Engine) applyDeposit(op *event.Deposit) (any, []uuid.UUID, *big.Int, error) {
	if err := validAmount(op.Amount); err != nil {
		return nil, nil, nil, err
	}

	t := e.begin()
	t.capturePosition(op.Account)

	e.book.CreditCollateral(op.Account, op.Amount)

	if err := e.collateral.Transfer(op.Account, e.vault, op.Amount); err != nil {
		t.rollback("Deposit")
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	hf := e.bestEffortHealthFactor(op.Account, op.Timestamp)
	payload := event.DepositApplied{
		Account:      op.Account.String(),
		Amount:       op.Amount.String(),
		HealthFactor: renderHF(hf),
	}
	return payload, []uuid.UUID{op.Account}, hf, nil
}

func (e *Engine) applyMint(op *event.Mint) (any, []uuid.UUID, *big.Int, error) {
	payload, hf, err := e.mintSteps(e.begin(), op.Account, op.Amount, op)
	if err != nil {
		return nil, nil, nil, err
	}
	return payload, []uuid.UUID{op.Account}, hf, nil
}

// mintSteps runs the mint against an already-open txn so DepositAndMint can
// share it. The fee is retained by the insurance fund; only the net amount
// becomes debt and is minted to the caller.
func (e *Engine) mintSteps(t *txn, account uuid.UUID, amount *big.Int, op event.Operation) (event.MintApplied, *big.Int, error) {
	var zero event.MintApplied
	if err := validAmount(amount); err != nil {
		t.rollback(op.OpType().String())
		return zero, nil, err
	}

	price, err := e.prices.FreshPrice(op.OccurredAt())
	if err != nil {
		t.rollback(op.OpType().String())
		return zero, nil, err
	}

	fee := fixedpoint.BpsMul(amount, e.risk.MintFeeBps())
	net := new(big.Int).Sub(amount, fee)

	t.capturePosition(account)
	t.captureFund()

	e.book.RecordDebt(account, net)
	e.fund.Credit(fee)

	hf := e.healthFactor(e.book.Get(account), price)
	if hf.Cmp(minHealthFactor) < 0 {
		t.rollback(op.OpType().String())
		return zero, nil, &BreaksHealthFactorError{HealthFactor: hf}
	}

	if err := e.synth.Mint(account, net); err != nil {
		t.rollback(op.OpType().String())
		return zero, nil, fmt.Errorf("%w: %v", ErrMintFailed, err)
	}

	return event.MintApplied{
		Account:      account.String(),
		Requested:    amount.String(),
		Fee:          fee.String(),
		Net:          net.String(),
		HealthFactor: hf.String(),
	}, hf, nil
}

func (e *Engine) applyBurn(op *event.Burn) (any, []uuid.UUID, *big.Int, error) {
	payload, hf, err := e.burnSteps(e.begin(), op.Account, op.Amount, op)
	if err != nil {
		return nil, nil, nil, err
	}
	return payload, []uuid.UUID{op.Account}, hf, nil
}

func (e *Engine) burnSteps(t *txn, account uuid.UUID, amount *big.Int, op event.Operation) (event.BurnApplied, *big.Int, error) {
	var zero event.BurnApplied
	if err := validAmount(amount); err != nil {
		t.rollback(op.OpType().String())
		return zero, nil, err
	}

	t.capturePosition(account)

	if err := e.book.RecordRepayment(account, amount); err != nil {
		t.rollback(op.OpType().String())
		return zero, nil, err
	}

	if err := e.synth.Burn(account, amount); err != nil {
		t.rollback(op.OpType().String())
		return zero, nil, fmt.Errorf("%w: %v", ErrBurnFailed, err)
	}
	t.onRollback(func() error {
		return e.synth.Mint(account, amount)
	})

	hf := e.bestEffortHealthFactor(account, op.OccurredAt())
	return event.BurnApplied{
		Account:      account.String(),
		Amount:       amount.String(),
		HealthFactor: renderHF(hf),
	}, hf, nil
}

func (e *Engine) applyRedeem(op *event.Redeem) (any, []uuid.UUID, *big.Int, error) {
	payload, hf, err := e.redeemSteps(e.begin(), op.Account, op.Amount, op)
	if err != nil {
		return nil, nil, nil, err
	}
	return payload, []uuid.UUID{op.Account}, hf, nil
}

func (e *Engine) redeemSteps(t *txn, account uuid.UUID, amount *big.Int, op event.Operation) (event.RedeemApplied, *big.Int, error) {
	var zero event.RedeemApplied
	if err := validAmount(amount); err != nil {
		t.rollback(op.OpType().String())
		return zero, nil, err
	}

	price, err := e.prices.FreshPrice(op.OccurredAt())
	if err != nil {
		t.rollback(op.OpType().String())
		return zero, nil, err
	}

	t.capturePosition(account)

	if err := e.book.DebitCollateral(account, amount); err != nil {
		t.rollback(op.OpType().String())
		return zero, nil, err
	}

	hf := e.healthFactor(e.book.Get(account), price)
	if hf.Cmp(minHealthFactor) < 0 {
		t.rollback(op.OpType().String())
		return zero, nil, &BreaksHealthFactorError{HealthFactor: hf}
	}

	if err := e.collateral.Transfer(e.vault, account, amount); err != nil {
		t.rollback(op.OpType().String())
		return zero, nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	return event.RedeemApplied{
		Account:      account.String(),
		Amount:       amount.String(),
		HealthFactor: hf.String(),
	}, hf, nil
}

func (e *Engine) applyDepositAndMint(op *event.DepositAndMint) (any, []uuid.UUID, *big.Int, error) {
	if err := validAmount(op.DepositAmount); err != nil {
		return nil, nil, nil, err
	}

	t := e.begin()
	t.capturePosition(op.Account)

	e.book.CreditCollateral(op.Account, op.DepositAmount)

	if err := e.collateral.Transfer(op.Account, e.vault, op.DepositAmount); err != nil {
		t.rollback("DepositAndMint")
		return nil, nil, nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	t.onRollback(func() error {
		return e.collateral.Transfer(e.vault, op.Account, op.DepositAmount)
	})

	minted, hf, err := e.mintSteps(t, op.Account, op.MintAmount, op)
	if err != nil {
		return nil, nil, nil, err
	}

	payload := event.DepositAndMintApplied{
		Account:      op.Account.String(),
		Deposited:    op.DepositAmount.String(),
		Requested:    minted.Requested,
		Fee:          minted.Fee,
		Net:          minted.Net,
		HealthFactor: minted.HealthFactor,
	}
	return payload, []uuid.UUID{op.Account}, hf, nil
}

func (e *Engine) applyBurnAndRedeem(op *event.BurnAndRedeem) (any, []uuid.UUID, *big.Int, error) {
	t := e.begin()

	burned, _, err := e.burnSteps(t, op.Account, op.BurnAmount, op)
	if err != nil {
		return nil, nil, nil, err
	}

	redeemed, hf, err := e.redeemSteps(t, op.Account, op.RedeemAmount, op)
	if err != nil {
		return nil, nil, nil, err
	}

	payload := event.BurnAndRedeemApplied{
		Account:      op.Account.String(),
		Burned:       burned.Amount,
		Redeemed:     redeemed.Amount,
		HealthFactor: hf.String(),
	}
	return payload, []uuid.UUID{op.Account}, hf, nil
}

func (e *Engine) applyParamUpdate(op *event.ParamUpdate) (any, []uuid.UUID, *big.Int, error) {
	if op.Caller != e.governance {
		return nil, nil, nil, ErrUnauthorized
	}

	name := params.Name(op.Name)
	before, err := e.paramString(name)
	if err != nil {
		return nil, nil, nil, err
	}

	t := e.begin()
	t.captureParams()

	switch name {
	case params.LiquidationThreshold, params.LiquidationBonus, params.MintFee:
		v, perr := strconv.ParseUint(op.Value, 10, 64)
		if perr != nil {
			err = fmt.Errorf("%w: %s=%q", params.ErrInvalidParameter, name, op.Value)
		} else if name == params.LiquidationThreshold {
			err = e.risk.SetLiquidationThreshold(v, op.Timestamp)
		} else if name == params.LiquidationBonus {
			err = e.risk.SetLiquidationBonus(v, op.Timestamp)
		} else {
			err = e.risk.SetMintFee(v, op.Timestamp)
		}
	case params.TargetHealthFactor:
		v, ok := new(big.Int).SetString(op.Value, 10)
		if !ok {
			err = fmt.Errorf("%w: %s=%q", params.ErrInvalidParameter, name, op.Value)
		} else {
			err = e.risk.SetTargetHealthFactor(v, op.Timestamp)
		}
	}
	if err != nil {
		t.rollback("ParamUpdate")
		return nil, nil, nil, err
	}

	after, _ := e.paramString(name)
	e.log.Info().
		Str("param", string(name)).
		Str("before", before).
		Str("after", after).
		Msg("risk parameter updated")

	payload := event.ParamUpdateApplied{Name: string(name), Before: before, After: after}
	return payload, nil, nil, nil
}

func (e *Engine) paramString(name params.Name) (string, error) {
	switch name {
	case params.LiquidationThreshold:
		return strconv.FormatUint(e.risk.LiquidationThresholdPct(), 10), nil
	case params.LiquidationBonus:
		return strconv.FormatUint(e.risk.LiquidationBonusPct(), 10), nil
	case params.TargetHealthFactor:
		return e.risk.TargetHealthFactor().String(), nil
	case params.MintFee:
		return strconv.FormatUint(e.risk.MintFeeBps(), 10), nil
	default:
		return "", fmt.Errorf("%w: %q", params.ErrUnknownParameter, name)
	}
}

func (e *Engine) applyPriceUpdate(op *event.PriceUpdate) (any, []uuid.UUID, *big.Int, error) {
	if !e.prices.ApplyUpdate(op.Price, op.Sequence, op.Timestamp) {
		return nil, nil, nil, ErrPriceUpdateIgnored
	}
	payload := event.PriceUpdateApplied{
		Price:          op.Price,
		SourceSequence: op.Sequence,
		ObservedAt:     op.Timestamp,
	}
	return payload, nil, nil, nil
}
