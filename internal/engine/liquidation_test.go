package engine_test

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"

	"SynthVault/internal/engine"
	"SynthVault/internal/event"
	"SynthVault/internal/ledger"
	"SynthVault/internal/oracle"
)

// openPosition deposits 10 WETH at $2000 and mints 5000, leaving the account
// with 4990 debt after the 20 bps fee.
func openPosition(t *testing.T, f *fixture, account uuid.UUID) {
	t.Helper()
	f.setPrice(t, 2_000_00000000, 1, baseTime)
	f.deposit(t, account, wad(10), baseTime)
	f.mint(t, account, wad(5000), baseTime)
}

func (f *fixture) liquidate(account, liquidator uuid.UUID, at time.Time) (*engine.Receipt, error) {
	return f.eng.Process(&event.Liquidate{
		OpID:       uuid.New(),
		Liquidator: liquidator,
		Account:    account,
		Timestamp:  at,
	})
}

func TestLiquidateHealthyPosition(t *testing.T) {
	f := newFixture(t)
	account, liquidator := uuid.New(), uuid.New()
	openPosition(t, f, account)

	_, err := f.liquidate(account, liquidator, baseTime)
	if !errors.Is(err, engine.ErrHealthFactorOk) {
		t.Errorf("got %v, want ErrHealthFactorOk", err)
	}
}

func TestLiquidateStalePrice(t *testing.T) {
	f := newFixture(t)
	account, liquidator := uuid.New(), uuid.New()
	openPosition(t, f, account)

	_, err := f.liquidate(account, liquidator, baseTime.Add(4*time.Hour))
	if !errors.Is(err, oracle.ErrStalePrice) {
		t.Errorf("got %v, want ErrStalePrice", err)
	}
}

func TestLiquidateFullClose(t *testing.T) {
	f := newFixture(t)
	account, liquidator := uuid.New(), uuid.New()
	openPosition(t, f, account)
	f.synth.Mint(liquidator, wad(5000))

	// $600 puts the position at HF ~0.6. Restoring it to the 1.25 target
	// is impossible at a 50% threshold, so the full 4990 debt is covered.
	crash := baseTime.Add(time.Minute)
	f.setPrice(t, 600_00000000, 2, crash)

	receipt, err := f.liquidate(account, liquidator, crash)
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}

	payload := receipt.Payload.(event.LiquidationApplied)
	if payload.Outcome != event.LiquidationOutcomeFull {
		t.Errorf("outcome: got %s, want %s", payload.Outcome, event.LiquidationOutcomeFull)
	}
	if payload.DebtCovered != wad(4990).String() {
		t.Errorf("debt covered: got %s, want %s", payload.DebtCovered, wad(4990))
	}

	// 4990 USD of debt at $600 is 8.31666... WETH, plus the 10% bonus.
	wantSeized, _ := new(big.Int).SetString("9148333333333333332", 10)
	if payload.CollateralSeized != wantSeized.String() {
		t.Errorf("seized: got %s, want %s", payload.CollateralSeized, wantSeized)
	}
	if payload.Shortfall != "0" {
		t.Errorf("shortfall: got %s, want 0", payload.Shortfall)
	}

	view := f.eng.Account(account, crash)
	if view.Debt.Sign() != 0 {
		t.Errorf("debt after close: %s", view.Debt)
	}
	wantRemaining, _ := new(big.Int).SetString("851666666666666668", 10)
	if view.Collateral.Cmp(wantRemaining) != 0 {
		t.Errorf("remaining collateral: got %s, want %s", view.Collateral, wantRemaining)
	}

	// Liquidator burned the debt and received the seized collateral.
	if got := f.synth.BalanceOf(liquidator); got.Cmp(wad(10)) != 0 {
		t.Errorf("liquidator synth: got %s, want %s", got, wad(10))
	}
	if got := f.collateral.BalanceOf(liquidator); got.Cmp(wantSeized) != 0 {
		t.Errorf("liquidator collateral: got %s, want %s", got, wantSeized)
	}
}

func TestLiquidateBadDebt(t *testing.T) {
	f := newFixture(t)
	account, liquidator, whale := uuid.New(), uuid.New(), uuid.New()

	// The whale's mint fee capitalizes the insurance fund to 4510 total.
	f.setPrice(t, 2_000_00000000, 1, baseTime)
	f.deposit(t, whale, wad(10_000), baseTime)
	f.mint(t, whale, wad(2_250_000), baseTime)
	f.deposit(t, account, wad(10), baseTime)
	f.mint(t, account, wad(5000), baseTime)
	f.synth.Mint(liquidator, wad(5000))

	// $100 leaves 1000 USD of collateral against 4990 debt: even seizing
	// everything cannot cover debt plus bonus.
	crash := baseTime.Add(time.Minute)
	f.setPrice(t, 100_00000000, 2, crash)

	receipt, err := f.liquidate(account, liquidator, crash)
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}

	payload := receipt.Payload.(event.LiquidationApplied)
	if payload.Outcome != event.LiquidationOutcomeBadDebt {
		t.Errorf("outcome: got %s, want %s", payload.Outcome, event.LiquidationOutcomeBadDebt)
	}
	if payload.DebtCovered != wad(4990).String() {
		t.Errorf("debt covered: got %s, want %s", payload.DebtCovered, wad(4990))
	}
	if payload.CollateralSeized != wad(10).String() {
		t.Errorf("seized: got %s, want %s", payload.CollateralSeized, wad(10))
	}
	// owed = 4990 * 1.10 = 5489 USD, collateral worth 1000.
	if payload.Shortfall != wad(4489).String() {
		t.Errorf("shortfall: got %s, want %s", payload.Shortfall, wad(4489))
	}

	view := f.eng.Account(account, crash)
	if view.Collateral.Sign() != 0 || view.Debt.Sign() != 0 {
		t.Errorf("position not zeroed: collateral=%s debt=%s", view.Collateral, view.Debt)
	}

	fund := f.eng.InsuranceFund()
	if fund.Balance.Cmp(wad(21)) != 0 {
		t.Errorf("fund: got %s, want %s", fund.Balance, wad(21))
	}

	// Liquidator burned 4990, was made whole with 4489 from the fund, and
	// took all 10 WETH.
	if got := f.synth.BalanceOf(liquidator); got.Cmp(wad(4499)) != 0 {
		t.Errorf("liquidator synth: got %s, want %s", got, wad(4499))
	}
	if got := f.collateral.BalanceOf(liquidator); got.Cmp(wad(10)) != 0 {
		t.Errorf("liquidator collateral: got %s, want %s", got, wad(10))
	}
}

func TestLiquidateBadDebtUnderfundedFund(t *testing.T) {
	f := newFixture(t)
	account, liquidator := uuid.New(), uuid.New()
	openPosition(t, f, account)
	f.synth.Mint(liquidator, wad(5000))

	crash := baseTime.Add(time.Minute)
	f.setPrice(t, 100_00000000, 2, crash)
	seqBefore := f.eng.Sequence()

	// Only the account's own 10 USD fee is in the fund, far short of the
	// 4489 shortfall. The liquidation is refused with no state change.
	_, err := f.liquidate(account, liquidator, crash)
	if !errors.Is(err, ledger.ErrInsufficientInsuranceFunds) {
		t.Fatalf("got %v, want ErrInsufficientInsuranceFunds", err)
	}

	view := f.eng.Account(account, crash)
	if view.Collateral.Cmp(wad(10)) != 0 || view.Debt.Cmp(wad(4990)) != 0 {
		t.Errorf("position changed: collateral=%s debt=%s", view.Collateral, view.Debt)
	}
	if fund := f.eng.InsuranceFund(); fund.Balance.Cmp(wad(10)) != 0 {
		t.Errorf("fund changed: %s", fund.Balance)
	}
	if got := f.synth.BalanceOf(liquidator); got.Cmp(wad(5000)) != 0 {
		t.Errorf("liquidator synth changed: %s", got)
	}
	if got := f.eng.Sequence(); got != seqBefore {
		t.Errorf("sequence advanced on failure: %d -> %d", seqBefore, got)
	}
}

func TestLiquidateWithoutSynthBalance(t *testing.T) {
	f := newFixture(t)
	account, liquidator := uuid.New(), uuid.New()
	openPosition(t, f, account)

	crash := baseTime.Add(time.Minute)
	f.setPrice(t, 600_00000000, 2, crash)

	// The liquidator holds no synthetic tokens to burn; the repayment and
	// collateral debit are rolled back.
	_, err := f.liquidate(account, liquidator, crash)
	if !errors.Is(err, engine.ErrBurnFailed) {
		t.Fatalf("got %v, want ErrBurnFailed", err)
	}

	view := f.eng.Account(account, crash)
	if view.Collateral.Cmp(wad(10)) != 0 || view.Debt.Cmp(wad(4990)) != 0 {
		t.Errorf("position changed: collateral=%s debt=%s", view.Collateral, view.Debt)
	}
}
