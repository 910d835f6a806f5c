package ledger_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/google/uuid"

	"SynthVault/internal/ledger"
)

func TestPositionBook_GetUnknownAccount(t *testing.T) {
	b := ledger.NewPositionBook()
	p := b.Get(uuid.New())
	if p.Collateral.Sign() != 0 || p.Debt.Sign() != 0 {
		t.Errorf("unknown account not zero: collateral=%s debt=%s", p.Collateral, p.Debt)
	}
	if !p.IsEmpty() {
		t.Error("expected empty position")
	}
}

func TestPositionBook_CreditDebit(t *testing.T) {
	b := ledger.NewPositionBook()
	acct := uuid.New()

	b.CreditCollateral(acct, big.NewInt(100))
	b.CreditCollateral(acct, big.NewInt(50))
	if got := b.Get(acct).Collateral; got.Int64() != 150 {
		t.Errorf("collateral: got %s, want 150", got)
	}

	if err := b.DebitCollateral(acct, big.NewInt(150)); err != nil {
		t.Fatalf("full debit: %v", err)
	}
	if got := b.Get(acct).Collateral; got.Sign() != 0 {
		t.Errorf("collateral after debit: got %s, want 0", got)
	}

	err := b.DebitCollateral(acct, big.NewInt(1))
	if !errors.Is(err, ledger.ErrInsufficientCollateral) {
		t.Errorf("overdraw: got %v, want ErrInsufficientCollateral", err)
	}
}

func TestPositionBook_Debt(t *testing.T) {
	b := ledger.NewPositionBook()
	acct := uuid.New()

	b.RecordDebt(acct, big.NewInt(500))
	if err := b.RecordRepayment(acct, big.NewInt(200)); err != nil {
		t.Fatalf("repayment: %v", err)
	}
	if got := b.Get(acct).Debt; got.Int64() != 300 {
		t.Errorf("debt: got %s, want 300", got)
	}

	err := b.RecordRepayment(acct, big.NewInt(301))
	if !errors.Is(err, ledger.ErrInsufficientDebt) {
		t.Errorf("over-repay: got %v, want ErrInsufficientDebt", err)
	}
	// Failed repayment leaves the debt untouched.
	if got := b.Get(acct).Debt; got.Int64() != 300 {
		t.Errorf("debt after failed repay: got %s, want 300", got)
	}
}

func TestPositionBook_GetReturnsCopy(t *testing.T) {
	b := ledger.NewPositionBook()
	acct := uuid.New()
	b.CreditCollateral(acct, big.NewInt(100))

	p := b.Get(acct)
	p.Collateral.SetInt64(0)

	if got := b.Get(acct).Collateral; got.Int64() != 100 {
		t.Error("Get exposed internal state")
	}
}

func TestPositionBook_Restore(t *testing.T) {
	b := ledger.NewPositionBook()
	acct := uuid.New()
	b.CreditCollateral(acct, big.NewInt(100))
	b.RecordDebt(acct, big.NewInt(40))

	before := b.Get(acct)
	b.CreditCollateral(acct, big.NewInt(999))
	b.Restore(acct, before)

	after := b.Get(acct)
	if after.Collateral.Int64() != 100 || after.Debt.Int64() != 40 {
		t.Errorf("restore: got collateral=%s debt=%s", after.Collateral, after.Debt)
	}
}

func TestPositionBook_AccountsSorted(t *testing.T) {
	b := ledger.NewPositionBook()
	for i := 0; i < 10; i++ {
		b.CreditCollateral(uuid.New(), big.NewInt(1))
	}

	accounts := b.Accounts()
	if len(accounts) != 10 || b.Len() != 10 {
		t.Fatalf("got %d accounts, want 10", len(accounts))
	}
	for i := 1; i < len(accounts); i++ {
		prev, cur := accounts[i-1], accounts[i]
		for k := 0; k < len(cur); k++ {
			if prev[k] != cur[k] {
				if prev[k] > cur[k] {
					t.Fatal("accounts not sorted")
				}
				break
			}
		}
	}
}

func TestInsuranceFund(t *testing.T) {
	f := ledger.NewInsuranceFund()

	f.Credit(big.NewInt(100))
	f.Credit(big.NewInt(50))
	if got := f.Balance(); got.Int64() != 150 {
		t.Errorf("balance: got %s, want 150", got)
	}
	if got := f.TotalCredited(); got.Int64() != 150 {
		t.Errorf("total credited: got %s, want 150", got)
	}

	if !f.CanCover(big.NewInt(150)) {
		t.Error("CanCover(150) = false, want true")
	}
	if f.CanCover(big.NewInt(151)) {
		t.Error("CanCover(151) = true, want false")
	}

	if err := f.Debit(big.NewInt(60)); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if got := f.Balance(); got.Int64() != 90 {
		t.Errorf("balance after debit: got %s, want 90", got)
	}
	if got := f.TotalDebited(); got.Int64() != 60 {
		t.Errorf("total debited: got %s, want 60", got)
	}

	err := f.Debit(big.NewInt(91))
	if !errors.Is(err, ledger.ErrInsufficientInsuranceFunds) {
		t.Errorf("overdraw: got %v, want ErrInsufficientInsuranceFunds", err)
	}
	// Hard failure: no partial draw.
	if got := f.Balance(); got.Int64() != 90 {
		t.Errorf("balance after failed debit: got %s, want 90", got)
	}
}

func TestInsuranceFund_StateRestore(t *testing.T) {
	f := ledger.NewInsuranceFund()
	f.Credit(big.NewInt(100))

	state := f.State()
	f.Debit(big.NewInt(40))
	f.Restore(state)

	if got := f.Balance(); got.Int64() != 100 {
		t.Errorf("restored balance: got %s, want 100", got)
	}
	if got := f.TotalDebited(); got.Int64() != 0 {
		t.Errorf("restored total debited: got %s, want 0", got)
	}
}
