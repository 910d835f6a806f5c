package engine

import (
	"math/big"
	"testing"

	"github.com/rs/zerolog"

	"SynthVault/internal/fixedpoint"
	"SynthVault/internal/params"
)

// Within the governance bounds the target health factor never drops below
// 1.0, which makes the sizing numerator negative for every liquidatable
// position: the covered amount is always the full debt.
func TestDebtToCoverFullDebtWithinBounds(t *testing.T) {
	cases := []struct {
		name      string
		threshold uint64
		bonus     uint64
		targetHF  string
	}{
		{"defaults", 50, 10, "1250000000000000000"},
		{"threshold floor", 20, 5, "1100000000000000000"},
		{"threshold ceiling", 80, 20, "1100000000000000000"},
		{"target ceiling", 80, 5, "1500000000000000000"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := New(Config{Logger: zerolog.Nop()})
			t.Cleanup(e.Close)
			if err := e.risk.Restore(params.Snapshot{
				LiquidationThresholdPct: tc.threshold,
				LiquidationBonusPct:     tc.bonus,
				TargetHealthFactor:      tc.targetHF,
				MintFeeBps:              20,
			}); err != nil {
				t.Fatalf("restore params: %v", err)
			}

			debt := new(big.Int).Mul(big.NewInt(4990), fixedpoint.Wad)
			// Largest collateral value still below the liquidation
			// boundary collValue*threshold% < debt.
			collValue := new(big.Int).Mul(debt, big.NewInt(100))
			collValue.Div(collValue, big.NewInt(int64(tc.threshold)))
			collValue.Sub(collValue, big.NewInt(1))

			got := e.debtToCover(collValue, debt, e.risk.TargetHealthFactor(), tc.bonus)
			if got.Cmp(debt) != 0 {
				t.Errorf("debt to cover: got %s, want full debt %s", got, debt)
			}
		})
	}
}
