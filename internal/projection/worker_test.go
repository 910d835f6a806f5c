package projection

import (
	"encoding/json"
	"testing"

	"SynthVault/internal/event"
)

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func TestDeltasFor(t *testing.T) {
	const acct = "bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb"

	cases := []struct {
		name    string
		ot      event.OpType
		payload any
		want    []delta
	}{
		{
			name:    "deposit adds collateral",
			ot:      event.OpTypeDeposit,
			payload: event.DepositApplied{Account: acct, Amount: "100"},
			want:    []delta{{account: acct, collateral: "100", debt: "0"}},
		},
		{
			name:    "mint adds net debt only",
			ot:      event.OpTypeMint,
			payload: event.MintApplied{Account: acct, Requested: "5000", Fee: "10", Net: "4990"},
			want:    []delta{{account: acct, collateral: "0", debt: "4990"}},
		},
		{
			name:    "burn reduces debt",
			ot:      event.OpTypeBurn,
			payload: event.BurnApplied{Account: acct, Amount: "200"},
			want:    []delta{{account: acct, collateral: "0", debt: "-200"}},
		},
		{
			name:    "redeem reduces collateral",
			ot:      event.OpTypeRedeem,
			payload: event.RedeemApplied{Account: acct, Amount: "3"},
			want:    []delta{{account: acct, collateral: "-3", debt: "0"}},
		},
		{
			name:    "deposit and mint touches both",
			ot:      event.OpTypeDepositAndMint,
			payload: event.DepositAndMintApplied{Account: acct, Deposited: "10", Net: "4990"},
			want:    []delta{{account: acct, collateral: "10", debt: "4990"}},
		},
		{
			name:    "burn and redeem touches both",
			ot:      event.OpTypeBurnAndRedeem,
			payload: event.BurnAndRedeemApplied{Account: acct, Burned: "4990", Redeemed: "10"},
			want:    []delta{{account: acct, collateral: "-10", debt: "-4990"}},
		},
		{
			name: "liquidation only touches the liquidated account",
			ot:   event.OpTypeLiquidation,
			payload: event.LiquidationApplied{
				Account: acct, Liquidator: "cccccccc-cccc-cccc-cccc-cccccccccccc",
				DebtCovered: "4990", CollateralSeized: "9",
			},
			want: []delta{{account: acct, collateral: "-9", debt: "-4990"}},
		},
		{
			name:    "param update is balance neutral",
			ot:      event.OpTypeParamUpdate,
			payload: event.ParamUpdateApplied{Name: "mint_fee_bps", Before: "20", After: "25"},
			want:    nil,
		},
		{
			name:    "price update is balance neutral",
			ot:      event.OpTypePriceUpdate,
			payload: event.PriceUpdateApplied{Price: 2_000_00000000},
			want:    nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := deltasFor(Output{OpType: tc.ot, Payload: mustJSON(t, tc.payload)})
			if err != nil {
				t.Fatalf("deltasFor: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %d deltas, want %d", len(got), len(tc.want))
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("delta %d: got %+v, want %+v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestDeltasForBadPayload(t *testing.T) {
	_, err := deltasFor(Output{OpType: event.OpTypeDeposit, Payload: []byte("{")})
	if err == nil {
		t.Error("expected error for malformed payload")
	}
}
