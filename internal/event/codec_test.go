package event_test

import (
	"math/big"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"SynthVault/internal/event"
)

var ts = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestCodecRoundTrip(t *testing.T) {
	opID := uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")
	account := uuid.MustParse("bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb")
	other := uuid.MustParse("cccccccc-cccc-cccc-cccc-cccccccccccc")

	ops := []event.Operation{
		&event.Deposit{OpID: opID, Account: account, Amount: big.NewInt(100), Sequence: 7, Timestamp: ts},
		&event.Mint{OpID: opID, Account: account, Amount: big.NewInt(5000), Timestamp: ts},
		&event.DepositAndMint{OpID: opID, Account: account, DepositAmount: big.NewInt(10), MintAmount: big.NewInt(20), Timestamp: ts},
		&event.BurnAndRedeem{OpID: opID, Account: account, BurnAmount: big.NewInt(30), RedeemAmount: big.NewInt(40), Timestamp: ts},
		&event.Liquidate{OpID: opID, Liquidator: other, Account: account, Timestamp: ts},
		&event.ParamUpdate{OpID: opID, Caller: other, Name: "mint_fee_bps", Value: "25", Timestamp: ts},
		&event.PriceUpdate{UpdateID: opID, Price: 2_000_00000000, Sequence: 42, Timestamp: ts},
	}

	for _, op := range ops {
		raw, err := event.EncodeOperation(op)
		if err != nil {
			t.Fatalf("encode %T: %v", op, err)
		}
		back, err := event.DecodeOperation(op.OpType(), raw)
		if err != nil {
			t.Fatalf("decode %T: %v", op, err)
		}
		if !reflect.DeepEqual(op, back) {
			t.Errorf("%T round trip:\n got  %+v\n want %+v", op, back, op)
		}
	}
}

func TestDecodeBadInput(t *testing.T) {
	cases := []struct {
		name string
		ot   event.OpType
		raw  string
	}{
		{"not json", event.OpTypeDeposit, "{"},
		{"bad op id", event.OpTypeDeposit, `{"op_id":"nope"}`},
		{"missing account", event.OpTypeDeposit, `{"op_id":"aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"}`},
		{"missing amount", event.OpTypeMint, `{"op_id":"aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa","account":"bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb"}`},
		{"bad liquidator", event.OpTypeLiquidation, `{"op_id":"aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa","account":"bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb","liquidator":"x"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := event.DecodeOperation(tc.ot, []byte(tc.raw)); err == nil {
				t.Error("expected decode error")
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	v, err := event.ParseAmount("123456789012345678901234567890")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if v.String() != "123456789012345678901234567890" {
		t.Errorf("got %s", v)
	}

	for _, bad := range []string{"", "-1", "1.5", "abc", "0x10"} {
		if _, err := event.ParseAmount(bad); err == nil {
			t.Errorf("ParseAmount(%q): expected error", bad)
		}
	}
}
