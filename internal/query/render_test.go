package query_test

import (
	"testing"

	"SynthVault/internal/query"
)

func TestRenderWad(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"0", "0"},
		{"1000000000000000000", "1"},
		{"1250000000000000000", "1.25"},
		{"4990000000000000000000", "4990"},
		{"-500000000000000000", "-0.5"},
		{"not-a-number", "not-a-number"},
	}

	for _, tc := range cases {
		if got := query.RenderWad(tc.raw); got != tc.want {
			t.Errorf("RenderWad(%q): got %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestRenderFeedPrice(t *testing.T) {
	cases := []struct {
		price int64
		want  string
	}{
		{2_000_00000000, "2000"},
		{600_00000000, "600"},
		{1_50000000, "1.5"},
	}

	for _, tc := range cases {
		if got := query.RenderFeedPrice(tc.price); got != tc.want {
			t.Errorf("RenderFeedPrice(%d): got %q, want %q", tc.price, got, tc.want)
		}
	}
}
