package query

import (
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	wadDecimals  = 18
	feedDecimals = 8
)

// RenderWad converts an 18-decimal integer string into a human-scale decimal
// string. Unparseable input comes back unchanged rather than failing the
// whole response.
func RenderWad(raw string) string {
	n, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return raw
	}
	return decimal.NewFromBigInt(n, -wadDecimals).String()
}

// RenderFeedPrice converts an 8-decimal feed price into a decimal string.
func RenderFeedPrice(price int64) string {
	return decimal.New(price, -feedDecimals).String()
}
