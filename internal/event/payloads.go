package event

import "time"

// Applied-operation payloads, JSON-encoded into Envelope.Payload. Fixed
// point values are rendered as decimal strings to survive 256-bit widths.

type DepositApplied struct {
	Account      string `json:"account"`
	Amount       string `json:"amount"`
	HealthFactor string `json:"health_factor"`
}

type MintApplied struct {
	Account      string `json:"account"`
	Requested    string `json:"requested"`
	Fee          string `json:"fee"`
	Net          string `json:"net"`
	HealthFactor string `json:"health_factor"`
}

type BurnApplied struct {
	Account      string `json:"account"`
	Amount       string `json:"amount"`
	HealthFactor string `json:"health_factor"`
}

type RedeemApplied struct {
	Account      string `json:"account"`
	Amount       string `json:"amount"`
	HealthFactor string `json:"health_factor"`
}

type DepositAndMintApplied struct {
	Account      string `json:"account"`
	Deposited    string `json:"deposited"`
	Requested    string `json:"requested"`
	Fee          string `json:"fee"`
	Net          string `json:"net"`
	HealthFactor string `json:"health_factor"`
}

type BurnAndRedeemApplied struct {
	Account      string `json:"account"`
	Burned       string `json:"burned"`
	Redeemed     string `json:"redeemed"`
	HealthFactor string `json:"health_factor"`
}

// Liquidation outcomes
const (
	LiquidationOutcomePartial = "partial"
	LiquidationOutcomeFull    = "full"
	LiquidationOutcomeBadDebt = "bad_debt"
)

type LiquidationApplied struct {
	Account          string `json:"account"`
	Liquidator       string `json:"liquidator"`
	DebtCovered      string `json:"debt_covered"`
	CollateralSeized string `json:"collateral_seized"`
	Shortfall        string `json:"shortfall"`
	Outcome          string `json:"outcome"`
	HealthFactor     string `json:"health_factor"`
}

type ParamUpdateApplied struct {
	Name   string `json:"name"`
	Before string `json:"before"`
	After  string `json:"after"`
}

type PriceUpdateApplied struct {
	Price          int64     `json:"price"`
	SourceSequence int64     `json:"source_sequence"`
	ObservedAt     time.Time `json:"observed_at"`
}
