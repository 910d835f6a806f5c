package ingestion

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"SynthVault/internal/event"
)

// priceUpdateJSON is the wire form of a feed sample on synth.prices.>.
// Field names use snake_case to match upstream producers. Price carries 8
// decimals.
type priceUpdateJSON struct {
	UpdateID    string `json:"update_id"`
	Price       int64  `json:"price"`
	Sequence    int64  `json:"sequence"`
	TimestampUs int64  `json:"timestamp_us"`
}

// ParsePriceUpdate validates and converts a raw feed message into the
// operation submitted to the engine.
func ParsePriceUpdate(raw RawMessage) (*event.PriceUpdate, error) {
	var j priceUpdateJSON
	if err := json.Unmarshal(raw.Data, &j); err != nil {
		return nil, fmt.Errorf("parse PriceUpdate: %w", err)
	}

	updateID, err := uuid.Parse(j.UpdateID)
	if err != nil {
		return nil, fmt.Errorf("parse update_id: %w", err)
	}
	if j.Price <= 0 {
		return nil, fmt.Errorf("parse PriceUpdate: non-positive price %d", j.Price)
	}
	if j.TimestampUs <= 0 {
		return nil, fmt.Errorf("parse PriceUpdate: missing timestamp_us")
	}

	return &event.PriceUpdate{
		UpdateID:  updateID,
		Price:     j.Price,
		Sequence:  j.Sequence,
		Timestamp: time.UnixMicro(j.TimestampUs).UTC(),
	}, nil
}
