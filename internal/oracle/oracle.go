package oracle

import (
	"errors"
	"time"
)

// StalenessWindow is the maximum age of the last feed update before reads
// fail. A price exactly at the boundary is still fresh.
const StalenessWindow = 3 * time.Hour

var (
	ErrStalePrice = errors.New("oracle: price feed is stale")
	ErrNoPrice    = errors.New("oracle: no price observed yet")
)

// PriceState is the last observed feed sample. Price carries 8 decimals.
type PriceState struct {
	Price          int64
	SourceSequence int64
	UpdatedAt      time.Time
}

// Adapter wraps the external price feed with a staleness check. Feed samples
// arrive as versioned inputs through the engine loop; reads never touch the
// wall clock and instead compare against the timestamp of the operation
// being applied.
//
// Not thread-safe: only accessed from the single-threaded engine loop.
type Adapter struct {
	state    PriceState
	observed bool
}

func NewAdapter() *Adapter {
	return &Adapter{}
}

// ApplyUpdate records a feed sample. Samples with a source sequence at or
// below the last applied one are ignored (gap-tolerant, duplicates dropped).
// Returns whether the sample was applied.
func (a *Adapter) ApplyUpdate(price int64, sourceSeq int64, updatedAt time.Time) bool {
	if price <= 0 {
		return false
	}
	if a.observed && sourceSeq <= a.state.SourceSequence {
		return false
	}
	a.state = PriceState{Price: price, SourceSequence: sourceSeq, UpdatedAt: updatedAt}
	a.observed = true
	return true
}

// FreshPrice returns the 8-decimal price if the feed is fresh as of now.
func (a *Adapter) FreshPrice(now time.Time) (int64, error) {
	if !a.observed {
		return 0, ErrNoPrice
	}
	if now.Sub(a.state.UpdatedAt) > StalenessWindow {
		return 0, ErrStalePrice
	}
	return a.state.Price, nil
}

// Last returns the raw feed state without a freshness check, for queries and
// snapshots.
func (a *Adapter) Last() (PriceState, bool) {
	return a.state, a.observed
}

// Restore resets the adapter to a previously captured state.
func (a *Adapter) Restore(state PriceState, observed bool) {
	a.state = state
	a.observed = observed
}
