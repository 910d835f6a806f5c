package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"SynthVault/internal/event"
	"SynthVault/internal/ledger"
	"SynthVault/internal/observability"
	"SynthVault/internal/oracle"
	"SynthVault/internal/params"
	"SynthVault/internal/token"
)

// Output is an applied operation leaving the engine, destined for the
// persistence worker and the outbound publisher.
type Output struct {
	Envelope *event.Envelope
	Op       event.Operation
}

// Receipt is returned to the submitter of an applied operation.
type Receipt struct {
	Sequence     int64
	StateHash    [32]byte
	Duplicate    bool
	HealthFactor *big.Int
	Payload      any
}

// Config wires an Engine.
type Config struct {
	// Governance is the only identity allowed to update risk parameters.
	Governance uuid.UUID

	// Vault is the engine's own custody account on the collateral ledger.
	Vault uuid.UUID

	Collateral token.Ledger
	Synth      token.Ledger

	// DBChecker is the cold-path idempotency lookup (nil in local mode).
	DBChecker           DBIdempotencyChecker
	IdempotencyCapacity int

	// PersistBuffer is the depth of the blocking persist channel.
	PersistBuffer int
	// PublishBuffer is the depth of the drop-on-full publish channel.
	PublishBuffer int

	Logger  zerolog.Logger
	Metrics *observability.Metrics
}

// Engine is the synthetic-asset position engine. Operations arrive through
// Process in a global total order imposed by the single dispatcher loop;
// each is applied atomically, appended to the hash-chained event log, and
// fanned out to persistence and publication.
type Engine struct {
	log     zerolog.Logger
	metrics *observability.Metrics

	book   *ledger.PositionBook
	fund   *ledger.InsuranceFund
	risk   *params.Params
	prices *oracle.Adapter

	collateral token.Ledger
	synth      token.Ledger
	vault      uuid.UUID
	governance uuid.UUID

	sequence int64
	hasher   *stateHasher
	dedup    *idempotencyChecker

	persistChan chan *Output
	publishChan chan *Output

	// mu serializes Process against the read-only query surface.
	mu sync.RWMutex

	// inOperation rejects re-entry from external token callbacks. Checked
	// before mu so a nested call fails fast instead of deadlocking.
	inOperation atomic.Bool

	replaying bool
}

func New(cfg Config) *Engine {
	if cfg.IdempotencyCapacity <= 0 {
		cfg.IdempotencyCapacity = 10_000
	}
	if cfg.PersistBuffer <= 0 {
		cfg.PersistBuffer = 1024
	}
	if cfg.PublishBuffer <= 0 {
		cfg.PublishBuffer = 4096
	}
	return &Engine{
		log:         cfg.Logger,
		metrics:     cfg.Metrics,
		book:        ledger.NewPositionBook(),
		fund:        ledger.NewInsuranceFund(),
		risk:        params.Default(),
		prices:      oracle.NewAdapter(),
		collateral:  cfg.Collateral,
		synth:       cfg.Synth,
		vault:       cfg.Vault,
		governance:  cfg.Governance,
		hasher:      newStateHasher(),
		dedup:       newIdempotencyChecker(cfg.IdempotencyCapacity, cfg.DBChecker),
		persistChan: make(chan *Output, cfg.PersistBuffer),
		publishChan: make(chan *Output, cfg.PublishBuffer),
	}
}

// PersistOutputs is drained by the persistence worker. Sends block: a full
// persistence pipeline applies backpressure to the operation loop.
func (e *Engine) PersistOutputs() <-chan *Output {
	return e.persistChan
}

// PublishOutputs is drained by the outbound publisher. Sends drop when full.
func (e *Engine) PublishOutputs() <-chan *Output {
	return e.publishChan
}

// Close closes the output channels once no further operations will be
// submitted.
func (e *Engine) Close() {
	close(e.persistChan)
	close(e.publishChan)
}

// Process applies one operation atomically. On any failure the engine state
// is exactly as it was before the call and nothing is appended to the log.
func (e *Engine) Process(op event.Operation) (*Receipt, error) {
	if op == nil || op.OpType() == event.OpTypeUnknown {
		return nil, ErrUnknownOperation
	}
	if e.inOperation.Load() {
		return nil, ErrReentrancyDetected
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.inOperation.Store(true)
	defer e.inOperation.Store(false)

	// During replay the event log is the authority: every row was applied
	// exactly once, so dedup (whose warm cache and DB lookup both see the
	// rows being replayed) must not veto re-application.
	opType := op.OpType().String()
	if !e.replaying && e.dedup.isDuplicate(opType, op.IdempotencyKey()) {
		if e.metrics != nil {
			e.metrics.RecordDuplicate(opType)
		}
		return &Receipt{Duplicate: true}, nil
	}

	started := time.Now()
	payload, touched, hf, err := e.dispatch(op)
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordOpRejected(opType, rejectReason(err))
		}
		return nil, err
	}

	e.sequence++
	raw, merr := json.Marshal(payload)
	if merr != nil {
		// Payloads are plain structs; this cannot happen at runtime.
		e.log.Error().Err(merr).Str("op_type", opType).Msg("payload marshal failed")
		raw = []byte("{}")
	}

	prevHash := e.hasher.tip()
	stateHash := e.hasher.computeHash(e.sequence, e.computeStateDigest(touched))

	env := &event.Envelope{
		Sequence:       e.sequence,
		IdempotencyKey: op.IdempotencyKey(),
		OpType:         op.OpType(),
		Timestamp:      op.OccurredAt(),
		SourceSequence: op.SourceSequence(),
		Payload:        raw,
		StateHash:      stateHash,
		PrevHash:       prevHash,
	}

	e.dedup.markProcessed(opType, op.IdempotencyKey())
	e.emit(&Output{Envelope: env, Op: op})

	if e.metrics != nil {
		e.metrics.RecordOpApplied(opType, time.Since(started).Seconds())
		e.metrics.SetEngineSequence(e.sequence)
		bal, _ := new(big.Float).SetInt(e.fund.Balance()).Float64()
		e.metrics.SetInsuranceFundBalance(bal / 1e18)
	}

	return &Receipt{
		Sequence:     e.sequence,
		StateHash:    stateHash,
		HealthFactor: hf,
		Payload:      payload,
	}, nil
}

func (e *Engine) dispatch(op event.Operation) (any, []uuid.UUID, *big.Int, error) {
	switch o := op.(type) {
	case *event.Deposit:
		return e.applyDeposit(o)
	case *event.Mint:
		return e.applyMint(o)
	case *event.Burn:
		return e.applyBurn(o)
	case *event.Redeem:
		return e.applyRedeem(o)
	case *event.DepositAndMint:
		return e.applyDepositAndMint(o)
	case *event.BurnAndRedeem:
		return e.applyBurnAndRedeem(o)
	case *event.Liquidate:
		return e.applyLiquidate(o)
	case *event.ParamUpdate:
		return e.applyParamUpdate(o)
	case *event.PriceUpdate:
		return e.applyPriceUpdate(o)
	default:
		return nil, nil, nil, fmt.Errorf("%w: %T", ErrUnknownOperation, op)
	}
}

// emit hands an applied operation to the output channels. The persist send
// blocks (backpressure); the publish send drops when the consumer lags.
func (e *Engine) emit(out *Output) {
	if e.replaying {
		return
	}
	e.persistChan <- out

	select {
	case e.publishChan <- out:
	default:
		if e.metrics != nil {
			e.metrics.RecordPublishDropped(out.Envelope.OpType.String())
		}
		e.log.Warn().
			Int64("sequence", out.Envelope.Sequence).
			Msg("publish channel full, dropping outbound event")
	}
}

// StartReplay suppresses output emission while the log is re-applied.
func (e *Engine) StartReplay() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.replaying = true
}

// FinishReplay re-enables output emission.
func (e *Engine) FinishReplay() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.replaying = false
}

// WarmIdempotency preloads composite dedup keys recovered on restart.
func (e *Engine) WarmIdempotency(keys []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dedup.warm(keys)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrNeedsMoreThanZero):
		return "needs_more_than_zero"
	case errors.Is(err, oracle.ErrStalePrice):
		return "stale_price"
	case errors.Is(err, oracle.ErrNoPrice):
		return "no_price"
	case errors.Is(err, ErrTransferFailed):
		return "transfer_failed"
	case errors.Is(err, ErrMintFailed):
		return "mint_failed"
	case errors.Is(err, ErrBurnFailed):
		return "burn_failed"
	case errors.Is(err, ErrHealthFactorOk):
		return "health_factor_ok"
	case errors.Is(err, ErrHealthFactorStillBroken):
		return "health_factor_still_broken"
	case errors.Is(err, ledger.ErrInsufficientCollateral):
		return "insufficient_collateral"
	case errors.Is(err, ledger.ErrInsufficientDebt):
		return "insufficient_debt"
	case errors.Is(err, ledger.ErrInsufficientInsuranceFunds):
		return "insufficient_insurance_funds"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, params.ErrInvalidParameter):
		return "invalid_parameter"
	case errors.Is(err, params.ErrChangeExceedsMaximum):
		return "change_exceeds_maximum"
	case errors.Is(err, params.ErrCooldownNotElapsed):
		return "cooldown_not_elapsed"
	case errors.Is(err, ErrPriceUpdateIgnored):
		return "price_update_ignored"
	default:
		var hfErr *BreaksHealthFactorError
		if errors.As(err, &hfErr) {
			return "breaks_health_factor"
		}
		return "internal"
	}
}
