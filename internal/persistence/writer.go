package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"SynthVault/internal/engine"
	"SynthVault/internal/event"
)

// EventLogWriter appends operation envelopes to event_log.events using
// multi-row INSERT. ON CONFLICT DO NOTHING keeps re-delivered batches
// idempotent against the sequence primary key.
type EventLogWriter struct {
	db *sql.DB
}

// EventRow is one row of event_log.events.
type EventRow struct {
	Sequence       int64
	OpType         string
	IdempotencyKey string
	Payload        []byte
	OpInput        []byte
	StateHash      []byte
	PrevHash       []byte
	Timestamp      time.Time
	SourceSequence int64
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// BuildEventRow flattens an engine output into its log row, serializing the
// operation input alongside the result payload so the log alone suffices
// for replay.
func BuildEventRow(out *engine.Output) (EventRow, error) {
	opInput, err := event.EncodeOperation(out.Op)
	if err != nil {
		return EventRow{}, fmt.Errorf("encode op input: %w", err)
	}
	env := out.Envelope
	return EventRow{
		Sequence:       env.Sequence,
		OpType:         env.OpType.String(),
		IdempotencyKey: env.IdempotencyKey,
		Payload:        env.Payload,
		OpInput:        opInput,
		StateHash:      env.StateHash[:],
		PrevHash:       env.PrevHash[:],
		Timestamp:      env.Timestamp,
		SourceSequence: env.SourceSequence,
	}, nil
}

// WriteEventBatch writes a batch of rows inside the given transaction.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, tx *sql.Tx, rows []EventRow) error {
	if len(rows) == 0 {
		return nil
	}

	query := `INSERT INTO event_log.events
		(sequence, op_type, idempotency_key, payload, op_input, state_hash, prev_hash, timestamp, source_sequence)
		VALUES `

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*9)

	for i, r := range rows {
		base := i * 9
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9,
		))
		args = append(args,
			r.Sequence, r.OpType, r.IdempotencyKey, r.Payload, r.OpInput,
			r.StateHash, r.PrevHash, r.Timestamp, r.SourceSequence,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}
