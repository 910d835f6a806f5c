package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"SynthVault/internal/engine"
)

// SnapshotManager stores periodic engine snapshots and serves the event log
// suffix needed to replay past them on restart.
type SnapshotManager struct {
	db *sql.DB
}

func NewSnapshotManager(db *sql.DB) *SnapshotManager {
	return &SnapshotManager{db: db}
}

// SaveSnapshot persists a snapshot, overwriting any prior snapshot at the
// same sequence.
func (sm *SnapshotManager) SaveSnapshot(ctx context.Context, snap *engine.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = sm.db.ExecContext(ctx, `
		INSERT INTO event_log.snapshots
			(snapshot_id, sequence, data, chain_tip, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (sequence) DO UPDATE SET data = $3, chain_tip = $4, size_bytes = $5
	`, uuid.New(), snap.Sequence, data, snap.ChainTip, len(data))

	return err
}

// LoadLatestSnapshot returns the most recent snapshot, or nil on cold start.
func (sm *SnapshotManager) LoadLatestSnapshot(ctx context.Context) (*engine.Snapshot, error) {
	row := sm.db.QueryRowContext(ctx, `
		SELECT data FROM event_log.snapshots
		ORDER BY sequence DESC
		LIMIT 1
	`)

	var data []byte
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap engine.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// LoadEventsFrom pages the event log forward from a sequence for replay.
func (sm *SnapshotManager) LoadEventsFrom(ctx context.Context, fromSequence int64, limit int) ([]EventRow, error) {
	rows, err := sm.db.QueryContext(ctx, `
		SELECT sequence, op_type, idempotency_key, payload, op_input,
		       state_hash, prev_hash, timestamp, source_sequence
		FROM event_log.events
		WHERE sequence >= $1
		ORDER BY sequence ASC
		LIMIT $2
	`, fromSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventRow
	for rows.Next() {
		var r EventRow
		if err := rows.Scan(
			&r.Sequence, &r.OpType, &r.IdempotencyKey, &r.Payload, &r.OpInput,
			&r.StateHash, &r.PrevHash, &r.Timestamp, &r.SourceSequence,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestSequence returns the highest sequence in the event log, 0 if empty.
func (sm *SnapshotManager) LatestSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := sm.db.QueryRowContext(ctx, `
		SELECT MAX(sequence) FROM event_log.events
	`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}

// RecentIdempotencyKeys returns composite "op_type:key" strings for warming
// the engine's dedup LRU after restart. Only events at or below upToSequence
// qualify: keys past the snapshot belong to events the restart will replay,
// and pre-warming them would make replay skip those events as duplicates.
func (sm *SnapshotManager) RecentIdempotencyKeys(ctx context.Context, upToSequence int64, limit int) ([]string, error) {
	rows, err := sm.db.QueryContext(ctx, `
		SELECT op_type, idempotency_key FROM event_log.events
		WHERE sequence <= $1
		ORDER BY sequence DESC
		LIMIT $2
	`, upToSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var opType, key string
		if err := rows.Scan(&opType, &key); err != nil {
			return nil, err
		}
		keys = append(keys, opType+":"+key)
	}
	return keys, rows.Err()
}
