package query

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Service provides read access to the projection tables and the event log.
// Responses carry as_of_sequence so callers can reason about staleness
// relative to the live engine sequence.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// AccountBalance returns an account's projected collateral and debt. Accounts
// the projection has never seen come back zeroed rather than as an error.
func (s *Service) AccountBalance(ctx context.Context, accountID uuid.UUID) (*AccountBalanceResponse, error) {
	asOfSeq, err := s.watermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	resp := &AccountBalanceResponse{
		AccountID:    accountID,
		Collateral:   "0",
		Debt:         "0",
		AsOfSequence: asOfSeq,
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT collateral::text, debt::text
		FROM projections.accounts
		WHERE account_id = $1
	`, accountID).Scan(&resp.Collateral, &resp.Debt)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	resp.CollateralDisplay = RenderWad(resp.Collateral)
	resp.DebtDisplay = RenderWad(resp.Debt)
	return resp, nil
}

// History returns applied operations from the event log, newest first, with
// cursor pagination. A nil accountID returns all operations; otherwise only
// those whose payload references the account.
func (s *Service) History(ctx context.Context, accountID *uuid.UUID, limit int, beforeSequence *int64) ([]HistoryEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var buf bytes.Buffer
	buf.WriteString(`
		SELECT sequence, op_type, idempotency_key, payload, timestamp
		FROM event_log.events
		WHERE 1=1
	`)
	args := []interface{}{}
	argIdx := 1

	if accountID != nil {
		fmt.Fprintf(&buf, " AND payload->>'account' = $%d", argIdx)
		args = append(args, accountID.String())
		argIdx++
	}
	if beforeSequence != nil {
		fmt.Fprintf(&buf, " AND sequence < $%d", argIdx)
		args = append(args, *beforeSequence)
		argIdx++
	}

	fmt.Fprintf(&buf, " ORDER BY sequence DESC LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, buf.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.Sequence, &e.OpType, &e.IdempotencyKey, &e.Payload, &e.Timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// VerifyIntegrity checks hash-chain continuity across the event log: each
// event's prev_hash must equal the previous event's state_hash.
func (s *Service) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM event_log.events
	`).Scan(&report.EventsChecked); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT e1.sequence
		FROM event_log.events e1
		JOIN event_log.events e2 ON e2.sequence = e1.sequence - 1
		WHERE e1.prev_hash != e2.state_hash
		ORDER BY e1.sequence
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	report.IsHealthy = len(report.HashChainBreaks) == 0
	return report, nil
}

func (s *Service) watermark(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT sequence FROM projections.watermark WHERE projection = 'accounts'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}
