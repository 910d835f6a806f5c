package projection

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"SynthVault/internal/event"
)

// Output is the slice of an applied operation the projection needs. The
// orchestrator bridges engine outputs onto this to keep the package free of
// an engine dependency.
type Output struct {
	Sequence  int64
	OpType    event.OpType
	Payload   []byte
	Timestamp time.Time
}

// Worker maintains the projections.accounts read model from applied
// operations. Its input channel is fed non-blocking: if it falls behind,
// updates are dropped and the projection is rebuilt from the event log.
type Worker struct {
	db    *sql.DB
	input <-chan Output
	log   zerolog.Logger
}

func NewWorker(db *sql.DB, input <-chan Output, log zerolog.Logger) *Worker {
	return &Worker{db: db, input: input, log: log}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case out, ok := <-w.input:
			if !ok {
				return nil
			}
			if err := w.apply(ctx, out); err != nil {
				// Projections are eventually consistent; failures are
				// repaired by a rebuild, not by stalling the pipeline.
				w.log.Warn().
					Err(err).
					Int64("sequence", out.Sequence).
					Msg("projection update failed")
			}
		}
	}
}

// delta is the signed change to one account's projected balances.
type delta struct {
	account    string
	collateral string
	debt       string
}

func (w *Worker) apply(ctx context.Context, out Output) error {
	deltas, err := deltasFor(out)
	if err != nil {
		return err
	}
	if len(deltas) == 0 {
		return w.advanceWatermark(ctx, nil, out.Sequence)
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, d := range deltas {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projections.accounts (account_id, collateral, debt, updated_seq, updated_at)
			VALUES ($1, $2::numeric, $3::numeric, $4, NOW())
			ON CONFLICT (account_id) DO UPDATE SET
				collateral  = projections.accounts.collateral + $2::numeric,
				debt        = projections.accounts.debt + $3::numeric,
				updated_seq = $4,
				updated_at  = NOW()
		`, d.account, d.collateral, d.debt, out.Sequence); err != nil {
			return fmt.Errorf("account projection: %w", err)
		}
	}

	if err := w.advanceWatermark(ctx, tx, out.Sequence); err != nil {
		return err
	}
	return tx.Commit()
}

func (w *Worker) advanceWatermark(ctx context.Context, tx *sql.Tx, seq int64) error {
	query := `
		INSERT INTO projections.watermark (projection, sequence)
		VALUES ('accounts', $1)
		ON CONFLICT (projection) DO UPDATE SET sequence = $1
	`
	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, seq)
	} else {
		_, err = w.db.ExecContext(ctx, query, seq)
	}
	if err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}
	return nil
}

// deltasFor translates an applied-operation payload into signed balance
// changes. Liquidations move the seized collateral out of the protocol, so
// only the liquidated account's position changes.
func deltasFor(out Output) ([]delta, error) {
	switch out.OpType {
	case event.OpTypeDeposit:
		var p event.DepositApplied
		if err := json.Unmarshal(out.Payload, &p); err != nil {
			return nil, err
		}
		return []delta{{account: p.Account, collateral: p.Amount, debt: "0"}}, nil

	case event.OpTypeMint:
		var p event.MintApplied
		if err := json.Unmarshal(out.Payload, &p); err != nil {
			return nil, err
		}
		return []delta{{account: p.Account, collateral: "0", debt: p.Net}}, nil

	case event.OpTypeBurn:
		var p event.BurnApplied
		if err := json.Unmarshal(out.Payload, &p); err != nil {
			return nil, err
		}
		return []delta{{account: p.Account, collateral: "0", debt: "-" + p.Amount}}, nil

	case event.OpTypeRedeem:
		var p event.RedeemApplied
		if err := json.Unmarshal(out.Payload, &p); err != nil {
			return nil, err
		}
		return []delta{{account: p.Account, collateral: "-" + p.Amount, debt: "0"}}, nil

	case event.OpTypeDepositAndMint:
		var p event.DepositAndMintApplied
		if err := json.Unmarshal(out.Payload, &p); err != nil {
			return nil, err
		}
		return []delta{{account: p.Account, collateral: p.Deposited, debt: p.Net}}, nil

	case event.OpTypeBurnAndRedeem:
		var p event.BurnAndRedeemApplied
		if err := json.Unmarshal(out.Payload, &p); err != nil {
			return nil, err
		}
		return []delta{{account: p.Account, collateral: "-" + p.Redeemed, debt: "-" + p.Burned}}, nil

	case event.OpTypeLiquidation:
		var p event.LiquidationApplied
		if err := json.Unmarshal(out.Payload, &p); err != nil {
			return nil, err
		}
		return []delta{{account: p.Account, collateral: "-" + p.CollateralSeized, debt: "-" + p.DebtCovered}}, nil

	default:
		// Param and price updates do not touch account balances.
		return nil, nil
	}
}

// Rebuild truncates the accounts projection and replays the whole event log
// into it.
func Rebuild(ctx context.Context, db *sql.DB, log zerolog.Logger) error {
	stmts := []string{
		`TRUNCATE projections.accounts`,
		`DELETE FROM projections.watermark WHERE projection = 'accounts'`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}

	rows, err := db.QueryContext(ctx, `
		SELECT sequence, op_type, payload, timestamp
		FROM event_log.events
		ORDER BY sequence ASC
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	w := &Worker{db: db, log: log}
	for rows.Next() {
		var (
			out    Output
			opType string
		)
		if err := rows.Scan(&out.Sequence, &opType, &out.Payload, &out.Timestamp); err != nil {
			return err
		}
		out.OpType = event.OpTypeFromString(opType)
		if err := w.apply(ctx, out); err != nil {
			return fmt.Errorf("rebuild at seq=%d: %w", out.Sequence, err)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	log.Info().Msg("projection rebuild complete")
	return nil
}
