package signals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/confluence/backend/internal/contracts"
	"github.com/wonny/confluence/backend/pkg/database"
)

const uniqueViolation = "23505"

// Migrations returns the schema owned by this package
func Migrations() []database.Migration {
	return []database.Migration{
		{
			Name: "001_trading_signals",
			Statements: []string{
				`CREATE SCHEMA IF NOT EXISTS trading`,
				`CREATE TABLE IF NOT EXISTS trading.signals (
					id               UUID PRIMARY KEY,
					symbol           VARCHAR(16) NOT NULL,
					direction        VARCHAR(8) NOT NULL CHECK (direction IN ('long', 'short')),
					entry            DOUBLE PRECISION NOT NULL,
					stop_loss        DOUBLE PRECISION NOT NULL,
					take_profit_1    DOUBLE PRECISION NOT NULL,
					take_profit_2    DOUBLE PRECISION NOT NULL,
					take_profit_3    DOUBLE PRECISION NOT NULL,
					exit_split       JSONB NOT NULL,
					confluence_score INT NOT NULL CHECK (confluence_score BETWEEN 0 AND 100),
					quality          VARCHAR(16) NOT NULL,
					status           VARCHAR(16) NOT NULL,
					reasoning        JSONB NOT NULL DEFAULT '[]',
					created_at       TIMESTAMPTZ NOT NULL,
					expires_at       TIMESTAMPTZ NOT NULL,
					closed_at        TIMESTAMPTZ,
					result_pips      DOUBLE PRECISION,
					realized_pips    DOUBLE PRECISION NOT NULL DEFAULT 0,
					active_stop      DOUBLE PRECISION NOT NULL,
					last_price       DOUBLE PRECISION NOT NULL DEFAULT 0,
					last_tick_at     TIMESTAMPTZ,
					version          BIGINT NOT NULL DEFAULT 1,
					config_hash      VARCHAR(64) NOT NULL DEFAULT '',
					confluence       JSONB
				)`,
				// 심볼당 열린 시그널은 하나
				`CREATE UNIQUE INDEX IF NOT EXISTS signals_one_open_per_symbol
					ON trading.signals (symbol)
					WHERE status IN ('active', 'tp1_hit', 'tp2_hit')`,
				`CREATE INDEX IF NOT EXISTS signals_closed_at_idx ON trading.signals (closed_at)`,
				`CREATE INDEX IF NOT EXISTS signals_created_at_idx ON trading.signals (created_at DESC)`,
				`CREATE TABLE IF NOT EXISTS trading.signal_events (
					id          BIGSERIAL PRIMARY KEY,
					signal_id   UUID NOT NULL REFERENCES trading.signals(id) ON DELETE CASCADE,
					from_status VARCHAR(16) NOT NULL DEFAULT '',
					to_status   VARCHAR(16) NOT NULL,
					price       DOUBLE PRECISION NOT NULL,
					pips        DOUBLE PRECISION NOT NULL DEFAULT 0,
					at          TIMESTAMPTZ NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS signal_events_signal_idx ON trading.signal_events (signal_id, id)`,
			},
		},
	}
}

const signalColumns = `
	id, symbol, direction, entry, stop_loss, take_profit_1, take_profit_2, take_profit_3,
	exit_split, confluence_score, quality, status, reasoning, created_at, expires_at,
	closed_at, result_pips, realized_pips, active_stop, last_price, last_tick_at,
	version, config_hash, confluence`

// PostgresRepository stores signals in trading.signals
// ⭐ SSOT: 시그널 영속화는 여기서만
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a repository on an existing pool
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Insert(ctx context.Context, sig *contracts.Signal, ev contracts.SignalEvent) error {
	splitJSON, reasoningJSON, confluenceJSON, err := marshalSignal(sig)
	if err != nil {
		return err
	}

	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO trading.signals (`+signalColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			        $16, $17, $18, $19, $20, $21, $22, $23, $24)
		`,
			sig.ID, sig.Symbol, string(sig.Direction), sig.Entry, sig.StopLoss,
			sig.TakeProfit1, sig.TakeProfit2, sig.TakeProfit3,
			splitJSON, sig.ConfluenceScore, string(sig.Quality), string(sig.Status), reasoningJSON,
			sig.CreatedAt, sig.ExpiresAt, sig.ClosedAt, sig.ResultPips, sig.RealizedPips,
			sig.ActiveStop, sig.LastPrice, nullTime(sig.LastTickAt),
			sig.Version, sig.ConfigHash, confluenceJSON,
		)
		if err != nil {
			return err
		}
		return insertEvents(ctx, tx, sig.ID, []contracts.SignalEvent{ev})
	})

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return contracts.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert signal: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, sig *contracts.Signal, expectedVersion int64, events []contracts.SignalEvent) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE trading.signals SET
				status        = $2,
				closed_at     = $3,
				result_pips   = $4,
				realized_pips = $5,
				active_stop   = $6,
				last_price    = $7,
				last_tick_at  = $8,
				version       = $9
			WHERE id = $1 AND version = $10
		`,
			sig.ID, string(sig.Status), sig.ClosedAt, sig.ResultPips, sig.RealizedPips,
			sig.ActiveStop, sig.LastPrice, nullTime(sig.LastTickAt), sig.Version, expectedVersion,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return contracts.ErrVersionConflict
		}
		return insertEvents(ctx, tx, sig.ID, events)
	})

	if errors.Is(err, contracts.ErrVersionConflict) {
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to update signal %s: %w", sig.ID, err)
	}
	return nil
}

func insertEvents(ctx context.Context, tx pgx.Tx, signalID string, events []contracts.SignalEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(`
			INSERT INTO trading.signal_events (signal_id, from_status, to_status, price, pips, at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, signalID, string(ev.From), string(ev.To), ev.Price, ev.Pips, ev.At)
	}

	br := tx.SendBatch(ctx, batch)
	for range events {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to insert signal event: %w", err)
		}
	}
	return br.Close()
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*contracts.Signal, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+signalColumns+` FROM trading.signals WHERE id = $1`, id)
	sig, err := scanSignal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get signal %s: %w", id, err)
	}
	return sig, nil
}

func (r *PostgresRepository) FindOpenBySymbol(ctx context.Context, symbol string) (*contracts.Signal, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+signalColumns+` FROM trading.signals
		WHERE symbol = $1 AND status IN ('active', 'tp1_hit', 'tp2_hit')
		LIMIT 1
	`, symbol)
	sig, err := scanSignal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find open signal for %s: %w", symbol, err)
	}
	return sig, nil
}

func (r *PostgresRepository) ListOpen(ctx context.Context, symbol string) ([]*contracts.Signal, error) {
	return r.List(ctx, Filter{Symbol: symbol, Open: true})
}

func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]*contracts.Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM trading.signals WHERE 1=1`
	args := []interface{}{}

	if f.Symbol != "" {
		args = append(args, f.Symbol)
		query += fmt.Sprintf(" AND symbol = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.Open {
		query += " AND status IN ('active', 'tp1_hit', 'tp2_hit')"
	}
	query += " ORDER BY created_at DESC, id"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	return r.query(ctx, query, args...)
}

func (r *PostgresRepository) ListClosed(ctx context.Context, from, to time.Time) ([]*contracts.Signal, error) {
	return r.query(ctx, `
		SELECT `+signalColumns+` FROM trading.signals
		WHERE closed_at IS NOT NULL
		  AND ($1::timestamptz IS NULL OR closed_at >= $1)
		  AND ($2::timestamptz IS NULL OR closed_at <= $2)
		ORDER BY closed_at
	`, nullTime(from), nullTime(to))
}

func (r *PostgresRepository) ListExpirable(ctx context.Context, now time.Time) ([]*contracts.Signal, error) {
	return r.query(ctx, `
		SELECT `+signalColumns+` FROM trading.signals
		WHERE status IN ('active', 'tp1_hit', 'tp2_hit') AND expires_at <= $1
		ORDER BY expires_at
	`, now)
}

func (r *PostgresRepository) Events(ctx context.Context, signalID string) ([]contracts.SignalEvent, error) {
	if _, err := r.Get(ctx, signalID); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, signal_id, from_status, to_status, price, pips, at
		FROM trading.signal_events
		WHERE signal_id = $1
		ORDER BY id
	`, signalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query signal events: %w", err)
	}
	defer rows.Close()

	events := make([]contracts.SignalEvent, 0)
	for rows.Next() {
		var ev contracts.SignalEvent
		var from, to string
		if err := rows.Scan(&ev.ID, &ev.SignalID, &from, &to, &ev.Price, &ev.Pips, &ev.At); err != nil {
			return nil, fmt.Errorf("failed to scan signal event: %w", err)
		}
		ev.From = contracts.SignalStatus(from)
		ev.To = contracts.SignalStatus(to)
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...interface{}) ([]*contracts.Signal, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	out := make([]*contracts.Signal, 0)
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

func scanSignal(row pgx.Row) (*contracts.Signal, error) {
	var (
		sig                                  contracts.Signal
		direction, quality, status           string
		splitJSON, reasoningJSON, confluence []byte
		lastTickAt                           *time.Time
	)

	err := row.Scan(
		&sig.ID, &sig.Symbol, &direction, &sig.Entry, &sig.StopLoss,
		&sig.TakeProfit1, &sig.TakeProfit2, &sig.TakeProfit3,
		&splitJSON, &sig.ConfluenceScore, &quality, &status, &reasoningJSON,
		&sig.CreatedAt, &sig.ExpiresAt, &sig.ClosedAt, &sig.ResultPips, &sig.RealizedPips,
		&sig.ActiveStop, &sig.LastPrice, &lastTickAt,
		&sig.Version, &sig.ConfigHash, &confluence,
	)
	if err != nil {
		return nil, err
	}

	sig.Direction = contracts.Direction(direction)
	sig.Quality = contracts.Quality(quality)
	sig.Status = contracts.SignalStatus(status)
	if lastTickAt != nil {
		sig.LastTickAt = *lastTickAt
	}

	if err := json.Unmarshal(splitJSON, &sig.ExitSplit); err != nil {
		return nil, fmt.Errorf("failed to unmarshal exit split: %w", err)
	}
	if err := json.Unmarshal(reasoningJSON, &sig.Reasoning); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reasoning: %w", err)
	}
	if len(confluence) > 0 {
		var cr contracts.ConfluenceResult
		if err := json.Unmarshal(confluence, &cr); err != nil {
			return nil, fmt.Errorf("failed to unmarshal confluence: %w", err)
		}
		sig.Confluence = &cr
	}

	return &sig, nil
}

func marshalSignal(sig *contracts.Signal) (split, reasoning, confluence []byte, err error) {
	if split, err = json.Marshal(sig.ExitSplit); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal exit split: %w", err)
	}
	reasons := sig.Reasoning
	if reasons == nil {
		reasons = []string{}
	}
	if reasoning, err = json.Marshal(reasons); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal reasoning: %w", err)
	}
	if sig.Confluence != nil {
		if confluence, err = json.Marshal(sig.Confluence); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal confluence: %w", err)
		}
	}
	return split, reasoning, confluence, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
