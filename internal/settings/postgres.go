package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/confluence/backend/internal/contracts"
	"github.com/wonny/confluence/backend/pkg/database"
)

// Migrations returns the schema owned by this package
func Migrations() []database.Migration {
	return []database.Migration{
		{
			Name: "002_trading_user_settings",
			Statements: []string{
				`CREATE SCHEMA IF NOT EXISTS trading`,
				`CREATE TABLE IF NOT EXISTS trading.user_settings (
					user_id            VARCHAR(64) PRIMARY KEY,
					account_balance    DOUBLE PRECISION NOT NULL,
					risk_per_trade_pct DOUBLE PRECISION NOT NULL,
					preferred_pairs    JSONB NOT NULL DEFAULT '[]',
					min_quality        VARCHAR(16) NOT NULL,
					notifications      JSONB NOT NULL DEFAULT '{}',
					updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
				)`,
			},
		},
	}
}

// PostgresRepository stores settings in trading.user_settings
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new settings repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Get loads one user's settings
func (r *PostgresRepository) Get(ctx context.Context, userID string) (*contracts.UserSettings, error) {
	query := `
		SELECT user_id, account_balance, risk_per_trade_pct, preferred_pairs,
		       min_quality, notifications, updated_at
		FROM trading.user_settings
		WHERE user_id = $1
	`

	var s contracts.UserSettings
	var pairsJSON, notifJSON []byte
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&s.UserID, &s.AccountBalance, &s.RiskPerTradePct, &pairsJSON,
		&s.MinQuality, &notifJSON, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user settings: %w", err)
	}

	if err := json.Unmarshal(pairsJSON, &s.PreferredPairs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal preferred pairs: %w", err)
	}
	if err := json.Unmarshal(notifJSON, &s.Notifications); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notifications: %w", err)
	}
	return &s, nil
}

// Save upserts one user's settings
func (r *PostgresRepository) Save(ctx context.Context, s *contracts.UserSettings) error {
	pairsJSON, err := json.Marshal(s.PreferredPairs)
	if err != nil {
		return fmt.Errorf("failed to marshal preferred pairs: %w", err)
	}
	notifJSON, err := json.Marshal(s.Notifications)
	if err != nil {
		return fmt.Errorf("failed to marshal notifications: %w", err)
	}

	query := `
		INSERT INTO trading.user_settings (
			user_id, account_balance, risk_per_trade_pct, preferred_pairs,
			min_quality, notifications, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			account_balance = EXCLUDED.account_balance,
			risk_per_trade_pct = EXCLUDED.risk_per_trade_pct,
			preferred_pairs = EXCLUDED.preferred_pairs,
			min_quality = EXCLUDED.min_quality,
			notifications = EXCLUDED.notifications,
			updated_at = EXCLUDED.updated_at
	`

	if _, err := r.pool.Exec(ctx, query,
		s.UserID, s.AccountBalance, s.RiskPerTradePct, pairsJSON,
		s.MinQuality, notifJSON, s.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to save user settings: %w", err)
	}
	return nil
}
