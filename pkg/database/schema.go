package database

import (
	"context"
	"fmt"
)

// riskSchema is the DDL for snapshot and reference storage.
// 모든 구문은 idempotent (IF NOT EXISTS)
var riskSchema = []string{
	`CREATE SCHEMA IF NOT EXISTS risk`,
	`CREATE TABLE IF NOT EXISTS risk.snapshots (
		portfolio_id TEXT        NOT NULL,
		as_of        TIMESTAMPTZ NOT NULL,
		payload      JSONB       NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (portfolio_id, as_of)
	)`,
	`CREATE TABLE IF NOT EXISTS risk.counterparties (
		counterparty_id     TEXT PRIMARY KEY,
		name                TEXT             NOT NULL DEFAULT '',
		probability_default DOUBLE PRECISION NOT NULL,
		loss_given_default  DOUBLE PRECISION NOT NULL,
		additional_exposure DOUBLE PRECISION NOT NULL DEFAULT 0,
		updated_at          TIMESTAMPTZ      NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS risk.market_depth (
		symbol         TEXT PRIMARY KEY,
		daily_volume   DOUBLE PRECISION NOT NULL,
		market_cap     DOUBLE PRECISION NOT NULL DEFAULT 0,
		bid_ask_spread DOUBLE PRECISION NOT NULL,
		updated_at     TIMESTAMPTZ      NOT NULL DEFAULT now()
	)`,
}

// EnsureSchema creates the risk schema when it does not exist yet
func (db *DB) EnsureSchema(ctx context.Context) error {
	for i, stmt := range riskSchema {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
