package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sonifications (
  id                 TEXT             PRIMARY KEY,
  tenant_id          TEXT             NOT NULL,
  created_at         TIMESTAMPTZ      NOT NULL,
  updated_at         TIMESTAMPTZ      NOT NULL,
  status             TEXT             NOT NULL,
  image_name         TEXT             NOT NULL DEFAULT '',
  image_url          TEXT             NOT NULL DEFAULT '',
  caption            TEXT             NOT NULL DEFAULT '',
  primary_mood       TEXT             NOT NULL DEFAULT '',
  mood_scores        JSONB            NOT NULL DEFAULT '[]',
  prompt             TEXT             NOT NULL DEFAULT '',
  requested_duration INTEGER          NOT NULL DEFAULT 0,
  effective_duration INTEGER          NOT NULL DEFAULT 0,
  duration_seconds   DOUBLE PRECISION NOT NULL DEFAULT 0,
  sample_rate        INTEGER          NOT NULL DEFAULT 0,
  retried            BOOLEAN          NOT NULL DEFAULT FALSE,
  audio_key          TEXT             NOT NULL DEFAULT '',
  audio_url          TEXT             NOT NULL DEFAULT '',
  error_message      TEXT             NOT NULL DEFAULT '',
  processing_ms      BIGINT           NOT NULL DEFAULT 0
)`,
	`CREATE INDEX IF NOT EXISTS idx_sonifications_tenant_created ON sonifications (tenant_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS sonification_failures (
  id              BIGSERIAL   PRIMARY KEY,
  tenant_id       TEXT        NOT NULL,
  sonification_id TEXT        NOT NULL,
  phase           TEXT        NOT NULL,
  message         TEXT        NOT NULL,
  details_json    JSONB       NOT NULL DEFAULT '{}',
  created_at      TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_failures_sonification ON sonification_failures (tenant_id, sonification_id, created_at DESC)`,
}

// Migrate creates the tables if they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migration %d: %w", i+1, err)
		}
	}
	return nil
}
