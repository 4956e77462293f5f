package mysql

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sonifications (
  id                 VARCHAR(64)   NOT NULL PRIMARY KEY,
  tenant_id          VARCHAR(128)  NOT NULL,
  created_at         DATETIME(3)   NOT NULL,
  updated_at         DATETIME(3)   NOT NULL,
  status             VARCHAR(16)   NOT NULL,
  image_name         VARCHAR(255)  NOT NULL DEFAULT '',
  image_url          VARCHAR(1024) NOT NULL DEFAULT '',
  caption            VARCHAR(1024) NOT NULL DEFAULT '',
  primary_mood       VARCHAR(64)   NOT NULL DEFAULT '',
  mood_scores        JSON          NOT NULL,
  prompt             TEXT          NOT NULL,
  requested_duration INT           NOT NULL DEFAULT 0,
  effective_duration INT           NOT NULL DEFAULT 0,
  duration_seconds   DOUBLE        NOT NULL DEFAULT 0,
  sample_rate        INT           NOT NULL DEFAULT 0,
  retried            BOOLEAN       NOT NULL DEFAULT FALSE,
  audio_key          VARCHAR(512)  NOT NULL DEFAULT '',
  audio_url          VARCHAR(1024) NOT NULL DEFAULT '',
  error_message      TEXT          NOT NULL,
  processing_ms      BIGINT        NOT NULL DEFAULT 0,
  KEY idx_sonifications_tenant_created (tenant_id, created_at),
  KEY idx_sonifications_tenant_mood (tenant_id, primary_mood)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS sonification_failures (
  id              BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,
  tenant_id       VARCHAR(128) NOT NULL,
  sonification_id VARCHAR(64)  NOT NULL,
  phase           VARCHAR(32)  NOT NULL,
  message         TEXT         NOT NULL,
  details_json    JSON         NOT NULL,
  created_at      DATETIME(3)  NOT NULL,
  KEY idx_failures_sonification (tenant_id, sonification_id, created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the tables if they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("mysql migration %d: %w", i+1, err)
		}
	}
	return nil
}
