package database

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// MigrateNormalizationRuns создает таблицу normalization_runs с историей запусков нормализации
func MigrateNormalizationRuns(db *sql.DB) error {
	slog.Debug("Running migration: creating normalization_runs table")

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS normalization_runs (
			run_id TEXT PRIMARY KEY,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP,
			input_dir TEXT NOT NULL,
			output_dir TEXT NOT NULL,
			files_written INTEGER DEFAULT 0,
			files_skipped INTEGER DEFAULT 0,
			rows_written INTEGER DEFAULT 0,
			ceps_distinct INTEGER DEFAULT 0,
			ceps_found INTEGER DEFAULT 0,
			ceps_not_found INTEGER DEFAULT 0,
			status TEXT CHECK(status IN ('completed', 'failed')) NOT NULL,
			error TEXT,
			summary_json TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := db.Exec(createTableSQL); err != nil {
		return fmt.Errorf("failed to create normalization_runs table: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_normalization_runs_started_at ON normalization_runs(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_normalization_runs_status ON normalization_runs(status)`,
	}
	for _, indexSQL := range indexes {
		if _, err := db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}
