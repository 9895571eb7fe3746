package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DBConfig конфигурация подключения к БД
type DBConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RunRecord запись о запуске нормализации
type RunRecord struct {
	RunID        string
	StartedAt    time.Time
	FinishedAt   time.Time
	InputDir     string
	OutputDir    string
	FilesWritten int
	FilesSkipped int
	RowsWritten  int
	CEPsDistinct int
	CEPsFound    int
	CEPsNotFound int
	Status       string
	Error        string
	SummaryJSON  string // полная сводка запуска
}

// RunHistoryDB журнал запусков нормализации.
// Только для аудита: при следующем запуске не читается.
type RunHistoryDB struct {
	conn *sql.DB
}

// NewRunHistoryDB открывает (и при необходимости создает) журнал запусков
func NewRunHistoryDB(dbPath string) (*RunHistoryDB, error) {
	config := DBConfig{}

	// Для in-memory SQLite нужно ровно одно соединение,
	// иначе каждое новое соединение получит пустую БД без таблиц.
	if isInMemory(dbPath) {
		config.MaxOpenConns = 1
		config.MaxIdleConns = 1
	}

	return NewRunHistoryDBWithConfig(dbPath, config)
}

// isInMemory относится ли путь к in-memory SQLite
func isInMemory(dbPath string) bool {
	if dbPath == ":memory:" {
		return true
	}
	return strings.HasPrefix(dbPath, "file:") && strings.Contains(dbPath, "mode=memory")
}

// NewRunHistoryDBWithConfig открывает журнал запусков с настройками пула соединений
func NewRunHistoryDBWithConfig(dbPath string, config DBConfig) (*RunHistoryDB, error) {
	if dbPath == "" {
		return nil, errors.New("run history database path is empty")
	}

	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open run history database: %w", err)
	}

	if config.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(config.MaxOpenConns)
	} else {
		conn.SetMaxOpenConns(4)
	}
	if config.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(config.MaxIdleConns)
	} else {
		conn.SetMaxIdleConns(2)
	}
	if config.ConnMaxLifetime > 0 {
		conn.SetConnMaxLifetime(config.ConnMaxLifetime)
	} else {
		conn.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping run history database: %w", err)
	}

	if err := MigrateNormalizationRuns(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize run history schema: %w", err)
	}

	return &RunHistoryDB{conn: conn}, nil
}

// Close закрывает подключение
func (db *RunHistoryDB) Close() error {
	return db.conn.Close()
}

// SaveRun сохраняет запись о запуске. Повторное сохранение того же run_id перезаписывает запись.
func (db *RunHistoryDB) SaveRun(ctx context.Context, run *RunRecord) error {
	if run == nil || run.RunID == "" {
		return errors.New("run record must have a run_id")
	}
	if run.Status == "" {
		return errors.New("run record must have a status")
	}

	query := `
		INSERT OR REPLACE INTO normalization_runs (
			run_id, started_at, finished_at, input_dir, output_dir,
			files_written, files_skipped, rows_written,
			ceps_distinct, ceps_found, ceps_not_found,
			status, error, summary_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.conn.ExecContext(ctx, query,
		run.RunID,
		run.StartedAt.UTC(),
		nullTime(run.FinishedAt),
		run.InputDir,
		run.OutputDir,
		run.FilesWritten,
		run.FilesSkipped,
		run.RowsWritten,
		run.CEPsDistinct,
		run.CEPsFound,
		run.CEPsNotFound,
		run.Status,
		nullIfEmpty(run.Error),
		nullIfEmpty(run.SummaryJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.RunID, err)
	}
	return nil
}

// ListRuns последние запуски, новые первыми. limit <= 0 - без ограничения.
func (db *RunHistoryDB) ListRuns(ctx context.Context, limit int) ([]*RunRecord, error) {
	query := `
		SELECT run_id, started_at, finished_at, input_dir, output_dir,
			files_written, files_skipped, rows_written,
			ceps_distinct, ceps_found, ceps_not_found,
			status, error, summary_json
		FROM normalization_runs
		ORDER BY started_at DESC, created_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		var (
			run        RunRecord
			finishedAt sql.NullTime
			errText    sql.NullString
			summary    sql.NullString
		)
		if err := rows.Scan(
			&run.RunID, &run.StartedAt, &finishedAt, &run.InputDir, &run.OutputDir,
			&run.FilesWritten, &run.FilesSkipped, &run.RowsWritten,
			&run.CEPsDistinct, &run.CEPsFound, &run.CEPsNotFound,
			&run.Status, &errText, &summary,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if finishedAt.Valid {
			run.FinishedAt = finishedAt.Time
		}
		run.Error = nullString(errText)
		run.SummaryJSON = nullString(summary)
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

func nullString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
