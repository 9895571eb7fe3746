package normalization

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"cepsilver/dataset"
	"cepsilver/enrichment"
	"cepsilver/importer"
)

const (
	DefaultUsersFileName = "users.csv"
	DefaultCEPColumn     = "cep"
	CEPInfoTableName     = "cep_info"
)

// Config настройки нормализатора
type Config struct {
	UsersFileName string // файл пользователей, сравнивается без учета регистра
	CEPColumn     string
	ProgressEvery int
}

// DefaultConfig настройки по умолчанию
func DefaultConfig() Config {
	return Config{
		UsersFileName: DefaultUsersFileName,
		CEPColumn:     DefaultCEPColumn,
		ProgressEvery: DefaultProgressEvery,
	}
}

// BronzeNormalizer переводит сырые файлы (bronze) в проверенный колоночный формат (silver)
type BronzeNormalizer struct {
	config   Config
	registry *importer.Registry
	exporter TableExporter
	enricher *CEPEnricher
	logger   *slog.Logger
	onEvent  EventHandler
}

// Option опция нормализатора
type Option func(*BronzeNormalizer)

// WithLogger задает логгер
func WithLogger(logger *slog.Logger) Option {
	return func(n *BronzeNormalizer) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithEventHandler задает обработчик событий
func WithEventHandler(handler EventHandler) Option {
	return func(n *BronzeNormalizer) {
		n.onEvent = handler
	}
}

// NewBronzeNormalizer создает нормализатор
func NewBronzeNormalizer(config Config, lookuper enrichment.Lookuper, exporter TableExporter, opts ...Option) *BronzeNormalizer {
	if config.UsersFileName == "" {
		config.UsersFileName = DefaultUsersFileName
	}
	if config.CEPColumn == "" {
		config.CEPColumn = DefaultCEPColumn
	}
	if config.ProgressEvery <= 0 {
		config.ProgressEvery = DefaultProgressEvery
	}

	n := &BronzeNormalizer{
		config:   config,
		exporter: exporter,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.registry = importer.NewRegistry(n.logger)

	n.enricher = NewCEPEnricher(lookuper, config.CEPColumn, config.ProgressEvery)
	n.enricher.logger = n.logger
	n.enricher.emit = n.emit
	return n
}

func (n *BronzeNormalizer) emit(ev Event) {
	if n.onEvent != nil {
		n.onEvent(ev)
	}
}

// isUsersFile совпадает ли имя файла с файлом пользователей
func (n *BronzeNormalizer) isUsersFile(name string) bool {
	return strings.EqualFold(name, n.config.UsersFileName)
}

// declaredColumns явно объявленные типы колонок для файла
func (n *BronzeNormalizer) declaredColumns(name string) map[string]dataset.ColumnType {
	if n.isUsersFile(name) {
		return map[string]dataset.ColumnType{n.config.CEPColumn: dataset.TypeString}
	}
	return nil
}

// Run обрабатывает все файлы входной директории по порядку имен.
// При ошибке возвращается частичная сводка: уже записанные файлы остаются на диске.
func (n *BronzeNormalizer) Run(ctx context.Context, inputDir, outputDir string) (*RunSummary, error) {
	summary := &RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		InputDir:  inputDir,
		OutputDir: outputDir,
	}
	logger := n.logger.With("run_id", summary.RunID)

	fail := func(err error) (*RunSummary, error) {
		summary.FinishedAt = time.Now()
		summary.Err = err
		logger.Error("Normalization run failed", "error", err)
		return summary, err
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fail(fmt.Errorf("failed to create output directory: %w", err))
	}

	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return fail(fmt.Errorf("failed to read input directory: %w", err))
	}

	logger.Info("Normalization run started", "input_dir", inputDir, "output_dir", outputDir, "entries", len(entries))

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		name := entry.Name()
		if entry.IsDir() {
			logger.Debug("Skipping directory", "name", name)
			continue
		}

		reader, err := n.registry.ReaderFor(name)
		if err != nil {
			if errors.Is(err, importer.ErrUnsupportedExtension) {
				n.skip(summary, logger, name, "unsupported format")
				continue
			}
			return fail(err)
		}

		fileSummary, table, err := n.processFile(reader, filepath.Join(inputDir, name), outputDir)
		if err != nil {
			return fail(err)
		}
		summary.Files = append(summary.Files, *fileSummary)
		logger.Info("File normalized",
			"file", name,
			"rows_read", fileSummary.RowsRead,
			"duplicates", fileSummary.Duplicates,
			"output", fileSummary.OutputPath,
		)

		if n.isUsersFile(name) && table.HasColumn(n.config.CEPColumn) {
			cepSummary, err := n.enrichUsers(ctx, table, outputDir)
			summary.CEP = cepSummary
			if err != nil {
				return fail(err)
			}
		}
	}

	summary.FinishedAt = time.Now()
	logger.Info("Normalization run finished",
		"files", len(summary.Files),
		"skipped", len(summary.Skipped),
		"duration", summary.Duration(),
	)
	return summary, nil
}

func (n *BronzeNormalizer) skip(summary *RunSummary, logger *slog.Logger, name, reason string) {
	summary.Skipped = append(summary.Skipped, SkippedFile{File: name, Reason: reason})
	logger.Info("File skipped", "file", name, "reason", reason)
	n.emit(Event{Kind: EventFileSkipped, File: name, Reason: reason})
}

// processFile читает, дедуплицирует, типизирует и записывает один файл.
// Пустая таблица тоже записывается.
func (n *BronzeNormalizer) processFile(reader importer.Reader, path, outputDir string) (*FileSummary, *dataset.Table, error) {
	start := time.Now()
	name := filepath.Base(path)
	declared := n.declaredColumns(name)

	table, err := reader.Read(path, importer.Options{Declared: declared})
	if err != nil {
		return nil, nil, err
	}
	rowsRead := table.Len()

	// Списки несравнимы, поэтому сериализуются до дедупликации
	nested, err := dataset.SerializeNestedColumns(table)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}
	// Дедупликация до приведения типов: 1 и "1" остаются разными строками
	duplicates := dataset.Deduplicate(table)
	if err := dataset.ApplySchema(table, declared); err != nil {
		return nil, nil, importer.NewParseError("schema", path, err)
	}

	outPath := filepath.Join(outputDir, importer.TableName(name)+n.exporter.Extension())
	if err := n.exporter.Export(table, outPath); err != nil {
		return nil, nil, fmt.Errorf("failed to export %s: %w", name, err)
	}

	n.emit(Event{
		Kind:       EventFileWritten,
		File:       name,
		Path:       outPath,
		Rows:       table.Len(),
		Duplicates: duplicates,
	})

	return &FileSummary{
		File:          name,
		Format:        reader.Format(),
		RowsRead:      rowsRead,
		Duplicates:    duplicates,
		RowsWritten:   table.Len(),
		Columns:       len(table.Columns),
		NestedColumns: nested,
		OutputPath:    outPath,
		Duration:      time.Since(start),
	}, table, nil
}

// enrichUsers строит и записывает cep_info по таблице пользователей
func (n *BronzeNormalizer) enrichUsers(ctx context.Context, users *dataset.Table, outputDir string) (*CEPSummary, error) {
	table, summary, err := n.enricher.Enrich(ctx, users)
	if err != nil {
		return summary, err
	}

	if table == nil {
		n.logger.Warn("No CEP was found, cep_info not written", "distinct_ceps", summary.Distinct)
		n.emit(Event{Kind: EventEnrichmentEmpty, File: users.Name, Total: summary.Distinct, NotFound: summary.NotFound})
		return summary, nil
	}

	outPath := filepath.Join(outputDir, CEPInfoTableName+n.exporter.Extension())
	if err := n.exporter.Export(table, outPath); err != nil {
		return summary, fmt.Errorf("failed to export %s: %w", CEPInfoTableName, err)
	}
	summary.Written = table.Len()
	summary.OutputPath = outPath

	n.emit(Event{
		Kind:     EventEnrichmentWritten,
		File:     users.Name,
		Path:     outPath,
		Rows:     table.Len(),
		Total:    summary.Distinct,
		Found:    summary.Found,
		NotFound: summary.NotFound,
	})
	return summary, nil
}
