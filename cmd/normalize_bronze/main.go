package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cepsilver/database"
	"cepsilver/enrichment"
	"cepsilver/internal/config"
	"cepsilver/internal/logging"
	"cepsilver/normalization"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	inputDir := flag.String("input", cfg.InputDir, "Directory with raw (bronze) files")
	outputDir := flag.String("output", cfg.OutputDir, "Directory for validated (silver) parquet files")
	historyPath := flag.String("history", cfg.RunHistoryDBPath, "SQLite database for run history (empty disables)")
	reportPath := flag.String("report", cfg.RunReportPath, "Path of the xlsx run report (empty disables)")
	listRuns := flag.Int("list-runs", 0, "Print the last N runs from the history database and exit")
	flag.Parse()

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	slog.SetDefault(logger)

	if *listRuns > 0 {
		if err := printHistory(*historyPath, *listRuns); err != nil {
			log.Fatalf("failed to list runs: %v", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, cfg, logger, *inputDir, *outputDir, *historyPath, *reportPath)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, inputDir, outputDir, historyPath, reportPath string) int {
	client := enrichment.NewViaCEPEnricher(cfg.ViaCEP)
	client.SetLogger(logger)
	if cfg.Cache.Enabled {
		client.SetCache(enrichment.NewLookupCache(cfg.Cache))
	}

	exporter, err := normalization.NewParquetExporter(cfg.ParquetCompression)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	normalizer := normalization.NewBronzeNormalizer(cfg.NormalizerConfig(), client, exporter,
		normalization.WithLogger(logger),
		normalization.WithEventHandler(printEvent),
	)

	fmt.Printf("Normalizing %s -> %s\n", inputDir, outputDir)
	summary, runErr := normalizer.Run(ctx, inputDir, outputDir)
	printSummary(os.Stdout, summary)

	if historyPath != "" {
		if err := saveHistory(ctx, historyPath, summary); err != nil {
			logger.Error("Failed to save run history", "error", err, "path", historyPath)
		}
	}
	if reportPath != "" {
		if err := normalization.NewReportGenerator().Export(reportPath, summary); err != nil {
			logger.Error("Failed to export run report", "error", err, "path", reportPath)
		} else {
			fmt.Printf("Report: %s\n", reportPath)
		}
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		return 1
	}
	return 0
}

// printEvent выводит прогресс нормализации в консоль
func printEvent(ev normalization.Event) {
	switch ev.Kind {
	case normalization.EventFileSkipped:
		fmt.Printf("Skipping %s: %s\n", ev.File, ev.Reason)
	case normalization.EventFileWritten:
		fmt.Printf("%s -> %s (%d rows, %d duplicates removed)\n", ev.File, ev.Path, ev.Rows, ev.Duplicates)
	case normalization.EventEnrichmentStarted:
		fmt.Printf("Looking up %d distinct CEPs from %s\n", ev.Total, ev.File)
	case normalization.EventEnrichmentProgress:
		fmt.Printf("[%d/%d] found %d, not found %d\n", ev.Processed, ev.Total, ev.Found, ev.NotFound)
	case normalization.EventEnrichmentWritten:
		fmt.Printf("cep_info -> %s (%d rows; found %d, not found %d)\n", ev.Path, ev.Rows, ev.Found, ev.NotFound)
	case normalization.EventEnrichmentEmpty:
		fmt.Printf("Warning: none of %d CEPs was found, cep_info not written\n", ev.Total)
	}
}

func printSummary(w io.Writer, summary *normalization.RunSummary) {
	if summary == nil {
		return
	}
	fmt.Fprintln(w, "\n--- Bronze -> Silver Normalization ---")
	fmt.Fprintf(w, "Run ID: %s\n", summary.RunID)
	fmt.Fprintf(w, "Status: %s\n", summary.Status())
	fmt.Fprintf(w, "Files Written: %d\n", len(summary.Files))
	fmt.Fprintf(w, "Files Skipped: %d\n", len(summary.Skipped))
	fmt.Fprintf(w, "Rows Written: %d\n", summary.RowsWritten())
	if summary.CEP != nil {
		fmt.Fprintf(w, "CEPs: %d distinct, %d found, %d not found\n", summary.CEP.Distinct, summary.CEP.Found, summary.CEP.NotFound)
		for _, reason := range summary.CEP.SortedReasons() {
			fmt.Fprintf(w, " - %s: %d\n", reason, summary.CEP.Reasons[reason])
		}
	}
	fmt.Fprintf(w, "Duration: %s\n", summary.Duration().Round(time.Millisecond))
}

func saveHistory(ctx context.Context, path string, summary *normalization.RunSummary) error {
	db, err := database.NewRunHistoryDB(path)
	if err != nil {
		return err
	}
	defer db.Close()

	// Прерванный запуск тоже записывается
	ctx = context.WithoutCancel(ctx)
	return db.SaveRun(ctx, runRecord(summary))
}

func runRecord(summary *normalization.RunSummary) *database.RunRecord {
	rec := &database.RunRecord{
		RunID:        summary.RunID,
		StartedAt:    summary.StartedAt,
		FinishedAt:   summary.FinishedAt,
		InputDir:     summary.InputDir,
		OutputDir:    summary.OutputDir,
		FilesWritten: len(summary.Files),
		FilesSkipped: len(summary.Skipped),
		RowsWritten:  summary.RowsWritten(),
		Status:       summary.Status(),
	}
	if summary.CEP != nil {
		rec.CEPsDistinct = summary.CEP.Distinct
		rec.CEPsFound = summary.CEP.Found
		rec.CEPsNotFound = summary.CEP.NotFound
	}
	if summary.Err != nil {
		rec.Error = summary.Err.Error()
	}
	if data, err := json.Marshal(summary); err == nil {
		rec.SummaryJSON = string(data)
	}
	return rec
}

func printHistory(path string, limit int) error {
	if path == "" {
		return fmt.Errorf("run history database is not configured (RUN_HISTORY_DB_PATH or -history)")
	}
	db, err := database.NewRunHistoryDB(path)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRuns(context.Background(), limit)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Printf("%s  %s  %-9s files=%d skipped=%d rows=%d ceps=%d/%d",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.RunID, r.Status,
			r.FilesWritten, r.FilesSkipped, r.RowsWritten, r.CEPsFound, r.CEPsDistinct)
		if r.Error != "" {
			fmt.Printf("  error=%q", r.Error)
		}
		fmt.Println()
	}
	return nil
}
