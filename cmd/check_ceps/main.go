package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"cepsilver/dataset"
	"cepsilver/enrichment"
	"cepsilver/importer"
	"cepsilver/internal/config"
	"cepsilver/internal/logging"
)

// Диагностика: ищет каждый CEP файла пользователей в ViaCEP и печатает результат.
// Ничего не записывает.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	filePath := flag.String("file", filepath.Join(cfg.InputDir, cfg.UsersFileName), "CSV file with a CEP column")
	column := flag.String("column", "cep", "Name of the CEP column")
	flag.Parse()

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	table, err := importer.NewCSVReader().Read(*filePath, importer.Options{
		Declared: map[string]dataset.ColumnType{*column: dataset.TypeString},
	})
	if err != nil {
		log.Fatalf("failed to read %s: %v", *filePath, err)
	}
	if !table.HasColumn(*column) {
		log.Fatalf("column %q not found in %s", *column, *filePath)
	}

	client := enrichment.NewViaCEPEnricher(cfg.ViaCEP)
	client.SetLogger(logger)
	if cfg.Cache.Enabled {
		client.SetCache(enrichment.NewLookupCache(cfg.Cache))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	found, total := 0, 0
	for _, v := range table.ColumnValues(*column) {
		if ctx.Err() != nil {
			break
		}
		code, _ := v.(string)
		total++

		result := client.Lookup(ctx, code)
		if result.Found() {
			found++
		}
		fmt.Println(formatResult(code, result))
	}

	fmt.Printf("\nfound %d of %d\n", found, total)
}

// formatResult строка отчета по одному CEP
func formatResult(code string, result *enrichment.LookupResult) string {
	shown := fmt.Sprintf("%q", enrichment.FormatCEP(code))
	if result.Found() {
		city, _ := result.Record.Get("localidade")
		uf, _ := result.Record.Get("uf")
		return fmt.Sprintf("%-12s found         %v/%v", shown, city, uf)
	}

	detail := ""
	switch {
	case result.StatusCode != 0 && result.Reason == enrichment.ReasonHTTPError:
		detail = fmt.Sprintf("status %d", result.StatusCode)
	case result.Err != nil:
		detail = result.Err.Error()
	}
	return strings.TrimRight(fmt.Sprintf("%-12s %-13s %s", shown, result.Reason, detail), " ")
}
