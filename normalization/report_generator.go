package normalization

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	reportSheetFiles   = "Files"
	reportSheetSkipped = "Skipped"
	reportSheetCEP     = "CEP"
)

// ReportGenerator генератор отчета о запуске в Excel
type ReportGenerator struct{}

// NewReportGenerator создает генератор отчетов
func NewReportGenerator() *ReportGenerator {
	return &ReportGenerator{}
}

// Export записывает сводку запуска в xlsx
func (g *ReportGenerator) Export(path string, summary *RunSummary) error {
	if summary == nil {
		return fmt.Errorf("summary is nil")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", reportSheetFiles); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	for _, name := range []string{reportSheetSkipped, reportSheetCEP} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet: %w", err)
		}
	}

	// Стиль заголовков
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	files := [][]any{{"File", "Format", "Rows Read", "Duplicates", "Rows Written", "Columns", "Nested Columns", "Output"}}
	for _, fs := range summary.Files {
		files = append(files, []any{
			fs.File, fs.Format, fs.RowsRead, fs.Duplicates, fs.RowsWritten, fs.Columns,
			fmt.Sprint(fs.NestedColumns), fs.OutputPath,
		})
	}

	skipped := [][]any{{"File", "Reason"}}
	for _, s := range summary.Skipped {
		skipped = append(skipped, []any{s.File, s.Reason})
	}

	cep := [][]any{
		{"Metric", "Value"},
		{"Run ID", summary.RunID},
		{"Started At", summary.StartedAt.Format(time.RFC3339)},
		{"Duration", summary.Duration().Round(time.Millisecond).String()},
	}
	if summary.CEP != nil {
		cep = append(cep,
			[]any{"Distinct CEPs", summary.CEP.Distinct},
			[]any{"Found", summary.CEP.Found},
			[]any{"Not Found", summary.CEP.NotFound},
			[]any{"Rows Written", summary.CEP.Written},
		)
		for _, r := range summary.CEP.SortedReasons() {
			cep = append(cep, []any{"Reason: " + string(r), summary.CEP.Reasons[r]})
		}
	}

	for sheet, rows := range map[string][][]any{
		reportSheetFiles:   files,
		reportSheetSkipped: skipped,
		reportSheetCEP:     cep,
	} {
		if err := writeSheet(f, sheet, rows, headerStyle); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	if len(rows) == 0 {
		return nil
	}

	last, _ := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(rows[0]))
	return f.SetColWidth(sheet, "A", lastCol, 18)
}
