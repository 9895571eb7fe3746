package normalization

import (
	"slices"
	"time"

	"cepsilver/enrichment"
)

// EventKind тип события нормализации
type EventKind string

const (
	EventFileSkipped        EventKind = "file_skipped"
	EventFileWritten        EventKind = "file_written"
	EventEnrichmentStarted  EventKind = "enrichment_started"
	EventEnrichmentProgress EventKind = "enrichment_progress"
	EventEnrichmentWritten  EventKind = "enrichment_written"
	EventEnrichmentEmpty    EventKind = "enrichment_empty"
)

// Event событие нормализации. Доставляется синхронно, в порядке возникновения.
type Event struct {
	Kind       EventKind
	File       string // имя входного файла
	Path       string // путь выходного файла
	Reason     string // причина пропуска
	Rows       int
	Duplicates int
	Processed  int
	Total      int
	Found      int
	NotFound   int
}

// EventHandler обработчик событий
type EventHandler func(Event)

// FileSummary итог обработки одного файла
type FileSummary struct {
	File          string        `json:"file"`
	Format        string        `json:"format"`
	RowsRead      int           `json:"rows_read"`
	Duplicates    int           `json:"duplicates"`
	RowsWritten   int           `json:"rows_written"`
	Columns       int           `json:"columns"`
	NestedColumns []string      `json:"nested_columns,omitempty"`
	OutputPath    string        `json:"output_path"`
	Duration      time.Duration `json:"duration"`
}

// SkippedFile пропущенный файл
type SkippedFile struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// CEPSummary итог обогащения CEP
type CEPSummary struct {
	Distinct   int                       `json:"distinct"`
	Found      int                       `json:"found"`
	NotFound   int                       `json:"not_found"`
	Reasons    map[enrichment.Reason]int `json:"reasons"`
	Written    int                       `json:"written"`
	OutputPath string                    `json:"output_path,omitempty"`
}

// SortedReasons причины исходов в алфавитном порядке
func (s *CEPSummary) SortedReasons() []enrichment.Reason {
	reasons := make([]enrichment.Reason, 0, len(s.Reasons))
	for r := range s.Reasons {
		reasons = append(reasons, r)
	}
	slices.Sort(reasons)
	return reasons
}

// RunSummary итог запуска нормализации
type RunSummary struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	InputDir   string        `json:"input_dir"`
	OutputDir  string        `json:"output_dir"`
	Files      []FileSummary `json:"files"`
	Skipped    []SkippedFile `json:"skipped"`
	CEP        *CEPSummary   `json:"cep,omitempty"`
	Err        error         `json:"-"`
}

// Duration длительность запуска
func (s *RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Status статус запуска: completed или failed
func (s *RunSummary) Status() string {
	if s.Err != nil {
		return "failed"
	}
	return "completed"
}

// RowsWritten сумма строк по всем записанным файлам
func (s *RunSummary) RowsWritten() int {
	total := 0
	for _, f := range s.Files {
		total += f.RowsWritten
	}
	return total
}
