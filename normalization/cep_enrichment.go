package normalization

import (
	"context"
	"fmt"
	"log/slog"

	"cepsilver/dataset"
	"cepsilver/enrichment"
)

// DefaultProgressEvery как часто (в обработанных CEP) сообщать о прогрессе
const DefaultProgressEvery = 50

// CEPEnricher строит таблицу cep_info по колонке CEP пользователей.
// Каждый уникальный CEP проходит ровно одну попытку: найден -> в таблицу, иначе -> пропущен.
type CEPEnricher struct {
	lookuper      enrichment.Lookuper
	column        string
	progressEvery int
	logger        *slog.Logger
	emit          func(Event)
}

// NewCEPEnricher создает обогатитель
func NewCEPEnricher(lookuper enrichment.Lookuper, column string, progressEvery int) *CEPEnricher {
	if progressEvery <= 0 {
		progressEvery = DefaultProgressEvery
	}
	return &CEPEnricher{
		lookuper:      lookuper,
		column:        column,
		progressEvery: progressEvery,
		logger:        slog.Default(),
		emit:          func(Event) {},
	}
}

// Enrich ищет все уникальные CEP колонки и возвращает таблицу найденных записей
// (nil, если не найдено ни одного). Прерывается только отменой контекста.
func (e *CEPEnricher) Enrich(ctx context.Context, users *dataset.Table) (*dataset.Table, *CEPSummary, error) {
	codes, err := e.distinctCodes(users)
	if err != nil {
		return nil, nil, err
	}

	summary := &CEPSummary{
		Distinct: len(codes),
		Reasons:  make(map[enrichment.Reason]int),
	}
	e.emit(Event{Kind: EventEnrichmentStarted, File: users.Name, Total: len(codes)})
	e.logger.Info("Starting CEP enrichment", "file", users.Name, "distinct_ceps", len(codes))

	records := make([]*dataset.Row, 0, len(codes))
	for i, code := range codes {
		if err := ctx.Err(); err != nil {
			return nil, summary, fmt.Errorf("cep enrichment interrupted after %d of %d: %w", i, len(codes), err)
		}

		result := e.lookuper.Lookup(ctx, code)
		summary.Reasons[result.Reason]++
		if result.Found() {
			records = append(records, result.RecordWithOriginal(code))
			summary.Found++
		} else {
			summary.NotFound++
		}

		processed := i + 1
		if processed%e.progressEvery == 0 {
			e.emit(Event{
				Kind:      EventEnrichmentProgress,
				File:      users.Name,
				Processed: processed,
				Total:     len(codes),
				Found:     summary.Found,
				NotFound:  summary.NotFound,
			})
		}
	}

	e.logger.Info("CEP enrichment finished",
		"found", summary.Found,
		"not_found", summary.NotFound,
	)

	if len(records) == 0 {
		return nil, summary, nil
	}

	table, err := buildCEPTable(records)
	if err != nil {
		return nil, summary, err
	}
	return table, summary, nil
}

// distinctCodes уникальные непустые значения колонки CEP в порядке первого появления
func (e *CEPEnricher) distinctCodes(users *dataset.Table) ([]string, error) {
	values := users.DistinctValues(e.column)
	codes := make([]string, 0, len(values))
	for _, v := range values {
		s, err := dataset.Coerce(v, dataset.TypeString)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", e.column, err)
		}
		codes = append(codes, s.(string))
	}
	return codes, nil
}

// buildCEPTable собирает cep_info: cep_original первой колонкой, без повторов cep_original
func buildCEPTable(records []*dataset.Row) (*dataset.Table, error) {
	table := dataset.NewTable(CEPInfoTableName, records)
	table.MoveColumnFirst(enrichment.OriginalCEPField)
	dataset.DeduplicateBy(table, enrichment.OriginalCEPField)

	if _, err := dataset.SerializeNestedColumns(table); err != nil {
		return nil, err
	}
	declared := map[string]dataset.ColumnType{enrichment.OriginalCEPField: dataset.TypeString}
	if err := dataset.ApplySchema(table, declared); err != nil {
		return nil, err
	}
	return table, nil
}
