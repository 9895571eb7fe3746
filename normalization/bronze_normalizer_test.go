package normalization

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cepsilver/dataset"
	"cepsilver/enrichment"
	"cepsilver/importer"
)

const paulistaJSON = `{"cep": "01310-100", "logradouro": "Avenida Paulista", "bairro": "Bela Vista", "localidade": "São Paulo", "uf": "SP", "ibge": "3550308"}`

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

// newViaCEPServer фейковый ViaCEP: 01310100 найден, остальное {"erro": true}
func newViaCEPServer(t *testing.T) (*enrichment.ViaCEPEnricher, func() []string) {
	t.Helper()
	var mu sync.Mutex
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		if r.URL.Path == "/ws/01310100/json/" {
			w.Write([]byte(paulistaJSON))
			return
		}
		w.Write([]byte(`{"erro": true}`))
	}))
	t.Cleanup(srv.Close)

	client := enrichment.NewViaCEPEnricher(&enrichment.EnricherConfig{BaseURL: srv.URL, RequestDelay: 10 * time.Millisecond})
	return client, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), paths...)
	}
}

func newTestNormalizer(t *testing.T, lookuper enrichment.Lookuper, opts ...Option) *BronzeNormalizer {
	t.Helper()
	exporter, err := NewParquetExporter("snappy")
	require.NoError(t, err)
	return NewBronzeNormalizer(DefaultConfig(), lookuper, exporter, opts...)
}

func TestBronzeNormalizer_UsersAndCEPInfo(t *testing.T) {
	input := writeFiles(t, map[string]string{
		"users.csv": "cep\n01310-100\n01310-100\n00000-000\n",
		"notes.txt": "not a table",
	})
	output := filepath.Join(t.TempDir(), "silver")

	client, requests := newViaCEPServer(t)
	var events []Event
	n := newTestNormalizer(t, client, WithEventHandler(func(ev Event) { events = append(events, ev) }))

	summary, err := n.Run(context.Background(), input, output)
	require.NoError(t, err)
	assert.Equal(t, "completed", summary.Status())
	assert.NotEmpty(t, summary.RunID)

	assert.Len(t, requests(), 2)

	require.Len(t, summary.Skipped, 1)
	assert.Equal(t, SkippedFile{File: "notes.txt", Reason: "unsupported format"}, summary.Skipped[0])
	assert.NoFileExists(t, filepath.Join(output, "notes.parquet"))

	users, err := ReadParquet(filepath.Join(output, "users.parquet"))
	require.NoError(t, err)
	assert.Equal(t, 2, users.Len())
	assert.Equal(t, "01310-100", users.Value(0, "cep"))
	assert.Equal(t, "00000-000", users.Value(1, "cep"))
	require.Len(t, summary.Files, 1)
	assert.Equal(t, 1, summary.Files[0].Duplicates)

	require.NotNil(t, summary.CEP)
	assert.Equal(t, 2, summary.CEP.Distinct)
	assert.Equal(t, 1, summary.CEP.Found)
	assert.Equal(t, 1, summary.CEP.NotFound)
	assert.Equal(t, 1, summary.CEP.Reasons[enrichment.ReasonNotFound])

	info, err := ReadParquet(filepath.Join(output, "cep_info.parquet"))
	require.NoError(t, err)
	require.Equal(t, 1, info.Len())
	assert.Equal(t, "cep_original", info.Columns[0])
	assert.Equal(t, "01310-100", info.Value(0, "cep_original"))
	assert.Equal(t, "Avenida Paulista", info.Value(0, "logradouro"))
	assert.NotContains(t, info.Columns, "erro")

	var kinds []EventKind
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []EventKind{
		EventFileSkipped,
		EventFileWritten,
		EventEnrichmentStarted,
		EventEnrichmentWritten,
	}, kinds)
}

func TestBronzeNormalizer_JSONFilesAndDuplicates(t *testing.T) {
	input := writeFiles(t, map[string]string{
		"orders.json": `[
  {"order_id": 1, "items": ["a", "b"], "total": 10.5},
  {"order_id": 1, "items": ["a", "b"], "total": 10.5},
  {"order_id": 2, "items": ["c"], "total": 3}
]`,
		"events.JSON": "{\"event\": \"login\", \"meta\": {\"ip\": \"10.0.0.1\"}}\n{\"event\": \"logout\", \"meta\": null}\n",
	})
	output := t.TempDir()

	n := newTestNormalizer(t, enrichment.LookuperFunc(func(ctx context.Context, cep string) *enrichment.LookupResult {
		t.Fatalf("unexpected lookup %q", cep)
		return nil
	}))

	summary, err := n.Run(context.Background(), input, output)
	require.NoError(t, err)
	require.Len(t, summary.Files, 2)
	assert.Nil(t, summary.CEP)

	// Порядок обработки лексический
	assert.Equal(t, "events.JSON", summary.Files[0].File)
	assert.Equal(t, "orders.json", summary.Files[1].File)

	orders := summary.Files[1]
	assert.Equal(t, 3, orders.RowsRead)
	assert.Equal(t, 1, orders.Duplicates)
	assert.Equal(t, 2, orders.RowsWritten)
	assert.Equal(t, []string{"items"}, orders.NestedColumns)

	table, err := ReadParquet(filepath.Join(output, "orders.parquet"))
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, table.Value(0, "items"))
	assert.Equal(t, 10.5, table.Value(0, "total"))
	assert.Equal(t, 3.0, table.Value(1, "total"))

	events, err := ReadParquet(filepath.Join(output, "events.parquet"))
	require.NoError(t, err)
	assert.Equal(t, `{"ip":"10.0.0.1"}`, events.Value(0, "meta"))
	assert.Nil(t, events.Value(1, "meta"))
}

func TestBronzeNormalizer_EmptyJSONWritesFile(t *testing.T) {
	input := writeFiles(t, map[string]string{"empty.json": "[]"})
	output := t.TempDir()
	n := newTestNormalizer(t, enrichment.LookuperFunc(func(context.Context, string) *enrichment.LookupResult { return nil }))

	summary, err := n.Run(context.Background(), input, output)
	require.NoError(t, err)
	assert.Empty(t, summary.Skipped)
	require.Len(t, summary.Files, 1)
	assert.Equal(t, 0, summary.Files[0].RowsRead)
	assert.Equal(t, 0, summary.Files[0].RowsWritten)
	assert.Equal(t, 0, summary.Files[0].Columns)
	assert.FileExists(t, filepath.Join(output, "empty.parquet"))
}

func TestBronzeNormalizer_DeduplicatesBeforeTyping(t *testing.T) {
	input := writeFiles(t, map[string]string{
		"mixed.json": `[{"a": 1}, {"a": "1"}, {"a": 1.0}]`,
	})
	output := t.TempDir()
	n := newTestNormalizer(t, enrichment.LookuperFunc(func(context.Context, string) *enrichment.LookupResult { return nil }))

	summary, err := n.Run(context.Background(), input, output)
	require.NoError(t, err)
	require.Len(t, summary.Files, 1)
	assert.Equal(t, 3, summary.Files[0].RowsRead)
	assert.Equal(t, 1, summary.Files[0].Duplicates)
	assert.Equal(t, 2, summary.Files[0].RowsWritten)

	table, err := ReadParquet(filepath.Join(output, "mixed.parquet"))
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, "1", table.Value(0, "a"))
	assert.Equal(t, "1", table.Value(1, "a"))
}

func TestBronzeNormalizer_Idempotent(t *testing.T) {
	input := writeFiles(t, map[string]string{
		"products.csv": "sku,price,active\nA1,9.90,true\nA1,9.90,true\nB2,,false\n",
	})
	output := t.TempDir()
	n := newTestNormalizer(t, enrichment.LookuperFunc(func(context.Context, string) *enrichment.LookupResult { return nil }))

	_, err := n.Run(context.Background(), input, output)
	require.NoError(t, err)
	first, err := ReadParquet(filepath.Join(output, "products.parquet"))
	require.NoError(t, err)

	_, err = n.Run(context.Background(), input, output)
	require.NoError(t, err)
	second, err := ReadParquet(filepath.Join(output, "products.parquet"))
	require.NoError(t, err)

	assert.Equal(t, 2, first.Len())
	assert.Equal(t, first.Columns, second.Columns)
	for i := 0; i < first.Len(); i++ {
		for _, col := range first.Columns {
			assert.Equal(t, first.Value(i, col), second.Value(i, col))
		}
	}
	assert.Nil(t, first.Value(1, "price"))

	// Повторная дедупликация записанной таблицы ничего не меняет
	assert.Equal(t, 0, dataset.Deduplicate(second))
}

func TestBronzeNormalizer_NoCEPFound(t *testing.T) {
	input := writeFiles(t, map[string]string{
		"USERS.csv": "id,cep\n1,abc\n2,99999-999\n",
	})
	output := t.TempDir()

	var lookups []string
	lookuper := enrichment.LookuperFunc(func(ctx context.Context, cep string) *enrichment.LookupResult {
		lookups = append(lookups, cep)
		return &enrichment.LookupResult{Code: cep, Reason: enrichment.ReasonNotFound}
	})
	var empty []Event
	n := newTestNormalizer(t, lookuper, WithEventHandler(func(ev Event) {
		if ev.Kind == EventEnrichmentEmpty {
			empty = append(empty, ev)
		}
	}))

	summary, err := n.Run(context.Background(), input, output)
	require.NoError(t, err)
	assert.Equal(t, []string{"abc", "99999-999"}, lookups)
	require.Len(t, empty, 1)
	assert.Equal(t, 2, empty[0].Total)
	assert.Equal(t, 0, summary.CEP.Found)
	assert.NoFileExists(t, filepath.Join(output, "cep_info.parquet"))
	assert.FileExists(t, filepath.Join(output, "USERS.parquet"))
}

func TestBronzeNormalizer_ProgressEvents(t *testing.T) {
	content := "cep\n"
	for i := 0; i < 5; i++ {
		content += "0131010" + string(rune('0'+i)) + "\n"
	}
	input := writeFiles(t, map[string]string{"users.csv": content})

	lookuper := enrichment.LookuperFunc(func(ctx context.Context, cep string) *enrichment.LookupResult {
		rec := dataset.RowFromPairs("cep", cep, "uf", "SP")
		return &enrichment.LookupResult{Code: cep, Record: rec, Reason: enrichment.ReasonFound}
	})
	var progress []Event
	exporter, err := NewParquetExporter("none")
	require.NoError(t, err)
	n := NewBronzeNormalizer(Config{ProgressEvery: 2}, lookuper, exporter, WithEventHandler(func(ev Event) {
		if ev.Kind == EventEnrichmentProgress {
			progress = append(progress, ev)
		}
	}))

	summary, err := n.Run(context.Background(), input, t.TempDir())
	require.NoError(t, err)
	require.Len(t, progress, 2)
	assert.Equal(t, 2, progress[0].Processed)
	assert.Equal(t, 4, progress[1].Processed)
	assert.Equal(t, 5, progress[1].Total)
	assert.Equal(t, 5, summary.CEP.Written)

	info, err := ReadParquet(summary.CEP.OutputPath)
	require.NoError(t, err)
	seen := map[any]bool{}
	for _, v := range info.ColumnValues("cep_original") {
		assert.False(t, seen[v], "duplicate cep_original %v", v)
		seen[v] = true
	}
	// Ведущий ноль сохраняется: колонка cep объявлена строковой
	assert.Equal(t, "01310100", info.Value(0, "cep_original"))
}

func TestBronzeNormalizer_FailsOnMalformedInput(t *testing.T) {
	input := writeFiles(t, map[string]string{
		"a_good.csv":  "x\n1\n",
		"b_bad.json":  "[{\"x\": 1}, oops",
		"c_later.csv": "y\n2\n",
	})
	output := t.TempDir()
	n := newTestNormalizer(t, enrichment.LookuperFunc(func(context.Context, string) *enrichment.LookupResult { return nil }))

	summary, err := n.Run(context.Background(), input, output)
	require.Error(t, err)

	var parseErr *importer.ParseError
	assert.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "failed", summary.Status())
	require.Len(t, summary.Files, 1)
	assert.FileExists(t, filepath.Join(output, "a_good.parquet"))
	assert.NoFileExists(t, filepath.Join(output, "c_later.parquet"))
}

func TestBronzeNormalizer_CanceledContext(t *testing.T) {
	input := writeFiles(t, map[string]string{"users.csv": "cep\n01310100\n"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n := newTestNormalizer(t, enrichment.LookuperFunc(func(context.Context, string) *enrichment.LookupResult { return nil }))
	summary, err := n.Run(ctx, input, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "failed", summary.Status())
}

func TestBronzeNormalizer_MissingInputDir(t *testing.T) {
	n := newTestNormalizer(t, enrichment.LookuperFunc(func(context.Context, string) *enrichment.LookupResult { return nil }))
	_, err := n.Run(context.Background(), filepath.Join(t.TempDir(), "absent"), t.TempDir())
	assert.ErrorContains(t, err, "failed to read input directory")
}
