package normalization

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"cepsilver/dataset"
)

// TableExporter записывает таблицу в файл
type TableExporter interface {
	// Extension расширение выходного файла, с точкой
	Extension() string

	// Export записывает таблицу по указанному пути
	Export(table *dataset.Table, path string) error
}

// ParquetExporter экспортер в parquet через Apache Arrow
type ParquetExporter struct {
	codec compress.Compression
	mem   memory.Allocator
}

// NewParquetExporter создает экспортер. Поддерживаемые кодеки: snappy, gzip, zstd, none.
func NewParquetExporter(compression string) (*ParquetExporter, error) {
	codec, err := parseCompression(compression)
	if err != nil {
		return nil, err
	}
	return &ParquetExporter{codec: codec, mem: memory.DefaultAllocator}, nil
}

func parseCompression(name string) (compress.Compression, error) {
	switch strings.ToLower(name) {
	case "", "snappy":
		return compress.Codecs.Snappy, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "none", "uncompressed":
		return compress.Codecs.Uncompressed, nil
	}
	return compress.Codecs.Uncompressed, fmt.Errorf("unsupported parquet compression: %s", name)
}

func (e *ParquetExporter) Extension() string {
	return ".parquet"
}

// Export записывает таблицу в parquet с сохранением порядка колонок.
// Таблица без схемы типизируется перед записью.
func (e *ParquetExporter) Export(table *dataset.Table, path string) error {
	if table.Schema == nil {
		if err := dataset.ApplySchema(table, nil); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	schema := arrowSchema(table.Schema)
	builder := array.NewRecordBuilder(e.mem, schema)
	defer builder.Release()

	for i, col := range table.Schema.Columns {
		if err := appendColumn(builder.Field(i), col, table); err != nil {
			return err
		}
	}

	record := builder.NewRecord()
	defer record.Release()

	var buf bytes.Buffer
	props := parquet.NewWriterProperties(parquet.WithCompression(e.codec))
	writer, err := pqarrow.NewFileWriter(schema, &buf, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	// Таблица без колонок записывается как файл с пустой схемой
	if len(table.Schema.Columns) > 0 {
		if err := writer.Write(record); err != nil {
			writer.Close()
			return fmt.Errorf("failed to write parquet record: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func arrowSchema(schema *dataset.Schema) *arrow.Schema {
	fields := make([]arrow.Field, len(schema.Columns))
	for i, col := range schema.Columns {
		fields[i] = arrow.Field{Name: col.Name, Type: arrowType(col.Type), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

func arrowType(typ dataset.ColumnType) arrow.DataType {
	switch typ {
	case dataset.TypeInt64:
		return arrow.PrimitiveTypes.Int64
	case dataset.TypeFloat64:
		return arrow.PrimitiveTypes.Float64
	case dataset.TypeBool:
		return arrow.FixedWidthTypes.Boolean
	default:
		return arrow.BinaryTypes.String
	}
}

func appendColumn(b array.Builder, col dataset.Column, table *dataset.Table) error {
	for i := range table.Rows {
		v := table.Value(i, col.Name)
		if v == nil {
			b.AppendNull()
			continue
		}

		ok := true
		switch fb := b.(type) {
		case *array.StringBuilder:
			var s string
			if s, ok = v.(string); ok {
				fb.Append(s)
			}
		case *array.Int64Builder:
			var n int64
			if n, ok = v.(int64); ok {
				fb.Append(n)
			}
		case *array.Float64Builder:
			var f float64
			if f, ok = v.(float64); ok {
				fb.Append(f)
			}
		case *array.BooleanBuilder:
			var bv bool
			if bv, ok = v.(bool); ok {
				fb.Append(bv)
			}
		default:
			return fmt.Errorf("column %q: unsupported builder %T", col.Name, b)
		}
		if !ok {
			return fmt.Errorf("column %q row %d: value %v (%T) does not match type %s", col.Name, i, v, v, col.Type)
		}
	}
	return nil
}

// ReadParquet читает parquet-файл обратно в таблицу
func ReadParquet(path string) (*dataset.Table, error) {
	rdr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer rdr.Close()

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("failed to create arrow reader: %w", err)
	}

	tbl, err := fr.ReadTable(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet table: %w", err)
	}
	defer tbl.Release()

	nrows := int(tbl.NumRows())
	rows := make([]*dataset.Row, nrows)
	for i := range rows {
		rows[i] = dataset.NewRow()
	}

	schema := &dataset.Schema{}
	columns := make([]string, 0, tbl.NumCols())
	for c := 0; c < int(tbl.NumCols()); c++ {
		col := tbl.Column(c)
		name := col.Name()
		columns = append(columns, name)
		schema.Columns = append(schema.Columns, dataset.Column{Name: name, Type: columnType(col.DataType())})

		offset := 0
		for _, chunk := range col.Data().Chunks() {
			for j := 0; j < chunk.Len(); j++ {
				rows[offset+j].Set(name, arrowValue(chunk, j))
			}
			offset += chunk.Len()
		}
	}

	table := dataset.NewTable(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), rows)
	table.Columns = columns
	table.Schema = schema
	return table, nil
}

func columnType(dt arrow.DataType) dataset.ColumnType {
	switch dt.ID() {
	case arrow.INT64:
		return dataset.TypeInt64
	case arrow.FLOAT64:
		return dataset.TypeFloat64
	case arrow.BOOL:
		return dataset.TypeBool
	default:
		return dataset.TypeString
	}
}

func arrowValue(arr arrow.Array, i int) any {
	if arr.IsNull(i) {
		return nil
	}
	switch a := arr.(type) {
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	case *array.Int64:
		return a.Value(i)
	case *array.Float64:
		return a.Value(i)
	case *array.Boolean:
		return a.Value(i)
	default:
		return a.ValueStr(i)
	}
}
