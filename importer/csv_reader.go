package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"cepsilver/dataset"
)

// CSVReader читает CSV с заголовком и разделителем-запятой
type CSVReader struct {
	Delimiter rune
}

// NewCSVReader создает CSV читатель
func NewCSVReader() *CSVReader {
	return &CSVReader{Delimiter: ','}
}

func (r *CSVReader) Format() string {
	return "csv"
}

func (r *CSVReader) Extensions() []string {
	return []string{".csv"}
}

// Read читает CSV. Любая синтаксическая ошибка возвращается как ParseError,
// частично прочитанные данные не используются.
func (r *CSVReader) Read(path string, opts Options) (*dataset.Table, error) {
	data, err := readText(path)
	if err != nil {
		return nil, NewParseError("read", path, err)
	}

	table, err := r.parse(TableName(path), data, opts)
	if err != nil {
		return nil, NewParseError("csv", path, err)
	}
	return table, nil
}

func (r *CSVReader) parse(name string, data []byte, opts Options) (*dataset.Table, error) {
	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = r.Delimiter
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("no header row")
	}
	if err != nil {
		return nil, err
	}
	header = uniqueHeader(header)

	var records [][]string
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) > len(header) {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("line %d: expected %d fields, saw %d", line, len(header), len(record))
		}
		records = append(records, record)
	}

	// Типы колонок определяются по всем значениям колонки
	types := make([]dataset.ColumnType, len(header))
	for j, col := range header {
		if typ, ok := opts.Declared[col]; ok {
			types[j] = typ
			continue
		}
		cells := make([]string, len(records))
		for i, rec := range records {
			if j < len(rec) {
				cells[i] = rec[j]
			}
		}
		types[j] = dataset.InferTextType(cells)
	}

	rows := make([]*dataset.Row, 0, len(records))
	for i, rec := range records {
		row := dataset.NewRow()
		for j, col := range header {
			var cell string
			if j < len(rec) {
				cell = rec[j]
			}
			v, err := dataset.ParseTextCell(cell, types[j])
			if err != nil {
				return nil, &dataset.SchemaError{Column: col, Row: i, Type: types[j], Value: cell}
			}
			row.Set(col, v)
		}
		rows = append(rows, row)
	}

	table := dataset.NewTable(name, rows)
	table.Columns = header
	return table, nil
}

// uniqueHeader делает имена колонок уникальными: пустое имя -> "Unnamed: N", повтор -> "name.1".
// Пробелы в именах сохраняются.
func uniqueHeader(header []string) []string {
	out := make([]string, len(header))
	used := make(map[string]bool, len(header))
	suffix := make(map[string]int)
	for i, h := range header {
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		name := h
		for used[name] {
			suffix[h]++
			name = fmt.Sprintf("%s.%d", h, suffix[h])
		}
		used[name] = true
		out[i] = name
	}
	return out
}
