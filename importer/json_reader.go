package importer

import (
	"errors"
	"log/slog"

	"cepsilver/dataset"
)

// JSONReader читает JSON-массив объектов, при неудаче - JSON Lines
type JSONReader struct {
	logger *slog.Logger
}

// NewJSONReader создает JSON читатель
func NewJSONReader() *JSONReader {
	return &JSONReader{logger: slog.Default()}
}

// WithLogger задает логгер
func (r *JSONReader) WithLogger(logger *slog.Logger) *JSONReader {
	if logger != nil {
		r.logger = logger
	}
	return r
}

func (r *JSONReader) Format() string {
	return "json"
}

func (r *JSONReader) Extensions() []string {
	return []string{".json"}
}

// Read сначала пробует массив объектов, затем построчный формат.
// Если не подошел ни один вариант, возвращается ParseError с обеими причинами.
func (r *JSONReader) Read(path string, opts Options) (*dataset.Table, error) {
	data, err := readText(path)
	if err != nil {
		return nil, NewParseError("read", path, err)
	}

	rows, arrayErr := dataset.DecodeObjectArray(data)
	if arrayErr != nil {
		r.logger.Debug("JSON array parse failed, trying JSON lines",
			"path", path,
			"error", arrayErr,
		)
		var linesErr error
		rows, linesErr = dataset.DecodeObjectLines(data)
		if linesErr != nil {
			return nil, NewParseError("json", path, errors.Join(arrayErr, linesErr))
		}
	}

	return dataset.NewTable(TableName(path), rows), nil
}
