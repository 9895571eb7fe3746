package importer

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"cepsilver/dataset"
)

// ErrUnsupportedExtension файл с неизвестным расширением
var ErrUnsupportedExtension = errors.New("unsupported file extension")

// ParseError ошибка разбора входного файла с указанием этапа
type ParseError struct {
	Stage string
	Path  string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %s stage (%s): %v", e.Stage, e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError создает ParseError
func NewParseError(stage, path string, err error) *ParseError {
	return &ParseError{Stage: stage, Path: path, Err: err}
}

// Options параметры чтения файла
type Options struct {
	// Declared явно объявленные типы колонок (например, cep всегда строка)
	Declared map[string]dataset.ColumnType
}

// Reader читает входной файл в таблицу
type Reader interface {
	// Format возвращает название формата ("csv", "json")
	Format() string

	// Extensions возвращает обрабатываемые расширения в нижнем регистре, с точкой
	Extensions() []string

	// Read читает файл целиком
	Read(path string, opts Options) (*dataset.Table, error)
}

// Registry сопоставляет расширения файлов с читателями
type Registry struct {
	readers map[string]Reader
}

// NewRegistry создает реестр с читателями CSV и JSON
func NewRegistry(logger *slog.Logger) *Registry {
	r := &Registry{readers: make(map[string]Reader)}
	r.Register(NewCSVReader())
	r.Register(NewJSONReader().WithLogger(logger))
	return r
}

// Register добавляет читателя для всех его расширений
func (r *Registry) Register(reader Reader) {
	for _, ext := range reader.Extensions() {
		r.readers[strings.ToLower(ext)] = reader
	}
}

// ReaderFor возвращает читателя по расширению файла (без учета регистра)
func (r *Registry) ReaderFor(path string) (Reader, error) {
	ext := strings.ToLower(filepath.Ext(path))
	reader, ok := r.readers[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedExtension, ext)
	}
	return reader, nil
}

// TableName имя таблицы - имя файла без расширения
func TableName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readText читает файл и приводит содержимое к UTF-8.
// Файлы не в UTF-8 считаются Windows-1252 (типично для выгрузок из Excel).
func readText(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return decodeText(data)
}

func decodeText(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data, nil
	}
	decoded, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode windows-1252: %w", err)
	}
	return decoded, nil
}
