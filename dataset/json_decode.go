package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Стандартный декодер в map[string]any теряет порядок ключей,
// поэтому объекты читаются потоково по токенам.

// ErrNotObject возвращается, когда на месте объекта найдено другое значение
var ErrNotObject = errors.New("json value is not an object")

func newDecoder(data []byte) *json.Decoder {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec
}

// DecodeObject читает один JSON-объект с сохранением порядка ключей
func DecodeObject(data []byte) (*Row, error) {
	dec := newDecoder(data)
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	row, ok := v.(*Row)
	if !ok {
		return nil, ErrNotObject
	}
	if err := expectEOF(dec); err != nil {
		return nil, err
	}
	return row, nil
}

// DecodeObjectArray читает JSON-массив объектов
func DecodeObjectArray(data []byte) ([]*Row, error) {
	dec := newDecoder(data)
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, fmt.Errorf("expected JSON array, got %v", tok)
	}

	rows := make([]*Row, 0)
	for dec.More() {
		v, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		row, ok := v.(*Row)
		if !ok {
			return nil, fmt.Errorf("array element %d: %w", len(rows), ErrNotObject)
		}
		rows = append(rows, row)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if err := expectEOF(dec); err != nil {
		return nil, err
	}
	return rows, nil
}

// DecodeObjectLines читает JSON-объекты, по одному на строку (NDJSON). Пустые строки пропускаются.
func DecodeObjectLines(data []byte) ([]*Row, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	rows := make([]*Row, 0)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		row, err := DecodeObject(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			row := NewRow()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected object key %v", keyTok)
				}
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				row.Set(key, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return row, nil
		case '[':
			list := make([]any, 0)
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				list = append(list, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return list, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %v", t)
		}
	case json.Number:
		return numberValue(t), nil
	case string, bool, nil:
		return t, nil
	default:
		return nil, fmt.Errorf("unexpected token %v", t)
	}
}

func numberValue(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

func expectEOF(dec *json.Decoder) error {
	if _, err := dec.Token(); err != io.EOF {
		if err == nil {
			return errors.New("unexpected data after top-level value")
		}
		return err
	}
	return nil
}
