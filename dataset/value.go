package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Допустимые значения ячеек: nil, string, int64, float64, bool,
// []any (список) и *Row (вложенный объект).

// IsList проверяет, является ли значение списком
func IsList(v any) bool {
	_, ok := v.([]any)
	return ok
}

// IsObject проверяет, является ли значение вложенным объектом
func IsObject(v any) bool {
	_, ok := v.(*Row)
	return ok
}

// MarshalJSON сериализует запись как объект с сохранением порядка ключей
func (r *Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := encodeJSON(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := encodeJSON(r.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ToJSONString сериализует значение в компактный JSON (UTF-8 без экранирования HTML)
func ToJSONString(v any) (string, error) {
	b, err := encodeJSON(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// valueKey строит ключ сравнения значения с учетом его типа.
// Числа сравниваются по значению: 3 и 3.0 дают один ключ, "3" - другой.
func valueKey(v any) string {
	switch val := v.(type) {
	case nil:
		return "n:"
	case string:
		return "s:" + val
	case int64:
		return "d:" + strconv.FormatInt(val, 10)
	case float64:
		if math.IsNaN(val) {
			return "d:NaN"
		}
		if val == math.Trunc(val) && math.Abs(val) < 1<<63 {
			return "d:" + strconv.FormatInt(int64(val), 10)
		}
		return "d:" + strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return "b:" + strconv.FormatBool(val)
	case []any, *Row:
		s, err := ToJSONString(val)
		if err != nil {
			return fmt.Sprintf("x:%v", val)
		}
		return "j:" + s
	default:
		return fmt.Sprintf("x:%T:%v", val, val)
	}
}

// Truthy оценивает значение по правилам "истинности" JSON-ответов:
// false, 0, "", null и пустые коллекции ложны, остальное истинно.
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case int64:
		return val != 0
	case float64:
		return val != 0
	case json.Number:
		f, err := val.Float64()
		return err != nil || f != 0
	case []any:
		return len(val) > 0
	case *Row:
		return val.Len() > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}
