package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ColumnType тип колонки в колоночном файле
type ColumnType string

const (
	TypeString  ColumnType = "string"
	TypeInt64   ColumnType = "int64"
	TypeFloat64 ColumnType = "float64"
	TypeBool    ColumnType = "bool"
)

// Column описание колонки схемы
type Column struct {
	Name     string
	Type     ColumnType
	Declared bool // тип задан явно, а не выведен из данных
}

// Schema упорядоченная схема таблицы
type Schema struct {
	Columns []Column
}

// Column возвращает описание колонки по имени
func (s *Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func (s *Schema) reorder(names []string) {
	byName := make(map[string]Column, len(s.Columns))
	for _, c := range s.Columns {
		byName[c.Name] = c
	}
	cols := make([]Column, 0, len(names))
	for _, n := range names {
		if c, ok := byName[n]; ok {
			cols = append(cols, c)
		}
	}
	s.Columns = cols
}

// SchemaError ошибка приведения значения к типу колонки
type SchemaError struct {
	Column string
	Row    int
	Type   ColumnType
	Value  any
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("column %q row %d: cannot convert %v (%T) to %s", e.Column, e.Row, e.Value, e.Value, e.Type)
}

// ParseTextCell разбирает текстовую ячейку CSV по типу колонки. Пустая ячейка - nil.
func ParseTextCell(cell string, typ ColumnType) (any, error) {
	if cell == "" {
		return nil, nil
	}
	switch typ {
	case TypeInt64:
		return strconv.ParseInt(strings.TrimSpace(cell), 10, 64)
	case TypeFloat64:
		return strconv.ParseFloat(strings.TrimSpace(cell), 64)
	case TypeBool:
		return parseBool(cell)
	default:
		return cell, nil
	}
}

// InferTextType определяет тип текстовой колонки: int64, затем float64, затем bool, иначе string
func InferTextType(cells []string) ColumnType {
	candidates := []ColumnType{TypeInt64, TypeFloat64, TypeBool}
	nonEmpty := 0
	for _, typ := range candidates {
		ok := true
		for _, cell := range cells {
			if cell == "" {
				continue
			}
			nonEmpty++
			if _, err := ParseTextCell(cell, typ); err != nil {
				ok = false
				break
			}
		}
		if nonEmpty == 0 {
			return TypeString
		}
		if ok {
			return typ
		}
	}
	return TypeString
}

func parseBool(cell string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(cell)) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, fmt.Errorf("invalid bool %q", cell)
}

// InferValueType выводит тип колонки по типизированным значениям.
// int64 и float64 вместе дают float64, любое другое смешение - string.
func InferValueType(values []any) ColumnType {
	var hasInt, hasFloat, hasBool, hasOther bool
	for _, v := range values {
		switch v.(type) {
		case nil:
		case int64:
			hasInt = true
		case float64:
			hasFloat = true
		case bool:
			hasBool = true
		default:
			hasOther = true
		}
	}
	switch {
	case hasOther:
		return TypeString
	case hasBool && (hasInt || hasFloat):
		return TypeString
	case hasBool:
		return TypeBool
	case hasFloat:
		return TypeFloat64
	case hasInt:
		return TypeInt64
	default:
		return TypeString
	}
}

// Coerce приводит значение к типу колонки
func Coerce(v any, typ ColumnType) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch typ {
	case TypeString:
		return formatScalar(v)
	case TypeInt64:
		switch val := v.(type) {
		case int64:
			return val, nil
		case float64:
			if val == math.Trunc(val) && !math.IsInf(val, 0) {
				return int64(val), nil
			}
		case string:
			return strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		}
	case TypeFloat64:
		switch val := v.(type) {
		case float64:
			return val, nil
		case int64:
			return float64(val), nil
		case string:
			return strconv.ParseFloat(strings.TrimSpace(val), 64)
		}
	case TypeBool:
		switch val := v.(type) {
		case bool:
			return val, nil
		case string:
			return parseBool(val)
		}
	}
	return nil, fmt.Errorf("unsupported conversion %T -> %s", v, typ)
}

func formatScalar(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(val), nil
	case []any, *Row:
		return ToJSONString(val)
	default:
		return fmt.Sprint(val), nil
	}
}

// ApplySchema выводит типы колонок, учитывая явно объявленные, и приводит к ним все значения.
// Ошибка приведения для объявленной колонки возвращается как *SchemaError.
func ApplySchema(t *Table, declared map[string]ColumnType) error {
	schema := &Schema{Columns: make([]Column, 0, len(t.Columns))}
	for _, name := range t.Columns {
		col := Column{Name: name}
		if typ, ok := declared[name]; ok {
			col.Type = typ
			col.Declared = true
		} else {
			col.Type = InferValueType(t.ColumnValues(name))
		}

		for i, row := range t.Rows {
			v, _ := row.Get(name)
			cv, err := Coerce(v, col.Type)
			if err != nil {
				return &SchemaError{Column: name, Row: i, Type: col.Type, Value: v}
			}
			row.Set(name, cv)
		}
		schema.Columns = append(schema.Columns, col)
	}
	t.Schema = schema
	return nil
}
