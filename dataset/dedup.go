package dataset

import (
	"fmt"
	"strings"
)

// SerializeNestedColumns заменяет списки (и вложенные объекты) JSON-строками.
// Колонка обрабатывается, если в ней есть хотя бы одно такое значение;
// скалярные значения той же колонки не меняются.
// Возвращает имена затронутых колонок.
func SerializeNestedColumns(t *Table) ([]string, error) {
	var touched []string
	for _, name := range t.Columns {
		nested := false
		for i := range t.Rows {
			v := t.Value(i, name)
			if IsList(v) || IsObject(v) {
				nested = true
				break
			}
		}
		if !nested {
			continue
		}

		for i, row := range t.Rows {
			v := t.Value(i, name)
			if !IsList(v) && !IsObject(v) {
				continue
			}
			s, err := ToJSONString(v)
			if err != nil {
				return touched, fmt.Errorf("column %q row %d: %w", name, i, err)
			}
			row.Set(name, s)
		}
		touched = append(touched, name)
	}
	return touched, nil
}

// Deduplicate удаляет полностью совпадающие строки, оставляя первое вхождение.
// Возвращает количество удаленных строк.
func Deduplicate(t *Table) int {
	return DeduplicateBy(t, t.Columns...)
}

// DeduplicateBy удаляет строки, совпадающие по указанным колонкам, оставляя первое вхождение.
// Порядок оставшихся строк сохраняется, нумерация строк становится непрерывной.
func DeduplicateBy(t *Table, columns ...string) int {
	seen := make(map[string]struct{}, len(t.Rows))
	kept := make([]*Row, 0, len(t.Rows))
	for i, row := range t.Rows {
		key := rowKey(t, i, columns)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, row)
	}
	removed := len(t.Rows) - len(kept)
	t.Rows = kept
	return removed
}

func rowKey(t *Table, i int, columns []string) string {
	var sb strings.Builder
	for _, col := range columns {
		k := valueKey(t.Value(i, col))
		// длина-префикс исключает коллизии на границах значений
		fmt.Fprintf(&sb, "%d|%s", len(k), k)
	}
	return sb.String()
}
