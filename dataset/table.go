package dataset

import "slices"

// Row упорядоченная запись: имя колонки -> значение.
// Порядок ключей совпадает с порядком появления в источнике.
type Row struct {
	keys   []string
	values map[string]any
}

// NewRow создает пустую запись
func NewRow() *Row {
	return &Row{values: make(map[string]any)}
}

// RowFromPairs создает запись из пар ключ/значение (ключи - четные позиции)
func RowFromPairs(pairs ...any) *Row {
	r := NewRow()
	for i := 0; i+1 < len(pairs); i += 2 {
		key, _ := pairs[i].(string)
		r.Set(key, pairs[i+1])
	}
	return r
}

// Set устанавливает значение, новые ключи добавляются в конец
func (r *Row) Set(key string, value any) {
	if _, exists := r.values[key]; !exists {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get возвращает значение колонки
func (r *Row) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys возвращает ключи в порядке появления
func (r *Row) Keys() []string {
	return slices.Clone(r.keys)
}

// Len количество полей
func (r *Row) Len() int {
	return len(r.keys)
}

// Clone возвращает независимую копию записи (значения копируются поверхностно)
func (r *Row) Clone() *Row {
	c := &Row{
		keys:   slices.Clone(r.keys),
		values: make(map[string]any, len(r.values)),
	}
	for k, v := range r.values {
		c.values[k] = v
	}
	return c
}

// Table упорядоченный набор строк с общим списком колонок.
// Порядковый номер строки - ее индекс в Rows.
type Table struct {
	Name    string
	Columns []string
	Rows    []*Row
	Schema  *Schema
}

// NewTable собирает таблицу из строк. Колонки - объединение ключей в порядке первого появления.
func NewTable(name string, rows []*Row) *Table {
	t := &Table{Name: name, Rows: rows}
	seen := make(map[string]bool)
	for _, row := range rows {
		for _, key := range row.keys {
			if !seen[key] {
				seen[key] = true
				t.Columns = append(t.Columns, key)
			}
		}
	}
	return t
}

// Len количество строк
func (t *Table) Len() int {
	return len(t.Rows)
}

// HasColumn проверяет наличие колонки
func (t *Table) HasColumn(name string) bool {
	return slices.Contains(t.Columns, name)
}

// Value возвращает значение ячейки; отсутствующее поле читается как nil
func (t *Table) Value(row int, column string) any {
	v, _ := t.Rows[row].Get(column)
	return v
}

// ColumnValues возвращает значения колонки по всем строкам
func (t *Table) ColumnValues(column string) []any {
	out := make([]any, len(t.Rows))
	for i := range t.Rows {
		out[i] = t.Value(i, column)
	}
	return out
}

// DistinctValues возвращает уникальные непустые значения колонки в порядке первого появления
func (t *Table) DistinctValues(column string) []any {
	var out []any
	seen := make(map[string]bool)
	for _, v := range t.ColumnValues(column) {
		if v == nil {
			continue
		}
		key := valueKey(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

// MoveColumnFirst переставляет колонку в начало списка колонок
func (t *Table) MoveColumnFirst(column string) {
	idx := slices.Index(t.Columns, column)
	if idx <= 0 {
		return
	}
	cols := make([]string, 0, len(t.Columns))
	cols = append(cols, column)
	cols = append(cols, t.Columns[:idx]...)
	cols = append(cols, t.Columns[idx+1:]...)
	t.Columns = cols
	if t.Schema != nil {
		t.Schema.reorder(cols)
	}
}
