package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeObjectArray_PreservesKeyOrder(t *testing.T) {
	data := []byte(`[{"zeta": 1, "alpha": "x", "tags": ["a", "b"]}, {"alpha": "y", "mid": null, "zeta": 2.5}]`)

	rows, err := DecodeObjectArray(data)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, []string{"zeta", "alpha", "tags"}, rows[0].Keys())
	v, _ := rows[0].Get("zeta")
	assert.Equal(t, int64(1), v)
	v, _ = rows[1].Get("zeta")
	assert.Equal(t, 2.5, v)

	table := NewTable("t", rows)
	assert.Equal(t, []string{"zeta", "alpha", "tags", "mid"}, table.Columns)
}

func TestDecodeObjectArray_RejectsNonArray(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"ndjson", "{\"a\": 1}\n{\"a\": 2}\n"},
		{"scalar elements", `[1, 2]`},
		{"trailing garbage", `[{"a": 1}] x`},
		{"truncated", `[{"a": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeObjectArray([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestDecodeObjectLines(t *testing.T) {
	data := []byte("{\"a\": 1, \"b\": \"x\"}\n\n  {\"b\": \"y\", \"a\": 2}\n")
	rows, err := DecodeObjectLines(data)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"b", "a"}, rows[1].Keys())

	_, err = DecodeObjectLines([]byte("{\"a\": 1}\nnot json\n"))
	assert.ErrorContains(t, err, "line 2")
}

func TestDecodeObject(t *testing.T) {
	row, err := DecodeObject([]byte(`{"cep": "01310-100", "erro": false}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"cep", "erro"}, row.Keys())

	_, err = DecodeObject([]byte(`["not", "object"]`))
	assert.ErrorIs(t, err, ErrNotObject)
}

func TestSerializeNestedColumns(t *testing.T) {
	table := NewTable("t", []*Row{
		RowFromPairs("id", int64(1), "tags", []any{"a", "b"}),
		RowFromPairs("id", int64(2), "tags", "plain"),
		RowFromPairs("id", int64(3), "tags", nil),
		RowFromPairs("id", int64(4), "tags", []any{"ç", "<b>"}),
	})

	touched, err := SerializeNestedColumns(table)
	require.NoError(t, err)
	assert.Equal(t, []string{"tags"}, touched)

	assert.Equal(t, `["a","b"]`, table.Value(0, "tags"))
	assert.Equal(t, "plain", table.Value(1, "tags"))
	assert.Nil(t, table.Value(2, "tags"))
	assert.Equal(t, `["ç","<b>"]`, table.Value(3, "tags"))
	assert.Equal(t, int64(1), table.Value(0, "id"))
}

func TestDeduplicate_ListsCollapseAfterSerialization(t *testing.T) {
	table := NewTable("t", []*Row{
		RowFromPairs("name", "ana", "tags", []any{"a", "b"}),
		RowFromPairs("name", "ana", "tags", []any{"a", "b"}),
		RowFromPairs("name", "bia", "tags", []any{"a"}),
	})

	_, err := SerializeNestedColumns(table)
	require.NoError(t, err)

	removed := Deduplicate(table)
	assert.Equal(t, 1, removed)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, "ana", table.Value(0, "name"))
	assert.Equal(t, "bia", table.Value(1, "name"))
}

func TestDeduplicate_TypeSensitiveAndIdempotent(t *testing.T) {
	table := NewTable("t", []*Row{
		RowFromPairs("v", "1"),
		RowFromPairs("v", int64(1)),
		RowFromPairs("v", "1"),
		RowFromPairs("v", nil),
		RowFromPairs("v", nil),
	})

	assert.Equal(t, 2, Deduplicate(table))
	assert.Equal(t, 3, table.Len())
	assert.Equal(t, 0, Deduplicate(table))
	assert.Equal(t, 3, table.Len())
}

func TestDeduplicate_NumbersCompareByValue(t *testing.T) {
	table := NewTable("t", []*Row{
		RowFromPairs("total", int64(3)),
		RowFromPairs("total", 3.0),
		RowFromPairs("total", "3"),
		RowFromPairs("total", 3.5),
		RowFromPairs("total", 3.5),
	})

	assert.Equal(t, 2, Deduplicate(table))
	require.Equal(t, 3, table.Len())
	assert.Equal(t, int64(3), table.Value(0, "total"))
	assert.Equal(t, "3", table.Value(1, "total"))
	assert.Equal(t, 3.5, table.Value(2, "total"))
}

func TestDeduplicateBy_KeepsFirst(t *testing.T) {
	table := NewTable("cep_info", []*Row{
		RowFromPairs("cep_original", "01310-100", "localidade", "São Paulo"),
		RowFromPairs("cep_original", "01310-100", "localidade", "Outra"),
		RowFromPairs("cep_original", "20040-002", "localidade", "Rio de Janeiro"),
	})

	assert.Equal(t, 1, DeduplicateBy(table, "cep_original"))
	assert.Equal(t, "São Paulo", table.Value(0, "localidade"))
	assert.Equal(t, "Rio de Janeiro", table.Value(1, "localidade"))
}

func TestInferTextType(t *testing.T) {
	tests := []struct {
		cells []string
		want  ColumnType
	}{
		{[]string{"1", "", "42"}, TypeInt64},
		{[]string{"1", "2.5"}, TypeFloat64},
		{[]string{"True", "false"}, TypeBool},
		{[]string{"01310-100", "1"}, TypeString},
		{[]string{"", ""}, TypeString},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InferTextType(tt.cells), "cells %v", tt.cells)
	}
}

func TestApplySchema(t *testing.T) {
	table := NewTable("users", []*Row{
		RowFromPairs("cep", int64(1310100), "age", int64(30), "score", int64(1)),
		RowFromPairs("cep", "01310-100", "age", nil, "score", 2.5),
	})

	err := ApplySchema(table, map[string]ColumnType{"cep": TypeString})
	require.NoError(t, err)

	col, ok := table.Schema.Column("cep")
	require.True(t, ok)
	assert.True(t, col.Declared)
	assert.Equal(t, "1310100", table.Value(0, "cep"))

	col, _ = table.Schema.Column("age")
	assert.Equal(t, TypeInt64, col.Type)
	col, _ = table.Schema.Column("score")
	assert.Equal(t, TypeFloat64, col.Type)
	assert.Equal(t, 1.0, table.Value(0, "score"))
}

func TestApplySchema_DeclaredTypeMismatch(t *testing.T) {
	table := NewTable("t", []*Row{RowFromPairs("n", "abc")})
	err := ApplySchema(table, map[string]ColumnType{"n": TypeInt64})

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "n", schemaErr.Column)
}

func TestTable_DistinctValuesAndMoveColumnFirst(t *testing.T) {
	table := NewTable("t", []*Row{
		RowFromPairs("a", int64(1), "cep", "01310-100"),
		RowFromPairs("a", int64(2), "cep", nil),
		RowFromPairs("a", int64(3), "cep", "01310-100"),
		RowFromPairs("a", int64(4), "cep", "00000-000"),
	})

	assert.Equal(t, []any{"01310-100", "00000-000"}, table.DistinctValues("cep"))

	require.NoError(t, ApplySchema(table, nil))
	table.MoveColumnFirst("cep")
	assert.Equal(t, []string{"cep", "a"}, table.Columns)
	assert.Equal(t, "cep", table.Schema.Columns[0].Name)
}

func TestTruthy(t *testing.T) {
	assert.True(t, Truthy(true))
	assert.True(t, Truthy("true"))
	assert.True(t, Truthy(int64(1)))
	assert.False(t, Truthy(false))
	assert.False(t, Truthy(""))
	assert.False(t, Truthy(nil))
	assert.False(t, Truthy(int64(0)))
	assert.False(t, Truthy([]any{}))
}
