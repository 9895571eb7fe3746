package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cepsilver/importer"
)

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, generate(dir, 30, 42))

	for _, name := range []string{"users.csv", "orders.json", "events.json", "notes.txt"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	users, err := importer.NewCSVReader().Read(filepath.Join(dir, "users.csv"), importer.Options{})
	require.NoError(t, err)
	assert.Equal(t, 30, users.Len())
	assert.True(t, users.HasColumn("cep"))

	orders, err := importer.NewJSONReader().Read(filepath.Join(dir, "orders.json"), importer.Options{})
	require.NoError(t, err)
	assert.Equal(t, 32, orders.Len())

	events, err := importer.NewJSONReader().Read(filepath.Join(dir, "events.json"), importer.Options{})
	require.NoError(t, err)
	assert.Equal(t, 60, events.Len())

	// Одинаковый seed - одинаковые данные
	other := t.TempDir()
	require.NoError(t, generate(other, 30, 42))
	a, _ := os.ReadFile(filepath.Join(dir, "users.csv"))
	b, _ := os.ReadFile(filepath.Join(other, "users.csv"))
	assert.Equal(t, a, b)
}
