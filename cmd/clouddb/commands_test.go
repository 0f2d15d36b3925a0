package main

import (
	"clouddb/internal/config"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColumn(t *testing.T) {
	def := parseColumn("qty:integer=0")
	assert.Equal(t, "qty", def.Name)
	assert.Equal(t, "integer", def.DataType)
	assert.False(t, def.IsNullable)
	require.NotNil(t, def.DefaultValue)
	assert.Equal(t, "0", *def.DefaultValue)

	def = parseColumn("note:text:null")
	assert.Equal(t, "note", def.Name)
	assert.True(t, def.IsNullable)
	assert.Nil(t, def.DefaultValue)

	def = parseColumn("title")
	assert.Equal(t, "title", def.Name)
	assert.Empty(t, def.DataType)

	// defaults may contain the separator
	def = parseColumn("url:text=http://x.io/a=b")
	assert.Equal(t, "url", def.Name)
	assert.Equal(t, "http://x.io/a=b", *def.DefaultValue)
}

func TestOpenStoreMemoryAndSQLite(t *testing.T) {
	ctx := context.Background()

	store, err := openStore(ctx, config.StoreConfig{Driver: "memory"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = openStore(ctx, config.StoreConfig{Driver: "sqlite", DSN: t.TempDir() + "/clouddb.db"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = openStore(ctx, config.StoreConfig{Driver: "oracle", DSN: "x"})
	assert.Error(t, err)
}

func pipeStdin(t *testing.T, input string) {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	_, err = w.WriteString(input)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	old := os.Stdin
	os.Stdin = r
	t.Cleanup(func() {
		os.Stdin = old
		r.Close()
	})
}

func TestConfirmPasswordFromPipe(t *testing.T) {
	pipeStdin(t, "secret\nsecret\n")

	password, err := confirmPassword()
	require.NoError(t, err)
	assert.Equal(t, "secret", password)
}

func TestConfirmPasswordMismatchFromPipe(t *testing.T) {
	pipeStdin(t, "secret\nother\n")

	_, err := confirmPassword()
	assert.EqualError(t, err, "passwords do not match")
}

func TestReadPasswordKeepsBufferedLines(t *testing.T) {
	pipeStdin(t, "first\r\nsecond")

	pw, err := readPassword("Password: ")
	require.NoError(t, err)
	assert.Equal(t, "first", pw)

	pw, err = readPassword("Password: ")
	require.NoError(t, err)
	assert.Equal(t, "second", pw)
}
