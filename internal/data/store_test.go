package data

import (
	"clouddb/internal/core"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := InitDB("sqlite", filepath.Join(t.TempDir(), "clouddb.db"))
	require.NoError(t, err)

	store, err := NewSQLStore(db, "sqlite")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// testBlobStore runs the versioning contract against any BlobStore.
func testBlobStore(t *testing.T, store BlobStore) {
	ctx := context.Background()

	_, _, err := store.Get(ctx, "doc")
	require.ErrorIs(t, err, ErrBlobNotFound)

	v, err := store.Put(ctx, "doc", []byte("one"), 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), v)

	_, err = store.Put(ctx, "doc", []byte("again"), 0)
	require.ErrorIs(t, err, core.ErrVersionConflict)

	v, err = store.Put(ctx, "doc", []byte("two"), 1)
	require.NoError(t, err)
	require.Equal(t, int64(2), v)

	_, err = store.Put(ctx, "doc", []byte("stale"), 1)
	require.ErrorIs(t, err, core.ErrVersionConflict)

	body, version, err := store.Get(ctx, "doc")
	require.NoError(t, err)
	require.Equal(t, "two", string(body))
	require.Equal(t, int64(2), version)

	// Keys are independent.
	_, _, err = store.Get(ctx, "other")
	require.ErrorIs(t, err, ErrBlobNotFound)
	_, err = store.Put(ctx, "other", []byte{}, 0)
	require.NoError(t, err)
	body, _, err = store.Get(ctx, "other")
	require.NoError(t, err)
	require.Empty(t, body)
}

func TestMemoryStore(t *testing.T) {
	testBlobStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	testBlobStore(t, newSQLiteStore(t))
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "clouddb.db")

	db, err := InitDB("sqlite", path)
	require.NoError(t, err)
	store, err := NewSQLStore(db, "sqlite")
	require.NoError(t, err)
	_, err = store.Put(ctx, GraphKey, []byte(`{"users":[]}`), 0)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	db, err = InitDB("sqlite", path)
	require.NoError(t, err)
	store, err = NewSQLStore(db, "sqlite")
	require.NoError(t, err)
	defer store.Close()

	body, version, err := store.Get(ctx, GraphKey)
	require.NoError(t, err)
	require.Equal(t, `{"users":[]}`, string(body))
	require.Equal(t, int64(1), version)
}

func TestUnsupportedDriver(t *testing.T) {
	_, err := InitDB("oracle", "")
	require.Error(t, err)

	_, err = NewSQLStore(nil, "oracle")
	require.Error(t, err)
}

func TestDialectPlaceholders(t *testing.T) {
	for driver, want := range map[string]string{
		"sqlite":    "?",
		"postgres":  "$2",
		"mysql":     "?",
		"sqlserver": "@p2",
		"odbc":      "?",
	} {
		d, err := dialectFor(driver)
		require.NoError(t, err)
		require.Equal(t, want, d.placeholder(2), driver)
	}
}
