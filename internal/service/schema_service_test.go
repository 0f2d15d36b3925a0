package service

import (
	"clouddb/internal/core"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestCreateDatabaseProvisionsKey(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	session := env.signUp(t, "ada@example.com")

	created, err := env.schema.CreateDatabase(ctx, session, "  Shop  ", "orders")
	require.NoError(t, err)
	assert.Equal(t, "Shop", created.Database.Name)
	assert.Equal(t, core.DatabaseActive, created.Database.Status)
	assert.Nil(t, created.Strike)

	assert.Equal(t, "Key for Shop", created.ApiKey.Name)
	assert.True(t, created.ApiKey.IsActive)
	assert.True(t, strings.HasPrefix(created.ApiKey.KeyValue, "gfx_"))
	assert.Equal(t, created.Database.ID, created.ApiKey.DatabaseID)

	g := env.graph(t)
	require.Len(t, g.Databases, 1)
	require.Len(t, g.ApiKeys, 1)
	assert.Empty(t, g.CopyrightStrikes)
}

func TestCreateDatabaseValidation(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	session := env.signUp(t, "ada@example.com")

	_, err := env.schema.CreateDatabase(ctx, session, "   ", "")
	require.ErrorIs(t, err, core.ErrInvalidName)

	_, err = env.schema.CreateDatabase(ctx, nil, "Shop", "")
	require.ErrorIs(t, err, core.ErrNotAuthenticated)

	assert.Empty(t, env.graph(t).Databases)
}

func TestCreateDatabaseKeyCollision(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	session := env.signUp(t, "ada@example.com")

	orig := generateKey
	t.Cleanup(func() { generateKey = orig })
	generateKey = func() (string, error) { return "gfx_fixed", nil }

	_, err := env.schema.CreateDatabase(ctx, session, "One", "")
	require.NoError(t, err)

	_, err = env.schema.CreateDatabase(ctx, session, "Two", "")
	require.ErrorIs(t, err, core.ErrKeyCollision)

	g := env.graph(t)
	assert.Len(t, g.Databases, 1, "a failed key issue rolls back the database")
	assert.Len(t, g.ApiKeys, 1)
}

func TestCopyrightStrikeOnDuplicateName(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	alice := env.signUp(t, "alice@example.com")
	bob := env.signUp(t, "bob@example.com")

	_, err := env.schema.CreateDatabase(ctx, alice, "Shop", "")
	require.NoError(t, err)

	created, err := env.schema.CreateDatabase(ctx, bob, "shop", "")
	require.NoError(t, err)
	require.NotNil(t, created.Strike)
	assert.Equal(t, bob.UserID, created.Strike.UserID)
	assert.Equal(t, created.Database.ID, created.Strike.ContentID)
	assert.Equal(t, "shop", created.Strike.ContentName)
	assert.Equal(t, core.StrikeActive, created.Strike.Status)
	assert.Equal(t, `Duplicate content detected: "shop" already exists under another user.`, created.Strike.StrikeReason)

	// The same owner reusing a name is not a strike.
	again, err := env.schema.CreateDatabase(ctx, alice, "SHOP", "")
	require.NoError(t, err)
	assert.Nil(t, again.Strike)

	g := env.graph(t)
	assert.Len(t, g.Databases, 3)
	assert.Len(t, g.CopyrightStrikes, 1)
}

func TestDeleteDatabaseCascadesOnlyItsRecords(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	alice := env.signUp(t, "alice@example.com")
	bob := env.signUp(t, "bob@example.com")

	doomed, err := env.schema.CreateDatabase(ctx, alice, "Doomed", "")
	require.NoError(t, err)
	kept, err := env.schema.CreateDatabase(ctx, alice, "Kept", "")
	require.NoError(t, err)
	other, err := env.schema.CreateDatabase(ctx, bob, "Other", "")
	require.NoError(t, err)

	for _, c := range []*CreatedDatabase{doomed, kept, other} {
		owner := alice
		if c == other {
			owner = bob
		}
		_, err := env.schema.CreateTable(ctx, owner, c.Database.ID, "items", []core.ColumnDef{{Name: "title"}})
		require.NoError(t, err)
		_, err = env.gateway.Execute(ctx, QueryRequest{ApiKey: c.ApiKey.KeyValue, Action: "select", Table: "items"})
		require.NoError(t, err)
	}

	err = env.schema.DeleteDatabase(ctx, bob, doomed.Database.ID)
	require.ErrorIs(t, err, core.ErrDatabaseNotFound, "only the owner may delete")

	require.NoError(t, env.schema.DeleteDatabase(ctx, alice, doomed.Database.ID))

	g := env.graph(t)
	require.Len(t, g.Databases, 2)
	for _, d := range g.Databases {
		assert.NotEqual(t, doomed.Database.ID, d.ID)
		assert.Len(t, d.Tables, 1)
	}
	require.Len(t, g.ApiKeys, 2)
	for _, k := range g.ApiKeys {
		assert.NotEqual(t, doomed.Database.ID, k.DatabaseID)
	}
	require.Len(t, g.QueryLogs, 2)
	for _, l := range g.QueryLogs {
		assert.NotEqual(t, doomed.Database.ID, l.DatabaseID)
	}
	assert.Len(t, g.Users, 2)

	_, err = env.gateway.Execute(ctx, QueryRequest{ApiKey: doomed.ApiKey.KeyValue, Action: "select", Table: "items"})
	require.ErrorIs(t, err, core.ErrInvalidKey)
}

func TestListGetUpdateDatabase(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	alice := env.signUp(t, "alice@example.com")
	bob := env.signUp(t, "bob@example.com")

	first, err := env.schema.CreateDatabase(ctx, alice, "First", "")
	require.NoError(t, err)
	_, err = env.schema.CreateDatabase(ctx, alice, "Second", "")
	require.NoError(t, err)
	_, err = env.schema.CreateDatabase(ctx, bob, "Bobs", "")
	require.NoError(t, err)

	list, err := env.schema.ListDatabases(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "First", list[0].Name)
	assert.Equal(t, "Second", list[1].Name)

	_, err = env.schema.GetDatabase(ctx, bob, first.Database.ID)
	require.ErrorIs(t, err, core.ErrDatabaseNotFound)

	env.clock.SetTime(testTime.Add(time.Minute))
	updated, err := env.schema.UpdateDatabase(ctx, alice, first.Database.ID, DatabaseUpdate{
		Description: strPtr("renamed"),
		Status:      strPtr(core.DatabaseArchived),
	})
	require.NoError(t, err)
	assert.Equal(t, "First", updated.Name)
	assert.Equal(t, "renamed", updated.Description)
	assert.Equal(t, core.DatabaseArchived, updated.Status)
	assert.Equal(t, testTime.Add(time.Minute), updated.UpdatedAt)

	_, err = env.schema.UpdateDatabase(ctx, alice, first.Database.ID, DatabaseUpdate{Status: strPtr("gone")})
	require.ErrorIs(t, err, core.ErrInvalidPayload)
	_, err = env.schema.UpdateDatabase(ctx, alice, first.Database.ID, DatabaseUpdate{Name: strPtr(" ")})
	require.ErrorIs(t, err, core.ErrInvalidName)
}

func TestCreateTable(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	session := env.signUp(t, "ada@example.com")
	created, err := env.schema.CreateDatabase(ctx, session, "Shop", "")
	require.NoError(t, err)
	dbID := created.Database.ID

	table, err := env.schema.CreateTable(ctx, session, dbID, "products", []core.ColumnDef{
		{Name: "title"},
		{Name: "  "},
		{Name: "price", DataType: "float"},
		{Name: "stock", DataType: "INTEGER", IsNullable: true, DefaultValue: strPtr("0")},
	})
	require.NoError(t, err)
	require.Len(t, table.Columns, 3)
	for i, c := range table.Columns {
		assert.Equal(t, i, c.Position)
		assert.NotEmpty(t, c.ID)
	}
	assert.Equal(t, core.TypeText, table.Columns[0].DataType)
	assert.Equal(t, core.TypeFloat, table.Columns[1].DataType)
	assert.Equal(t, core.TypeInteger, table.Columns[2].DataType)
	assert.Empty(t, table.Rows)

	_, err = env.schema.CreateTable(ctx, session, dbID, "products", []core.ColumnDef{{Name: "x"}})
	require.ErrorIs(t, err, core.ErrDuplicateTable)

	_, err = env.schema.CreateTable(ctx, session, dbID, "empty", []core.ColumnDef{{Name: ""}, {Name: " "}})
	require.ErrorIs(t, err, core.ErrEmptyColumnSet)

	_, err = env.schema.CreateTable(ctx, session, dbID, "bad", []core.ColumnDef{{Name: "a", DataType: "money"}})
	require.ErrorIs(t, err, core.ErrInvalidColumnType)

	_, err = env.schema.CreateTable(ctx, session, dbID, "dup", []core.ColumnDef{{Name: "a"}, {Name: "a"}})
	require.ErrorIs(t, err, core.ErrDuplicateColumn)

	_, err = env.schema.CreateTable(ctx, session, "missing", "t", []core.ColumnDef{{Name: "a"}})
	require.ErrorIs(t, err, core.ErrDatabaseNotFound)

	_, err = env.schema.CreateTable(ctx, session, dbID, " ", []core.ColumnDef{{Name: "a"}})
	require.ErrorIs(t, err, core.ErrInvalidName)

	g := env.graph(t)
	require.Len(t, g.Databases[0].Tables, 1)
}

func TestDeleteTable(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	session := env.signUp(t, "ada@example.com")
	created, err := env.schema.CreateDatabase(ctx, session, "Shop", "")
	require.NoError(t, err)
	dbID := created.Database.ID

	table, err := env.schema.CreateTable(ctx, session, dbID, "products", []core.ColumnDef{{Name: "title"}})
	require.NoError(t, err)
	_, err = env.rows.InsertRow(ctx, session, dbID, table.ID, core.NewObject())
	require.NoError(t, err)

	require.NoError(t, env.schema.DeleteTable(ctx, session, dbID, table.ID))
	require.ErrorIs(t, env.schema.DeleteTable(ctx, session, dbID, table.ID), core.ErrTableNotFound)

	assert.Empty(t, env.graph(t).Databases[0].Tables)
}
