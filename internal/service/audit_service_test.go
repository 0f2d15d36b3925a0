package service

import (
	"clouddb/internal/core"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListLogsNewestFirst(t *testing.T) {
	f := newRowFixture(t, false)
	ctx := context.Background()
	other := f.env.signUp(t, "other@example.com")

	for i, action := range []string{"select", "insert", "select"} {
		f.env.clock.SetTime(testTime.Add(time.Duration(i) * time.Minute))
		_, _ = f.env.gateway.Execute(ctx, QueryRequest{ApiKey: f.apiKey, Action: action, Table: "items", Data: core.NewObject()})
	}

	logs, err := f.env.audit.ListLogs(ctx, f.session, LogQuery{})
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, testTime.Add(2*time.Minute), logs[0].CreatedAt)
	assert.Equal(t, testTime, logs[2].CreatedAt)

	logs, err = f.env.audit.ListLogs(ctx, f.session, LogQuery{Method: "select", Limit: 1})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, testTime.Add(2*time.Minute), logs[0].CreatedAt)

	logs, err = f.env.audit.ListLogs(ctx, f.session, LogQuery{DatabaseID: "elsewhere"})
	require.NoError(t, err)
	assert.Empty(t, logs)

	logs, err = f.env.audit.ListLogs(ctx, other, LogQuery{})
	require.NoError(t, err)
	assert.Empty(t, logs)

	_, err = f.env.audit.ListLogs(ctx, nil, LogQuery{})
	require.ErrorIs(t, err, core.ErrNotAuthenticated)
}

func TestStrikeLifecycle(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	alice := env.signUp(t, "alice@example.com")
	bob := env.signUp(t, "bob@example.com")

	_, err := env.schema.CreateDatabase(ctx, alice, "Shop", "")
	require.NoError(t, err)
	_, err = env.schema.CreateDatabase(ctx, bob, "SHOP", "")
	require.NoError(t, err)
	_, err = env.schema.CreateDatabase(ctx, bob, "shop", "")
	require.NoError(t, err)

	strikes, err := env.audit.ListStrikes(ctx, bob)
	require.NoError(t, err)
	require.Len(t, strikes, 2)

	none, err := env.audit.ListStrikes(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = env.audit.DismissStrike(ctx, alice, strikes[0].ID)
	require.ErrorIs(t, err, core.ErrStrikeNotFound)

	dismissed, err := env.audit.DismissStrike(ctx, bob, strikes[0].ID)
	require.NoError(t, err)
	assert.Equal(t, core.StrikeDismissed, dismissed.Status)

	_, err = env.audit.ResolveStrike(ctx, bob, strikes[0].ID)
	require.ErrorIs(t, err, core.ErrStrikeNotActive)
	assert.Equal(t, 409, core.StatusCode(err))

	resolved, err := env.audit.ResolveStrike(ctx, bob, strikes[1].ID)
	require.NoError(t, err)
	assert.Equal(t, core.StrikeResolved, resolved.Status)
}

func TestStats(t *testing.T) {
	f := newRowFixture(t, false)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.env.gateway.Execute(ctx, QueryRequest{
			ApiKey: f.apiKey, Action: "insert", Table: "items", Data: obj(t, `{"a":1}`),
		})
		require.NoError(t, err)
	}
	_, err := f.env.keys.CreateKey(ctx, f.session, f.dbID, "second")
	require.NoError(t, err)

	other := f.env.signUp(t, "other@example.com")
	_, err = f.env.schema.CreateDatabase(ctx, other, "shop", "")
	require.NoError(t, err)

	st, err := f.env.audit.Stats(ctx, f.session)
	require.NoError(t, err)
	assert.Equal(t, core.Stats{Databases: 1, Tables: 1, Rows: 3, ApiKeys: 2, QueryLogs: 3}, *st)

	st, err = f.env.audit.Stats(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, core.Stats{Databases: 1, ApiKeys: 1, ActiveStrikes: 1}, *st)
}
