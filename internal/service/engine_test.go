package service

import (
	"clouddb/internal/core"
	"clouddb/internal/data"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	store    *data.MemoryStore
	repo     *data.GraphRepo
	engine   *Engine
	clock    *clock.TestClock
	auth     *AuthService
	schema   *SchemaService
	rows     *RowService
	gateway  *Gateway
	keys     *KeyService
	audit    *AuditService
	snapshot *SnapshotService
}

func newTestEnv(t *testing.T, strict bool) *testEnv {
	t.Helper()

	store := data.NewMemoryStore()
	repo := data.NewGraphRepo(store, nil)
	engine := NewEngine(repo)
	t.Cleanup(engine.Stop)

	clk := clock.NewTestClock(testTime)
	rowEngine := NewRowEngine(clk, strict)

	return &testEnv{
		store:    store,
		repo:     repo,
		engine:   engine,
		clock:    clk,
		auth:     NewAuthService(engine, data.NewSessionRepo(store), NewPasswordHasher(bcrypt.MinCost), clk),
		schema:   NewSchemaService(engine, clk),
		rows:     NewRowService(engine, rowEngine),
		gateway:  NewGateway(engine, rowEngine, clk),
		keys:     NewKeyService(engine, clk),
		audit:    NewAuditService(engine),
		snapshot: NewSnapshotService(engine),
	}
}

func (e *testEnv) signUp(t *testing.T, email string) *core.Session {
	t.Helper()
	session, _, err := e.auth.SignUp(context.Background(), email, "secret", "")
	require.NoError(t, err)
	return session
}

func (e *testEnv) graph(t *testing.T) *core.Graph {
	t.Helper()
	g, _, err := e.repo.Load(context.Background())
	require.NoError(t, err)
	return g
}

func TestEngineUpdatePersists(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	err := env.engine.Update(ctx, func(g *core.Graph) error {
		g.Users = append(g.Users, core.User{ID: "u1", Email: "a@x.io"})
		return nil
	})
	require.NoError(t, err)

	g := env.graph(t)
	require.Len(t, g.Users, 1)
	require.Equal(t, "u1", g.Users[0].ID)
}

func TestEngineFailedUpdateLeavesStateUntouched(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	require.NoError(t, env.engine.Update(ctx, func(g *core.Graph) error {
		g.Users = append(g.Users, core.User{ID: "u1"})
		return nil
	}))

	boom := errors.New("boom")
	err := env.engine.Update(ctx, func(g *core.Graph) error {
		g.Users = append(g.Users, core.User{ID: "u2"})
		g.Users[0].Email = "changed"
		return boom
	})
	require.ErrorIs(t, err, boom)

	g := env.graph(t)
	require.Len(t, g.Users, 1)
	require.Empty(t, g.Users[0].Email)
}

func TestEngineViewDiscardsChanges(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	require.NoError(t, env.engine.View(ctx, func(g *core.Graph) error {
		g.Users = append(g.Users, core.User{ID: "ghost"})
		return nil
	}))
	require.Empty(t, env.graph(t).Users)
}

func TestEngineConcurrentUpdatesAreSerialized(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	const writers = 40
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- env.engine.Update(ctx, func(g *core.Graph) error {
				g.Users = append(g.Users, core.User{ID: fmt.Sprintf("u%d", i)})
				return nil
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.Len(t, env.graph(t).Users, writers)
}

func TestEngineDetectsForeignWriter(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	// Prime the document so both writers start from the same version.
	require.NoError(t, env.engine.Update(ctx, func(*core.Graph) error { return nil }))

	err := env.engine.Update(ctx, func(g *core.Graph) error {
		other, version, err := env.repo.Load(ctx)
		if err != nil {
			return err
		}
		other.Users = append(other.Users, core.User{ID: "other-process"})
		_, err = env.repo.Save(ctx, other, version)
		return err
	})
	require.ErrorIs(t, err, core.ErrVersionConflict)
	require.Equal(t, 409, core.StatusCode(err))

	g := env.graph(t)
	require.Len(t, g.Users, 1)
	require.Equal(t, "other-process", g.Users[0].ID)
}

func TestEngineStopped(t *testing.T) {
	env := newTestEnv(t, false)
	env.engine.Stop()

	err := env.engine.View(context.Background(), func(*core.Graph) error { return nil })
	require.ErrorIs(t, err, ErrEngineStopped)
	require.Equal(t, 500, core.StatusCode(err))

	// A second Stop is a no-op.
	env.engine.Stop()
}

func TestEngineRecoversFromPanic(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	err := env.engine.Update(ctx, func(*core.Graph) error { panic("bad job") })
	require.ErrorIs(t, err, core.ErrInternal)

	require.NoError(t, env.engine.View(ctx, func(*core.Graph) error { return nil }))
}

// gatedRepo holds Save until release is closed.
type gatedRepo struct {
	core.GraphStore
	saving  chan struct{}
	release chan struct{}
}

func (r *gatedRepo) Save(ctx context.Context, g *core.Graph, version int64) (int64, error) {
	close(r.saving)
	<-r.release
	return r.GraphStore.Save(ctx, g, version)
}

func TestEngineUpdateOutlivesCancelledCaller(t *testing.T) {
	repo := data.NewGraphRepo(data.NewMemoryStore(), nil)
	gated := &gatedRepo{GraphStore: repo, saving: make(chan struct{}), release: make(chan struct{})}
	engine := NewEngine(gated)
	t.Cleanup(engine.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		result <- engine.Update(ctx, func(g *core.Graph) error {
			g.Users = append(g.Users, core.User{ID: "u1"})
			return nil
		})
	}()

	<-gated.saving
	cancel()
	close(gated.release)

	// The write landed, so Update must report success.
	require.NoError(t, <-result)

	g, _, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, g.Users, 1)
}

func TestEngineCancelledBeforeStartSavesNothing(t *testing.T) {
	env := newTestEnv(t, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := env.engine.Update(ctx, func(g *core.Graph) error {
		g.Users = append(g.Users, core.User{ID: "u1"})
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, env.graph(t).Users)
}
