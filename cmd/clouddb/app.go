package main

import (
	"clouddb/internal/api"
	"clouddb/internal/config"
	"clouddb/internal/core"
	"clouddb/internal/data"
	"clouddb/internal/logger"
	"clouddb/internal/service"
	"context"
	"fmt"
	"net/http"

	"github.com/lightningnetwork/lnd/clock"
	"go.uber.org/zap"
)

// app is one process's wiring: a store, the single writer over it and every
// service built on that writer.
type app struct {
	cfg    *config.Config
	store  data.BlobStore
	engine *service.Engine
	clock  clock.Clock

	auth     *service.AuthService // keeps the CLI session pointer
	schema   *service.SchemaService
	rows     *service.RowService
	gateway  *service.Gateway
	keys     *service.KeyService
	audit    *service.AuditService
	snapshot *service.SnapshotService
	hasher   *service.PasswordHasher

	closeLog func() error
}

// openApp loads config, starts logging and opens the configured store.
// fileLog keeps log output off stdout for commands that print results.
func openApp(fileLog bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w\nCheck .env file or CLOUDDB_KEY environment variable", err)
	}

	closeLog, err := logger.Init(logger.Options{
		Dir:       cfg.Log.Dir,
		MaxSizeKB: cfg.Log.MaxSizeKB,
		MaxFiles:  cfg.Log.MaxFiles,
		Level:     cfg.Log.Level,
		FileOnly:  fileLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	store, err := openStore(context.Background(), cfg.Store)
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Driver, err)
	}

	var sealer core.Sealer
	if cfg.Store.SealAtRest {
		enc, err := service.NewEncryptionService(cfg.SecretKey)
		if err != nil {
			store.Close()
			closeLog()
			return nil, fmt.Errorf("failed to init crypto service: %w", err)
		}
		sealer = enc
	}

	clk := clock.NewDefaultClock()
	engine := service.NewEngine(data.NewGraphRepo(store, sealer))
	rows := service.NewRowEngine(clk, cfg.StrictSchema)
	hasher := service.NewPasswordHasher(cfg.Auth.BcryptCost)

	logger.Log.Info("Store opened",
		zap.String("driver", cfg.Store.Driver),
		zap.Bool("sealed", sealer != nil),
		zap.Bool("strict_schema", cfg.StrictSchema))

	return &app{
		cfg:      cfg,
		store:    store,
		engine:   engine,
		clock:    clk,
		auth:     service.NewAuthService(engine, data.NewSessionRepo(store), hasher, clk),
		schema:   service.NewSchemaService(engine, clk),
		rows:     service.NewRowService(engine, rows),
		gateway:  service.NewGateway(engine, rows, clk),
		keys:     service.NewKeyService(engine, clk),
		audit:    service.NewAuditService(engine),
		snapshot: service.NewSnapshotService(engine),
		hasher:   hasher,
		closeLog: closeLog,
	}, nil
}

func (a *app) Close() {
	a.engine.Stop()
	if err := a.store.Close(); err != nil {
		logger.Log.Warn("Store close failed", zap.Error(err))
	}
	a.closeLog()
}

// session resumes the CLI session, failing for anonymous callers.
func (a *app) session(ctx context.Context) (*core.Session, error) {
	s, err := a.auth.Resume(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("%w: run 'clouddb signin' first", core.ErrNotAuthenticated)
	}
	return s, nil
}

// router builds the HTTP surface. HTTP callers carry their own session in a
// token or cookie, so their AuthService keeps no shared pointer.
func (a *app) router() (http.Handler, func()) {
	tokens := service.NewTokenIssuer(a.cfg.SecretKey, a.cfg.Auth.TokenTTL, a.clock)
	webAuth := service.NewAuthService(a.engine, nil, a.hasher, a.clock)

	// Rate Limiters
	apiLimiter := api.NewRateLimiter(a.cfg.RateLimit.APIPerMinute, a.cfg.RateLimit.APIBurst)
	loginLimiter := api.NewRateLimiter(a.cfg.RateLimit.LoginPerMinute, a.cfg.RateLimit.LoginBurst)

	r := api.NewRouter(api.RouterDeps{
		Query:       api.NewHandler(a.gateway),
		Docs:        api.NewDocHandler(a.gateway),
		Auth:        api.NewAuthHandler(webAuth, tokens, a.cfg.SecretKey, a.cfg.Auth.TokenTTL),
		Manage:      api.NewManageHandler(a.schema, a.rows, a.keys, a.audit),
		APILimiter:  apiLimiter,
		AuthLimiter: loginLimiter,
	})
	return r, func() {
		apiLimiter.Stop()
		loginLimiter.Stop()
	}
}

func openStore(ctx context.Context, cfg config.StoreConfig) (data.BlobStore, error) {
	switch cfg.Driver {
	case "memory":
		return data.NewMemoryStore(), nil
	case "redis":
		rs, err := data.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		return rs, nil
	}

	dsn := cfg.DSN
	if cfg.Driver == "sqlite" && dsn == "" {
		dsn = data.DefaultSQLitePath()
	}
	db, err := data.InitDB(cfg.Driver, dsn)
	if err != nil {
		return nil, err
	}
	store, err := data.NewSQLStore(db, cfg.Driver)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}
