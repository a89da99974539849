// Package bootstrap wires configuration into stores, services and the router.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"cv-backend/internal/accounts"
	"cv-backend/internal/cv"
	"cv-backend/internal/export"
	"cv-backend/internal/reconcile"
	"cv-backend/internal/session"
	"cv-backend/internal/shared/auth"
	"cv-backend/internal/shared/cache"
	"cv-backend/internal/shared/config"
	"cv-backend/internal/shared/server"
	"cv-backend/internal/shared/storage/db"
	"cv-backend/internal/shared/storage/object"
	localstore "cv-backend/internal/shared/storage/object/local"
	s3store "cv-backend/internal/shared/storage/object/s3"
	"cv-backend/internal/shared/telemetry"
	"cv-backend/internal/store"
)

const sweepInterval = time.Minute

// App holds the wired dependencies.
type App struct {
	Config   config.Config
	Router   *gin.Engine
	DB       *sql.DB
	Cache    cache.JSON
	Sessions *session.Manager
	Accounts *accounts.Service
	closers  []func() error
}

// Build prepares every dependency and the router. Dev-like environments fall
// back to in-memory stores when Postgres or Redis are unavailable.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app := &App{Config: cfg, DB: sqlDB}
	if sqlDB != nil {
		app.closers = append(app.closers, sqlDB.Close)
	}

	var (
		sectionStore store.Store
		accountRepo  accounts.Repo
	)
	if sqlDB != nil {
		sectionStore = &store.PGStore{DB: sqlDB}
		accountRepo = &accounts.PGRepo{DB: sqlDB}
	} else {
		sectionStore = store.NewMemoryStore()
		accountRepo = accounts.NewMemoryRepo()
	}

	app.Cache = buildCache(ctx, cfg, app)

	archive, err := buildArchive(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	signer, err := auth.NewSigner(cfg.JWTSecret, cfg.Env, 0)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Sessions = session.NewManager(session.Dependencies{
		Store:         sectionStore,
		Cache:         app.Cache,
		SnapshotTTL:   cfg.SnapshotTTL,
		Reconciler:    &reconcile.Reconciler{},
		Capturer:      &export.ChromeCapturer{ExecPath: cfg.ChromePath},
		Archive:       archive,
		ExportTimeout: cfg.ExportTimeout,
	}, cfg.SessionIdleTTL)

	app.Accounts = accounts.NewService(accountRepo, signer)
	app.Router = server.NewRouter(server.RouterDeps{
		Config:   cfg,
		Verifier: signer,
		Accounts: accounts.NewHandler(app.Accounts, cfg.IsDevLike()),
		GoogleAuth: accounts.NewGoogleHandler(app.Accounts, accounts.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			UIRedirect:   cfg.UIRedirectURL,
		}),
		CV: cv.NewHandler(app.Sessions),
	})
	return app, nil
}

// Run starts background maintenance until ctx is done.
func (a *App) Run(ctx context.Context) {
	a.Sessions.Run(ctx, sweepInterval)
}

// Close releases connections opened by Build.
func (a *App) Close() {
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			telemetry.Warn("bootstrap.close_failed", map[string]any{"error": err})
		}
	}
	a.closers = nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			telemetry.Info("bootstrap.memory_store", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_store", map[string]any{"reason": "connect failed", "error": err})
			return nil, nil
		}
		return nil, err
	}
	if cfg.IsDevLike() {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return sqlDB, nil
}

func buildCache(ctx context.Context, cfg config.Config, app *App) cache.JSON {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return cache.NewMemory()
	}
	r := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
	app.closers = append(app.closers, r.Close)
	if !r.Available() && cfg.IsDevLike() {
		return cache.NewMemory()
	}
	return r
}

// buildArchive returns nil when archiving is off so the pipeline skips it.
func buildArchive(ctx context.Context, cfg config.Config) (object.Store, error) {
	if !cfg.ExportArchive {
		return nil, nil
	}
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}
