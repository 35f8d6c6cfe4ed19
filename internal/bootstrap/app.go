package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"provenance-audit/internal/audit"
	"provenance-audit/internal/census"
	"provenance-audit/internal/collect"
	"provenance-audit/internal/history"
	"provenance-audit/internal/services/health"
	"provenance-audit/internal/shared/config"
	"provenance-audit/internal/shared/server"
	"provenance-audit/internal/shared/server/middleware"
	"provenance-audit/internal/shared/storage/db"
	"provenance-audit/internal/shared/storage/object"
	localstore "provenance-audit/internal/shared/storage/object/local"
	s3store "provenance-audit/internal/shared/storage/object/s3"
	"provenance-audit/internal/shared/telemetry"
)

// Manual audits over HTTP: one every 10s per client, bursts of 3.
var defaultAuditRule = middleware.RateLimitRule{Rate: 0.1, Burst: 3}

// App holds shared dependencies.
type App struct {
	Config  config.Config
	Plan    audit.Plan
	DB      *sql.DB
	Store   object.ObjectStore
	Repo    history.Repo
	Auditor *audit.Auditor
	History *history.Service
	Router  *gin.Engine
}

// Options selects what Build wires beyond the audit and history services.
type Options struct {
	WithRouter bool
}

// Build prepares shared dependencies.
func Build(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}

	plan, err := audit.LoadPlan(cfg.ResolvePath(cfg.AuditPlanPath))
	if err != nil {
		return nil, err
	}

	dbOpts := db.DefaultCLIOptions()
	if opts.WithRouter {
		dbOpts = db.DefaultServerOptions()
	}
	sqlDB, err := buildDB(ctx, cfg, db.OptionsFromEnv(dbOpts))
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var repo history.Repo = history.NewMemoryRepo()
	if sqlDB != nil {
		repo = &history.PGRepo{DB: sqlDB}
	}

	auditor := &audit.Auditor{Root: cfg.DataRoot, Plan: plan, Now: time.Now}
	app := &App{
		Config:  cfg,
		Plan:    plan,
		DB:      sqlDB,
		Store:   store,
		Repo:    repo,
		Auditor: auditor,
		History: &history.Service{
			Auditor:    auditor,
			Repo:       repo,
			Store:      store,
			ReportPath: cfg.ResolvePath(cfg.ReportPath),
		},
	}
	if opts.WithRouter {
		var pinger health.Pinger
		if sqlDB != nil {
			pinger = sqlDB
		}
		app.Router = server.NewRouter(server.Deps{
			History:   app.History,
			Health:    health.NewService(cfg.DataRoot, pinger),
			Plan:      plan,
			AuditRule: defaultAuditRule,
		})
	}
	return app, nil
}

// Collector builds a Census collector rooted at the data root. It needs CENSUS_API_KEY.
func (a *App) Collector() (*collect.Collector, error) {
	client, err := census.NewClient(a.Config.CensusAPIKey, a.Config.APITimeout)
	if err != nil {
		return nil, err
	}
	return collect.New(client, a.Config.DataRoot), nil
}

// Close releases the database handle, if any.
func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

func buildDB(ctx context.Context, cfg config.Config, opts db.Options) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if config.IsDevLike(cfg.Env) {
			telemetry.Info("bootstrap.memory_history", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("%w; required when ENV=%s", db.ErrNoDatabaseURL, cfg.Env)
	}

	sqlDB, err := db.OpenHistory(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if config.IsDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_history", map[string]any{"reason": "database unavailable", "error": err})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	case "local":
		return localstore.New(cfg.LocalStoreDir), nil
	default:
		return nil, nil
	}
}
