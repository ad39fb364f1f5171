// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dalemusser/schedulehub/internal/app/resources"
	"github.com/dalemusser/schedulehub/internal/app/store/audit"
	changerequeststore "github.com/dalemusser/schedulehub/internal/app/store/changerequests"
	userstore "github.com/dalemusser/schedulehub/internal/app/store/users"
	"github.com/dalemusser/schedulehub/internal/app/system/auditlog"
	"github.com/dalemusser/schedulehub/internal/app/system/changes"
	"github.com/dalemusser/schedulehub/internal/app/system/generator"
	"github.com/dalemusser/schedulehub/internal/app/system/querycache"
	"github.com/dalemusser/schedulehub/internal/app/system/ratelimit"
	"github.com/dalemusser/schedulehub/internal/app/system/tasks"
	"github.com/dalemusser/schedulehub/internal/app/system/timeouts"
	"github.com/dalemusser/schedulehub/internal/app/system/timetable"
	"github.com/dalemusser/schedulehub/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

const (
	cacheSweepInterval   = time.Minute
	limiterSweepInterval = 10 * time.Minute
	jobTimeout           = 30 * time.Second
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if n := timeouts.ConfigureFromEnv(); n > 0 {
		logger.Info("timeouts overridden from environment", zap.Int("count", n))
	}

	resources.LoadSharedTemplates()
	viewdata.SetSiteName("ScheduleHub")

	if deps.Services == nil {
		return fmt.Errorf("startup: services not allocated")
	}
	buildServices(deps.Services, appCfg, deps, logger)

	if err := ensureAdmin(ctx, deps, appCfg, logger); err != nil {
		return err
	}

	requests := deps.Services.Requests
	viewdata.SetPendingCounter(func(r *http.Request) int64 {
		cctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
		defer cancel()
		n, err := requests.CountPending(cctx)
		if err != nil {
			logger.Warn("count pending change requests failed", zap.Error(err))
			return 0
		}
		return n
	})

	deps.Services.Runner.Start(context.Background())
	return nil
}

// buildServices fills svc with the collaborators shared by the handlers.
func buildServices(svc *Services, appCfg AppConfig, deps DBDeps, logger *zap.Logger) {
	db := deps.MongoDatabase

	svc.Cache = querycache.New(appCfg.CacheTTL, logger)
	svc.Timetable = timetable.New(db, deps.MongoClient, svc.Cache, logger)
	svc.Changes = changes.New(db, deps.MongoClient, svc.Timetable, logger)
	svc.Requests = changerequeststore.New(db)
	svc.Limiter = ratelimit.NewLoginLimiter()
	svc.Audit = auditlog.New(audit.New(db), logger, auditlog.Config{
		Auth:     appCfg.AuditLogAuth,
		Admin:    appCfg.AuditLogAdmin,
		Schedule: appCfg.AuditLogSchedule,
	})
	svc.Generator = generator.New(generator.Config{
		BaseURL:      appCfg.GeneratorURL,
		TokenURL:     appCfg.GeneratorTokenURL,
		ClientID:     appCfg.GeneratorClientID,
		ClientSecret: appCfg.GeneratorClientSecret,
		Timeout:      appCfg.GeneratorTimeout,
	}, logger)

	limiter := svc.Limiter
	svc.Runner = tasks.NewRunner(logger, jobTimeout)
	svc.Runner.Add(tasks.CacheSweepJob(svc.Cache, logger, cacheSweepInterval))
	svc.Runner.Add(tasks.PendingChangeRequestsJob(svc.Requests, logger))
	svc.Runner.Add(tasks.Job{
		Name:     "login-limiter-sweep",
		Interval: limiterSweepInterval,
		Run: func(ctx context.Context) error {
			if n := limiter.Sweep(); n > 0 {
				logger.Debug("swept idle login limiter buckets", zap.Int("count", n))
			}
			return nil
		},
	})
}

// ensureAdmin creates the configured first admin when the users collection
// has no admin yet.
func ensureAdmin(ctx context.Context, deps DBDeps, appCfg AppConfig, logger *zap.Logger) error {
	if appCfg.BootstrapAdminLogin == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeouts.Medium())
	defer cancel()

	created, err := userstore.New(deps.MongoDatabase).EnsureAdmin(ctx, appCfg.BootstrapAdminLogin, appCfg.BootstrapAdminPassword)
	if err != nil {
		logger.Error("bootstrap admin failed", zap.Error(err))
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	if created {
		logger.Info("created bootstrap admin", zap.String("login_id", appCfg.BootstrapAdminLogin))
	}
	return nil
}
