package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/activitymap"
	"github.com/goliatone/go-accounts/config"
	"github.com/goliatone/go-accounts/httpapi"
	"github.com/goliatone/go-accounts/metrics"
	"github.com/goliatone/go-accounts/provider/local"
	"github.com/goliatone/go-accounts/provider/remote"
	"github.com/goliatone/go-accounts/repository"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	lgr := newLogger(cfg)
	logger := lgr.GetLogger("main")

	fmt.Println("============")
	fmt.Println(print.MaybeHighlightJSON(cfg.Masked()))
	fmt.Println("============")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg, lgr.GetLogger("persistence"))
	if err != nil {
		return err
	}
	defer db.Close()

	profiles := repository.NewProfileStore(db).WithLoggerProvider(lgr)

	directory, err := newDirectory(cfg, db, lgr)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	coordinator := accounts.NewCoordinator(directory, profiles, cfg).
		WithLoggerProvider(lgr).
		WithMetrics(metrics.NewCollector(registry)).
		WithActivitySink(activitymap.NewLogSink(lgr.GetLogger("accounts.activity")))

	controller := httpapi.NewController(
		coordinator,
		coordinator.TokenService(),
		httpapi.WithLoggerProvider(lgr),
	)

	srv := httpapi.NewApp(controller, httpapi.AppConfig{
		Name:         "accountsd",
		Environment:  cfg.Env,
		AllowOrigins: cfg.FrontendURL,
	})

	errCh := make(chan error, 2)
	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr, "env", cfg.Env, "directory", cfg.DirectoryDriver)
		errCh <- srv.Serve(cfg.HTTPAddr)
	}()

	var metricsSrv router.Server[*fiber.App]
	if cfg.MetricsAddr != "" {
		metricsSrv = httpapi.NewMetricsServer(metrics.Handler(registry))
		go func() {
			logger.Info("metrics listening", "addr", cfg.MetricsAddr)
			errCh <- metricsSrv.Serve(cfg.MetricsAddr)
		}()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	if metricsSrv != nil {
		if err := metricsSrv.WrappedRouter().ShutdownWithTimeout(5 * time.Second); err != nil {
			logger.Error("metrics shutdown failed", "error", err)
		}
	}
	return srv.WrappedRouter().ShutdownWithTimeout(10 * time.Second)
}

func newLogger(cfg *config.Config) *glog.BaseLogger {
	if cfg.IsDevelopment() {
		return glog.NewLogger(
			glog.WithLoggerTypePretty(),
			glog.WithLevel(glog.Trace),
			glog.WithName("accountsd"),
			glog.WithAddSource(false),
			glog.WithRichErrorHandler(errors.ToSlogAttributes),
		)
	}
	return glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithName("accountsd"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)
}

// openDatabase connects to the configured database and, with AutoMigrate,
// applies the embedded migrations before handing out the bun handle.
func openDatabase(ctx context.Context, cfg *config.Config, logger glog.Logger) (*bun.DB, error) {
	var (
		sqldb   *sql.DB
		dialect schema.Dialect
	)

	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		sqldb = sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DatabaseDSN)))
		dialect = pgdialect.New()
	case config.DriverSQLite:
		var err error
		sqldb, err = sql.Open(sqliteshim.ShimName, cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		sqldb.SetMaxOpenConns(1)
		dialect = sqlitedialect.New()
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	if !cfg.AutoMigrate {
		return bun.NewDB(sqldb, dialect), nil
	}

	persistence.RegisterModel((*repository.ProfileRecord)(nil))
	persistence.RegisterModel((*local.IdentityRecord)(nil))
	persistence.RegisterModel((*local.RecoveryTokenRecord)(nil))

	db, err := repository.Migrate(ctx, cfg.GetPersistence(), sqldb, dialect, logger)
	if err != nil {
		_ = sqldb.Close()
		return nil, err
	}
	return db, nil
}

func newDirectory(cfg *config.Config, db *bun.DB, provider accounts.LoggerProvider) (accounts.IdentityDirectory, error) {
	switch cfg.DirectoryDriver {
	case config.DirectoryRemote:
		return remote.New(remote.Config{
			BaseURL:    cfg.DirectoryURL,
			ServiceKey: cfg.DirectoryServiceKey,
			Timeout:    cfg.DirectoryTimeout,
		}).WithLoggerProvider(provider), nil
	case config.DirectoryLocal:
		return local.NewDirectory(db,
			local.WithBcryptCost(cfg.BcryptCost),
			local.WithResetTokenTTL(cfg.ResetTokenTTL),
			local.WithLoggerProvider(provider),
		), nil
	default:
		return nil, fmt.Errorf("unsupported directory driver %q", cfg.DirectoryDriver)
	}
}
