package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"rekord/internal/api"
	"rekord/internal/catalog"
	"rekord/internal/config"
	"rekord/internal/entity"
	"rekord/internal/logger"
	"rekord/internal/metrics"
	"rekord/internal/pg"
	"rekord/internal/service"
	"rekord/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "rekord:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWithPath("rekord.json")
	if err != nil {
		return err
	}
	log, err := logger.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(log)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. DSL, справочники, роли
	src := catalog.Sources{DSLDir: cfg.DSLDir, EnumsDir: cfg.EnumsDir, RolesPath: cfg.RolesPath}
	bundle, err := catalog.Load(src)
	if err != nil {
		if bundle != nil {
			for _, it := range bundle.Issues {
				log.Error("catalog issue", "entity", it.Entity, "form", it.Form, "field", it.Field, "code", it.Code, "message", it.Message)
			}
		}
		return fmt.Errorf("load catalog: %w", err)
	}
	for _, it := range bundle.Issues {
		log.Warn("catalog warning", "entity", it.Entity, "form", it.Form, "field", it.Field, "code", it.Code, "message", it.Message)
	}
	log.Info("catalog loaded", "entities", len(bundle.Forms), "enums", len(bundle.Enums))

	// 2. Хранилище
	var st service.Store
	switch cfg.Store {
	case config.StorePostgres:
		db, err := pg.Open(ctx, cfg.DBURL, pg.PoolConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
		})
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		if cfg.AutoMigrate {
			ddl, err := pg.GenerateDDL(cfg.PGSchema, entity.Schemas())
			if err != nil {
				return err
			}
			if err := pg.ApplyDDL(ctx, db, ddl, log); err != nil {
				return err
			}
		}
		st = pg.NewStore(db, cfg.PGSchema, log)
	default:
		log.Warn("using in-memory store, data is lost on restart")
		st = store.NewMemory()
	}

	// 3. Сервис и HTTP
	m := metrics.New()
	records, err := service.New(st, bundle.Forms, bundle.Roles,
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithEnvironment(cfg.Env),
		service.WithHashCost(cfg.HashCost),
	)
	if err != nil {
		return err
	}
	srv := api.NewServer(records,
		api.WithLogger(log),
		api.WithMetrics(m, prometheus.DefaultGatherer),
		api.WithSources(src),
		api.WithEnums(bundle.Enums),
	)
	httpSrv := &http.Server{Addr: cfg.Addr, Handler: srv.Router()}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting rekord", "addr", cfg.Addr, "store", cfg.Store, "env", cfg.Env)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	log.Info("shutting down")
	return httpSrv.Shutdown(shutdownCtx)
}
