package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	v1 "github.com/jaennil/guide_helper/backend/clusterbuster/internal/infrastructure/http/v1"
	"github.com/jaennil/guide_helper/backend/clusterbuster/internal/infrastructure/http/v1/handler"
	"github.com/jaennil/guide_helper/backend/clusterbuster/internal/repository/cache"
	"github.com/jaennil/guide_helper/backend/clusterbuster/internal/repository/postgis"
	"github.com/jaennil/guide_helper/backend/clusterbuster/internal/usecase"
	"github.com/jaennil/guide_helper/backend/clusterbuster/pkg/compress"
	"github.com/jaennil/guide_helper/backend/clusterbuster/pkg/config"
	"github.com/jaennil/guide_helper/backend/clusterbuster/pkg/http_server"
	"github.com/jaennil/guide_helper/backend/clusterbuster/pkg/logger"
	"github.com/jaennil/guide_helper/backend/clusterbuster/pkg/telemetry"
)

func Run(cfg *config.Config) {
	l := logger.NewZapLogger(cfg.Logger)
	defer l.Sync()

	l.Info("app config",
		"tiles", cfg.Tiles,
		"cache_type", cfg.Cache.Type,
		"telemetry", cfg.Telemetry.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx = logger.WithLogger(ctx, l)

	if cfg.Telemetry.Enabled {
		shutdownTracer, err := telemetry.InitTracer(telemetry.Config{
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: cfg.Telemetry.ServiceVersion,
			Environment:    cfg.Telemetry.Environment,
			OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		}, l)
		if err != nil {
			l.Fatal("failed to initialize tracer", "error", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTracer(shutdownCtx); err != nil {
				l.Error("tracer shutdown failed", "error", err)
			}
		}()
	}

	pool, err := postgis.NewPool(ctx, cfg.DB)
	if err != nil {
		l.Fatal("failed to connect to database", "error", err)
	}
	defer pool.Close()

	executor := postgis.NewExecutor(pool, l)

	err = postgis.Bootstrap(ctx, executor)
	if err != nil {
		l.Fatal("failed to install supporting sql functions", "error", err)
	}

	tileCache, err := cache.NewTileCache(cfg.Cache, cfg.Redis, l)
	if err != nil {
		l.Fatal("failed to initialize tile cache", "error", err)
	}
	defer func() {
		if err := tileCache.Close(); err != nil {
			l.Error("tile cache close failed", "error", err)
		}
	}()

	tileUseCase := usecase.NewTileUseCase(usecase.Config{
		Defaults: usecase.Defaults{
			MaxZoomLevel: cfg.Tiles.MaxZoomLevel,
			Table:        cfg.Tiles.Table,
			Geometry:     cfg.Tiles.Geometry,
			SRID:         cfg.Tiles.SRID,
			SourceLayer:  cfg.Tiles.SourceLayer,
			Radius:       cfg.Tiles.Radius,
			Extent:       cfg.Tiles.Extent,
			BufferSize:   cfg.Tiles.BufferSize,
			Attributes:   cfg.Tiles.Attributes,
		},
		TTL: cache.TTLPolicy{
			Base:    cfg.Cache.TTL,
			PerZoom: cfg.Cache.TTLPerZoom,
			Max:     cfg.Cache.TTLMax,
		},
		FiltersToWhere: postgis.EqualityFilters(cfg.Tiles.FilterColumns),
		Debug:          cfg.Tiles.Debug,
		SingleFlight:   cfg.Tiles.SingleFlight,
	}, tileCache, executor, compress.NewGzip(compress.DefaultLevel), l)

	validate := validator.New()
	h := handler.NewHandler(validate, tileUseCase, cfg.Tiles.AllowedTables)
	router := v1.NewRouter(h, l, cfg.Telemetry.Enabled)

	httpServer := http_server.NewServer(ctx, cfg.HTTP.Server, router)

	serverErr := make(chan error, 1)
	go func() {
		l.Info("starting http server...", "address", httpServer.Addr)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("http server failed", "error", err)
		}
		return
	case <-ctx.Done():
		l.Info("received shutdown signal")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	l.Info("shutting down http server...", "address", httpServer.Addr)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		l.Error("http server shutdown failed", "error", err)
	} else {
		l.Info("http_server shutdown completed")
	}

	l.Info("application shutdown completed")
}
