package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/droneguard/backend/internal/api"
	"github.com/droneguard/backend/internal/config"
	"github.com/droneguard/backend/internal/logging"
	"github.com/droneguard/backend/internal/metrics"
	"github.com/droneguard/backend/internal/models"
	"github.com/droneguard/backend/internal/parser"
	"github.com/droneguard/backend/internal/storage"
	"github.com/droneguard/backend/internal/tracks"
	"github.com/droneguard/backend/internal/zones"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "droneguard: %v\n", err)
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	exePath, err := os.Executable()
	if err != nil {
		return "DroneGuard.config"
	}
	return filepath.Join(filepath.Dir(exePath), "DroneGuard.config")
}

func run() error {
	configPath := flag.String("config", defaultConfigPath(), "path to the XML configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	log, logCloser := logging.New(logging.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, err := metrics.NewCollector(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	zoneFiles, err := storage.NewLocalStore(cfg.Storage.UploadsDirectory)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	trackStore, err := tracks.Open(ctx, tracks.Options{
		Driver:      cfg.Tracks.Driver,
		DSN:         cfg.Tracks.DSN,
		Threads:     cfg.Tracks.DuckDBThreads,
		MemoryLimit: cfg.Tracks.DuckDBMemoryLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to open track store: %w", err)
	}
	defer trackStore.Close()
	interpolator := tracks.NewInterpolator(trackStore, cfg.Tracks.CacheSize,
		time.Duration(cfg.Tracks.CacheTTLMinutes)*time.Minute)

	buffers := loadBufferRules(ctx, cfg.Storage.BufferRulesFile, log)

	registry := zones.NewRegistry(m)
	refresher := zones.NewRefresher(registry, storage.NewFileCache(cfg.ZoneFilePath()), zones.RefresherConfig{
		SourceURL:     cfg.Zones.SourceURL,
		MaxAge:        cfg.ZoneMaxAge(),
		CheckInterval: cfg.ZoneCheckInterval(),
		Client:        &http.Client{Timeout: time.Duration(cfg.Zones.DownloadTimeout) * time.Second},
	}, log, m)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	api.SetupMiddleware(e, cfg, log, m)
	api.RegisterRoutes(e, api.NewHandlers(&api.Dependencies{
		Registry:     registry,
		Refresher:    refresher,
		ZoneFiles:    zoneFiles,
		Tracks:       trackStore,
		Interpolator: interpolator,
		Buffers:      buffers,
		Metrics:      m,
		Logger:       log,
		Interval:     int64(cfg.Tracks.InterpolationInterval),
		Version:      Version,
	}))
	if cfg.Metrics.Enabled {
		api.RegisterMetricsRoute(e, cfg.Metrics.Path, m)
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	log.Info(ctx, "starting server",
		logging.String("version", Version),
		logging.String("build_time", BuildTime),
		logging.String("config", *configPath),
		logging.String("listen", cfg.GetServerAddr()),
		logging.String("track_driver", cfg.Tracks.Driver),
		logging.String("zone_source", cfg.Zones.SourceURL))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return refresher.Run(egCtx)
	})
	eg.Go(func() error {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		log.Info(context.Background(), "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// loadBufferRules reads the optional buffer rules file. A missing file means
// drones without a reported buffer get 0 m.
func loadBufferRules(ctx context.Context, path string, log logging.Logger) *models.BufferRules {
	if path == "" {
		return nil
	}
	rules, err := parser.ParseBufferRules(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn(ctx, "ignoring buffer rules", logging.String("path", path), logging.Err(err))
		}
		return nil
	}
	log.Info(ctx, "buffer rules loaded",
		logging.String("path", path),
		logging.Float("default_buffer", rules.DefaultBuffer),
		logging.Int("overrides", len(rules.Overrides)))
	return rules
}
