package zones

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/droneguard/backend/internal/logging"
	"github.com/droneguard/backend/internal/metrics"
	"github.com/droneguard/backend/internal/storage"
)

// maxDownloadBytes caps a zone file download.
const maxDownloadBytes = 64 << 20

// Refresh outcomes, also used as the metric label.
const (
	ResultDownloaded = "downloaded"
	ResultLoaded     = "loaded"
	ResultFresh      = "fresh"
	ResultFailed     = "failed"
)

// RefresherConfig configures a Refresher.
type RefresherConfig struct {
	SourceURL     string
	MaxAge        time.Duration
	CheckInterval time.Duration
	Client        *http.Client
}

// Refresher keeps the cached zone file younger than MaxAge and republishes it
// after every download.
type Refresher struct {
	registry *Registry
	cache    *storage.FileCache
	cfg      RefresherConfig
	log      logging.Logger
	metrics  *metrics.Collector

	mu sync.Mutex
}

func NewRefresher(reg *Registry, cache *storage.FileCache, cfg RefresherConfig, log logging.Logger, m *metrics.Collector) *Refresher {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: time.Minute}
	}
	if log == nil {
		log = logging.Noop()
	}
	return &Refresher{
		registry: reg,
		cache:    cache,
		cfg:      cfg,
		log:      log.With(logging.String("component", "zone_refresher")),
		metrics:  m,
	}
}

// Refresh downloads the zone file when it is missing, older than MaxAge, or
// force is set, and publishes it. Without a download it publishes the cached
// file if nothing is loaded yet. Any failure keeps the previous zone set.
func (r *Refresher) Refresh(ctx context.Context, force bool) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result, err := r.refresh(ctx, force)
	if err != nil {
		result = ResultFailed
		r.log.Warn(ctx, "zone refresh failed", logging.Err(err), logging.String("source", r.cfg.SourceURL))
	} else if result != ResultFresh {
		r.log.Info(ctx, "zones published",
			logging.String("result", result),
			logging.Int("zones", r.registry.Current().Len()))
	}
	r.metrics.ObserveRefresh(result)
	return result, err
}

func (r *Refresher) refresh(ctx context.Context, force bool) (string, error) {
	stale, err := r.cache.Stale(r.cfg.MaxAge)
	if err != nil {
		return "", err
	}

	var downloadErr error
	if (stale || force) && r.cfg.SourceURL != "" {
		downloadErr = r.download(ctx)
		if downloadErr == nil {
			return ResultDownloaded, nil
		}
	}

	if r.registry.Current() != nil {
		if downloadErr != nil {
			return "", downloadErr
		}
		return ResultFresh, nil
	}

	// Nothing published yet: fall back to whatever is on disk.
	if _, ok, _ := r.cache.Age(); !ok {
		if downloadErr != nil {
			return "", downloadErr
		}
		return "", fmt.Errorf("no zone file at %s and no source URL configured", r.cache.Path())
	}
	if _, err := r.registry.LoadFile(r.cache.Path()); err != nil {
		return "", errors.Join(downloadErr, err)
	}
	if downloadErr != nil {
		r.log.Warn(ctx, "download failed, serving cached zone file", logging.Err(downloadErr))
	}
	return ResultLoaded, nil
}

// download fetches, validates and only then persists and publishes the file.
func (r *Refresher) download(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.SourceURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := r.cfg.Client.Do(req)
	if err != nil {
		return fmt.Errorf("downloading zones: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading zones: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return fmt.Errorf("reading zones: %w", err)
	}

	set, err := r.registry.LoadReader(bytes.NewReader(data), r.cfg.SourceURL)
	if err != nil {
		return err
	}
	if _, err := r.cache.Replace(bytes.NewReader(data)); err != nil {
		// The new set is already live; only the on-disk copy is stale.
		r.log.Error(ctx, "failed to cache zone file", logging.Err(err), logging.String("path", r.cache.Path()))
	}
	r.log.Debug(ctx, "zone file downloaded", logging.Int("bytes", len(data)), logging.Int("zones", set.Len()))
	return nil
}

// Run refreshes once immediately and then every CheckInterval until ctx is
// done. Refresh failures are logged, never returned.
func (r *Refresher) Run(ctx context.Context) error {
	_, _ = r.Refresh(ctx, false)

	if r.cfg.CheckInterval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(r.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_, _ = r.Refresh(ctx, false)
		}
	}
}
