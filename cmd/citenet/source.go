package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/matsen/citenet/internal/cache"
	"github.com/matsen/citenet/internal/citation"
	"github.com/matsen/citenet/internal/config"
	"github.com/matsen/citenet/internal/remote"
	"github.com/matsen/citenet/internal/storage"
)

// source is a citation backend. Both the SQLite store and the remote API
// provide bounded listings and counts on top of the accessor contract.
type source interface {
	citation.Accessor
	Cited(ctx context.Context, id string, limit int) ([]string, error)
	Citing(ctx context.Context, id string, limit int) ([]string, error)
	CitationCount(ctx context.Context, id string) (int, error)
}

var (
	_ source = (*storage.DB)(nil)
	_ source = (*remote.Client)(nil)
)

// newLogger builds the stderr handler selected by the log section.
func newLogger(c config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := c.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == config.LogJSON {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// openSource opens the configured citation backend for reading.
func openSource(c *config.Config) (source, func(), error) {
	if c.Source == config.SourceRemote {
		client := remote.NewClient(
			remote.WithBaseURL(c.Remote.URL),
			remote.WithHTTPClient(&http.Client{Timeout: c.Remote.Timeout}),
			remote.WithRateLimit(c.Remote.RateLimit, c.Remote.Burst),
			remote.WithBreakerThreshold(c.Remote.BreakerThreshold),
			remote.WithLogger(logger),
		)
		return client, func() {}, nil
	}

	if _, err := os.Stat(c.Store.Path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, withCode(ExitConfigError,
				fmt.Errorf("citation store %s does not exist (create it with 'citenet load' or set %s)", c.Store.Path, config.EnvDB))
		}
		return nil, nil, withCode(ExitConfigError, fmt.Errorf("checking citation store: %w", err))
	}

	db, err := storage.OpenDB(c.Store.Path,
		storage.WithReadOnly(),
		storage.WithMaxOpenConns(c.Store.MaxOpenConns),
	)
	if err != nil {
		return nil, nil, err
	}
	return db, func() { db.Close() }, nil
}

// openWritableStore opens (creating if needed) the local store for loading.
func openWritableStore(c *config.Config) (*storage.DB, error) {
	if dir := filepath.Dir(c.Store.Path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}
	opts := []storage.Option{storage.WithMaxOpenConns(1)}
	if c.Store.Compressed {
		opts = append(opts, storage.WithCompressedMetadata())
	}
	return storage.OpenDB(c.Store.Path, opts...)
}

// withCache wraps acc in the configured lookup cache. The returned closer
// releases the cache and its disk tier.
func withCache(acc citation.Accessor, c config.CacheConfig, reg prometheus.Registerer) (citation.Accessor, func(), error) {
	if !c.Enabled {
		return acc, func() {}, nil
	}

	opts := []cache.Option{
		cache.WithMaxCost(c.MaxCost),
		cache.WithReverseRateLimit(c.ReverseRPS, c.ReverseBurst),
		cache.WithRegisterer(reg),
		cache.WithLogger(logger),
	}

	var disk *badger.DB
	if c.Path != "" {
		var err error
		disk, err = cache.OpenPersistent(cache.PersistConfig{
			Path:   c.Path,
			TTL:    c.TTL,
			Logger: logger,
		})
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, cache.WithPersistent(disk, c.TTL))
	}

	cached, err := cache.New(acc, opts...)
	if err != nil {
		if disk != nil {
			disk.Close()
		}
		return nil, nil, err
	}

	return cached, func() {
		cached.Close()
		if disk != nil {
			if err := disk.Close(); err != nil {
				logger.Warn("closing cache store", "error", err)
			}
		}
	}, nil
}
