package cache

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// PersistConfig configures the on-disk warm tier.
type PersistConfig struct {
	// Path is the badger directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps the tier in memory (tests).
	InMemory bool

	// TTL bounds how long an entry is trusted. Zero means no expiry.
	TTL time.Duration

	Logger *slog.Logger
}

// OpenPersistent opens a badger database for use with WithPersistent.
func OpenPersistent(cfg PersistConfig) (*badger.DB, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("cache path is required for a persistent tier")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening cache store: %w", err)
	}
	return db, nil
}

// badgerLogger adapts slog.Logger to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// tier is the badger-backed second level.
type tier struct {
	db  *badger.DB
	ttl time.Duration
}

// get returns the stored bytes, or nil when absent or expired.
func (t *tier) get(key string) ([]byte, error) {
	var out []byte
	err := t.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reading cache entry %s: %w", key, err)
	}
	return out, nil
}

func (t *tier) put(key string, val []byte) error {
	err := t.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), val)
		if t.ttl > 0 {
			e = e.WithTTL(t.ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("writing cache entry %s: %w", key, err)
	}
	return nil
}
