// Package config loads citenet settings from YAML.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/matsen/citenet/internal/network"
	"github.com/matsen/citenet/internal/remote"
	"github.com/matsen/citenet/internal/similarity"
)

// Citation sources.
const (
	SourceLocal  = "local"
	SourceRemote = "remote"
)

// Log formats.
const (
	LogText = "text"
	LogJSON = "json"
)

// Config is the complete citenet configuration.
type Config struct {
	Source  string        `yaml:"source"`
	Store   StoreConfig   `yaml:"store"`
	Remote  RemoteConfig  `yaml:"remote"`
	Cache   CacheConfig   `yaml:"cache"`
	Network NetworkConfig `yaml:"network"`
	Log     LogConfig     `yaml:"log"`
}

// StoreConfig locates the local SQLite citation store.
type StoreConfig struct {
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	Compressed   bool   `yaml:"compressed"` // write metadata zlib-compressed on load
}

// RemoteConfig configures the HTTP citation API.
type RemoteConfig struct {
	URL              string        `yaml:"url"`
	RateLimit        float64       `yaml:"rate_limit"`
	Burst            int           `yaml:"burst"`
	BreakerThreshold uint32        `yaml:"breaker_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
}

// CacheConfig configures the lookup cache in front of the source.
type CacheConfig struct {
	Enabled bool  `yaml:"enabled"`
	MaxCost int64 `yaml:"max_cost"`

	// Path enables the on-disk tier when set.
	Path string        `yaml:"path"`
	TTL  time.Duration `yaml:"ttl"`

	// ReverseRPS throttles reverse lookups when positive.
	ReverseRPS   float64 `yaml:"reverse_rps"`
	ReverseBurst int     `yaml:"reverse_burst"`
}

// NetworkConfig holds builder defaults.
type NetworkConfig struct {
	TopN                int                `yaml:"top_n"`
	PoolCap             int                `yaml:"pool_cap"`
	ScoreFloor          float64            `yaml:"score_floor"`
	Workers             int                `yaml:"workers"`
	CoCitationExpansion bool               `yaml:"co_citation_expansion"`
	InterCandidateEdges bool               `yaml:"inter_candidate_edges"`
	Weights             similarity.Weights `yaml:"weights"`
}

// LogConfig selects the CLI log handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Source: SourceLocal,
		Store: StoreConfig{
			Path:         DefaultStorePath(),
			MaxOpenConns: 8,
		},
		Remote: RemoteConfig{
			URL:              remote.BaseURL,
			RateLimit:        remote.RateLimit,
			Burst:            1,
			BreakerThreshold: 5,
			Timeout:          remote.DefaultTimeout,
		},
		Cache: CacheConfig{
			Enabled: true,
			MaxCost: 1 << 16,
			TTL:     7 * 24 * time.Hour,
		},
		Network: NetworkConfig{
			TopN:                network.DefaultTopN,
			PoolCap:             network.DefaultPoolCap,
			ScoreFloor:          network.DefaultScoreFloor,
			Workers:             network.DefaultWorkers,
			CoCitationExpansion: true,
			InterCandidateEdges: true,
			Weights:             similarity.DefaultWeights(),
		},
		Log: LogConfig{
			Level:  "warn",
			Format: LogText,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Source, validation.Required, validation.In(SourceLocal, SourceRemote)),
	); err != nil {
		return err
	}
	if c.Source == SourceLocal {
		if err := c.Store.Validate(); err != nil {
			return fmt.Errorf("store: %w", err)
		}
	} else if err := c.Remote.Validate(); err != nil {
		return fmt.Errorf("remote: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := c.Network.Validate(); err != nil {
		return fmt.Errorf("network: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.MaxOpenConns, validation.Min(0)),
	)
}

// Validate validates the remote configuration.
func (c *RemoteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required),
		validation.Field(&c.RateLimit, validation.Min(0.0)),
		validation.Field(&c.Burst, validation.Min(1)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxCost, validation.When(c.Enabled, validation.Required, validation.Min(int64(1)))),
		validation.Field(&c.TTL, validation.Min(time.Duration(0))),
		validation.Field(&c.ReverseRPS, validation.Min(0.0)),
		validation.Field(&c.ReverseBurst, validation.Min(0)),
	)
}

// Validate validates the builder defaults.
func (c *NetworkConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.TopN, validation.Required, validation.Min(1)),
		validation.Field(&c.PoolCap, validation.Required, validation.Min(1)),
		validation.Field(&c.ScoreFloor, validation.Min(0.0).Exclusive(), validation.Max(network.MaxCandidateScore)),
		validation.Field(&c.Workers, validation.Required, validation.Min(1)),
	); err != nil {
		return err
	}
	return c.Weights.Validate()
}

// Validate validates the log configuration.
func (c *LogConfig) Validate() error {
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Format, validation.In(LogText, LogJSON)),
	)
}

// SlogLevel parses Level. An empty level means warn.
func (c *LogConfig) SlogLevel() (slog.Level, error) {
	if c.Level == "" {
		return slog.LevelWarn, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Level)); err != nil {
		return 0, errors.New("level: must be debug, info, warn, or error")
	}
	return lvl, nil
}

// BuilderOptions translates the network section into builder options.
func (c *NetworkConfig) BuilderOptions() []network.Option {
	return []network.Option{
		network.WithWeights(c.Weights),
		network.WithPoolCap(c.PoolCap),
		network.WithScoreFloor(c.ScoreFloor),
		network.WithWorkers(c.Workers),
		network.WithCoCitationExpansion(c.CoCitationExpansion),
		network.WithInterCandidateEdges(c.InterCandidateEdges),
	}
}
