package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// AppDir is the directory name under the XDG config and data homes.
	AppDir = "citenet"
	// ConfigFile is the config file name.
	ConfigFile = "config.yml"
	// StoreFile is the default SQLite store name.
	StoreFile = "citations.db"

	// EnvConfig names an explicit config file.
	EnvConfig = "CITENET_CONFIG"
	// EnvDB overrides store.path.
	EnvDB = "CITENET_DB"
	// EnvAPI overrides remote.url.
	EnvAPI = "CITENET_API"
)

// Path returns the config file to read. $CITENET_CONFIG wins; otherwise the
// file lives under XDG_CONFIG_HOME, defaulting to ~/.config/citenet/config.yml.
func Path() string {
	if p := os.Getenv(EnvConfig); p != "" {
		return ExpandPath(p)
	}
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, AppDir, ConfigFile)
}

// DefaultStorePath returns the store location under XDG_DATA_HOME.
func DefaultStorePath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return StoreFile
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, AppDir, StoreFile)
}

// Load reads the config file at Path. A missing file yields the defaults.
// Environment overrides are applied before validation.
func Load() (*Config, error) {
	return LoadFile(Path())
}

// LoadFile reads the config at path over the defaults. ${VAR} references in
// the file are expanded from the environment.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// defaults only
		case err != nil:
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		default:
			expanded := os.ExpandEnv(string(data))
			if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	cfg.Store.Path = ExpandPath(cfg.Store.Path)
	cfg.Cache.Path = ExpandPath(cfg.Cache.Path)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if p := os.Getenv(EnvDB); p != "" {
		c.Store.Path = p
	}
	if u := os.Getenv(EnvAPI); u != "" {
		c.Remote.URL = u
	}
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[1:])
}
