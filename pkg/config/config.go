// Package config loads the optional hirecs.toml configuration file. Flags
// always override file values; the file only moves defaults.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/hirecs/hirecs/pkg/errors"
	"github.com/hirecs/hirecs/pkg/hirecs"
)

// FileName is the configuration file looked up by Discover.
const FileName = "hirecs.toml"

// Config holds the tool-wide defaults.
type Config struct {
	// Margin is the default modularity profit margin.
	Margin float64 `toml:"margin"`

	// Format is the default output format (t, c, j, je, jd).
	Format string `toml:"format"`

	Cache  CacheConfig  `toml:"cache"`
	Server ServerConfig `toml:"server"`
}

// CacheConfig configures the artifact cache.
type CacheConfig struct {
	// Backend selects the cache: "file", "redis" or "none".
	Backend string `toml:"backend"`

	// Dir is the file-backend directory. Empty means the user cache dir.
	Dir string `toml:"dir"`

	// TTLHours bounds an entry's lifetime; zero keeps entries forever.
	TTLHours int `toml:"ttl_hours"`

	Redis RedisConfig `toml:"redis"`
}

// RedisConfig configures the Redis cache backend.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// ServerConfig configures serve mode.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `toml:"addr"`

	// MongoURI enables the result store when non-empty.
	MongoURI string `toml:"mongo_uri"`

	// MongoDatabase is the database holding the results collection.
	MongoDatabase string `toml:"mongo_database"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Margin: hirecs.DefaultModProfitMargin,
		Format: "t",
		Cache: CacheConfig{
			Backend:  "file",
			TTLHours: 0,
		},
		Server: ServerConfig{
			Addr:          ":8080",
			MongoDatabase: "hirecs",
		},
	}
}

// Load reads a configuration file, layered over Default.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) {
			return cfg, errors.New(errors.ErrCodeNotFound, "config file %s not found", path)
		}
		return cfg, errors.Wrap(errors.ErrCodeParse, err, "config file %s", path)
	}
	return cfg, nil
}

// Discover looks for hirecs.toml in the working directory, then in the user
// config directory. Returns the defaults when no file exists; the second
// result is the path actually loaded, empty for pure defaults.
func Discover() (Config, string, error) {
	if _, err := os.Stat(FileName); err == nil {
		cfg, err := Load(FileName)
		return cfg, FileName, err
	}
	if dir, err := os.UserConfigDir(); err == nil {
		path := filepath.Join(dir, "hirecs", FileName)
		if _, err := os.Stat(path); err == nil {
			cfg, err := Load(path)
			return cfg, path, err
		}
	}
	return Default(), "", nil
}

// CacheDir resolves the file-backend directory, defaulting to the user
// cache directory.
func (c CacheConfig) CacheDir() (string, error) {
	if c.Dir != "" {
		return c.Dir, nil
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeIO, err, "resolve cache directory")
	}
	return filepath.Join(dir, "hirecs"), nil
}
