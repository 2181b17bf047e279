package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v2"
)

// EnvPrefix marks environment variables that override file values.
const EnvPrefix = "CROP_"

type Config struct {
	Dataset struct {
		Path     string `yaml:"path"`
		Encoding string `yaml:"encoding"`
		Strict   bool   `yaml:"strict"`
	} `yaml:"dataset"`
	Model struct {
		Seed     int64 `yaml:"seed"`
		MaxDepth int   `yaml:"max_depth"`
	} `yaml:"model"`
	Http struct {
		Port           int      `yaml:"port"`
		Timeout        string   `yaml:"timeout"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		MaxBodyBytes   int64    `yaml:"max_body_bytes"`
	} `yaml:"http"`
	Cache struct {
		Size int `yaml:"size"`
	} `yaml:"cache"`
	History struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"history"`
	Log struct {
		Level       string `yaml:"level"`
		File        string `yaml:"file"`
		MaxSizeMB   int    `yaml:"max_size_mb"`
		MaxBackups  int    `yaml:"max_backups"`
		MaxAgeDays  int    `yaml:"max_age_days"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`
	Practices struct {
		Path string `yaml:"path"`
	} `yaml:"practices"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	c := &Config{}
	c.Dataset.Path = "Crop_recommendation.csv"
	c.Dataset.Encoding = "utf-8"
	c.Model.Seed = 1
	c.Http.Port = 8080
	c.Http.Timeout = "10s"
	c.Http.AllowedOrigins = []string{"*"}
	c.Http.MaxBodyBytes = 1 << 20
	c.Cache.Size = 1024
	c.History.Path = "data/history.db"
	c.Log.Level = "info"
	c.Log.MaxSizeMB = 100
	c.Log.MaxBackups = 3
	c.Log.MaxAgeDays = 28
	return c
}

// Load applies defaults, then the YAML file at path (skipped if it does not
// exist), then CROP_* environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		file, err := os.Open(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("open config: %w", err)
		default:
			defer file.Close()
			if err := yaml.NewDecoder(file).Decode(c); err != nil && !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("decode config %s: %w", path, err)
			}
		}
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// HTTPTimeout returns the parsed per-request timeout.
func (c *Config) HTTPTimeout() time.Duration {
	d, err := time.ParseDuration(c.Http.Timeout)
	if err != nil {
		return 0
	}
	return d
}

func (c *Config) Validate() error {
	var err error
	if strings.TrimSpace(c.Dataset.Path) == "" {
		err = multierr.Append(err, errors.New("dataset.path is required"))
	}
	if c.Model.MaxDepth < 0 {
		err = multierr.Append(err, errors.New("model.max_depth must not be negative"))
	}
	if c.Http.Port <= 0 || c.Http.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("http.port %d out of range", c.Http.Port))
	}
	if d, perr := time.ParseDuration(c.Http.Timeout); perr != nil || d <= 0 {
		err = multierr.Append(err, fmt.Errorf("http.timeout %q is not a positive duration", c.Http.Timeout))
	}
	if c.Http.MaxBodyBytes <= 0 {
		err = multierr.Append(err, errors.New("http.max_body_bytes must be positive"))
	}
	if c.Cache.Size < 0 {
		err = multierr.Append(err, errors.New("cache.size must not be negative"))
	}
	if c.History.Enabled && c.History.Path == "" {
		err = multierr.Append(err, errors.New("history.path is required when history is enabled"))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		err = multierr.Append(err, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	var err error
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	num := func(key string, set func(int64)) {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return
		}
		n, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			err = multierr.Append(err, fmt.Errorf("%s%s: %w", EnvPrefix, key, perr))
			return
		}
		set(n)
	}
	flag := func(key string, dst *bool) {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return
		}
		b, perr := strconv.ParseBool(v)
		if perr != nil {
			err = multierr.Append(err, fmt.Errorf("%s%s: %w", EnvPrefix, key, perr))
			return
		}
		*dst = b
	}

	str("DATASET_PATH", &c.Dataset.Path)
	str("DATASET_ENCODING", &c.Dataset.Encoding)
	num("MODEL_SEED", func(n int64) { c.Model.Seed = n })
	num("MODEL_MAX_DEPTH", func(n int64) { c.Model.MaxDepth = int(n) })
	num("HTTP_PORT", func(n int64) { c.Http.Port = int(n) })
	str("HTTP_TIMEOUT", &c.Http.Timeout)
	if v, ok := lookup(EnvPrefix + "HTTP_ALLOWED_ORIGINS"); ok {
		c.Http.AllowedOrigins = splitList(v)
	}
	num("CACHE_SIZE", func(n int64) { c.Cache.Size = int(n) })
	flag("HISTORY_ENABLED", &c.History.Enabled)
	str("HISTORY_PATH", &c.History.Path)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FILE", &c.Log.File)
	flag("LOG_DEVELOPMENT", &c.Log.Development)
	str("PRACTICES_PATH", &c.Practices.Path)
	return err
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
