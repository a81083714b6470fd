// Package config loads folio settings from a YAML file, FOLIO_* environment
// variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvPrefix = "FOLIO"
	fileName  = "folio"
)

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type AdminConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

type ServerConfig struct {
	Addr        string        `mapstructure:"addr"`
	DataDir     string        `mapstructure:"data_dir"`
	// DatabaseURL selects PostgreSQL storage instead of the bbolt file.
	DatabaseURL string        `mapstructure:"database_url"`
	JWTSecret   string        `mapstructure:"jwt_secret"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
	Admin       AdminConfig   `mapstructure:"admin"`
}

type Config struct {
	// APIURL is the origin of the backend API, e.g. http://localhost:8080/api.
	APIURL string `mapstructure:"api_url"`
	// DataDir holds the session database.
	DataDir string        `mapstructure:"data_dir"`
	Timeout time.Duration `mapstructure:"timeout"`
	Log     LogConfig     `mapstructure:"log"`
	Server  ServerConfig  `mapstructure:"server"`
}

// New returns a viper instance with defaults and environment binding set up.
// configFile, when non-empty, replaces the search path.
func New(configFile string) *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		return v
	}
	v.SetConfigName(fileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, "folio"))
	}
	return v
}

// Load reads the config file if there is one and decodes the settings. A
// missing file in the search path is not an error; a missing explicit file is.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later and less clearly.
func (c Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config: api_url %q must be an absolute http(s) URL", c.APIURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("config: timeout must be positive")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_url", "http://localhost:8080/api")
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("timeout", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.data_dir", "./data")
	v.SetDefault("server.database_url", "")
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.token_ttl", 24*time.Hour)
	v.SetDefault("server.admin.email", "")
	v.SetDefault("server.admin.password", "")
	v.SetDefault("server.admin.name", "Admin")
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "folio")
	}
	return ".folio"
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return lvl, fmt.Errorf("config: invalid log.level %q", s)
	}
	return lvl, nil
}

// NewLogger builds the process logger described by c.
func (c LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	lvl, err := parseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
