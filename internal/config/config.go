// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

// Package config loads accountd configuration.
//
// Sources are layered: built-in defaults, then an optional YAML file
// (validated against the generated JSON Schema), then secrets from the
// environment, then command-line flags the user explicitly set.
package config

import (
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/accountd/accountd/internal/access"
	"github.com/accountd/accountd/internal/auth"
	"github.com/accountd/accountd/internal/logging"
	"github.com/accountd/accountd/internal/mail"
	"github.com/accountd/accountd/internal/store"
	"github.com/accountd/accountd/internal/tls"
)

// LogConfig controls the process logger.
type LogConfig struct {
	Format string `koanf:"format" json:"format" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// HTTPConfig controls the API and metrics listeners.
type HTTPConfig struct {
	Addr            string        `koanf:"addr" json:"addr"`
	MetricsAddr     string        `koanf:"metrics_addr" json:"metrics_addr"`
	AllowedOrigins  []string      `koanf:"allowed_origins" json:"allowed_origins,omitempty"`
	SecureCookies   bool          `koanf:"secure_cookies" json:"secure_cookies"`
	RateLimit       int           `koanf:"rate_limit" json:"rate_limit" jsonschema:"minimum=0"`
	ReadTimeout     time.Duration `koanf:"read_timeout" json:"read_timeout" jsonschema:"oneof_type=string;integer"`
	WriteTimeout    time.Duration `koanf:"write_timeout" json:"write_timeout" jsonschema:"oneof_type=string;integer"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" json:"shutdown_timeout" jsonschema:"oneof_type=string;integer"`
	TLS             tls.Config    `koanf:"tls" json:"tls"`
}

// DatabaseConfig points at PostgreSQL.
type DatabaseConfig struct {
	URL  string           `koanf:"url" json:"url,omitempty"`
	Pool store.PoolConfig `koanf:"pool" json:"pool"`
}

// HashConfig tunes password hashing.
type HashConfig struct {
	Argon2  auth.Argon2Params `koanf:"argon2" json:"argon2"`
	Workers int               `koanf:"workers" json:"workers" jsonschema:"minimum=0"`
}

// SecretsConfig sets the lifetime of emailed secret tokens.
type SecretsConfig struct {
	ResetTTL  time.Duration `koanf:"reset_ttl" json:"reset_ttl" jsonschema:"oneof_type=string;integer"`
	VerifyTTL time.Duration `koanf:"verify_ttl" json:"verify_ttl" jsonschema:"oneof_type=string;integer"`
}

// AccessConfig holds the role rules for guarded operations.
type AccessConfig struct {
	Rules []access.Rule `koanf:"rules" json:"rules,omitempty"`
}

// Config is the complete accountd configuration.
type Config struct {
	AppURL   string             `koanf:"app_url" json:"app_url" jsonschema:"format=uri"`
	Log      LogConfig          `koanf:"log" json:"log"`
	HTTP     HTTPConfig         `koanf:"http" json:"http"`
	Database DatabaseConfig     `koanf:"database" json:"database"`
	Tokens   auth.TokenConfig   `koanf:"tokens" json:"tokens"`
	Hash     HashConfig         `koanf:"hash" json:"hash"`
	Lockout  auth.LockoutPolicy `koanf:"lockout" json:"lockout"`
	Secrets  SecretsConfig      `koanf:"secrets" json:"secrets"`
	Mail     mail.Config        `koanf:"mail" json:"mail"`
	Access   AccessConfig       `koanf:"access" json:"access"`
}

// Default returns a configuration that runs locally once secrets and a
// database URL are supplied.
func Default() Config {
	return Config{
		AppURL: "http://localhost:8080",
		Log:    LogConfig{Format: "json", Level: "info"},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			MetricsAddr:     "127.0.0.1:9100",
			RateLimit:       20,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Database: DatabaseConfig{Pool: store.DefaultPoolConfig()},
		Tokens: auth.TokenConfig{
			Issuer:     "accountd",
			AccessTTL:  auth.DefaultAccessTTL,
			RefreshTTL: auth.DefaultRefreshTTL,
		},
		Hash:    HashConfig{Argon2: auth.DefaultArgon2Params()},
		Lockout: auth.DefaultLockoutPolicy(),
		Secrets: SecretsConfig{ResetTTL: auth.DefaultResetTTL, VerifyTTL: auth.DefaultVerifyTTL},
		Mail:    mail.DefaultConfig(),
		Access:  AccessConfig{Rules: access.DefaultRules()},
	}
}

// Environment variables holding secrets. They override the file.
var envKeys = []struct {
	names []string
	key   string
}{
	{[]string{"ACCOUNTD_DATABASE_URL", "DATABASE_URL"}, "database.url"},
	{[]string{"ACCOUNTD_ACCESS_SECRET"}, "tokens.access_secret"},
	{[]string{"ACCOUNTD_REFRESH_SECRET"}, "tokens.refresh_secret"},
	{[]string{"ACCOUNTD_SMTP_PASSWORD"}, "mail.password"},
}

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"listen":       "http.addr",
	"metrics-addr": "http.metrics_addr",
	"log-format":   "log.format",
	"log-level":    "log.level",
	"database-url": "database.url",
	"app-url":      "app_url",
}

// Options controls Load.
type Options struct {
	// Path is the YAML file to read. Empty skips the file.
	Path string
	// Flags supplies overrides; only flags the user changed are applied.
	Flags *pflag.FlagSet
	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Load builds a Config from defaults, file, environment and flags, then
// validates it.
func Load(opts Options) (Config, error) {
	cfg, err := load(opts)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadUnvalidated is Load without Validate, for tools that report problems
// themselves.
func LoadUnvalidated(opts Options) (Config, error) {
	return load(opts)
}

func load(opts Options) (Config, error) {
	k := koanf.New(".")

	if opts.Path != "" {
		provider := file.Provider(opts.Path)
		data, err := provider.ReadBytes()
		if err != nil {
			return Config{}, oops.Code("CONFIG_READ_FAILED").With("path", opts.Path).Wrap(err)
		}
		if err := ValidateYAML(data); err != nil {
			return Config{}, oops.With("path", opts.Path).Wrap(err)
		}
		if err := k.Load(provider, yaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_PARSE_FAILED").With("path", opts.Path).Wrap(err)
		}
	}

	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, e := range envKeys {
		for _, name := range e.names {
			if v, ok := lookup(name); ok && v != "" {
				if err := k.Set(e.key, v); err != nil {
					return Config{}, oops.Code("CONFIG_ENV_FAILED").With("variable", name).Wrap(err)
				}
				break
			}
		}
	}

	if opts.Flags != nil {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := FlagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(opts.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := Default()
	// Lists replace their defaults instead of merging element by element.
	if k.Exists("access.rules") {
		cfg.Access.Rules = nil
	}
	if k.Exists("http.allowed_origins") {
		cfg.HTTP.AllowedOrigins = nil
	}
	if k.Exists("http.tls.hosts") {
		cfg.HTTP.TLS.Hosts = nil
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code("CONFIG_PARSE_FAILED").Wrap(err)
	}
	return cfg, nil
}

// Validate checks every section. It returns the first problem found.
func (c Config) Validate() error {
	u, err := url.Parse(c.AppURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return oops.Code("CONFIG_INVALID").With("app_url", c.AppURL).Errorf("app_url must be an absolute URL")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").With("format", c.Log.Format).Errorf("log.format must be 'json' or 'text'")
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.HTTP.Addr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("http.addr is required")
	}
	if c.HTTP.RateLimit < 0 {
		return oops.Code("CONFIG_INVALID").With("rate_limit", c.HTTP.RateLimit).Errorf("http.rate_limit cannot be negative")
	}
	if err := c.HTTP.TLS.Validate(); err != nil {
		return err
	}
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("database.url is required (or set ACCOUNTD_DATABASE_URL)")
	}
	if err := c.Tokens.Validate(); err != nil {
		return err
	}
	if _, err := auth.NewArgon2idHasherWithParams(c.Hash.Argon2); err != nil {
		return err
	}
	if c.Lockout.MaxAttempts <= 0 || c.Lockout.LockDuration <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("lockout needs positive max_attempts and lock_duration")
	}
	if c.Secrets.ResetTTL <= 0 || c.Secrets.VerifyTTL <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("secret token lifetimes must be positive")
	}
	if err := c.Mail.Validate(); err != nil {
		return err
	}
	if _, err := access.NewPolicy(c.Access.Rules); err != nil {
		return err
	}
	return nil
}

// LogLevel returns the parsed log level, defaulting to info.
func (c Config) LogLevel() slog.Level {
	level, _ := logging.ParseLevel(c.Log.Level)
	return level
}

// ServiceConfig projects the settings consumed by auth.Service.
func (c Config) ServiceConfig() auth.ServiceConfig {
	return auth.ServiceConfig{
		Lockout:     c.Lockout,
		ResetTTL:    c.Secrets.ResetTTL,
		VerifyTTL:   c.Secrets.VerifyTTL,
		HashWorkers: c.Hash.Workers,
		AppURL:      c.AppURL,
	}
}
