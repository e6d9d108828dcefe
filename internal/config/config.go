// Package config loads the report configuration from a YAML file, a .env
// file and the process environment.
//
// Later sources win: defaults, then the YAML file, then .env, then the
// environment. Command-line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Sternrassler/freshbooks-report/pkg/client"
	"github.com/Sternrassler/freshbooks-report/pkg/logging"
	"github.com/Sternrassler/freshbooks-report/pkg/tokenstore"
)

// Environment variables.
const (
	EnvClientID     = "FRESHBOOKS_CLIENT_ID"
	EnvClientSecret = "FRESHBOOKS_CLIENT_SECRET"
	EnvAccountID    = "FRESHBOOKS_ACCOUNT_ID"
	EnvBusinessID   = "FRESHBOOKS_BUSINESS_ID"
	EnvTokenPath    = "FRESHBOOKS_TOKEN_PATH"
	EnvBaseURL      = "FRESHBOOKS_BASE_URL"
	EnvTimeout      = "FRESHBOOKS_TIMEOUT"
	EnvRedisAddr    = "FRESHBOOKS_REDIS_ADDR"
	EnvRedisKey     = "FRESHBOOKS_REDIS_KEY"
	EnvLogLevel     = "LOG_LEVEL"
)

// DefaultEnvFile is the dotenv file read from the working directory.
const DefaultEnvFile = ".env"

// ErrInvalid is returned for configuration that cannot be used.
var ErrInvalid = errors.New("invalid configuration")

// Config contains runtime configuration values.
type Config struct {
	ClientID     string        `yaml:"client_id"`
	ClientSecret string        `yaml:"client_secret"`
	AccountID    string        `yaml:"account_id"`
	BusinessID   string        `yaml:"business_id"`
	TokenPath    string        `yaml:"token_path"`
	BaseURL      string        `yaml:"base_url"`
	Timeout      time.Duration `yaml:"timeout"`
	RedisAddr    string        `yaml:"redis_addr"`
	RedisKey     string        `yaml:"redis_key"`
	LogLevel     string        `yaml:"log_level"`
}

// Default returns the configuration used when no source sets a value.
func Default() Config {
	return Config{
		TokenPath: tokenstore.DefaultPath,
		BaseURL:   client.DefaultBaseURL,
		Timeout:   client.DefaultTimeout,
		RedisKey:  tokenstore.DefaultRedisKey,
		LogLevel:  string(logging.LevelInfo),
	}
}

// Load reads path (optional), then .env from the working directory, then
// the environment.
func Load(path string) (Config, error) {
	return load(path, DefaultEnvFile, os.LookupEnv)
}

func load(path, envFile string, lookupEnv func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}

	dotenv, err := godotenv.Read(envFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("%w: read %s: %v", ErrInvalid, envFile, err)
		}
		dotenv = map[string]string{}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := lookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.mergeEnv(lookup); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: read config file: %v", ErrInvalid, err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrInvalid, path, err)
	}

	setString(&c.ClientID, file.ClientID)
	setString(&c.ClientSecret, file.ClientSecret)
	setString(&c.AccountID, file.AccountID)
	setString(&c.BusinessID, file.BusinessID)
	setString(&c.TokenPath, file.TokenPath)
	setString(&c.BaseURL, file.BaseURL)
	setString(&c.RedisAddr, file.RedisAddr)
	setString(&c.RedisKey, file.RedisKey)
	setString(&c.LogLevel, file.LogLevel)
	if file.Timeout != 0 {
		c.Timeout = file.Timeout
	}
	return nil
}

func (c *Config) mergeEnv(lookup func(string) (string, bool)) error {
	for key, dst := range map[string]*string{
		EnvClientID:     &c.ClientID,
		EnvClientSecret: &c.ClientSecret,
		EnvAccountID:    &c.AccountID,
		EnvBusinessID:   &c.BusinessID,
		EnvTokenPath:    &c.TokenPath,
		EnvBaseURL:      &c.BaseURL,
		EnvRedisAddr:    &c.RedisAddr,
		EnvRedisKey:     &c.RedisKey,
		EnvLogLevel:     &c.LogLevel,
	} {
		if v, ok := lookup(key); ok {
			setString(dst, v)
		}
	}

	if v, ok := lookup(EnvTimeout); ok && strings.TrimSpace(v) != "" {
		d, err := ParseTimeout(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, EnvTimeout, err)
		}
		c.Timeout = d
	}
	return nil
}

// ParseTimeout accepts a Go duration ("90s", "2m") or a number of seconds.
func ParseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// Validate checks that the configuration is complete. The business id is
// only needed to list projects.
func (c Config) Validate(needBusiness bool) error {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, EnvClientID)
	}
	if c.ClientSecret == "" {
		missing = append(missing, EnvClientSecret)
	}
	if c.AccountID == "" && !needBusiness {
		missing = append(missing, EnvAccountID)
	}
	if c.BusinessID == "" && needBusiness {
		missing = append(missing, EnvBusinessID)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalid, strings.Join(missing, ", "))
	}

	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must be >= 0 (got %s)", ErrInvalid, c.Timeout)
	}
	if c.TokenPath == "" && c.RedisAddr == "" {
		return fmt.Errorf("%w: token path is empty", ErrInvalid)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}
