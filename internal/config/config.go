// Package config loads tai's settings from a YAML file, a .env file, and the
// environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Config is the full settings tree.
type Config struct {
	Store   StoreConfig  `yaml:"store"`
	LLM     LLMConfig    `yaml:"llm"`
	Memory  MemoryConfig `yaml:"memory"`
	Scrape  ScrapeConfig `yaml:"scrape"`
	Patch   PatchConfig  `yaml:"patch"`
	Speaker bool         `yaml:"speaker"`
	Log     LogConfig    `yaml:"log"`
	Trace   TraceConfig  `yaml:"trace"`
}

type StoreConfig struct {
	Driver        string `yaml:"driver"`
	Path          string `yaml:"path"`
	RedisURL      string `yaml:"redis_url"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	Prefix        string `yaml:"prefix"`
	Encrypted     bool   `yaml:"encrypted"`
	EncryptionKey string `yaml:"encryption_key"`
}

type LLMConfig struct {
	Provider string        `yaml:"provider"`
	Model    string        `yaml:"model"`
	APIKey   string        `yaml:"api_key"`
	BaseURL  string        `yaml:"base_url"`
	Timeout  time.Duration `yaml:"timeout"`
}

type MemoryConfig struct {
	// Budget caps the characters of each tier sent to the model. 0 = all.
	Budget int `yaml:"budget"`
}

type ScrapeConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Browser      bool   `yaml:"browser"`
	ChangelogURL string `yaml:"changelog_url"`
}

type PatchConfig struct {
	Region string `yaml:"region"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type TraceConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Dir is tai's home directory, ~/.tai.
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".tai")
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Store: StoreConfig{
			Driver: DriverSQLite,
			Path:   filepath.Join(Dir(), "tai.db"),
			Prefix: "tai",
		},
		LLM: LLMConfig{
			Provider: "gemini",
			Timeout:  2 * time.Minute,
		},
		Scrape: ScrapeConfig{Enabled: true},
		Patch:  PatchConfig{Region: "modifiable"},
		Log: LogConfig{
			Level: "info",
			File:  filepath.Join(Dir(), "tai.log"),
		},
	}
}

// Path resolves the config file: flag, then $TAI_CONFIG, then ~/.tai/config.yaml.
func Path(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv("TAI_CONFIG"); env != "" {
		return env
	}
	return filepath.Join(Dir(), "config.yaml")
}

// Load reads path over the defaults, then applies .env and environment
// overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Store.Driver, "TAI_STORE")
	setString(&c.Store.Path, "TAI_DB")
	setString(&c.Store.RedisURL, "TAI_REDIS_URL")
	setString(&c.Store.PostgresDSN, "TAI_POSTGRES_DSN")
	setString(&c.Store.EncryptionKey, "TAI_ENCRYPTION_KEY")
	setString(&c.LLM.Provider, "TAI_LLM_PROVIDER")
	setString(&c.LLM.Model, "TAI_LLM_MODEL")
	setString(&c.LLM.BaseURL, "TAI_LLM_BASE_URL")
	setString(&c.Scrape.ChangelogURL, "TAI_CHANGELOG_URL")
	setString(&c.Log.Level, "TAI_LOG_LEVEL")
	setString(&c.Log.File, "TAI_LOG_FILE")

	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case "openai":
			setString(&c.LLM.APIKey, "OPENAI_API_KEY")
		default:
			setString(&c.LLM.APIKey, "GEMINI_API_KEY")
		}
	}
	setString(&c.LLM.APIKey, "TAI_LLM_API_KEY")

	if err := setBool(&c.Store.Encrypted, "TAI_ENCRYPTED"); err != nil {
		return err
	}
	if err := setBool(&c.Trace.Enabled, "TAI_TRACE"); err != nil {
		return err
	}
	if v := os.Getenv("TAI_LLM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: TAI_LLM_TIMEOUT: %v", ErrInvalidConfig, err)
		}
		c.LLM.Timeout = d
	}
	if v := os.Getenv("TAI_MEMORY_BUDGET"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: TAI_MEMORY_BUDGET: %v", ErrInvalidConfig, err)
		}
		c.Memory.Budget = n
	}
	return nil
}

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("%w: store.path is required for sqlite", ErrInvalidConfig)
		}
	case DriverRedis:
		if c.Store.RedisURL == "" {
			return fmt.Errorf("%w: store.redis_url is required for redis", ErrInvalidConfig)
		}
	case DriverPostgres:
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("%w: store.postgres_dsn is required for postgres", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store driver %q", ErrInvalidConfig, c.Store.Driver)
	}
	if c.Store.Encrypted && c.Store.EncryptionKey == "" {
		return fmt.Errorf("%w: store.encryption_key is required when store.encrypted is set", ErrInvalidConfig)
	}
	switch c.LLM.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("%w: unknown llm provider %q", ErrInvalidConfig, c.LLM.Provider)
	}
	if c.LLM.Timeout < 0 {
		return fmt.Errorf("%w: llm.timeout must not be negative", ErrInvalidConfig)
	}
	if c.Memory.Budget < 0 {
		return fmt.Errorf("%w: memory.budget must not be negative", ErrInvalidConfig)
	}
	return nil
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, env string) error {
	v := os.Getenv(env)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, env, err)
	}
	*dst = b
	return nil
}
