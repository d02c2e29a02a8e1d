package common

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Duration decodes TOML duration strings such as "1200ms" or "10s" through
// time.ParseDuration. go-toml only maps TOML values onto primitive Go types,
// so the text form needs an explicit unmarshaler.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) String() string { return time.Duration(d).String() }

// Config represents the application configuration.
type Config struct {
	Environment string          `toml:"environment"`
	Database    DatabaseConfig  `toml:"database"`
	Redis       RedisConfig     `toml:"redis"`
	Queue       QueueConfig     `toml:"queue"`
	Scraper     ScraperConfig   `toml:"scraper"`
	Groups      GroupsConfig    `toml:"groups"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Retention   RetentionConfig `toml:"retention"`
	Logging     LoggingConfig   `toml:"logging"`
}

type DatabaseConfig struct {
	Host         string `toml:"host" validate:"required"`
	Port         int    `toml:"port" validate:"required"`
	User         string `toml:"user" validate:"required"`
	Password     string `toml:"password"`
	Name         string `toml:"name" validate:"required"`
	SSLMode      string `toml:"ssl_mode"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// DSN builds a lib/pq connection string from the configured parts.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, url.QueryEscape(d.Password), d.Host, d.Port, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `toml:"addr" validate:"required"`
	DB       int    `toml:"db"`
	Password string `toml:"password"`
}

// QueueConfig controls the asynq worker server. The queue broker shares the
// Redis instance used for the progress cache.
type QueueConfig struct {
	Concurrency int `toml:"concurrency" validate:"min=1"`
	MaxRetries  int `toml:"max_retries" validate:"min=0"`
}

type ScraperConfig struct {
	RateLimitDelay Duration `toml:"rate_limit_delay"`
	RequestTimeout Duration `toml:"request_timeout"`
	UserAgentsFile string        `toml:"user_agents_file" validate:"required"`
	SourcePriority []string      `toml:"source_priority"`
	MaxRetries     int           `toml:"max_retries" validate:"min=0"`
	CurrenciesFile string        `toml:"currencies_file"`
}

// GroupsConfig holds the named base-currency groups. The defaults mirror the
// catalog convention: primary is the fifteen most-traded currencies,
// secondary is the remaining enumerated set.
type GroupsConfig struct {
	Primary   []string `toml:"primary"`
	Secondary []string `toml:"secondary"`
}

type SchedulerConfig struct {
	PrimaryCron   string `toml:"primary_cron"`
	SecondaryCron string `toml:"secondary_cron"`
	CleanupCron   string `toml:"cleanup_cron"`
	PartitionCron string `toml:"partition_cron"`
}

type RetentionConfig struct {
	Months          int `toml:"months" validate:"min=1"`
	PartitionsAhead int `toml:"partitions_ahead" validate:"min=1"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`
	Output []string `toml:"output"`
}

// NewDefaultConfig returns the built-in defaults. File, environment, and flag
// values are layered on top.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Database: DatabaseConfig{
			Host:         "localhost",
			Port:         5432,
			User:         "postgres",
			Password:     "postgres",
			Name:         "koel",
			SSLMode:      "disable",
			MaxOpenConns: 20,
			MaxIdleConns: 5,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			DB:   0,
		},
		Queue: QueueConfig{
			Concurrency: 4,
			MaxRetries:  3,
		},
		Scraper: ScraperConfig{
			RateLimitDelay: Duration(1200 * time.Millisecond),
			RequestTimeout: Duration(10 * time.Second),
			UserAgentsFile: "user_agents.txt",
			MaxRetries:     3,
			CurrenciesFile: "currencies.json",
		},
		Scheduler: SchedulerConfig{
			PrimaryCron:   "0 0,6,12,18 * * *",
			SecondaryCron: "0 3,15 * * *",
			CleanupCron:   "0 3 * * 0",
			PartitionCron: "0 0 28-31 * *",
		},
		Retention: RetentionConfig{
			Months:          6,
			PartitionsAhead: 2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFiles loads configuration from defaults, then the given TOML files
// in order (later files override earlier ones), then environment variables.
func LoadFromFiles(paths ...string) (*Config, error) {
	cfg := NewDefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies KOEL_* environment variables on top of the loaded
// configuration. Only connection-level settings are exposed this way.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("KOEL_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("KOEL_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("KOEL_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("KOEL_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("KOEL_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("KOEL_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("KOEL_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("KOEL_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = db
		}
	}
	if v := os.Getenv("KOEL_USER_AGENTS_FILE"); v != "" {
		cfg.Scraper.UserAgentsFile = v
	}
	if v := os.Getenv("KOEL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
