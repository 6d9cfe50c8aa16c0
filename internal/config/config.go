// Package config loads application configuration from a yaml file,
// environment variables, and defaults, in that order of increasing
// precedence for env vars over file values.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jiazeyu1987/hospitalscan/internal/dedup"
	"github.com/jiazeyu1987/hospitalscan/internal/fetch"
	"github.com/jiazeyu1987/hospitalscan/internal/logger"
	"github.com/jiazeyu1987/hospitalscan/internal/storage"
	"github.com/jiazeyu1987/hospitalscan/internal/task"
	"github.com/jiazeyu1987/hospitalscan/internal/verify"
)

// JobConfig declares one scheduler job in configuration.
type JobConfig struct {
	ID           string        `mapstructure:"id"`
	Every        time.Duration `mapstructure:"every"`
	Cron         string        `mapstructure:"cron"`
	TaskType     string        `mapstructure:"task_type"`
	MaxInstances int           `mapstructure:"max_instances"`
	URLs         []string      `mapstructure:"urls"`
}

// SchedulerConfig holds the scheduler section.
type SchedulerConfig struct {
	Jobs []JobConfig `mapstructure:"jobs"`
}

// TasksConfig holds the task manager section.
type TasksConfig struct {
	ReaperAge         time.Duration `mapstructure:"reaper_age"`
	PausePollInterval time.Duration `mapstructure:"pause_poll_interval"`
}

// VerifyConfig holds the verification section.
type VerifyConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	TLSTimeout     time.Duration `mapstructure:"tls_timeout"`
	DelayMin       time.Duration `mapstructure:"delay_min"`
	DelayMax       time.Duration `mapstructure:"delay_max"`
	RobotsCacheTTL time.Duration `mapstructure:"robots_cache_ttl"`
}

// DedupConfig holds the deduplication section.
type DedupConfig struct {
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	RetentionDays       int     `mapstructure:"retention_days"`
}

// CrawlerConfig holds the page fetcher section.
type CrawlerConfig struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RateLimit      time.Duration `mapstructure:"rate_limit"`
	MaxBodySize    int           `mapstructure:"max_body_size"`
	UserAgents     []string      `mapstructure:"user_agents"`
	InsecureTLS    bool          `mapstructure:"insecure_tls"`
}

// Config is the full application configuration.
type Config struct {
	Logger    logger.Config   `mapstructure:"logger"`
	Crawler   CrawlerConfig   `mapstructure:"crawler"`
	Verify    VerifyConfig    `mapstructure:"verify"`
	Dedup     DedupConfig     `mapstructure:"dedup"`
	Tasks     TasksConfig     `mapstructure:"tasks"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Database  storage.Config  `mapstructure:"database"`
}

// Load initializes viper and unmarshals the configuration. The optional
// path overrides the default config file search.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvPrefix("HOSPITALSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets production-safe defaults.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logger", map[string]any{
		"level":       "info",
		"development": false,
		"encoding":    "json",
	})

	v.SetDefault("crawler", map[string]any{
		"request_timeout": "30s",
		"rate_limit":      "2s",
		"max_body_size":   2 << 20,
	})

	v.SetDefault("verify", map[string]any{
		"timeout":          "30s",
		"tls_timeout":      "10s",
		"delay_min":        "1s",
		"delay_max":        "5s",
		"robots_cache_ttl": "24h",
	})

	v.SetDefault("dedup", map[string]any{
		"similarity_threshold": dedup.DefaultSimilarityThreshold,
		"retention_days":       dedup.DefaultRetentionDays,
	})

	v.SetDefault("tasks", map[string]any{
		"reaper_age":          "24h",
		"pause_poll_interval": "200ms",
	})

	v.SetDefault("database", map[string]any{
		"host":    "localhost",
		"port":    "5432",
		"user":    "hospitalscan",
		"dbname":  "hospitalscan",
		"sslmode": "disable",
	})
}

// VerifyEngineConfig converts the verify section into the engine's config.
func (c *Config) VerifyEngineConfig() verify.Config {
	return verify.Config{
		Timeout:        c.Verify.Timeout,
		TLSTimeout:     c.Verify.TLSTimeout,
		DelayMin:       c.Verify.DelayMin,
		DelayMax:       c.Verify.DelayMax,
		RobotsCacheTTL: c.Verify.RobotsCacheTTL,
	}
}

// DedupEngineConfig converts the dedup section into the engine's config.
func (c *Config) DedupEngineConfig() dedup.Config {
	return dedup.Config{
		SimilarityThreshold: c.Dedup.SimilarityThreshold,
		RetentionDays:       c.Dedup.RetentionDays,
	}
}

// FetcherConfig converts the crawler section into the fetcher's config.
func (c *Config) FetcherConfig() fetch.Config {
	return fetch.Config{
		RequestTimeout: c.Crawler.RequestTimeout,
		RateLimit:      c.Crawler.RateLimit,
		MaxBodySize:    c.Crawler.MaxBodySize,
		UserAgents:     c.Crawler.UserAgents,
		InsecureTLS:    c.Crawler.InsecureTLS,
	}
}

// ManagerOptions converts the tasks section into manager options.
func (c *Config) ManagerOptions() task.Options {
	return task.Options{
		ReaperAge:         c.Tasks.ReaperAge,
		PausePollInterval: c.Tasks.PausePollInterval,
	}
}
