//nolint:tagliatelle // superior snake-case yo.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Redis     RedisConfig     `yaml:"redis"`
	Leader    LeaderConfig    `yaml:"leader"`
	Storage   StorageConfig   `yaml:"storage"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Tracking  TrackingConfig  `yaml:"tracking"`
	Optimized OptimizedConfig `yaml:"optimized_baseline"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	Host            string        `yaml:"host"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`
	CORSOrigins     []string      `yaml:"cors_origins"` // Defaults to "*"
}

// RedisConfig holds Redis client configuration.
type RedisConfig struct {
	Address      string        `yaml:"address"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PoolSize     int           `yaml:"pool_size"`
}

// LeaderConfig holds leader election configuration.
type LeaderConfig struct {
	LockKey       string        `yaml:"lock_key"`
	LockTTL       time.Duration `yaml:"lock_ttl"`
	RenewInterval time.Duration `yaml:"renew_interval"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// StorageConfig describes the on-disk artifact root.
type StorageConfig struct {
	DataPath string `yaml:"data_path"`
	Timezone string `yaml:"timezone"`
	MaxFiles int    `yaml:"max_files"` // Snapshot retention per bucket
}

// UpstreamConfig describes the relational sources the worker syncs from.
type UpstreamConfig struct {
	Driver       string        `yaml:"driver"` // "pgx" or "sqlite"
	DSN          string        `yaml:"dsn"`
	IMSDSN       string        `yaml:"ims_dsn"` // Defaults to dsn
	Tables       []string      `yaml:"tables"`
	Workers      int           `yaml:"workers"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
	MaxOpenConns int           `yaml:"max_open_conns"`
}

// PipelineConfig controls stage execution and retry behaviour.
type PipelineConfig struct {
	Retries           int           `yaml:"retries"` // -1 disables retries
	RetryDelay        time.Duration `yaml:"retry_delay"`
	LockTTL           time.Duration `yaml:"lock_ttl"`
	AutoRepair        bool          `yaml:"auto_repair"`
	OutlierLower      float64       `yaml:"outlier_lower_quantile"`
	OutlierUpper      float64       `yaml:"outlier_upper_quantile"`
	HourlyHorizonDays int           `yaml:"hourly_horizon_days"`
	DailyHorizonDays  int           `yaml:"daily_horizon_days"`
}

// ScheduleConfig holds the cadence of each granularity.
type ScheduleConfig struct {
	Hourly      CadenceConfig `yaml:"hourly"`
	Daily       CadenceConfig `yaml:"daily"`
	MetricsAddr string        `yaml:"metrics_addr"`
}

// CadenceConfig is a fixed interval anchored at an offset from local midnight.
type CadenceConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Offset   time.Duration `yaml:"offset"`
	Interval time.Duration `yaml:"interval"`
}

// TrackingConfig holds experiment tracking settings.
type TrackingConfig struct {
	Experiment string `yaml:"experiment"`
}

// OptimizedConfig holds the occupancy adjustment parameters.
type OptimizedConfig struct {
	K           float64 `yaml:"k"`
	V           float64 `yaml:"v"`
	L           float64 `yaml:"l"`
	AddDiscount bool    `yaml:"add_discount"`
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration shared by the server and the worker.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("write_timeout must be positive")
	}

	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}

	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[c.Server.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.Server.LogLevel)
	}

	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	if err := c.Schedule.Validate(); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}

	c.Tracking.Validate()
	c.Optimized.Validate()

	return nil
}

// ValidateWorker validates the settings only the pipeline worker needs.
func (c *Config) ValidateWorker() error {
	// Redis backs the run lock and leader election
	if c.Redis.Address == "" {
		return fmt.Errorf("redis.address is required")
	}

	if c.Redis.DialTimeout <= 0 {
		return fmt.Errorf("redis.dial_timeout must be positive")
	}

	if c.Redis.PoolSize <= 0 {
		return fmt.Errorf("redis.pool_size must be positive")
	}

	if c.Leader.LockKey == "" {
		return fmt.Errorf("leader.lock_key is required")
	}

	if c.Leader.LockTTL <= 0 {
		return fmt.Errorf("leader.lock_ttl must be positive")
	}

	if c.Leader.RenewInterval <= 0 {
		return fmt.Errorf("leader.renew_interval must be positive")
	}

	if c.Leader.RetryInterval <= 0 {
		return fmt.Errorf("leader.retry_interval must be positive")
	}

	if err := c.Upstream.Validate(); err != nil {
		return fmt.Errorf("upstream: %w", err)
	}

	return nil
}

// Validate validates the storage config and sets defaults.
func (c *StorageConfig) Validate() error {
	if c.DataPath == "" {
		c.DataPath = "./data"
	}

	if c.Timezone == "" {
		c.Timezone = "Asia/Seoul"
	}

	if c.MaxFiles == 0 {
		c.MaxFiles = 365
	}

	if c.MaxFiles < 0 {
		return fmt.Errorf("max_files must be positive, got %d", c.MaxFiles)
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}

	return nil
}

// Location returns the reference timezone.
func (c *StorageConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}

	return loc
}

// Validate validates the upstream config and sets defaults.
func (c *UpstreamConfig) Validate() error {
	if c.Driver == "" {
		c.Driver = "pgx"
	}

	if c.Driver != "pgx" && c.Driver != "sqlite" {
		return fmt.Errorf("driver must be 'pgx' or 'sqlite', got %q", c.Driver)
	}

	if c.DSN == "" {
		return fmt.Errorf("dsn is required")
	}

	if c.IMSDSN == "" {
		c.IMSDSN = c.DSN
	}

	if len(c.Tables) == 0 {
		return fmt.Errorf("tables must have at least one table")
	}

	seen := make(map[string]bool, len(c.Tables))

	for i, table := range c.Tables {
		if !tableNamePattern.MatchString(table) {
			return fmt.Errorf("tables[%d] invalid table name: %q", i, table)
		}

		if seen[table] {
			return fmt.Errorf("duplicate table: %s", table)
		}

		seen[table] = true
	}

	if c.Workers == 0 {
		c.Workers = 4
	}

	if c.Workers < 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}

	if c.QueryTimeout == 0 {
		c.QueryTimeout = 2 * time.Minute
	}

	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 10
	}

	return nil
}

// Validate validates the pipeline config and sets defaults.
func (c *PipelineConfig) Validate() error {
	if c.Retries == 0 {
		c.Retries = 1
	}

	if c.Retries < -1 {
		return fmt.Errorf("retries must be -1 or greater, got %d", c.Retries)
	}

	if c.RetryDelay == 0 {
		c.RetryDelay = 5 * time.Minute
	}

	if c.LockTTL == 0 {
		c.LockTTL = 2 * time.Hour
	}

	if c.OutlierLower == 0 {
		c.OutlierLower = 0.001
	}

	if c.OutlierUpper == 0 {
		c.OutlierUpper = 0.975
	}

	if c.OutlierLower < 0 || c.OutlierUpper > 1 || c.OutlierLower >= c.OutlierUpper {
		return fmt.Errorf(
			"outlier quantiles must satisfy 0 <= lower < upper <= 1, got %v and %v",
			c.OutlierLower, c.OutlierUpper,
		)
	}

	if c.HourlyHorizonDays == 0 {
		c.HourlyHorizonDays = 14
	}

	if c.DailyHorizonDays == 0 {
		c.DailyHorizonDays = 90
	}

	return nil
}

// Attempts returns the total number of attempts per run.
func (c *PipelineConfig) Attempts() uint {
	if c.Retries < 0 {
		return 1
	}

	return uint(c.Retries) + 1 //nolint:gosec // validated non-negative
}

// Validate validates the schedule config and sets defaults.
func (c *ScheduleConfig) Validate() error {
	if c.Hourly.Interval == 0 {
		c.Hourly.Interval = time.Hour
	}

	if c.Daily.Interval == 0 {
		c.Daily.Interval = 24 * time.Hour
	}

	if c.Daily.Offset == 0 {
		c.Daily.Offset = 30 * time.Minute
	}

	if c.MetricsAddr == "" {
		c.MetricsAddr = ":9090"
	}

	for name, cadence := range map[string]CadenceConfig{"hourly": c.Hourly, "daily": c.Daily} {
		if cadence.Interval < time.Minute {
			return fmt.Errorf("%s.interval must be at least 1 minute, got %v", name, cadence.Interval)
		}

		if cadence.Offset < 0 || cadence.Offset >= 24*time.Hour {
			return fmt.Errorf("%s.offset must be within a day, got %v", name, cadence.Offset)
		}
	}

	return nil
}

// Validate sets tracking defaults.
func (c *TrackingConfig) Validate() {
	if c.Experiment == "" {
		c.Experiment = "baseline"
	}
}

// Validate sets the occupancy adjustment defaults.
func (c *OptimizedConfig) Validate() {
	if c.K == 0 {
		c.K = 10
	}

	if c.V == 0 {
		c.V = 0.25
	}

	if c.L == 0 {
		c.L = 1.02
	}
}
