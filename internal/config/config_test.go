package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validServer() ServerConfig {
	return ServerConfig{
		Host:            "localhost",
		Port:            8080,
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		ShutdownTimeout: 5 * time.Second,
		LogLevel:        "info",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      *Config
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			config:      &Config{Server: validServer()},
			expectError: false,
		},
		{
			name: "invalid port negative",
			config: &Config{
				Server: ServerConfig{Host: "localhost", Port: -1},
			},
			expectError: true,
			errorMsg:    "invalid server port",
		},
		{
			name: "invalid port too high",
			config: &Config{
				Server: ServerConfig{Host: "localhost", Port: 99999},
			},
			expectError: true,
			errorMsg:    "invalid server port",
		},
		{
			name: "missing host",
			config: &Config{
				Server: ServerConfig{Host: "", Port: 8080},
			},
			expectError: true,
			errorMsg:    "server host cannot be empty",
		},
		{
			name: "invalid log level",
			config: func() *Config {
				srv := validServer()
				srv.LogLevel = "invalid"

				return &Config{Server: srv}
			}(),
			expectError: true,
			errorMsg:    "invalid log level",
		},
		{
			name: "zero read timeout",
			config: &Config{
				Server: ServerConfig{Host: "localhost", Port: 8080, WriteTimeout: time.Second},
			},
			expectError: true,
			errorMsg:    "read_timeout must be positive",
		},
		{
			name: "unknown timezone",
			config: &Config{
				Server:  validServer(),
				Storage: StorageConfig{Timezone: "Mars/Olympus"},
			},
			expectError: true,
			errorMsg:    "invalid timezone",
		},
		{
			name: "inverted outlier quantiles",
			config: &Config{
				Server:   validServer(),
				Pipeline: PipelineConfig{OutlierLower: 0.9, OutlierUpper: 0.1},
			},
			expectError: true,
			errorMsg:    "outlier quantiles",
		},
		{
			name: "schedule interval too short",
			config: &Config{
				Server:   validServer(),
				Schedule: ScheduleConfig{Hourly: CadenceConfig{Interval: time.Second}},
			},
			expectError: true,
			errorMsg:    "hourly.interval must be at least 1 minute",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectError {
				require.Error(t, err)

				if tt.errorMsg != "" {
					assert.Contains(t, err.Error(), tt.errorMsg)
				}
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateAppliesDefaults(t *testing.T) {
	server := validServer()
	server.LogLevel = ""

	cfg := &Config{Server: server}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "info", cfg.Server.LogLevel)

	assert.Equal(t, "./data", cfg.Storage.DataPath)
	assert.Equal(t, "Asia/Seoul", cfg.Storage.Timezone)
	assert.Equal(t, 365, cfg.Storage.MaxFiles)
	assert.Equal(t, 1, cfg.Pipeline.Retries)
	assert.Equal(t, uint(2), cfg.Pipeline.Attempts())
	assert.Equal(t, 5*time.Minute, cfg.Pipeline.RetryDelay)
	assert.InDelta(t, 0.001, cfg.Pipeline.OutlierLower, 1e-9)
	assert.InDelta(t, 0.975, cfg.Pipeline.OutlierUpper, 1e-9)
	assert.Equal(t, time.Hour, cfg.Schedule.Hourly.Interval)
	assert.Equal(t, 24*time.Hour, cfg.Schedule.Daily.Interval)
	assert.Equal(t, 30*time.Minute, cfg.Schedule.Daily.Offset)
	assert.Equal(t, "baseline", cfg.Tracking.Experiment)
	assert.InDelta(t, 1.02, cfg.Optimized.L, 1e-9)
	assert.Equal(t, "Asia/Seoul", cfg.Storage.Location().String())
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
}

func TestPipelineConfig_Attempts(t *testing.T) {
	tests := []struct {
		name     string
		retries  int
		expected uint
	}{
		{name: "default single retry", retries: 0, expected: 2},
		{name: "disabled", retries: -1, expected: 1},
		{name: "three retries", retries: 3, expected: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := PipelineConfig{Retries: tt.retries}
			require.NoError(t, cfg.Validate())
			assert.Equal(t, tt.expected, cfg.Attempts())
		})
	}
}

func TestConfig_ValidateWorker(t *testing.T) {
	validRedis := RedisConfig{Address: "localhost:6379", DialTimeout: time.Second, PoolSize: 10}
	validLeader := LeaderConfig{
		LockKey:       "sp:leader",
		LockTTL:       10 * time.Second,
		RenewInterval: 3 * time.Second,
		RetryInterval: 5 * time.Second,
	}

	tests := []struct {
		name        string
		config      *Config
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid worker config",
			config: &Config{
				Redis:  validRedis,
				Leader: validLeader,
				Upstream: UpstreamConfig{
					DSN:    "postgres://localhost/ai",
					Tables: []string{"agoda", "booking_com"},
				},
			},
		},
		{
			name:        "missing redis address",
			config:      &Config{},
			expectError: true,
			errorMsg:    "redis.address is required",
		},
		{
			name:        "missing leader key",
			config:      &Config{Redis: validRedis},
			expectError: true,
			errorMsg:    "leader.lock_key is required",
		},
		{
			name: "missing dsn",
			config: &Config{
				Redis:    validRedis,
				Leader:   validLeader,
				Upstream: UpstreamConfig{Tables: []string{"agoda"}},
			},
			expectError: true,
			errorMsg:    "dsn is required",
		},
		{
			name: "table name injection rejected",
			config: &Config{
				Redis:  validRedis,
				Leader: validLeader,
				Upstream: UpstreamConfig{
					DSN:    "postgres://localhost/ai",
					Tables: []string{"agoda; DROP TABLE x"},
				},
			},
			expectError: true,
			errorMsg:    "invalid table name",
		},
		{
			name: "duplicate table",
			config: &Config{
				Redis:  validRedis,
				Leader: validLeader,
				Upstream: UpstreamConfig{
					DSN:    "postgres://localhost/ai",
					Tables: []string{"agoda", "agoda"},
				},
			},
			expectError: true,
			errorMsg:    "duplicate table",
		},
		{
			name: "unknown driver",
			config: &Config{
				Redis:  validRedis,
				Leader: validLeader,
				Upstream: UpstreamConfig{
					Driver: "mysql",
					DSN:    "x",
					Tables: []string{"agoda"},
				},
			},
			expectError: true,
			errorMsg:    "driver must be",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.ValidateWorker()
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, "pgx", tt.config.Upstream.Driver)
			assert.Equal(t, tt.config.Upstream.DSN, tt.config.Upstream.IMSDSN)
			assert.Equal(t, 4, tt.config.Upstream.Workers)
		})
	}
}

func TestConfig_Load(t *testing.T) {
	tests := []struct {
		name        string
		yamlContent string
		expectError bool
		errorMsg    string
		validate    func(t *testing.T, cfg *Config)
	}{
		{
			name: "valid YAML file",
			yamlContent: `
server:
  host: localhost
  port: 8080
  read_timeout: 1s
  write_timeout: 1s
  shutdown_timeout: 5s
  log_level: info
storage:
  data_path: /var/lib/sp
  timezone: Asia/Seoul
  max_files: 30
upstream:
  driver: sqlite
  dsn: file:upstream.db
  tables: [agoda, expedia]
pipeline:
  retries: 2
  retry_delay: 1m
schedule:
  hourly:
    enabled: true
  daily:
    enabled: true
    offset: 30m
`,
			expectError: false,
			validate: func(t *testing.T, cfg *Config) {
				t.Helper()

				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "/var/lib/sp", cfg.Storage.DataPath)
				assert.Equal(t, 30, cfg.Storage.MaxFiles)
				assert.Equal(t, []string{"agoda", "expedia"}, cfg.Upstream.Tables)
				assert.Equal(t, 2, cfg.Pipeline.Retries)
				assert.Equal(t, time.Minute, cfg.Pipeline.RetryDelay)
				assert.True(t, cfg.Schedule.Hourly.Enabled)
				assert.Equal(t, 30*time.Minute, cfg.Schedule.Daily.Offset)
			},
		},
		{
			name:        "invalid YAML syntax",
			yamlContent: "invalid: yaml: content:",
			expectError: true,
			errorMsg:    "failed to parse config",
		},
		{
			name:        "empty file",
			yamlContent: "",
			expectError: false,
			validate: func(t *testing.T, cfg *Config) {
				t.Helper()

				assert.NotNil(t, cfg)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, "config.yaml")

			err := os.WriteFile(configPath, []byte(tt.yamlContent), 0600)
			require.NoError(t, err)

			cfg, err := Load(configPath)

			if tt.expectError {
				require.Error(t, err)

				if tt.errorMsg != "" {
					assert.Contains(t, err.Error(), tt.errorMsg)
				}

				return
			}

			require.NoError(t, err)

			if tt.validate != nil {
				tt.validate(t, cfg)
			}
		})
	}
}

func TestConfig_Load_NonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}
