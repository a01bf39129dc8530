package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/smart-pricing/internal/config"
)

// NewTestConfig returns a validated config rooted at a fresh temp dir.
func NewTestConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ReadTimeout:     time.Second,
			WriteTimeout:    time.Second,
			ShutdownTimeout: time.Second,
			LogLevel:        "info",
		},
		Storage: config.StorageConfig{
			DataPath: t.TempDir(),
		},
		Upstream: config.UpstreamConfig{
			Driver: "sqlite",
			DSN:    "file::memory:",
			Tables: []string{"agoda", "expedia"},
		},
	}

	require.NoError(t, cfg.Validate())

	return cfg
}

// Seoul returns the default reference timezone.
func Seoul(t *testing.T) *time.Location {
	t.Helper()

	loc, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	return loc
}
