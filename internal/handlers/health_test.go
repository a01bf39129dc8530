package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/smart-pricing/internal/store"
	"github.com/ethpandaops/smart-pricing/internal/version"
)

func TestHealth(t *testing.T) {
	tests := []struct {
		name           string
		setup          func(t *testing.T, layout store.Layout)
		expectedStatus string
		failedChecks   []string
	}{
		{
			name:           "empty root is degraded",
			setup:          func(*testing.T, store.Layout) {},
			expectedStatus: StatusDegraded,
			failedChecks:   []string{"last_update_path", "outputs_path", "properties_path"},
		},
		{
			name: "all directories present",
			setup: func(t *testing.T, layout store.Layout) {
				t.Helper()

				for _, dir := range []string{layout.LedgerDir(), layout.OutputsDir(), layout.PropertiesDir()} {
					require.NoError(t, os.MkdirAll(dir, 0o755))
				}
			},
			expectedStatus: StatusHealthy,
		},
		{
			name: "outputs missing",
			setup: func(t *testing.T, layout store.Layout) {
				t.Helper()

				require.NoError(t, os.MkdirAll(layout.LedgerDir(), 0o755))
				require.NoError(t, os.MkdirAll(layout.PropertiesDir(), 0o755))
			},
			expectedStatus: StatusDegraded,
			failedChecks:   []string{"outputs_path"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layout := store.NewLayout(t.TempDir())
			tt.setup(t, layout)

			rec := httptest.NewRecorder()
			Health(layout)(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var resp HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

			assert.Equal(t, tt.expectedStatus, resp.Status)
			assert.Equal(t, version.Short(), resp.Version)
			assert.NotEmpty(t, resp.Timestamp)
			assert.True(t, resp.Checks["data_path"])

			for _, name := range tt.failedChecks {
				assert.False(t, resp.Checks[name], name)
			}
		})
	}
}
