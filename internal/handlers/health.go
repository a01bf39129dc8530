package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/ethpandaops/smart-pricing/internal/store"
	"github.com/ethpandaops/smart-pricing/internal/version"
)

// Health statuses.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Timestamp string          `json:"timestamp"`
	Checks    map[string]bool `json:"checks"`
}

// Health returns an HTTP handler for health check endpoint. The service is
// degraded when any data directory the read API depends on is missing.
func Health(layout store.Layout) http.HandlerFunc {
	paths := map[string]string{
		"data_path":        layout.Root,
		"last_update_path": layout.LedgerDir(),
		"outputs_path":     layout.OutputsDir(),
		"properties_path":  layout.PropertiesDir(),
	}

	return func(w http.ResponseWriter, _ *http.Request) {
		response := HealthResponse{
			Status:    StatusHealthy,
			Version:   version.Short(),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Checks:    make(map[string]bool, len(paths)),
		}

		for name, path := range paths {
			info, err := os.Stat(path)
			ok := err == nil && info.IsDir()

			response.Checks[name] = ok
			if !ok {
				response.Status = StatusDegraded
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, "Failed to encode response", http.StatusInternalServerError)

			return
		}
	}
}
