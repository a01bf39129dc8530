package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ethpandaops/smart-pricing/internal/api"
	"github.com/ethpandaops/smart-pricing/internal/config"
	"github.com/ethpandaops/smart-pricing/internal/query"
	querymocks "github.com/ethpandaops/smart-pricing/internal/query/mocks"
	"github.com/ethpandaops/smart-pricing/internal/store"
	"github.com/ethpandaops/smart-pricing/internal/testutil"
)

func TestServer_Routes(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := querymocks.NewMockService(ctrl)

	svc.EXPECT().Location().Return(testutil.Seoul(t)).AnyTimes()
	svc.EXPECT().Properties(gomock.Any()).Return(&query.PropertiesResponse{AllIDs: []int64{7}}, nil)

	srv := New(testutil.NewTestLogger(), config.ServerConfig{
		Host:         "127.0.0.1",
		Port:         8080,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		CORSOrigins:  []string{"*"},
	}, svc, store.NewLayout(t.TempDir()))

	tests := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
		expectCORS     bool
	}{
		{name: "health", method: http.MethodGet, path: "/health", expectedStatus: http.StatusOK},
		{name: "metrics", method: http.MethodGet, path: "/metrics", expectedStatus: http.StatusOK},
		{
			name:           "properties",
			method:         http.MethodGet,
			path:           api.Prefix + "/data/properties",
			expectedStatus: http.StatusOK,
			expectCORS:     true,
		},
		{
			name:           "preflight",
			method:         http.MethodOptions,
			path:           api.Prefix + "/data/properties",
			expectedStatus: http.StatusNoContent,
			expectCORS:     true,
		},
		{name: "write methods rejected", method: http.MethodPost, path: "/health", expectedStatus: http.StatusMethodNotAllowed},
		{name: "unknown route", method: http.MethodGet, path: "/api/v1/config", expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, http.NoBody))

			require.Equal(t, tt.expectedStatus, rec.Code)

			if tt.expectCORS {
				assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}
