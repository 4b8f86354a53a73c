package server_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	ginapi "github.com/pilab-dev/pagepost/api/gin"
	"github.com/pilab-dev/pagepost/cache"
	"github.com/pilab-dev/pagepost/config"
	"github.com/pilab-dev/pagepost/internal/linkedin"
	"github.com/pilab-dev/pagepost/internal/metrics"
	"github.com/pilab-dev/pagepost/internal/server"
	"github.com/pilab-dev/pagepost/log"
	"github.com/pilab-dev/pagepost/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *http.Server {
	t.Helper()

	cfg := &config.ServerConfig{
		HTTPPort:        "3000",
		GinMode:         gin.TestMode,
		ClientID:        "client-id",
		ClientSecret:    "client-secret",
		RedirectURI:     "http://localhost:3000/linkedin/callback",
		OtelServiceName: "pagepost",
	}

	states := cache.NewMemoryStateStore(time.Minute)
	t.Cleanup(func() { _ = states.Close() })

	flow := services.NewPublishService(linkedin.NewClient(cfg.Credentials()), states,
		services.PublishConfig{RedirectURI: cfg.RedirectURI, ValidateState: true}, nil, nil)
	api := ginapi.NewLinkedInAPI(flow, t.TempDir(), 1<<20, nil)

	reg := prometheus.NewRegistry()
	require.NoError(t, metrics.Register(reg))

	return server.NewHTTPServer(cfg, log.Nop(), api, reg)
}

func TestNewHTTPServer(t *testing.T) {
	srv := newTestServer(t)
	assert.Equal(t, ":3000", srv.Addr)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantBody   string
	}{
		{name: "health", path: "/health", wantStatus: http.StatusOK, wantBody: `"status":"ok"`},
		{name: "metrics", path: "/metrics", wantStatus: http.StatusOK, wantBody: "pagepost_publish_failures_total"},
		{name: "callback without code", path: "/linkedin/callback", wantStatus: http.StatusBadRequest, wantBody: "Code not provided"},
		{name: "start", path: "/", wantStatus: http.StatusFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		})
	}
}
