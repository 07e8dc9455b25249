package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func serveLogged(t *testing.T, path string, status int) *observer.ObservedLogs {
	t.Helper()
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)

	router := gin.New()
	router.Use(GinMiddleware(zap.New(core)))
	router.GET(path, func(c *gin.Context) { c.Status(status) })

	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)
	router.ServeHTTP(w, req)
	return logs
}

func TestGinMiddlewareLogsSolverTraffic(t *testing.T) {
	logs := serveLogged(t, "/solver/run", http.StatusOK)
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.InfoLevel, entry.Level)
	assert.Equal(t, "http_request", entry.Message)
}

func TestGinMiddlewareSkipsHealthEndpoints(t *testing.T) {
	for _, path := range []string{"/health", "/ready", "/metrics"} {
		logs := serveLogged(t, path, http.StatusOK)
		assert.Equal(t, 0, logs.Len(), "path %s", path)
	}
}

func TestGinMiddlewareLogsFailingHealthChecks(t *testing.T) {
	logs := serveLogged(t, "/health", http.StatusInternalServerError)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.ErrorLevel, logs.All()[0].Level)
}

func TestGinMiddlewareWarnsOnClientErrors(t *testing.T) {
	logs := serveLogged(t, "/solver/status/missing", http.StatusNotFound)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)
}
