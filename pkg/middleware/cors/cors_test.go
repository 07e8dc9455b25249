package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runRequest(t *testing.T, allowed []string, method, origin string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(method, "/solver/run", nil)
	require.NoError(t, err)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	c.Request = req
	New(allowed)(c)
	return w
}

func TestCORSExposesDownloadHeaders(t *testing.T) {
	w := runRequest(t, nil, http.MethodGet, "http://studio.example")
	assert.Equal(t, "http://studio.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
	assert.Equal(t, "GET, POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	w := runRequest(t, nil, http.MethodOptions, "http://studio.example")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	w := runRequest(t, []string{"http://studio.example"}, http.MethodGet, "http://evil.example")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
