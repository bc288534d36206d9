// internal/handlers/info_test.go
package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrally/rally/internal/config"
)

func testConfig() config.Config {
	return config.Config{Host: "127.0.0.1", Port: "3000"}
}

func TestServerInfoHandler(t *testing.T) {
	req := httptest.NewRequest("GET", "/server-info", nil)
	w := httptest.NewRecorder()

	ServerInfoHandler(testConfig()).ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	var info ServerInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "127.0.0.1", info.BindHost)
	assert.Equal(t, "127.0.0.1", info.PublicHost, "explicit binds are advertised as-is")
	assert.Equal(t, "http://127.0.0.1:3000", info.HTTPURL)
	assert.Equal(t, "ws://127.0.0.1:3000/ws", info.WSURL)
}

func TestQRHandlerRendersSVG(t *testing.T) {
	req := httptest.NewRequest("GET", "/qr.svg?url=http://example.com", nil)
	w := httptest.NewRecorder()

	QRHandler(testConfig()).ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	assert.Equal(t, "image/svg+xml", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, `<?xml`))
	assert.Contains(t, body, "<svg")
	assert.Contains(t, body, "<rect")
}

func TestQRHandlerDefaultsToPublicURL(t *testing.T) {
	req := httptest.NewRequest("GET", "/qr.svg", nil)
	w := httptest.NewRecorder()

	QRHandler(testConfig()).ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), "<svg")
}
