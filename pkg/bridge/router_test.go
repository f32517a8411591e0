package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittowopi/pkg/storage"
	"github.com/marmos91/dittowopi/pkg/token"
	tokenmemory "github.com/marmos91/dittowopi/pkg/token/memory"
)

func TestCORS_Preflight(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.CORS.AllowedOrigins = []string{"https://office.example.com"}
		c.CORS.MaxAge = 10 * time.Minute
	})

	req := httptest.NewRequest(http.MethodOptions, "/wopi/files/a.xlsx/contents", nil)
	req.Header.Set("Origin", "https://office.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := f.do(t, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://office.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-WOPI-Lock")
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	assert.Equal(t, "600", rec.Header().Get("Access-Control-Max-Age"))
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.CORS.AllowedOrigins = []string{"https://office.example.com"}
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.net")
	rec := f.do(t, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Wildcard(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.CORS.AllowedOrigins = []string{"*"} })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://anything.example")
	rec := f.do(t, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "X-Request-Id", rec.Header().Get("Access-Control-Expose-Headers"))
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	f.issue(t, "a.xlsx")

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "stateful", resp.Mode)
	assert.Equal(t, 1, resp.Tokens)
}

func TestHealth_GatewayDown(t *testing.T) {
	down := failingGateway{err: fmt.Errorf("head bucket: %w", storage.ErrUnavailable)}
	h, err := New(Config{HostURL: testHost, EditorURL: testEditor}, down,
		token.NewStateful(tokenmemory.NewMemoryRegistry(token.Options{})))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "head bucket")
}

func TestRequestIDsAreUnique(t *testing.T) {
	f := newFixture(t)

	a := f.do(t, httptest.NewRequest(http.MethodGet, "/", nil)).Header().Get("X-Request-Id")
	b := f.do(t, httptest.NewRequest(http.MethodGet, "/", nil)).Header().Get("X-Request-Id")
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/wopi/files", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegistryFailureIs500(t *testing.T) {
	auth := errorAuthorizer{err: errors.New("badger: value log corrupted")}
	h, err := New(Config{HostURL: testHost, EditorURL: testEditor}, forbiddenGateway{t: t}, auth)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, withToken(filePath("a.xlsx", ""), "tok"), nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "badger")
}

func TestBufferPool(t *testing.T) {
	for _, size := range []int{0, 10, smallBufferSize, smallBufferSize + 1, mediumBufferSize, largeBufferSize, largeBufferSize + 1} {
		buf := getBuffer(size)
		assert.Len(t, buf, size)
		putBuffer(buf)
	}
	putBuffer(nil)
}
