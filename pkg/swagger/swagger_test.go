package swagger

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSpec = []byte(`{"openapi":"3.0.3","info":{"title":"test","version":"0.0.0"},"paths":{}}`)

func newRouter(t *testing.T, cfg Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	docs, err := New(cfg, testSpec)
	require.NoError(t, err)

	r := gin.New()
	docs.Register(r)
	return r
}

func get(r http.Handler, path string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestDocs_Page(t *testing.T) {
	r := newRouter(t, DefaultConfig())

	for _, path := range []string{"/swagger", "/swagger/"} {
		w := get(r, path)
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Body.String(), "/swagger/openapi.json")
		assert.Contains(t, w.Body.String(), "Farm Reports API")
	}
}

func TestDocs_SpecAndETag(t *testing.T) {
	r := newRouter(t, DefaultConfig())

	w := get(r, "/swagger/openapi.json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, string(testSpec), w.Body.String())

	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	w = get(r, "/swagger/openapi.json", "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestDocs_VersionPatched(t *testing.T) {
	r := newRouter(t, Config{Title: "x", BasePath: "/docs", Version: "2.1.0"})

	w := get(r, "/docs/openapi.json")
	require.Equal(t, http.StatusOK, w.Code)

	var doc struct {
		Info struct {
			Version string `json:"version"`
		} `json:"info"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "2.1.0", doc.Info.Version)
}

func TestNew_InvalidSpec(t *testing.T) {
	_, err := New(DefaultConfig(), []byte("{"))
	assert.Error(t, err)

	_, err = New(Config{Version: "1"}, []byte("not json"))
	assert.Error(t, err)
}

func TestDocs_ETagDependsOnContent(t *testing.T) {
	a, err := New(DefaultConfig(), testSpec)
	require.NoError(t, err)
	b, err := New(Config{Version: "9.9.9"}, testSpec)
	require.NoError(t, err)
	assert.NotEqual(t, a.etag, b.etag)
}
