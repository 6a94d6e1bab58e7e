// services/report-svc/internal/handler/handler_test.go
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmreport/gen/openapi"
	"farmreport/pkg/audit"
	"farmreport/pkg/cache"
	"farmreport/pkg/config"
	"farmreport/pkg/format"
	"farmreport/pkg/logger"
	"farmreport/pkg/ratelimit"
	"farmreport/pkg/swagger"
	"farmreport/services/report-svc/internal/export"
	"farmreport/services/report-svc/internal/generator"
	"farmreport/services/report-svc/internal/provider"
	"farmreport/services/report-svc/internal/repository"
	"farmreport/services/report-svc/internal/service"
)

var fixedNow = time.Date(2025, 8, 1, 10, 30, 15, 0, time.UTC)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.Log = logger.Discard()
	os.Exit(m.Run())
}

type testServer struct {
	router  *gin.Engine
	store   *repository.MemoryStore
	tempDir string
}

func newTestServer(t *testing.T, cfg Config) *testServer {
	t.Helper()

	fixtures, err := repository.LoadFixtureFile("../repository/testdata/fixtures.yaml")
	require.NoError(t, err)
	store := repository.NewMemoryStore(fixtures)

	locale := format.DefaultLocale()
	clock := format.FixedClock(fixedNow)
	tempDir := t.TempDir()

	gens := generator.NewDefaultRegistry(store,
		provider.Config{Locale: locale, Logger: logger.Discard()},
		generator.Config{
			Exporters: export.NewRegistry(export.Options{TempDir: tempDir}, provider.Layouts()...),
			Clock:     clock,
			Locale:    locale,
			Logger:    logger.Discard(),
		})

	mem := cache.NewMemoryCache(cache.DefaultOptions())
	t.Cleanup(func() { mem.Close() })

	svc := service.NewReportService(service.ServiceConfig{Version: "test"}, service.Dependencies{
		Generators: gens,
		Store:      store,
		Cache:      cache.NewLayer(mem, cache.WithLogger(logger.Discard())),
		Audit:      audit.NoopLogger{},
		Clock:      clock,
		Locale:     locale,
		Logger:     logger.Discard(),
	})

	cfg.Logger = logger.Discard()
	return &testServer{router: New(svc, cfg).Router(), store: store, tempDir: tempDir}
}

func (s *testServer) do(method, target string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	return resp.Error
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	var resp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, Config{})

	w := s.do(http.MethodGet, "/health", HeaderRequestID, "req-1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-1", w.Header().Get(HeaderRequestID))

	var h service.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &h))
	assert.Equal(t, service.StatusServing, h.Status)

	s.store.FailWith(errors.New("connection refused"))
	w = s.do(http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
}

func TestSwagger(t *testing.T) {
	docs, err := swagger.New(swagger.DefaultConfig(), openapi.MustGetSpec())
	require.NoError(t, err)
	s := newTestServer(t, Config{Docs: docs})

	w := s.do(http.MethodGet, "/swagger/openapi.json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/v1/reports/{type}/export")

	w = s.do(http.MethodGet, "/swagger/")
	assert.Equal(t, http.StatusOK, w.Code)

	off := newTestServer(t, Config{})
	assert.Equal(t, http.StatusNotFound, off.do(http.MethodGet, "/swagger/openapi.json").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, Config{})
	w := s.do(http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListReports(t *testing.T) {
	s := newTestServer(t, Config{})

	w := s.do(http.MethodGet, "/api/v1/reports")
	require.Equal(t, http.StatusOK, w.Code)

	var reports []struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	decodeData(t, w, &reports)
	require.Len(t, reports, 4)
	assert.Equal(t, "property", reports[0].Type)
}

func TestFilterOptionsAndDashboard(t *testing.T) {
	s := newTestServer(t, Config{})

	w := s.do(http.MethodGet, "/api/v1/reports/filter-options")
	require.Equal(t, http.StatusOK, w.Code)
	var opts struct {
		Municipalities []string `json:"municipalities"`
		States         []string `json:"states"`
	}
	decodeData(t, w, &opts)
	assert.Equal(t, []string{"Quixadá", "Sobral"}, opts.Municipalities)
	assert.Equal(t, []string{"CE"}, opts.States)

	w = s.do(http.MethodGet, "/api/v1/reports/dashboard")
	require.Equal(t, http.StatusOK, w.Code)
	var d struct {
		Producers    int64 `json:"producers"`
		TotalAnimals int64 `json:"total_animals"`
	}
	decodeData(t, w, &d)
	assert.Equal(t, int64(3), d.Producers)
	assert.Equal(t, int64(275), d.TotalAnimals)
}

func TestReportData(t *testing.T) {
	s := newTestServer(t, Config{})

	w := s.do(http.MethodGet, "/api/v1/reports/herd?search=luzia")
	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		Metadata map[string]any `json:"metadata"`
	}
	decodeData(t, w, &data)
	assert.Equal(t, float64(2), data.Metadata["total_records"])

	w = s.do(http.MethodGet, "/api/v1/reports/herd?group_by=especie")
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, w, &data)
	assert.Equal(t, float64(3), data.Metadata["total_records"])
}

func TestReportOptions(t *testing.T) {
	s := newTestServer(t, Config{})

	w := s.do(http.MethodGet, "/api/v1/reports/herd/options")
	require.Equal(t, http.StatusOK, w.Code)
	var opts struct {
		DateRange bool              `json:"date_range"`
		GroupBy   map[string]string `json:"group_by"`
	}
	decodeData(t, w, &opts)
	assert.True(t, opts.DateRange)
	assert.Equal(t, map[string]string{"especie": "Espécie"}, opts.GroupBy)

	w = s.do(http.MethodGet, "/api/v1/reports/frota/options")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "UNKNOWN_REPORT_TYPE", decodeError(t, w).Code)
}

func TestExport_CSV(t *testing.T) {
	s := newTestServer(t, Config{})

	w := s.do(http.MethodGet, "/api/v1/reports/herd/export?format=csv")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="relatorio_de_rebanhos_2025_08_01_10_30_15.csv"`,
		w.Header().Get("Content-Disposition"))
	assert.Equal(t, "4", w.Header().Get("X-Record-Count"))

	lines := strings.Split(strings.TrimSuffix(w.Body.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, `"Espécie";"Quantidade";"Finalidade";"Última Atualização";"Propriedade";"Município"`, lines[0])

	// временный файл удалён после отправки
	entries, err := os.ReadDir(s.tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExport_DefaultFormatIsPDF(t *testing.T) {
	s := newTestServer(t, Config{})

	w := s.do(http.MethodGet, "/api/v1/reports/producer/export")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF"))
}

func TestExport_Errors(t *testing.T) {
	s := newTestServer(t, Config{})

	tests := []struct {
		name   string
		target string
		status int
		code   string
	}{
		{"unknown type", "/api/v1/reports/frota/export?format=csv", http.StatusNotFound, "UNKNOWN_REPORT_TYPE"},
		{"unsupported format", "/api/v1/reports/herd/export?format=xml", http.StatusBadRequest, "UNSUPPORTED_FORMAT"},
		{"unknown dimension", "/api/v1/reports/producer/export?format=csv&group_by=especie", http.StatusBadRequest, "UNKNOWN_DIMENSION"},
		{"bad date", "/api/v1/reports/herd/export?format=csv&date_from=01-06-2025", http.StatusBadRequest, "INVALID_ARGUMENT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodGet, tt.target)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}
	assert.Equal(t, 0, s.store.TotalCalls())
}

func TestExport_FetchFailed(t *testing.T) {
	s := newTestServer(t, Config{})
	s.store.FailWith(errors.New("connection refused"))

	w := s.do(http.MethodGet, "/api/v1/reports/property/export?format=xlsx")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, "FETCH_FAILED", body.Code)
	assert.NotContains(t, body.Message, "connection refused")
}

func TestExport_RateLimited(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(&ratelimit.Config{
		Requests:  1,
		Window:    time.Minute,
		Strategy:  "sliding_window",
		BurstSize: 1,
	})
	t.Cleanup(func() { limiter.Close() })
	s := newTestServer(t, Config{Limiter: limiter})

	w := s.do(http.MethodGet, "/api/v1/reports/herd/export?format=csv")
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/v1/reports/herd/export?format=csv")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", decodeError(t, w).Code)

	// остальные маршруты не ограничены
	w = s.do(http.MethodGet, "/api/v1/reports/herd")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCacheEndpoints(t *testing.T) {
	s := newTestServer(t, Config{})

	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/reports/dashboard").Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/reports/filter-options").Code)

	w := s.do(http.MethodDelete, "/api/v1/reports/cache/dashboard")
	require.Equal(t, http.StatusOK, w.Code)
	var res struct {
		Module string `json:"module"`
		Keys   int64  `json:"keys"`
	}
	decodeData(t, w, &res)
	assert.Equal(t, "dashboard", res.Module)
	assert.Equal(t, int64(1), res.Keys)

	w = s.do(http.MethodDelete, "/api/v1/reports/cache/unknown")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ARGUMENT", decodeError(t, w).Code)

	w = s.do(http.MethodDelete, "/api/v1/reports/cache")
	require.Equal(t, http.StatusOK, w.Code)
	decodeData(t, w, &res)
	assert.Equal(t, int64(1), res.Keys)
}

func TestCORS(t *testing.T) {
	s := newTestServer(t, Config{CORS: config.CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"http://localhost:3000"},
		AllowedMethods: []string{"GET", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         600,
	}})

	w := s.do(http.MethodOptions, "/api/v1/reports", "Origin", "http://localhost:3000")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
	assert.Contains(t, w.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")

	w = s.do(http.MethodGet, "/api/v1/reports", "Origin", "http://evil.example")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
