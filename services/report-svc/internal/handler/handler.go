// services/report-svc/internal/handler/handler.go
package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"farmreport/pkg/config"
	"farmreport/pkg/logger"
	"farmreport/pkg/metrics"
	"farmreport/pkg/ratelimit"
	"farmreport/pkg/swagger"
	"farmreport/pkg/telemetry"
	"farmreport/services/report-svc/internal/domain"
	"farmreport/services/report-svc/internal/service"
)

// Параметры запроса, которые не попадают в фильтры
const (
	paramFormat  = "format"
	paramGroupBy = "group_by"
)

// Config зависимости HTTP слоя. Limiter, Metrics и Docs необязательны.
type Config struct {
	CORS    config.CORSConfig
	Docs    *swagger.Docs
	Limiter ratelimit.Limiter
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Handler HTTP API отчётов
type Handler struct {
	svc *service.ReportService
	cfg Config
}

// New создаёт handler
func New(svc *service.ReportService, cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = logger.Log
	}
	return &Handler{svc: svc, cfg: cfg}
}

// Router собирает gin engine со всеми маршрутами
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(
		Recovery(h.cfg.Logger),
		RequestID(),
		telemetry.GinMiddleware(),
		Metrics(h.cfg.Metrics),
		Logging(h.cfg.Logger),
	)
	if h.cfg.CORS.Enabled {
		r.Use(CORS(h.cfg.CORS))
	}

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(h.cfg.Metrics.Handler()))
	if h.cfg.Docs != nil {
		h.cfg.Docs.Register(r)
	}

	h.Register(r.Group("/api/v1/reports"))
	return r
}

// Register регистрирует маршруты отчётов в группе
func (h *Handler) Register(g *gin.RouterGroup) {
	g.GET("", h.ListReports)
	g.GET("/filter-options", h.FilterOptions)
	g.GET("/dashboard", h.Dashboard)
	g.GET("/:type", h.ReportData)
	g.GET("/:type/options", h.ReportOptions)

	export := []gin.HandlerFunc{}
	if h.cfg.Limiter != nil {
		export = append(export, RateLimit(h.cfg.Limiter, h.cfg.Logger))
	}
	g.GET("/:type/export", append(export, h.Export)...)

	g.DELETE("/cache/:module", h.InvalidateCache)
	g.DELETE("/cache", h.FlushCache)
}

// Health GET /health
func (h *Handler) Health(c *gin.Context) {
	health := h.svc.Health(c.Request.Context())
	status := http.StatusOK
	if health.Status != service.StatusServing {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, health)
}

// ListReports GET /api/v1/reports
func (h *Handler) ListReports(c *gin.Context) {
	ok(c, h.svc.ListReports())
}

// FilterOptions GET /api/v1/reports/filter-options
func (h *Handler) FilterOptions(c *gin.Context) {
	opts, err := h.svc.GetFilterOptions(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, opts)
}

// Dashboard GET /api/v1/reports/dashboard
func (h *Handler) Dashboard(c *gin.Context) {
	d, err := h.svc.GetDashboardData(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, d)
}

// ReportData GET /api/v1/reports/:type
func (h *Handler) ReportData(c *gin.Context) {
	rt, req := parseRequest(c)
	data, err := h.svc.GetReportData(c.Request.Context(), rt, req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, data)
}

// ReportOptions GET /api/v1/reports/:type/options
func (h *Handler) ReportOptions(c *gin.Context) {
	rt, _ := domain.ParseReportType(c.Param("type"))
	opts, err := h.svc.GetReportOptions(rt)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, opts)
}

// Export GET /api/v1/reports/:type/export отдаёт файл и удаляет его после отправки
func (h *Handler) Export(c *gin.Context) {
	rt, req := parseRequest(c)
	req.Format = domain.ParseFormat(c.Query(paramFormat))

	artifact, err := h.svc.ExportReport(c.Request.Context(), rt, req)
	if err != nil {
		fail(c, err)
		return
	}
	defer artifact.Close()

	f, err := artifact.Open()
	if err != nil {
		fail(c, err)
		return
	}
	defer f.Close()

	c.DataFromReader(http.StatusOK, artifact.Size, artifact.MIMEType, f, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, artifact.Filename),
		"X-Record-Count":      strconv.Itoa(artifact.Records),
	})
}

// InvalidateCache DELETE /api/v1/reports/cache/:module
func (h *Handler) InvalidateCache(c *gin.Context) {
	module := c.Param("module")
	n, err := h.svc.InvalidateCache(c.Request.Context(), module)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"module": module, "keys": n})
}

// FlushCache DELETE /api/v1/reports/cache
func (h *Handler) FlushCache(c *gin.Context) {
	n, err := h.svc.FlushCache(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"keys": n})
}

// parseRequest собирает запрос из пути и query: всё, кроме format и group_by, становится фильтром
func parseRequest(c *gin.Context) (domain.ReportType, domain.ReportRequest) {
	rt, _ := domain.ParseReportType(c.Param("type"))

	filters := make(domain.Filters)
	for key, values := range c.Request.URL.Query() {
		if key == paramFormat || key == paramGroupBy || len(values) == 0 {
			continue
		}
		filters[key] = values[0]
	}

	return rt, domain.ReportRequest{
		Type:    rt,
		Filters: filters,
		GroupBy: c.Query(paramGroupBy),
	}
}
