// services/report-svc/internal/handler/middleware.go
package handler

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"farmreport/pkg/apperror"
	"farmreport/pkg/config"
	"farmreport/pkg/logger"
	"farmreport/pkg/metrics"
	"farmreport/pkg/ratelimit"
)

// HeaderRequestID заголовок идентификатора запроса
const HeaderRequestID = "X-Request-ID"

// RequestID берёт идентификатор из заголовка или генерирует новый
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(HeaderRequestID, id)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// Logging пишет одну запись на запрос; уровень зависит от статуса
func Logging(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		args := []any{
			"request_id", c.GetString("request_id"),
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"body_size", c.Writer.Size(),
		}
		if query != "" {
			args = append(args, "query", query)
		}

		switch {
		case status >= http.StatusInternalServerError:
			log.Error("http request", args...)
		case status >= http.StatusBadRequest:
			log.Warn("http request", args...)
		default:
			log.Info("http request", args...)
		}
	}
}

// Recovery переводит панику в INTERNAL_ERROR
func Recovery(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic recovered",
					"request_id", c.GetString("request_id"),
					"path", c.Request.URL.Path,
					"panic", fmt.Sprint(r),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
					Error: ErrorBody{Code: string(apperror.CodeInternal), Message: "internal error"},
				})
			}
		}()
		c.Next()
	}
}

// Metrics считает запросы по шаблону маршрута
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		done := m.InFlight()
		defer done()

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// CORS выставляет заголовки по конфигурации и отвечает на preflight
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	allowedMethods := strings.Join(cfg.AllowedMethods, ", ")
	allowedHeaders := strings.Join(cfg.AllowedHeaders, ", ")
	exposedHeaders := strings.Join(withRequired(cfg.ExposedHeaders, HeaderRequestID, "Content-Disposition"), ", ")
	maxAge := strconv.Itoa(cfg.MaxAge)

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if allowed := allowedOrigin(cfg.AllowedOrigins, origin); allowed != "" {
			c.Header("Access-Control-Allow-Origin", allowed)
			c.Header("Vary", "Origin")
		}
		if allowedMethods != "" {
			c.Header("Access-Control-Allow-Methods", allowedMethods)
		}
		if allowedHeaders != "" {
			c.Header("Access-Control-Allow-Headers", allowedHeaders)
		}
		c.Header("Access-Control-Expose-Headers", exposedHeaders)

		if c.Request.Method == http.MethodOptions {
			c.Header("Access-Control-Max-Age", maxAge)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// withRequired дополняет список обязательными заголовками без повторов
func withRequired(headers []string, required ...string) []string {
	out := append([]string(nil), headers...)
	for _, r := range required {
		found := false
		for _, h := range headers {
			if strings.EqualFold(h, r) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, r)
		}
	}
	return out
}

func allowedOrigin(origins []string, origin string) string {
	for _, o := range origins {
		if o == "*" {
			return "*"
		}
		if origin != "" && o == origin {
			return origin
		}
	}
	return ""
}

// RateLimit ограничивает запросы по IP клиента. Ошибка лимитера
// пропускает запрос.
func RateLimit(limiter ratelimit.Limiter, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()

		allowed, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			log.Warn("rate limiter unavailable", "key", key, "error", err)
			c.Next()
			return
		}

		if info, err := limiter.GetInfo(c.Request.Context(), key); err == nil {
			c.Header("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
			if !allowed && info.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(info.RetryAfter.Seconds()))))
			}
		}

		if !allowed {
			fail(c, apperror.New(apperror.CodeRateLimited, "too many export requests, try again later"))
			return
		}
		c.Next()
	}
}
