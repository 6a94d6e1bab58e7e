// Package swagger публикует OpenAPI документ и страницу Swagger UI в gin.
package swagger

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Config параметры страницы документации
type Config struct {
	Title    string
	BasePath string // маршрут страницы, документ лежит в BasePath/openapi.json
	Version  string // подставляется в info.version, если задан
}

// DefaultConfig страница /swagger
func DefaultConfig() Config {
	return Config{Title: "Farm Reports API", BasePath: "/swagger"}
}

// Docs готовый к отдаче документ и страница
type Docs struct {
	cfg  Config
	spec []byte
	etag string
	page []byte
}

var pageTemplate = template.Must(template.New("swagger-ui").Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<head>
<meta charset="UTF-8">
<title>{{.Title}}</title>
<link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
<script>
window.onload = () => { window.ui = SwaggerUIBundle({url: "{{.SpecURL}}", dom_id: "#swagger-ui", docExpansion: "list"}); };
</script>
</body>
</html>`))

// New проверяет документ, подставляет версию и заранее рендерит страницу
func New(cfg Config, spec []byte) (*Docs, error) {
	if cfg.BasePath == "" {
		cfg.BasePath = DefaultConfig().BasePath
	}

	if cfg.Version != "" {
		var doc map[string]any
		if err := json.Unmarshal(spec, &doc); err != nil {
			return nil, fmt.Errorf("openapi document: %w", err)
		}
		if info, ok := doc["info"].(map[string]any); ok {
			info["version"] = cfg.Version
		}
		patched, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("openapi document: %w", err)
		}
		spec = patched
	} else if !json.Valid(spec) {
		return nil, fmt.Errorf("openapi document: invalid json")
	}

	var page bytes.Buffer
	if err := pageTemplate.Execute(&page, struct{ Title, SpecURL string }{
		Title:   cfg.Title,
		SpecURL: cfg.BasePath + "/openapi.json",
	}); err != nil {
		return nil, fmt.Errorf("swagger page: %w", err)
	}

	sum := sha256.Sum256(spec)
	return &Docs{
		cfg:  cfg,
		spec: spec,
		etag: `"` + hex.EncodeToString(sum[:8]) + `"`,
		page: page.Bytes(),
	}, nil
}

// Register добавляет маршруты BasePath, BasePath/ и BasePath/openapi.json
func (d *Docs) Register(r gin.IRoutes) {
	r.GET(d.cfg.BasePath, d.Page)
	r.GET(d.cfg.BasePath+"/", d.Page)
	r.GET(d.cfg.BasePath+"/openapi.json", d.Spec)
}

// Page страница Swagger UI
func (d *Docs) Page(c *gin.Context) {
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "text/html; charset=utf-8", d.page)
}

// Spec OpenAPI документ с ETag
func (d *Docs) Spec(c *gin.Context) {
	if c.GetHeader("If-None-Match") == d.etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Header("ETag", d.etag)
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, "application/json; charset=utf-8", d.spec)
}
