package handlers

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"invoice-scan/pkg/logging"
)

//go:embed templates/*.html
var templatesFS embed.FS

// RouterConfig carries what the router needs besides the upload handler.
type RouterConfig struct {
	Logger   *zap.Logger
	Gatherer prometheus.Gatherer
	// ModelAvailable is reported by /healthz.
	ModelAvailable func() bool
}

// NewRouter wires every route of the service.
func NewRouter(h *UploadHandler, cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(logging.RequestLogger(logger), logging.Recovery(logger))
	r.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.html")))

	r.GET("/", h.Index)
	r.POST("/", h.Upload)
	r.POST("/api/extract", h.APIExtract)
	r.Static("/uploaded_files", h.store.Dir())

	r.GET("/healthz", func(c *gin.Context) {
		loaded := cfg.ModelAvailable != nil && cfg.ModelAvailable()
		c.JSON(http.StatusOK, gin.H{"status": "ok", "model_loaded": loaded})
	})

	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}
	return r
}
