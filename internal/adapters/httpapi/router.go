// Package httpapi exposes the agromix service over HTTP with gin.
package httpapi

import (
	"expvar"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agromix/internal/core"
)

// Options configures the router.
type Options struct {
	// JWTSecret verifies bearer tokens. When empty every bearer token is
	// rejected and only anonymous requests are served.
	JWTSecret string
	Logger    core.Logger
	// Gatherer backs /metrics; nil uses the default Prometheus registry.
	Gatherer prometheus.Gatherer
	// DebugVars mounts the expvar handler on /debug/vars.
	DebugVars bool
}

type handler struct {
	svc    *core.Service
	secret []byte
	logger core.Logger
}

// NewRouter builds the HTTP surface over svc.
func NewRouter(svc *core.Service, opts Options) *gin.Engine {
	h := &handler{svc: svc, secret: []byte(opts.JWTSecret), logger: opts.Logger}
	if h.logger == nil {
		h.logger = core.NopLogger{}
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := gin.New()
	r.Use(gin.Recovery(), h.accessLog)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	if opts.DebugVars {
		r.GET("/debug/vars", gin.WrapH(expvar.Handler()))
	}

	api := r.Group("/api/v1", h.owner)
	api.POST("/compute", h.compute)
	api.GET("/catalog", h.catalog)

	api.GET("/calculations", h.listCalculations)
	api.POST("/calculations", h.saveCalculation)
	api.GET("/calculations/:id", h.getCalculation)
	api.DELETE("/calculations/:id", h.deleteCalculation)
	api.GET("/calculations/:id/export", h.exportCalculation)

	api.GET("/operations", h.listOperations)
	api.POST("/operations", h.saveOperation)
	api.DELETE("/operations/:id", h.deleteOperation)

	api.GET("/recipes", h.listRecipes)
	api.POST("/recipes", h.saveRecipe)
	api.PATCH("/recipes/:id", h.updateRecipe)
	api.DELETE("/recipes/:id", h.deleteRecipe)

	api.GET("/products", h.listProducts)
	api.POST("/products", h.saveProduct)
	api.PATCH("/products/:id", h.updateProduct)
	api.DELETE("/products/:id", h.deleteProduct)
	return r
}

func (h *handler) accessLog(c *gin.Context) {
	started := time.Now()
	c.Next()
	h.logger.Info("http request",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", c.Writer.Status(),
		"duration_ms", time.Since(started).Milliseconds(),
	)
}
