// api/router.go
package api

import (
	"log/slog"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rekord/internal/catalog"
	"rekord/internal/metrics"
	"rekord/internal/reference"
	"rekord/internal/service"
)

// Server — HTTP-обвязка над service.Records.
type Server struct {
	records  *service.Records
	logger   *slog.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	sources  catalog.Sources

	mu    sync.RWMutex
	enums map[string]reference.EnumDirectory
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option { return func(s *Server) { s.logger = l } }

// WithMetrics — метрики и реестр, который отдаёт /metrics.
func WithMetrics(m *metrics.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// WithSources — пути по умолчанию для /api/admin/reload.
func WithSources(src catalog.Sources) Option { return func(s *Server) { s.sources = src } }

func WithEnums(enums map[string]reference.EnumDirectory) Option {
	return func(s *Server) { s.enums = enums }
}

func NewServer(records *service.Records, opts ...Option) *Server {
	s := &Server{
		records:  records,
		logger:   slog.Default(),
		gatherer: prometheus.DefaultGatherer,
		enums:    map[string]reference.EnumDirectory{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), AccessLog(s.logger))

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	{
		// служебные маршруты — СНАЧАЛА
		api.GET("/meta", s.MetaListHandler())
		api.GET("/meta/:entity/:form", s.MetaFormHandler())
		api.GET("/reference/:name", s.ReferenceHandler())
		api.POST("/admin/reload", s.AdminReloadHandler())

		api.POST("/:entity/:form", s.CreateHandler())
		api.GET("/:entity/:id", s.GetOneHandler())
		api.PATCH("/:entity/:id/:form", s.UpdateHandler())
	}
	return r
}
