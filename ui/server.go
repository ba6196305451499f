package ui

import (
	"context"
	"net/http"
	"time"

	"rbpscan/app"
	"rbpscan/internal"
	"rbpscan/internal/config"
	"rbpscan/ports"
	"rbpscan/ui/middleware"

	"github.com/gin-gonic/gin"
)

// ExporterLookup resolves a download format to its exporter
type ExporterLookup func(format string) (ports.Exporter, bool)

// Server is the HTTP front of the analysis service
type Server struct {
	router    *gin.Engine
	http      *http.Server
	service   *app.AnalysisService
	exporters ExporterLookup
	config    config.ServerConfig
	upload    config.UploadConfig
	logger    *internal.Logger
}

// NewServer creates a new web server instance with its routes installed
func NewServer(service *app.AnalysisService, exporters ExporterLookup, serverConfig config.ServerConfig, uploadConfig config.UploadConfig, logger *internal.Logger) *Server {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	// Multipart bodies above this spill to temp files
	router.MaxMultipartMemory = 32 << 20

	s := &Server{
		router:    router,
		service:   service,
		exporters: exporters,
		config:    serverConfig,
		upload:    uploadConfig,
		logger:    logger,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures Gin middleware
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.RequestLogger(s.logger))
	s.router.Use(middleware.CORS(s.config.CORSOrigins))
}

// setupRoutes configures the application routes
func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)

	s.router.POST("/analyze", s.handleAnalyze)
	s.router.POST("/api/analyze", s.handleAnalyze)
	s.router.POST("/api/export", s.handleExport)

	s.router.NoMethod(s.handleMethodNotAllowed)
	s.router.NoRoute(s.handleNotFound)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the web server and blocks until it stops
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("[Server] listening on http://%s", addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for running analyses
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
