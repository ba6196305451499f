package container

import (
	"fmt"
	"strings"
	"time"

	"rbpscan/adapters/engine"
	"rbpscan/adapters/excel"
	"rbpscan/adapters/storage"
	"rbpscan/app"
	"rbpscan/internal"
	"rbpscan/internal/config"
	"rbpscan/ports"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	Stager ports.FileStager
	Engine ports.AnalysisEngine

	// Services
	AnalysisService *app.AnalysisService

	// Exporters keyed by format name
	Exporters map[string]ports.Exporter
}

// New creates a new dependency injection container
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	c := &Container{
		Config: cfg,
		Logger: internal.NewLoggerWithFormat(cfg.Logging.Level, cfg.Logging.Format),
	}

	c.initStorage()
	if err := c.initEngine(); err != nil {
		return nil, fmt.Errorf("failed to initialize analysis engine: %w", err)
	}
	c.initServices()
	c.initExporters()

	c.Logger.Info("[Container] initialized: engine=%s scratch=%s max_runs=%d",
		cfg.Engine.Mode, cfg.Storage.ScratchDir, cfg.Engine.MaxConcurrentRuns)
	return c, nil
}

// initStorage initializes run-scoped scratch storage
func (c *Container) initStorage() {
	c.Stager = storage.NewLocalFileStorage(&storage.StorageConfig{
		BasePath: c.Config.Storage.ScratchDir,
		Workers:  c.Config.Storage.StagingWorkers,
	}, c.Logger)
}

// initEngine selects the engine adapter for the configured mode
func (c *Container) initEngine() error {
	cfg := c.Config.Engine
	switch cfg.Mode {
	case config.EngineModeSubprocess:
		c.Engine = engine.NewSubprocessEngine(engine.SubprocessConfig{
			Command:    cfg.Command,
			Args:       cfg.Args,
			Dir:        cfg.Dir,
			Timeout:    cfg.Timeout,
			FileOutput: cfg.Output == config.EngineOutputFile,
		}, c.Logger)
		c.Logger.Debug("[Container] subprocess engine: %s %s", cfg.Command, strings.Join(cfg.Args, " "))
	case config.EngineModeRemote:
		c.Engine = engine.NewRemoteEngine(engine.RemoteConfig{
			URL:     cfg.RemoteURL,
			Retries: cfg.RemoteRetries,
			Timeout: cfg.Timeout,
		}, c.Logger)
		c.Logger.Debug("[Container] remote engine: %s", cfg.RemoteURL)
	default:
		return fmt.Errorf("unknown engine mode %q", cfg.Mode)
	}
	return nil
}

// initServices initializes application services
func (c *Container) initServices() {
	c.AnalysisService = app.NewAnalysisService(c.Stager, c.Engine, app.ServiceConfig{
		MaxConcurrentRuns: c.Config.Engine.MaxConcurrentRuns,
		QueueTimeout:      30 * time.Second,
		KeepScratch:       c.Config.Storage.KeepScratch,
		Upload: app.UploadPolicy{
			MaxFileBytes:      c.Config.Upload.MaxFileBytes,
			MaxFiles:          c.Config.Upload.MaxFiles,
			AllowedExtensions: c.Config.Upload.AllowedExtensions,
		},
	}, c.Logger)
}

// initExporters registers the download formats
func (c *Container) initExporters() {
	exportConfig := excel.DefaultExportConfig()
	c.Exporters = map[string]ports.Exporter{}
	for _, e := range []ports.Exporter{excel.NewCSVExporter(exportConfig), excel.NewXLSXExporter(exportConfig)} {
		c.Exporters[e.Format()] = e
	}
}

// Exporter returns the exporter for a format name
func (c *Container) Exporter(format string) (ports.Exporter, bool) {
	e, ok := c.Exporters[strings.ToLower(format)]
	return e, ok
}
