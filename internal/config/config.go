package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"rbpscan/internal/errors"
)

// Engine modes
const (
	EngineModeSubprocess = "subprocess"
	EngineModeRemote     = "remote"
)

// Engine output channels
const (
	EngineOutputStdout = "stdout"
	EngineOutputFile   = "file"
)

// Config represents the complete application configuration
type Config struct {
	Server  ServerConfig
	Engine  EngineConfig
	Storage StorageConfig
	Upload  UploadConfig
	Logging LoggingConfig
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port        string
	GinMode     string
	CORSOrigins []string
}

// EngineConfig describes how the external analysis engine is reached
type EngineConfig struct {
	Mode              string
	Command           string
	Args              []string
	Dir               string
	Timeout           time.Duration
	Output            string
	RemoteURL         string
	RemoteRetries     int
	MaxConcurrentRuns int
}

// StorageConfig holds scratch storage settings
type StorageConfig struct {
	ScratchDir     string
	KeepScratch    bool
	StagingWorkers int
}

// UploadConfig holds inbound upload limits
type UploadConfig struct {
	MaxFileBytes      int64
	MaxFiles          int
	AllowedExtensions []string
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Server:  *loadServerConfig(),
		Engine:  *loadEngineConfig(),
		Storage: *loadStorageConfig(),
		Upload:  *loadUploadConfig(),
		Logging: *loadLoggingConfig(),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:        getEnvOrDefault("PORT", "3001"),
		GinMode:     getEnvOrDefault("GIN_MODE", "release"),
		CORSOrigins: getEnvListOrDefault("CORS_ORIGINS", ",", []string{"*"}),
	}
}

func loadEngineConfig() *EngineConfig {
	return &EngineConfig{
		Mode:              strings.ToLower(getEnvOrDefault("ENGINE_MODE", EngineModeSubprocess)),
		Command:           getEnvOrDefault("ENGINE_COMMAND", "Rscript"),
		Args:              strings.Fields(getEnvOrDefault("ENGINE_ARGS", "analysis.r")),
		Dir:               getEnvOrDefault("ENGINE_DIR", ""),
		Timeout:           getEnvDurationOrDefault("ENGINE_TIMEOUT", 10*time.Minute),
		Output:            strings.ToLower(getEnvOrDefault("ENGINE_OUTPUT", EngineOutputStdout)),
		RemoteURL:         getEnvOrDefault("REMOTE_ENGINE_URL", ""),
		RemoteRetries:     getEnvIntOrDefault("REMOTE_ENGINE_RETRIES", 0),
		MaxConcurrentRuns: getEnvIntOrDefault("MAX_CONCURRENT_RUNS", 2),
	}
}

func loadStorageConfig() *StorageConfig {
	return &StorageConfig{
		ScratchDir:     getEnvOrDefault("SCRATCH_DIR", filepath.Join(os.TempDir(), "rbpscan")),
		KeepScratch:    getEnvBoolOrDefault("KEEP_SCRATCH", false),
		StagingWorkers: getEnvIntOrDefault("STAGING_WORKERS", 4),
	}
}

func loadUploadConfig() *UploadConfig {
	return &UploadConfig{
		MaxFileBytes:      int64(getEnvIntOrDefault("MAX_FILE_BYTES", 10*1024*1024)),
		MaxFiles:          getEnvIntOrDefault("MAX_FILES", 96),
		AllowedExtensions: getEnvListOrDefault("ALLOWED_EXTENSIONS", ",", []string{".ab1"}),
	}
}

func loadLoggingConfig() *LoggingConfig {
	return &LoggingConfig{
		Level:  strings.ToUpper(getEnvOrDefault("LOG_LEVEL", "INFO")),
		Format: strings.ToLower(getEnvOrDefault("LOG_FORMAT", "console")),
	}
}

func validateConfig(config *Config) error {
	switch config.Engine.Mode {
	case EngineModeSubprocess:
		if config.Engine.Command == "" {
			return errors.ConfigInvalid("ENGINE_COMMAND is required in subprocess mode")
		}
	case EngineModeRemote:
		if config.Engine.RemoteURL == "" {
			return errors.ConfigInvalid("REMOTE_ENGINE_URL is required in remote mode")
		}
	default:
		return errors.ConfigInvalid("ENGINE_MODE must be subprocess or remote, got " + config.Engine.Mode)
	}
	if config.Engine.Output != EngineOutputStdout && config.Engine.Output != EngineOutputFile {
		return errors.ConfigInvalid("ENGINE_OUTPUT must be stdout or file")
	}
	if config.Engine.Timeout <= 0 {
		return errors.ConfigInvalid("ENGINE_TIMEOUT must be positive")
	}
	if config.Engine.MaxConcurrentRuns < 1 {
		return errors.ConfigInvalid("MAX_CONCURRENT_RUNS must be at least 1")
	}
	if config.Storage.ScratchDir == "" {
		return errors.ConfigInvalid("SCRATCH_DIR is required")
	}
	if config.Storage.StagingWorkers < 1 {
		config.Storage.StagingWorkers = 1
	}
	if config.Upload.MaxFileBytes <= 0 {
		return errors.ConfigInvalid("MAX_FILE_BYTES must be positive")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvListOrDefault(key, sep string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
