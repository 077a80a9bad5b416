// Package config provides configuration management for the clipforge server.
// Configuration is loaded from environment variables with sensible defaults,
// optionally overlaid by a YAML config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// Default values
	DefaultPort     = 3001
	DefaultLogLevel = "info"
	DefaultDataDir  = ".clipforge"

	// Environment variable names
	EnvPort       = "CLIPFORGE_PORT"
	EnvLogLevel   = "CLIPFORGE_LOG_LEVEL"
	EnvDataDir    = "CLIPFORGE_DATA_DIR"
	EnvConfigFile = "CLIPFORGE_CONFIG"

	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvPexelsKey    = "PEXELS_API_KEY"
	EnvWorkerPython = "CLIPFORGE_WORKER_PYTHON"
	EnvWorkerScript = "CLIPFORGE_WORKER_SCRIPT"

	// Database filename
	DBFilename = "clipforge.db"

	// Upload limit
	DefaultMaxUploadBytes = 500 * 1024 * 1024 // 500MB

	// Subprocess timeout defaults, seconds
	DefaultProbeTimeout      = 30
	DefaultSpliceTimeout     = 600 // 10 minutes per ffmpeg stage
	DefaultTranscribeTimeout = 300 // 5 minutes per Whisper call
	DefaultExportTimeout     = 1800
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	UploadDir() string
	ExportDir() string
	TempDir() string
	MaxUploadBytes() int64
	OpenAIKey() string
	PexelsKey() string
	WorkerPython() string
	WorkerScript() string
	ProbeTimeout() time.Duration
	SpliceTimeout() time.Duration
	TranscribeTimeout() time.Duration
	ExportTimeout() time.Duration
}

// fileConfig is the YAML overlay shape. Zero values mean "not set".
type fileConfig struct {
	Port           int    `yaml:"port"`
	LogLevel       string `yaml:"log_level"`
	DataDir        string `yaml:"data_dir"`
	OpenAIKey      string `yaml:"openai_api_key"`
	PexelsKey      string `yaml:"pexels_api_key"`
	WorkerPython   string `yaml:"worker_python"`
	WorkerScript   string `yaml:"worker_script"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// EnvConfig reads configuration from a YAML file and environment variables.
// Environment variables win over the file, the file wins over defaults.
type EnvConfig struct {
	port           int
	logLevel       string
	dataDir        string
	maxUploadBytes int64

	openAIKey    string
	pexelsKey    string
	workerPython string
	workerScript string
}

// New creates a new EnvConfig with defaults, YAML file values, and
// environment variable overrides applied in that order.
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:           DefaultPort,
		logLevel:       DefaultLogLevel,
		dataDir:        defaultDataDir(),
		maxUploadBytes: DefaultMaxUploadBytes,
	}

	if err := cfg.applyFile(configFilePath()); err != nil {
		return nil, err
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}
	if k := os.Getenv(EnvOpenAIKey); k != "" {
		cfg.openAIKey = k
	}
	if k := os.Getenv(EnvPexelsKey); k != "" {
		cfg.pexelsKey = k
	}
	if p := os.Getenv(EnvWorkerPython); p != "" {
		cfg.workerPython = p
	}
	if s := os.Getenv(EnvWorkerScript); s != "" {
		cfg.workerScript = s
	}

	return cfg, nil
}

// applyFile overlays values from a YAML config file if one exists.
// A missing file is not an error; a malformed one is.
func (c *EnvConfig) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	if fc.Port != 0 {
		if fc.Port < 1 || fc.Port > 65535 {
			return fmt.Errorf("invalid port in %s: must be between 1 and 65535", path)
		}
		c.port = fc.Port
	}
	if fc.LogLevel != "" {
		c.logLevel = fc.LogLevel
	}
	if fc.DataDir != "" {
		c.dataDir = fc.DataDir
	}
	if fc.OpenAIKey != "" {
		c.openAIKey = fc.OpenAIKey
	}
	if fc.PexelsKey != "" {
		c.pexelsKey = fc.PexelsKey
	}
	if fc.WorkerPython != "" {
		c.workerPython = fc.WorkerPython
	}
	if fc.WorkerScript != "" {
		c.workerScript = fc.WorkerScript
	}
	if fc.MaxUploadBytes > 0 {
		c.maxUploadBytes = fc.MaxUploadBytes
	}

	return nil
}

func configFilePath() string {
	if p := os.Getenv(EnvConfigFile); p != "" {
		return p
	}
	return filepath.Join(defaultDataDir(), "config.yaml")
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// UploadDir returns the directory holding project media and records
func (c *EnvConfig) UploadDir() string {
	return filepath.Join(c.dataDir, "uploads")
}

// ExportDir returns the directory holding rendered exports
func (c *EnvConfig) ExportDir() string {
	return filepath.Join(c.dataDir, "exports")
}

// TempDir returns the base directory for per-operation scratch space
func (c *EnvConfig) TempDir() string {
	return filepath.Join(c.dataDir, "tmp")
}

// MaxUploadBytes returns the maximum accepted upload size
func (c *EnvConfig) MaxUploadBytes() int64 {
	return c.maxUploadBytes
}

func (c *EnvConfig) OpenAIKey() string {
	return c.openAIKey
}

func (c *EnvConfig) PexelsKey() string {
	return c.pexelsKey
}

func (c *EnvConfig) WorkerPython() string {
	return c.workerPython
}

func (c *EnvConfig) WorkerScript() string {
	return c.workerScript
}

func (c *EnvConfig) ProbeTimeout() time.Duration {
	return time.Duration(DefaultProbeTimeout) * time.Second
}

func (c *EnvConfig) SpliceTimeout() time.Duration {
	return time.Duration(DefaultSpliceTimeout) * time.Second
}

func (c *EnvConfig) TranscribeTimeout() time.Duration {
	return time.Duration(DefaultTranscribeTimeout) * time.Second
}

func (c *EnvConfig) ExportTimeout() time.Duration {
	return time.Duration(DefaultExportTimeout) * time.Second
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
