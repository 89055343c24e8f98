// Package config provides XML-based configuration for the drone safety service.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"DroneGuard"`

	Server  ServerConfig  `xml:"Server"`
	Storage StorageConfig `xml:"Storage"`
	Zones   ZonesConfig   `xml:"Zones"`
	Tracks  TracksConfig  `xml:"Tracks"`
	Logging LoggingConfig `xml:"Logging"`
	Metrics MetricsConfig `xml:"Metrics"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int    `xml:"Port"`
	BindAddress  string `xml:"BindAddress"`
	EnableCORS   bool   `xml:"EnableCORS"`
	AllowOrigins string `xml:"AllowOrigins"`
	ReadTimeout  int    `xml:"ReadTimeoutSeconds"`
	WriteTimeout int    `xml:"WriteTimeoutSeconds"`
	IdleTimeout  int    `xml:"IdleTimeoutSeconds"`
	BodyLimit    string `xml:"BodyLimit"`
	EnableGzip   bool   `xml:"EnableGzip"`
}

// StorageConfig contains file storage settings
type StorageConfig struct {
	DataDirectory    string `xml:"DataDirectory"`
	UploadsDirectory string `xml:"UploadsDirectory"`
	ZonesDirectory   string `xml:"ZonesDirectory"`
	BufferRulesFile  string `xml:"BufferRulesFile"`
}

// ZonesConfig controls where no-fly zones come from and how often they are refreshed.
type ZonesConfig struct {
	SourceURL            string `xml:"SourceURL"`
	FileName             string `xml:"FileName"`
	MaxAgeHours          int    `xml:"MaxAgeHours"`
	CheckIntervalMinutes int    `xml:"CheckIntervalMinutes"`
	DownloadTimeout      int    `xml:"DownloadTimeoutSeconds"`
}

// TracksConfig controls the recorded-fix store and interpolation.
type TracksConfig struct {
	Driver                string `xml:"Driver"` // duckdb or postgres
	DSN                   string `xml:"DSN"`
	InterpolationInterval int    `xml:"InterpolationIntervalSeconds"`
	CacheSize             int    `xml:"CacheSize"`
	CacheTTLMinutes       int    `xml:"CacheTTLMinutes"`
	DuckDBThreads         int    `xml:"DuckDBThreads"`
	DuckDBMemoryLimit     string `xml:"DuckDBMemoryLimit"`
}

// LoggingConfig contains log output settings
type LoggingConfig struct {
	Level                string `xml:"Level"`
	Format               string `xml:"Format"`
	File                 string `xml:"File"`
	MaxSizeMB            int    `xml:"MaxSizeMB"`
	MaxBackups           int    `xml:"MaxBackups"`
	MaxAgeDays           int    `xml:"MaxAgeDays"`
	Compress             bool   `xml:"Compress"`
	EnableRequestLogging bool   `xml:"EnableRequestLogging"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `xml:"Enabled"`
	Path    string `xml:"Path"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         5004,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			WriteTimeout: 30,
			IdleTimeout:  120,
			BodyLimit:    "16M",
			EnableGzip:   true,
		},
		Storage: StorageConfig{
			DataDirectory:    "./data",
			UploadsDirectory: "./data/uploads",
			ZonesDirectory:   "./data/zones",
			BufferRulesFile:  "./data/buffers.yaml",
		},
		Zones: ZonesConfig{
			SourceURL:            "",
			FileName:             "drone_no_fly_dk.kml",
			MaxAgeHours:          7 * 24,
			CheckIntervalMinutes: 60,
			DownloadTimeout:      60,
		},
		Tracks: TracksConfig{
			Driver:                "duckdb",
			DSN:                   "./data/tracks.duckdb",
			InterpolationInterval: 2,
			CacheSize:             256,
			CacheTTLMinutes:       10,
			DuckDBThreads:         4,
			DuckDBMemoryLimit:     "1GB",
		},
		Logging: LoggingConfig{
			Level:                "info",
			Format:               "text",
			File:                 "",
			MaxSizeMB:            64,
			MaxBackups:           3,
			MaxAgeDays:           14,
			Compress:             true,
			EnableRequestLogging: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// LoadConfig loads configuration from XML file
func LoadConfig(configPath string) (*AppConfig, error) {
	// If file doesn't exist, create default
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := DefaultConfig()
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		config.applyEnvironmentOverrides()
		config.resolvePaths(filepath.Dir(configPath))
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := xml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(filepath.Dir(configPath))

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- DroneGuard Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate rejects settings the service cannot run with.
func (c *AppConfig) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch c.Tracks.Driver {
	case "duckdb", "postgres":
	default:
		return fmt.Errorf("unsupported track driver: %q", c.Tracks.Driver)
	}
	if c.Tracks.InterpolationInterval <= 0 {
		return fmt.Errorf("interpolation interval must be positive")
	}
	if c.Zones.MaxAgeHours <= 0 {
		return fmt.Errorf("zone max age must be positive")
	}
	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
	}

	if url := os.Getenv("ZONES_URL"); url != "" {
		c.Zones.SourceURL = url
	}

	// TRACK_DSN with a postgres URL switches the driver as well
	if dsn := os.Getenv("TRACK_DSN"); dsn != "" {
		c.Tracks.DSN = dsn
		if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
			c.Tracks.Driver = "postgres"
		}
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	resolve := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
	resolve(&c.Storage.DataDirectory)
	resolve(&c.Storage.UploadsDirectory)
	resolve(&c.Storage.ZonesDirectory)
	resolve(&c.Storage.BufferRulesFile)
	resolve(&c.Logging.File)
	if c.Tracks.Driver == "duckdb" {
		resolve(&c.Tracks.DSN)
	}
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// ZoneFilePath returns the path of the cached zone file.
func (c *AppConfig) ZoneFilePath() string {
	return filepath.Join(c.Storage.ZonesDirectory, c.Zones.FileName)
}

// ZoneMaxAge returns how old the cached zone file may get before a refresh.
func (c *AppConfig) ZoneMaxAge() time.Duration {
	return time.Duration(c.Zones.MaxAgeHours) * time.Hour
}

// ZoneCheckInterval returns how often the zone file age is checked.
func (c *AppConfig) ZoneCheckInterval() time.Duration {
	return time.Duration(c.Zones.CheckIntervalMinutes) * time.Minute
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
		c.Storage.ZonesDirectory,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
