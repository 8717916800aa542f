// Package config provides XML-based configuration management for self-hosted deployment.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"CVLens"`

	// Server configuration
	Server ServerConfig `xml:"Server"`

	// Storage configuration
	Storage StorageConfig `xml:"Storage"`

	// Analysis pipeline configuration
	Analysis AnalysisConfig `xml:"Analysis"`

	// Status notification configuration
	Notify NotifyConfig `xml:"Notify"`

	// Advanced options
	Advanced AdvancedConfig `xml:"Advanced"`
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
	EnableDelete bool   `xml:"EnableDelete"`
}

// StorageConfig contains document storage settings
type StorageConfig struct {
	DataDirectory    string      `xml:"DataDirectory"`
	UploadsDirectory string      `xml:"UploadsDirectory"`
	TempDirectory    string      `xml:"TempDirectory"`
	DatabasePath     string      `xml:"DatabasePath"`
	Backend          string      `xml:"Backend"` // "local" or "minio"
	Minio            MinioConfig `xml:"Minio"`
}

// MinioConfig contains S3-compatible object store settings, used when
// Storage.Backend is "minio"
type MinioConfig struct {
	Endpoint  string `xml:"Endpoint"`
	AccessKey string `xml:"AccessKey"`
	SecretKey string `xml:"SecretKey"`
	Bucket    string `xml:"Bucket"`
	UseSSL    bool   `xml:"UseSSL"`
}

// AnalysisConfig contains analysis pipeline settings
type AnalysisConfig struct {
	MaxConcurrentAnalyses  int    `xml:"MaxConcurrentAnalyses"`
	RulesPath              string `xml:"RulesPath"`
	JobRetentionMinutes    int    `xml:"JobRetentionMinutes"`
	CleanupIntervalMinutes int    `xml:"CleanupIntervalMinutes"`
}

// NotifyConfig contains status push settings
type NotifyConfig struct {
	AMQPURL  string `xml:"AMQPURL"`
	Exchange string `xml:"Exchange"`
}

// AdvancedConfig contains advanced/tuning options
type AdvancedConfig struct {
	LogLevel             string `xml:"LogLevel"`
	EnableRequestLogging bool   `xml:"EnableRequestLogging"`
	DuckDBThreads        int    `xml:"DuckDBThreads"`
	DuckDBMemoryLimit    string `xml:"DuckDBMemoryLimit"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:         8080,
			BindAddress:  "0.0.0.0",
			EnableCORS:   true,
			AllowOrigins: "*",
			ReadTimeout:  30,
			// Write timeout must outlast the progress stream window or
			// SSE connections get cut mid-stream.
			WriteTimeout: 360,
			IdleTimeout:  120,
			BodyLimit:    "16M",
			EnableDelete: true,
		},
		Storage: StorageConfig{
			DataDirectory:    "./data",
			UploadsDirectory: "./data/uploads",
			TempDirectory:    "./data/temp",
			DatabasePath:     "./data/cvlens.db",
			Backend:          "local",
			Minio: MinioConfig{
				Endpoint: "localhost:9000",
				Bucket:   "cvlens-resumes",
				UseSSL:   false,
			},
		},
		Analysis: AnalysisConfig{
			MaxConcurrentAnalyses:  3,
			RulesPath:              "",
			JobRetentionMinutes:    60,
			CleanupIntervalMinutes: 5,
		},
		Notify: NotifyConfig{
			AMQPURL:  "",
			Exchange: "cvlens.status",
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			EnableRequestLogging: true,
			DuckDBThreads:        4,
			DuckDBMemoryLimit:    "1GB",
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
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &AppConfig{}
	if err := xml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply environment variable overrides
	config.applyEnvironmentOverrides()

	// Resolve relative paths
	config.resolvePaths(filepath.Dir(configPath))

	return config, nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- CVLens Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	// PORT override
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	// DATA_DIR override
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
	}

	// CVLENS_DB_PATH override
	if dbPath := os.Getenv("CVLENS_DB_PATH"); dbPath != "" {
		c.Storage.DatabasePath = dbPath
	}

	// CVLENS_AMQP_URL override (empty keeps push notifications off)
	if amqpURL := os.Getenv("CVLENS_AMQP_URL"); amqpURL != "" {
		c.Notify.AMQPURL = amqpURL
	}

	// Object store credentials are env-first so they stay out of the
	// config file
	if endpoint := os.Getenv("MINIO_ENDPOINT"); endpoint != "" {
		c.Storage.Backend = "minio"
		c.Storage.Minio.Endpoint = endpoint
	}
	if accessKey := os.Getenv("MINIO_ACCESS_KEY"); accessKey != "" {
		c.Storage.Minio.AccessKey = accessKey
	}
	if secretKey := os.Getenv("MINIO_SECRET_KEY"); secretKey != "" {
		c.Storage.Minio.SecretKey = secretKey
	}
	if bucket := os.Getenv("MINIO_BUCKET"); bucket != "" {
		c.Storage.Minio.Bucket = bucket
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	if !filepath.IsAbs(c.Storage.DataDirectory) {
		c.Storage.DataDirectory = filepath.Join(configDir, c.Storage.DataDirectory)
	}
	if !filepath.IsAbs(c.Storage.UploadsDirectory) {
		c.Storage.UploadsDirectory = filepath.Join(configDir, c.Storage.UploadsDirectory)
	}
	if !filepath.IsAbs(c.Storage.TempDirectory) {
		c.Storage.TempDirectory = filepath.Join(configDir, c.Storage.TempDirectory)
	}
	if !filepath.IsAbs(c.Storage.DatabasePath) {
		c.Storage.DatabasePath = filepath.Join(configDir, c.Storage.DatabasePath)
	}
	if c.Analysis.RulesPath != "" && !filepath.IsAbs(c.Analysis.RulesPath) {
		c.Analysis.RulesPath = filepath.Join(configDir, c.Analysis.RulesPath)
	}
}

// GetDataDir returns the absolute data directory path
func (c *AppConfig) GetDataDir() string {
	return c.Storage.DataDirectory
}

// GetUploadDir returns the absolute uploads directory path
func (c *AppConfig) GetUploadDir() string {
	return c.Storage.UploadsDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.UploadsDirectory,
		c.Storage.TempDirectory,
		filepath.Dir(c.Storage.DatabasePath),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
