package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100MB
	DefaultBatchSize   = 120

	// Directory permissions
	DefaultDirPerm = 0o750
)

// Config holds all configuration for the smarttoc server
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// PDF configuration
	PDFDirectory string

	// APIKey protects the HTTP API in server mode. Empty disables
	// authentication for local use.
	APIKey string

	// Refinement provider configuration. The API key is read from the
	// environment or flags only and is never persisted.
	LLMProvider string
	LLMAPIKey   string
	LLMEndpoint string
	LLMModel    string
	LLMBatch    int

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum PDF file size in bytes
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		// Fallback to current directory if working directory cannot be determined
		currentDir = "."
	}

	return &Config{
		Mode:         ModeStdio, // Default to stdio mode for MCP compatibility
		Host:         DefaultHost,
		Port:         DefaultPort,
		PDFDirectory: currentDir,
		LLMProvider:  "openai",
		LLMBatch:     DefaultBatchSize,
		Version:      "1.0.0",
		ServerName:   "smarttoc",
		LogLevel:     DefaultLogLevel,
		MaxFileSize:  DefaultMaxFileSize,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	// Expand paths if needed
	if cfg.PDFDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.PDFDirectory); err == nil {
			cfg.PDFDirectory = expandedPath
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	// Set environment variable prefix
	viper.SetEnvPrefix("SMARTTOC")
	viper.AutomaticEnv()

	// Define flags with Viper
	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("dir", cfg.PDFDirectory)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
	viper.SetDefault("api_key", cfg.APIKey)
	viper.SetDefault("llm_provider", cfg.LLMProvider)
	viper.SetDefault("llm_api_key", cfg.LLMAPIKey)
	viper.SetDefault("llm_endpoint", cfg.LLMEndpoint)
	viper.SetDefault("llm_model", cfg.LLMModel)
	viper.SetDefault("llm_batch", cfg.LLMBatch)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP server")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("dir", cfg.PDFDirectory, "Directory containing PDF files")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
	pflag.String("api-key", cfg.APIKey, "API key for the HTTP API (server mode; empty disables auth)")
	pflag.String("llm-provider", cfg.LLMProvider, "Refinement provider: 'openai' or 'azure'")
	pflag.String("llm-api-key", cfg.LLMAPIKey, "Refinement provider API key (prefer SMARTTOC_LLM_API_KEY)")
	pflag.String("llm-endpoint", cfg.LLMEndpoint, "Refinement endpoint URL (required for Azure)")
	pflag.String("llm-model", cfg.LLMModel, "Refinement model name")
	pflag.Int("llm-batch", cfg.LLMBatch, "Candidates per refinement request")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	_ = viper.BindPFlag("mode", pflag.Lookup("mode"))
	_ = viper.BindPFlag("host", pflag.Lookup("host"))
	_ = viper.BindPFlag("port", pflag.Lookup("port"))
	_ = viper.BindPFlag("dir", pflag.Lookup("dir"))
	_ = viper.BindPFlag("loglevel", pflag.Lookup("loglevel"))
	_ = viper.BindPFlag("maxfilesize", pflag.Lookup("maxfilesize"))
	_ = viper.BindPFlag("api_key", pflag.Lookup("api-key"))
	_ = viper.BindPFlag("llm_provider", pflag.Lookup("llm-provider"))
	_ = viper.BindPFlag("llm_api_key", pflag.Lookup("llm-api-key"))
	_ = viper.BindPFlag("llm_endpoint", pflag.Lookup("llm-endpoint"))
	_ = viper.BindPFlag("llm_model", pflag.Lookup("llm-model"))
	_ = viper.BindPFlag("llm_batch", pflag.Lookup("llm-batch"))
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nSmartTOC - table of contents extraction and editing for PDF files\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                         "+
			"# stdio mode, current directory (default)\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --dir=/path/to/pdfs                     "+
			"# stdio mode with custom directory\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --dir=/path/to/pdfs       # HTTP server mode\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=server --host=0.0.0.0 --port=8081 # server on all interfaces\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  SMARTTOC_MODE          Server mode\n")
		fmt.Fprintf(os.Stderr, "  SMARTTOC_HOST          Server host\n")
		fmt.Fprintf(os.Stderr, "  SMARTTOC_PORT          Server port\n")
		fmt.Fprintf(os.Stderr, "  SMARTTOC_DIR           PDF directory\n")
		fmt.Fprintf(os.Stderr, "  SMARTTOC_LOGLEVEL      Log level\n")
		fmt.Fprintf(os.Stderr, "  SMARTTOC_MAXFILESIZE   Maximum file size\n")
		fmt.Fprintf(os.Stderr, "  SMARTTOC_API_KEY       HTTP API key (server mode)\n")
		fmt.Fprintf(os.Stderr, "  SMARTTOC_LLM_PROVIDER  Refinement provider\n")
		fmt.Fprintf(os.Stderr, "  SMARTTOC_LLM_API_KEY   Refinement API key\n")
		fmt.Fprintf(os.Stderr, "  SMARTTOC_LLM_ENDPOINT  Refinement endpoint URL\n")
		fmt.Fprintf(os.Stderr, "  SMARTTOC_LLM_MODEL     Refinement model\n")
		fmt.Fprintf(os.Stderr, "  SMARTTOC_LLM_BATCH     Candidates per request\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.PDFDirectory = viper.GetString("dir")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
	cfg.APIKey = viper.GetString("api_key")
	cfg.LLMProvider = viper.GetString("llm_provider")
	cfg.LLMAPIKey = viper.GetString("llm_api_key")
	cfg.LLMEndpoint = viper.GetString("llm_endpoint")
	cfg.LLMModel = viper.GetString("llm_model")
	cfg.LLMBatch = viper.GetInt("llm_batch")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate mode
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Validate port range (only for server mode)
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	// Validate PDF directory
	if c.PDFDirectory == "" {
		return errors.New("PDF directory cannot be empty")
	}

	// Check if PDF directory exists, create if it doesn't
	if _, err := os.Stat(c.PDFDirectory); os.IsNotExist(err) {
		if err := os.MkdirAll(c.PDFDirectory, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create PDF directory %s: %w", c.PDFDirectory, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access PDF directory %s: %w", c.PDFDirectory, err)
	}

	// Validate max file size
	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	// Validate refinement provider when a key is supplied. Without a
	// key the refinement pass is simply unavailable, not an error.
	if c.LLMAPIKey != "" {
		if c.LLMProvider != "openai" && c.LLMProvider != "azure" {
			return fmt.Errorf("invalid LLM provider: %s (must be 'openai' or 'azure')", c.LLMProvider)
		}
		if c.LLMProvider == "azure" && c.LLMEndpoint == "" {
			return errors.New("azure provider requires an endpoint URL")
		}
	}
	if c.LLMBatch < 1 {
		return errors.New("LLM batch size must be positive")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// HasRefinement returns true if a refinement provider is configured
func (c *Config) HasRefinement() bool {
	return c.LLMAPIKey != ""
}

// String returns a string representation of the configuration. The
// API key is deliberately omitted.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, PDFDirectory: %s, LogLevel: %s, MaxFileSize: %d, LLMProvider: %s}",
		c.Mode, c.Host, c.Port, c.PDFDirectory, c.LogLevel, c.MaxFileSize, c.LLMProvider)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
