package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the collector
type Config struct {
	// Account selection
	Account AccountConfig `yaml:"account" json:"account"`

	// Collection window and caps
	Window WindowConfig `yaml:"window" json:"window"`

	// Rate limiting and retry configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Browser fallback configuration
	Fallback FallbackConfig `yaml:"fallback" json:"fallback"`

	// Session persistence
	Session SessionConfig `yaml:"session" json:"session"`

	// Export settings
	Export ExportConfig `yaml:"export" json:"export"`

	// Run archive settings
	Archive ArchiveConfig `yaml:"archive" json:"archive"`

	// Metrics endpoint
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// AccountConfig selects the target and the credential account
type AccountConfig struct {
	// Handle is the account to collect posts from
	Handle string `yaml:"handle" json:"handle"`
	// Username selects the stored login account; empty picks the default
	Username  string `yaml:"username" json:"username"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`
}

// WindowConfig bounds the collection in time and size
type WindowConfig struct {
	// Since and Until accept ISO-8601, a plain date, or a unix epoch
	Since string `yaml:"since" json:"since"`
	Until string `yaml:"until" json:"until"`
	// WindowHours sets Since relative to now when Since is empty
	WindowHours int `yaml:"window_hours" json:"window_hours"`
	// Limit caps the unique result count
	Limit int `yaml:"limit" json:"limit"`
	// MaxTweets caps raw stream traversal independent of dedup count
	MaxTweets int `yaml:"max_tweets" json:"max_tweets"`
}

// RateLimitConfig holds pacing and retry configuration
type RateLimitConfig struct {
	RequestsPerSecond  float64 `yaml:"requests_per_second" json:"requests_per_second"`
	BurstSize          int     `yaml:"burst_size" json:"burst_size"`
	StreamDelaySeconds int     `yaml:"stream_delay_seconds" json:"stream_delay_seconds"`
	// EscalateThreshold is how many throttle signals the primary pass
	// absorbs before switching to the fallback
	EscalateThreshold int `yaml:"escalate_threshold" json:"escalate_threshold"`
	MaxRetries        int `yaml:"max_retries" json:"max_retries"`
}

// FallbackConfig holds browser fallback configuration
type FallbackConfig struct {
	Enabled           bool `yaml:"enabled" json:"enabled"`
	Headless          bool `yaml:"headless" json:"headless"`
	MaxSessionMinutes int  `yaml:"max_session_minutes" json:"max_session_minutes"`
	ScrollDelayMinMs  int  `yaml:"scroll_delay_min_ms" json:"scroll_delay_min_ms"`
	ScrollDelayMaxMs  int  `yaml:"scroll_delay_max_ms" json:"scroll_delay_max_ms"`
}

// SessionConfig holds session persistence configuration
type SessionConfig struct {
	// DataDir overrides the per-OS default session directory
	DataDir          string `yaml:"data_dir" json:"data_dir"`
	MaxLoginAttempts int    `yaml:"max_login_attempts" json:"max_login_attempts"`
}

// ExportConfig holds report export configuration
type ExportConfig struct {
	OutputPath string `yaml:"output_path" json:"output_path"`
	TopTweets  int    `yaml:"top_tweets" json:"top_tweets"`
}

// ArchiveConfig holds the cross-run sqlite archive configuration
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// MetricsConfig holds the Prometheus endpoint configuration
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Account: AccountConfig{
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Window: WindowConfig{
			WindowHours: 24,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond:  1,
			BurstSize:          3,
			StreamDelaySeconds: 2,
			EscalateThreshold:  3,
			MaxRetries:         5,
		},
		Fallback: FallbackConfig{
			Enabled:           true,
			Headless:          true,
			MaxSessionMinutes: 30,
			ScrollDelayMinMs:  1500,
			ScrollDelayMaxMs:  4000,
		},
		Session: SessionConfig{
			MaxLoginAttempts: 5,
		},
		Export: ExportConfig{
			OutputPath: "report.json",
			TopTweets:  5,
		},
		Archive: ArchiveConfig{
			Enabled: false,
			Path:    "xscraper.db",
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: ":9190",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if handle := os.Getenv("XSCRAPER_HANDLE"); handle != "" {
		c.Account.Handle = handle
	}
	if username := os.Getenv("XSCRAPER_ACCOUNT"); username != "" {
		c.Account.Username = username
	}
	if userAgent := os.Getenv("XSCRAPER_USER_AGENT"); userAgent != "" {
		c.Account.UserAgent = userAgent
	}

	if since := os.Getenv("XSCRAPER_SINCE"); since != "" {
		c.Window.Since = since
	}
	if until := os.Getenv("XSCRAPER_UNTIL"); until != "" {
		c.Window.Until = until
	}
	if hours := os.Getenv("XSCRAPER_WINDOW_HOURS"); hours != "" {
		var val int
		fmt.Sscanf(hours, "%d", &val)
		if val > 0 {
			c.Window.WindowHours = val
		}
	}
	if limit := os.Getenv("XSCRAPER_LIMIT"); limit != "" {
		var val int
		fmt.Sscanf(limit, "%d", &val)
		if val > 0 {
			c.Window.Limit = val
		}
	}
	if maxTweets := os.Getenv("XSCRAPER_MAX_TWEETS"); maxTweets != "" {
		var val int
		fmt.Sscanf(maxTweets, "%d", &val)
		if val > 0 {
			c.Window.MaxTweets = val
		}
	}

	if fallback := os.Getenv("XSCRAPER_FALLBACK"); fallback != "" {
		c.Fallback.Enabled = strings.ToLower(fallback) == "true"
	}
	if headless := os.Getenv("XSCRAPER_HEADLESS"); headless != "" {
		c.Fallback.Headless = strings.ToLower(headless) == "true"
	}

	if dataDir := os.Getenv("XSCRAPER_DATA_DIR"); dataDir != "" {
		c.Session.DataDir = dataDir
	}
	if output := os.Getenv("XSCRAPER_OUTPUT"); output != "" {
		c.Export.OutputPath = output
	}
	if archive := os.Getenv("XSCRAPER_ARCHIVE"); archive != "" {
		c.Archive.Enabled = strings.ToLower(archive) == "true"
	}
	if archivePath := os.Getenv("XSCRAPER_ARCHIVE_PATH"); archivePath != "" {
		c.Archive.Path = archivePath
	}
	if metricsAddr := os.Getenv("XSCRAPER_METRICS_ADDR"); metricsAddr != "" {
		c.Metrics.Enabled = true
		c.Metrics.ListenAddr = metricsAddr
	}
	if logLevel := os.Getenv("XSCRAPER_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".xscraper.yaml",
		".xscraper.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "xscraper", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "xscraper", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".xscraper.yaml"),
		filepath.Join(os.Getenv("HOME"), ".xscraper.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.RateLimit.RequestsPerSecond <= 0 {
		errs = append(errs, errors.New("requests per second must be positive"))
	}
	if c.RateLimit.BurstSize <= 0 {
		errs = append(errs, errors.New("burst size must be positive"))
	}
	if c.RateLimit.EscalateThreshold <= 0 {
		errs = append(errs, errors.New("escalate threshold must be positive"))
	}
	if c.RateLimit.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}

	if c.Window.Limit < 0 {
		errs = append(errs, errors.New("limit cannot be negative"))
	}
	if c.Window.MaxTweets < 0 {
		errs = append(errs, errors.New("max tweets cannot be negative"))
	}
	if c.Window.WindowHours < 0 {
		errs = append(errs, errors.New("window hours cannot be negative"))
	}

	if c.Fallback.MaxSessionMinutes <= 0 {
		errs = append(errs, errors.New("fallback session duration must be positive"))
	}
	if c.Fallback.ScrollDelayMinMs < 0 || c.Fallback.ScrollDelayMaxMs < c.Fallback.ScrollDelayMinMs {
		errs = append(errs, errors.New("scroll delay bounds are inverted"))
	}

	if c.Session.MaxLoginAttempts <= 0 {
		errs = append(errs, errors.New("max login attempts must be positive"))
	}

	if c.Export.OutputPath == "" {
		errs = append(errs, errors.New("export output path is required"))
	}
	if c.Archive.Enabled && c.Archive.Path == "" {
		errs = append(errs, errors.New("archive path is required when archive is enabled"))
	}
	if c.Metrics.Enabled && c.Metrics.ListenAddr == "" {
		errs = append(errs, errors.New("metrics listen address is required when metrics are enabled"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if handle, ok := flags["handle"].(string); ok && handle != "" {
		c.Account.Handle = handle
	}
	if username, ok := flags["account"].(string); ok && username != "" {
		c.Account.Username = username
	}
	if since, ok := flags["since"].(string); ok && since != "" {
		c.Window.Since = since
	}
	if until, ok := flags["until"].(string); ok && until != "" {
		c.Window.Until = until
	}
	if hours, ok := flags["window-hours"].(int); ok && hours > 0 {
		c.Window.WindowHours = hours
	}
	if limit, ok := flags["limit"].(int); ok && limit > 0 {
		c.Window.Limit = limit
	}
	if maxTweets, ok := flags["max-tweets"].(int); ok && maxTweets > 0 {
		c.Window.MaxTweets = maxTweets
	}
	if fallback, ok := flags["fallback"].(bool); ok {
		c.Fallback.Enabled = fallback
	}
	if headless, ok := flags["headless"].(bool); ok {
		c.Fallback.Headless = headless
	}
	if output, ok := flags["output"].(string); ok && output != "" {
		c.Export.OutputPath = output
	}
	if metricsAddr, ok := flags["metrics-addr"].(string); ok && metricsAddr != "" {
		c.Metrics.Enabled = true
		c.Metrics.ListenAddr = metricsAddr
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".env"))
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".xscraper.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// TargetHandle returns the target handle with any @ prefix stripped
func (c *Config) TargetHandle() string {
	return strings.TrimPrefix(strings.TrimSpace(c.Account.Handle), "@")
}
