package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
	Browser  BrowserConfig  `yaml:"browser"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type PipelineConfig struct {
	SearchURL         string        `yaml:"search_url"`
	ProductCap        int           `yaml:"product_cap"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	OutputDir         string        `yaml:"output_dir"`
	ProductURLPrefix  string        `yaml:"product_url_prefix"`
	// LedgerFile records per-URL outcomes; empty disables the ledger.
	LedgerFile string `yaml:"ledger_file"`
}

type BrowserConfig struct {
	CDPEndpoint    string        `yaml:"cdp_endpoint"`
	Headless       bool          `yaml:"headless"`
	Timeout        time.Duration `yaml:"timeout"`
	ViewportWidth  int           `yaml:"viewport_width"`
	ViewportHeight int           `yaml:"viewport_height"`
	AcceptLanguage string        `yaml:"accept_language"`
	TimezoneID     string        `yaml:"timezone"`
	Locale         string        `yaml:"locale"`
	UserAgent      string        `yaml:"user_agent"`
	ProxyServer    string        `yaml:"proxy_server"`
}

type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	MaxConns int    `yaml:"max_conns"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Stream   string `yaml:"stream"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	Host            string        `yaml:"host"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			SearchURL:         "https://www.walmart.com/search?q=food",
			ProductCap:        10,
			NavigationTimeout: 2 * time.Minute,
			OutputDir:         "Walmart",
			ProductURLPrefix:  "https://www.walmart.com/ip/",
		},
		Browser: BrowserConfig{
			Headless:       true,
			Timeout:        30 * time.Second,
			ViewportWidth:  1920,
			ViewportHeight: 1080,
			AcceptLanguage: "en-US,en;q=0.9",
			TimezoneID:     "America/Chicago",
			Locale:         "en-US",
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			DBName:   "nutrition_scraper",
			MaxConns: 10,
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Stream: "stream:product_nutrition",
		},
		Server: ServerConfig{
			Port:            "8080",
			Host:            "0.0.0.0",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (if path is not empty), then environment variables. A .env file in the
// working directory is loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: failed to parse %s: %v", ErrInvalidConfig, path, err)
		}
	}

	cfg.applyEnv()

	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Pipeline.SearchURL = getEnvOrDefault("SCRAPER_SEARCH_URL", c.Pipeline.SearchURL)
	c.Pipeline.ProductCap = getIntOrDefault("SCRAPER_PRODUCT_CAP", c.Pipeline.ProductCap)
	c.Pipeline.NavigationTimeout = getDurationOrDefault("SCRAPER_NAVIGATION_TIMEOUT", c.Pipeline.NavigationTimeout)
	c.Pipeline.OutputDir = getEnvOrDefault("SCRAPER_OUTPUT_DIR", c.Pipeline.OutputDir)
	c.Pipeline.ProductURLPrefix = getEnvOrDefault("SCRAPER_PRODUCT_URL_PREFIX", c.Pipeline.ProductURLPrefix)
	c.Pipeline.LedgerFile = getEnvOrDefault("SCRAPER_LEDGER_FILE", c.Pipeline.LedgerFile)

	c.Browser.CDPEndpoint = getEnvOrDefault("BROWSER_CDP_ENDPOINT", c.Browser.CDPEndpoint)
	c.Browser.Headless = getBoolOrDefault("BROWSER_HEADLESS", c.Browser.Headless)
	c.Browser.Timeout = getDurationOrDefault("BROWSER_TIMEOUT", c.Browser.Timeout)
	c.Browser.ViewportWidth = getIntOrDefault("BROWSER_VIEWPORT_WIDTH", c.Browser.ViewportWidth)
	c.Browser.ViewportHeight = getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", c.Browser.ViewportHeight)
	c.Browser.AcceptLanguage = getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", c.Browser.AcceptLanguage)
	c.Browser.TimezoneID = getEnvOrDefault("BROWSER_TIMEZONE", c.Browser.TimezoneID)
	c.Browser.Locale = getEnvOrDefault("BROWSER_LOCALE", c.Browser.Locale)
	c.Browser.UserAgent = getEnvOrDefault("BROWSER_USER_AGENT", c.Browser.UserAgent)
	c.Browser.ProxyServer = getEnvOrDefault("BROWSER_PROXY_SERVER", c.Browser.ProxyServer)

	c.Database.Enabled = getBoolOrDefault("DB_ENABLED", c.Database.Enabled)
	c.Database.Host = getEnvOrDefault("DB_HOST", c.Database.Host)
	c.Database.Port = getIntOrDefault("DB_PORT", c.Database.Port)
	c.Database.User = getEnvOrDefault("DB_USER", c.Database.User)
	c.Database.Password = getEnvOrDefault("DB_PASSWORD", c.Database.Password)
	c.Database.DBName = getEnvOrDefault("DB_NAME", c.Database.DBName)
	c.Database.MaxConns = getIntOrDefault("DB_MAX_CONNS", c.Database.MaxConns)

	c.Redis.Enabled = getBoolOrDefault("REDIS_ENABLED", c.Redis.Enabled)
	c.Redis.Addr = getEnvOrDefault("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getIntOrDefault("REDIS_DB", c.Redis.DB)
	c.Redis.Stream = getEnvOrDefault("REDIS_STREAM", c.Redis.Stream)

	c.Server.Port = getEnvOrDefault("SERVER_PORT", c.Server.Port)
	c.Server.Host = getEnvOrDefault("SERVER_HOST", c.Server.Host)
	c.Server.ReadTimeout = getDurationOrDefault("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getDurationOrDefault("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.ShutdownTimeout = getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.Logging.Level = getEnvOrDefault("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnvOrDefault("LOG_FORMAT", c.Logging.Format)
}

func (c *Config) Validate() error {
	if c.Pipeline.SearchURL == "" {
		return fmt.Errorf("%w: SCRAPER_SEARCH_URL is required", ErrInvalidConfig)
	}

	if _, err := url.ParseRequestURI(c.Pipeline.SearchURL); err != nil {
		return fmt.Errorf("%w: SCRAPER_SEARCH_URL is not a URL: %v", ErrInvalidConfig, err)
	}

	if c.Pipeline.ProductCap < 1 {
		return fmt.Errorf("%w: SCRAPER_PRODUCT_CAP must be at least 1", ErrInvalidConfig)
	}

	if c.Pipeline.NavigationTimeout <= 0 {
		return fmt.Errorf("%w: SCRAPER_NAVIGATION_TIMEOUT must be positive", ErrInvalidConfig)
	}

	if c.Pipeline.OutputDir == "" {
		return fmt.Errorf("%w: SCRAPER_OUTPUT_DIR is required", ErrInvalidConfig)
	}

	if c.Browser.Timeout <= 0 {
		return fmt.Errorf("%w: BROWSER_TIMEOUT must be positive", ErrInvalidConfig)
	}

	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("%w: SERVER_PORT must be between 1 and 65535", ErrInvalidConfig)
	}

	if c.Redis.Enabled && !c.Database.Enabled {
		return fmt.Errorf("%w: REDIS_ENABLED requires DB_ENABLED, events are relayed from the outbox", ErrInvalidConfig)
	}

	return nil
}

// DSN returns the postgres connection string.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.DBName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
