package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Scheduler SchedulerConfig
	Ebay      EbayConfig
	Sync      SyncConfig
	Media     MediaConfig
	Webhook   WebhookConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	TrustedProxies []string
}

// SchedulerConfig holds the periodic reconciliation schedule
type SchedulerConfig struct {
	Enabled       bool
	CycleInterval time.Duration // time between full reconciliation cycles
	OrderInterval time.Duration // time between order import/status cycles
	CycleTimeout  time.Duration // hard deadline for one cycle
}

// EbayConfig holds marketplace API settings
type EbayConfig struct {
	BaseURL           string
	TokenURL          string
	ClientID          string
	ClientSecret      string
	RefreshToken      string
	MerchantLocation  string
	FulfillmentPolicy string
	PaymentPolicy     string
	ReturnPolicy      string
	Timeout           time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
}

// SyncConfig holds reconciliation thresholds and windows
type SyncConfig struct {
	MaxListedQuantity  int
	MinorUnitThreshold float64
	RepriceThreshold   float64
	CandidateLookback  time.Duration
	ShipmentFreshness  time.Duration
	CancellationWindow time.Duration
	BatchSize          int
	OrderLookback      time.Duration
	Currency           string
}

// MediaConfig holds image discovery settings
type MediaConfig struct {
	BaseURL  string        // public image CDN base, probed per item
	CacheTTL time.Duration // how long discovered image URLs stay cached
	Timeout  time.Duration
}

// WebhookConfig holds inbound webhook settings
type WebhookConfig struct {
	Secret string // shared secret checked on every webhook request
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with SCR_ prefix (e.g., SCR_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	// Set config file settings
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Enable environment variable override
	v.SetEnvPrefix("SCR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Build config struct
	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
		Scheduler: SchedulerConfig{
			Enabled:       v.GetBool("scheduler.enabled"),
			CycleInterval: v.GetDuration("scheduler.cycle_interval"),
			OrderInterval: v.GetDuration("scheduler.order_interval"),
			CycleTimeout:  v.GetDuration("scheduler.cycle_timeout"),
		},
		Ebay: EbayConfig{
			BaseURL:           v.GetString("ebay.base_url"),
			TokenURL:          v.GetString("ebay.token_url"),
			ClientID:          v.GetString("ebay.client_id"),
			ClientSecret:      v.GetString("ebay.client_secret"),
			RefreshToken:      v.GetString("ebay.refresh_token"),
			MerchantLocation:  v.GetString("ebay.merchant_location"),
			FulfillmentPolicy: v.GetString("ebay.fulfillment_policy"),
			PaymentPolicy:     v.GetString("ebay.payment_policy"),
			ReturnPolicy:      v.GetString("ebay.return_policy"),
			Timeout:           v.GetDuration("ebay.timeout"),
			MaxRetries:        v.GetInt("ebay.max_retries"),
			RetryBackoff:      v.GetDuration("ebay.retry_backoff"),
		},
		Sync: SyncConfig{
			MaxListedQuantity:  v.GetInt("sync.max_listed_quantity"),
			MinorUnitThreshold: v.GetFloat64("sync.minor_unit_threshold"),
			RepriceThreshold:   v.GetFloat64("sync.reprice_threshold"),
			CandidateLookback:  v.GetDuration("sync.candidate_lookback"),
			ShipmentFreshness:  v.GetDuration("sync.shipment_freshness"),
			CancellationWindow: v.GetDuration("sync.cancellation_window"),
			BatchSize:          v.GetInt("sync.batch_size"),
			OrderLookback:      v.GetDuration("sync.order_lookback"),
			Currency:           v.GetString("sync.currency"),
		},
		Media: MediaConfig{
			BaseURL:  v.GetString("media.base_url"),
			CacheTTL: v.GetDuration("media.cache_ttl"),
			Timeout:  v.GetDuration("media.timeout"),
		},
		Webhook: WebhookConfig{
			Secret: v.GetString("webhook.secret"),
		},
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "scr-ebay-sync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "scr_sync"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.Scheduler.CycleInterval == 0 {
		cfg.Scheduler.CycleInterval = 30 * time.Minute
	}
	if cfg.Scheduler.OrderInterval == 0 {
		cfg.Scheduler.OrderInterval = 10 * time.Minute
	}
	if cfg.Scheduler.CycleTimeout == 0 {
		cfg.Scheduler.CycleTimeout = 25 * time.Minute
	}
	if cfg.Ebay.BaseURL == "" {
		cfg.Ebay.BaseURL = "https://api.ebay.com"
	}
	if cfg.Ebay.TokenURL == "" {
		cfg.Ebay.TokenURL = "https://api.ebay.com/identity/v1/oauth2/token"
	}
	if cfg.Ebay.Timeout == 0 {
		cfg.Ebay.Timeout = 30 * time.Second
	}
	if cfg.Ebay.MaxRetries == 0 {
		cfg.Ebay.MaxRetries = 3
	}
	if cfg.Ebay.RetryBackoff == 0 {
		cfg.Ebay.RetryBackoff = 2 * time.Second
	}
	if cfg.Sync.MaxListedQuantity == 0 {
		cfg.Sync.MaxListedQuantity = 3
	}
	if cfg.Sync.MinorUnitThreshold == 0 {
		cfg.Sync.MinorUnitThreshold = 0.01
	}
	if cfg.Sync.RepriceThreshold == 0 {
		cfg.Sync.RepriceThreshold = 0.50
	}
	if cfg.Sync.CandidateLookback == 0 {
		cfg.Sync.CandidateLookback = 365 * 24 * time.Hour
	}
	if cfg.Sync.ShipmentFreshness == 0 {
		cfg.Sync.ShipmentFreshness = 90 * 24 * time.Hour
	}
	if cfg.Sync.CancellationWindow == 0 {
		cfg.Sync.CancellationWindow = 30 * 24 * time.Hour
	}
	if cfg.Sync.BatchSize == 0 {
		cfg.Sync.BatchSize = 50
	}
	if cfg.Sync.OrderLookback == 0 {
		cfg.Sync.OrderLookback = 7 * 24 * time.Hour
	}
	if cfg.Sync.Currency == "" {
		cfg.Sync.Currency = "EUR"
	}
	if cfg.Media.CacheTTL == 0 {
		cfg.Media.CacheTTL = 24 * time.Hour
	}
	if cfg.Media.Timeout == 0 {
		cfg.Media.Timeout = 10 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	// Validate connection pool settings
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Sync.MaxListedQuantity < 1 {
		return fmt.Errorf("sync.max_listed_quantity must be at least 1")
	}
	if c.Sync.BatchSize < 1 {
		return fmt.Errorf("sync.batch_size must be at least 1")
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Ebay.ClientID == "" || c.Ebay.ClientSecret == "" || c.Ebay.RefreshToken == "" {
			return fmt.Errorf("ebay.client_id, ebay.client_secret and ebay.refresh_token are required in production")
		}
		if c.Webhook.Secret == "" {
			return fmt.Errorf("webhook.secret is required in production")
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
