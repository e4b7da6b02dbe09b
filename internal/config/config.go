package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/irfndi/celebrum-catalog/internal/models"
	"github.com/irfndi/celebrum-catalog/internal/utils"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Environment    string               `mapstructure:"environment"`
	LogLevel       string               `mapstructure:"log_level"`
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	CCXT           CCXTConfig           `mapstructure:"ccxt"`
	CoinGecko      CoinGeckoConfig      `mapstructure:"coingecko"`
	Exchanges      []string             `mapstructure:"exchanges"`
	Cache          CacheConfig          `mapstructure:"cache"`
	Aggregator     AggregatorConfig     `mapstructure:"aggregator"`
	Kline          KlineConfig          `mapstructure:"kline"`
	Scheduler      SchedulerConfig      `mapstructure:"scheduler"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Telemetry      TelemetryConfig      `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	DatabaseURL     string        `mapstructure:"database_url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CCXTConfig struct {
	ServiceURL         string  `mapstructure:"service_url"`
	Timeout            int     `mapstructure:"timeout"`
	RateLimitPerSecond float64 `mapstructure:"rate_limit_per_second"`
}

type CoinGeckoConfig struct {
	BaseURL            string  `mapstructure:"base_url"`
	APIKey             string  `mapstructure:"api_key" json:"-" yaml:"-"`
	Timeout            int     `mapstructure:"timeout"`
	VsCurrency         string  `mapstructure:"vs_currency"`
	RateLimitPerSecond float64 `mapstructure:"rate_limit_per_second"`
	MaxTickerPages     int     `mapstructure:"max_ticker_pages"`
}

type CacheConfig struct {
	Backend      string        `mapstructure:"backend"`
	SpotCoinsTTL time.Duration `mapstructure:"spot_coins_ttl"`
}

type AggregatorConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type KlineConfig struct {
	AttemptTimeout   time.Duration `mapstructure:"attempt_timeout"`
	BatchConcurrency int           `mapstructure:"batch_concurrency"`
	DefaultInterval  string        `mapstructure:"default_interval"`
	DefaultLimit     int           `mapstructure:"default_limit"`
}

type SchedulerConfig struct {
	Enabled              bool          `mapstructure:"enabled"`
	ReconcileInterval    time.Duration `mapstructure:"reconcile_interval"`
	MarketDataInterval   time.Duration `mapstructure:"market_data_interval"`
	PriceHistoryInterval time.Duration `mapstructure:"price_history_interval"`
}

type CircuitBreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	SuccessThreshold int           `mapstructure:"success_threshold"`
	OpenTimeout      time.Duration `mapstructure:"open_timeout"`
}

type TelemetryConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	Exporter       string  `mapstructure:"exporter"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	ServiceVersion string  `mapstructure:"service_version"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
}

const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

func Load() (*Config, error) {
	// A missing .env file is fine; anything else is worth reporting.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.BindEnv("coingecko.api_key", "COINGECKO_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind COINGECKO_API_KEY environment variable: %w", err)
	}

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Environment = strings.ToLower(config.Environment)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the values that the services cannot run without.
func (c *Config) Validate() error {
	if _, err := c.ParsedExchanges(); err != nil {
		return err
	}

	switch c.Cache.Backend {
	case CacheBackendMemory, CacheBackendRedis:
	default:
		return utils.NewBadRequestError("unknown cache backend %q", c.Cache.Backend)
	}

	if c.Cache.SpotCoinsTTL <= 0 {
		return utils.NewBadRequestError("cache.spot_coins_ttl must be positive")
	}

	if c.Kline.BatchConcurrency < 1 {
		return utils.NewBadRequestError("kline.batch_concurrency must be at least 1, got %d", c.Kline.BatchConcurrency)
	}

	if !models.KlineInterval(c.Kline.DefaultInterval).IsValid() {
		return utils.NewBadRequestError("unsupported kline.default_interval %q", c.Kline.DefaultInterval)
	}

	return nil
}

// ParsedExchanges returns the configured exchanges in priority order.
func (c *Config) ParsedExchanges() ([]models.Exchange, error) {
	if len(c.Exchanges) == 0 {
		return nil, utils.NewBadRequestError("at least one exchange must be configured")
	}

	seen := make(map[models.Exchange]bool, len(c.Exchanges))
	exchanges := make([]models.Exchange, 0, len(c.Exchanges))
	for _, raw := range c.Exchanges {
		exchange, err := models.ParseExchange(raw)
		if err != nil {
			return nil, utils.NewBadRequestError("invalid exchanges entry: %v", err)
		}
		if seen[exchange] {
			continue
		}
		seen[exchange] = true
		exchanges = append(exchanges, exchange)
	}
	return exchanges, nil
}

// GetServiceURL returns the CCXT sidecar URL.
func (c *CCXTConfig) GetServiceURL() string {
	return c.ServiceURL
}

// GetTimeout returns the CCXT request timeout in seconds.
func (c *CCXTConfig) GetTimeout() int {
	return c.Timeout
}

func setDefaults() {
	// Environment
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Set database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "celebrum_catalog")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.database_url", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.conn_max_lifetime", "300s")
	viper.SetDefault("database.conn_max_idle_time", "60s")

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// CCXT
	viper.SetDefault("ccxt.service_url", "http://localhost:3001")
	viper.SetDefault("ccxt.timeout", 30)
	viper.SetDefault("ccxt.rate_limit_per_second", 10.0)

	// CoinGecko
	viper.SetDefault("coingecko.base_url", "https://api.coingecko.com/api/v3")
	viper.SetDefault("coingecko.api_key", "")
	viper.SetDefault("coingecko.timeout", 30)
	viper.SetDefault("coingecko.vs_currency", "usd")
	viper.SetDefault("coingecko.rate_limit_per_second", 0.5)
	viper.SetDefault("coingecko.max_ticker_pages", 10)

	// Exchanges, in fallback priority order
	viper.SetDefault("exchanges", []string{"binance", "bybit", "okx", "kucoin", "coinbase", "kraken"})

	// Cache
	viper.SetDefault("cache.backend", CacheBackendRedis)
	viper.SetDefault("cache.spot_coins_ttl", "10m")

	// Aggregator
	viper.SetDefault("aggregator.timeout", "45s")

	// Klines
	viper.SetDefault("kline.attempt_timeout", "10s")
	viper.SetDefault("kline.batch_concurrency", 8)
	viper.SetDefault("kline.default_interval", "1d")
	viper.SetDefault("kline.default_limit", 365)

	// Scheduler
	viper.SetDefault("scheduler.enabled", true)
	viper.SetDefault("scheduler.reconcile_interval", "6h")
	viper.SetDefault("scheduler.market_data_interval", "5m")
	viper.SetDefault("scheduler.price_history_interval", "1h")

	// Circuit breaker
	viper.SetDefault("circuit_breaker.failure_threshold", 5)
	viper.SetDefault("circuit_breaker.success_threshold", 2)
	viper.SetDefault("circuit_breaker.open_timeout", "60s")

	// Telemetry
	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.exporter", "stdout")
	viper.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
	viper.SetDefault("telemetry.service_name", "celebrum-catalog")
	viper.SetDefault("telemetry.service_version", "1.0.0")
	viper.SetDefault("telemetry.sample_ratio", 1.0)
}
