package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/trogers1052/signal-trader/internal/indicators"
)

// Market data sources
const (
	MarketDataDatabase  = "database"
	MarketDataSimulated = "simulated"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Engine   EngineConfig   `yaml:"engine"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string `yaml:"port"`
	Host string `yaml:"host"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Brokers     []string `yaml:"brokers"`
	EventsTopic string   `yaml:"events_topic"`
	MarketTopic string   `yaml:"market_topic"`
	GroupID     string   `yaml:"group_id"`
}

// RedisConfig holds the quote cache and pass lock connection
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	QuoteTTL time.Duration `yaml:"quote_ttl"`
}

// EngineConfig bounds the scan, risk-check and trailing-stop passes
type EngineConfig struct {
	Workers         int           `yaml:"workers"`
	UnitTimeout     time.Duration `yaml:"unit_timeout"`
	AccountValue    string        `yaml:"account_value"`
	Timezone        string        `yaml:"timezone"`
	MarketData      string        `yaml:"market_data"`
	SimulatedSeed   int64         `yaml:"simulated_seed"`
	Lookback        int           `yaml:"lookback"`
	ScanInterval    time.Duration `yaml:"scan_interval"`
	MonitorInterval time.Duration `yaml:"monitor_interval"`
}

// LogConfig selects the zap encoder and level
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Host: "0.0.0.0",
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     "5432",
			User:     "postgres",
			Password: "postgres",
			DBName:   "signaltrader",
			SSLMode:  "disable",
		},
		Kafka: KafkaConfig{
			Brokers:     []string{"localhost:9092"},
			EventsTopic: "trade-events",
			MarketTopic: "market-events",
			GroupID:     "signal-trader",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			QuoteTTL: time.Minute,
		},
		Engine: EngineConfig{
			Workers:         4,
			UnitTimeout:     30 * time.Second,
			AccountValue:    "100000",
			Timezone:        "America/New_York",
			MarketData:      MarketDataDatabase,
			SimulatedSeed:   1,
			Lookback:        100,
			ScanInterval:    time.Minute,
			MonitorInterval: 30 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file named by CONFIG_FILE, if any, over the defaults
// and then applies environment variables, which win over the file. A .env in
// the working directory fills variables that are not already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Server.Port = getEnv("SERVER_PORT", c.Server.Port)
	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnv("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.DBName = getEnv("DB_NAME", c.Database.DBName)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		c.Kafka.Brokers = splitList(brokers)
	}
	c.Kafka.EventsTopic = getEnv("KAFKA_EVENTS_TOPIC", c.Kafka.EventsTopic)
	c.Kafka.MarketTopic = getEnv("KAFKA_MARKET_TOPIC", c.Kafka.MarketTopic)
	c.Kafka.GroupID = getEnv("KAFKA_GROUP_ID", c.Kafka.GroupID)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)

	c.Engine.AccountValue = getEnv("ACCOUNT_VALUE", c.Engine.AccountValue)
	c.Engine.Timezone = getEnv("TRADING_TIMEZONE", c.Engine.Timezone)
	c.Engine.MarketData = getEnv("MARKET_DATA", c.Engine.MarketData)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	collect(getEnvBool("KAFKA_ENABLED", &c.Kafka.Enabled))
	collect(getEnvBool("REDIS_ENABLED", &c.Redis.Enabled))
	collect(getEnvInt("REDIS_DB", &c.Redis.DB))
	collect(getEnvDuration("REDIS_QUOTE_TTL", &c.Redis.QuoteTTL))
	collect(getEnvInt("WORKERS", &c.Engine.Workers))
	collect(getEnvDuration("UNIT_TIMEOUT", &c.Engine.UnitTimeout))
	collect(getEnvInt64("SIMULATED_SEED", &c.Engine.SimulatedSeed))
	collect(getEnvInt("LOOKBACK", &c.Engine.Lookback))
	collect(getEnvDuration("SCAN_INTERVAL", &c.Engine.ScanInterval))
	collect(getEnvDuration("MONITOR_INTERVAL", &c.Engine.MonitorInterval))
	collect(getEnvBool("LOG_DEVELOPMENT", &c.Log.Development))
	return errors.Join(errs...)
}

// Validate reports every fatal configuration error
func (c *Config) Validate() error {
	var errs []error
	if c.Engine.Workers < 1 {
		errs = append(errs, errors.New("engine workers must be at least 1"))
	}
	if c.Engine.UnitTimeout <= 0 {
		errs = append(errs, errors.New("engine unit timeout must be positive"))
	}
	if c.Engine.Lookback < indicators.DefaultBBPeriod {
		errs = append(errs, fmt.Errorf("engine lookback must be at least %d", indicators.DefaultBBPeriod))
	}
	if v, err := c.Engine.Account(); err != nil {
		errs = append(errs, err)
	} else if !v.IsPositive() {
		errs = append(errs, errors.New("account value must be positive"))
	}
	if _, err := c.Engine.Location(); err != nil {
		errs = append(errs, err)
	}
	switch c.Engine.MarketData {
	case MarketDataDatabase, MarketDataSimulated:
	default:
		errs = append(errs, fmt.Errorf("unknown market data source %q", c.Engine.MarketData))
	}
	if c.Engine.ScanInterval <= 0 || c.Engine.MonitorInterval <= 0 {
		errs = append(errs, errors.New("scheduler intervals must be positive"))
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.EventsTopic == "" || c.Kafka.MarketTopic == "") {
		errs = append(errs, errors.New("kafka requires brokers and both topics"))
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis requires an address"))
	}
	return errors.Join(errs...)
}

// Account parses the configured account value
func (e EngineConfig) Account() (decimal.Decimal, error) {
	v, err := decimal.NewFromString(e.AccountValue)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid account value %q: %w", e.AccountValue, err)
	}
	return v, nil
}

// Location loads the trading calendar timezone
func (e EngineConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", e.Timezone, err)
	}
	return loc, nil
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

// Address returns the HTTP listen address
func (s *ServerConfig) Address() string {
	return s.Host + ":" + s.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, dst *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = b
	return nil
}

func getEnvInt(key string, dst *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func getEnvInt64(key string, dst *int64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func getEnvDuration(key string, dst *time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
