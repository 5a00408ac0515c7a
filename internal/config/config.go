package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Alias1177/Aura/internal/api/coingecko"
	"github.com/Alias1177/Aura/internal/api/openai"
	"github.com/Alias1177/Aura/models"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all application configuration
type Config struct {
	Port      string `env:"PORT" envDefault:"5000"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
	DataDir   string `env:"DATA_DIR" envDefault:"."`

	DB    DBConfig
	Redis RedisConfig

	CoinGeckoBaseURL string         `env:"COINGECKO_BASE_URL"`
	CoinGeckoAPIKey  string         `env:"COINGECKO_API_KEY"`
	Basket           []models.Asset `env:"MARKET_BASKET"`
	QuoteCurrency    string         `env:"QUOTE_CURRENCY" envDefault:"usd"`
	PriceCacheTTL    time.Duration  `env:"PRICE_CACHE_SECONDS" envDefault:"30"`
	PriceRateLimit   int            `env:"PRICE_RATE_LIMIT" envDefault:"10"`
	PriceRateWindow  time.Duration  `env:"PRICE_RATE_WINDOW_SECONDS" envDefault:"60"`
	PriceTimeout     time.Duration  `env:"PRICE_TIMEOUT_SECONDS" envDefault:"10"`

	AIAPIKey         string        `env:"AI_API_KEY"`
	AIBaseURL        string        `env:"AI_BASE_URL"`
	AIModel          string        `env:"AI_MODEL" envDefault:"gemini-1.5-flash"`
	AITimeout        time.Duration `env:"AI_TIMEOUT_SECONDS" envDefault:"60"`
	AIRequestsPerSec int           `env:"AI_REQUESTS_PER_SEC" envDefault:"2"`

	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
}

// DBConfig selects the PostgreSQL store when Host is set
type DBConfig struct {
	Host     string `env:"DB_HOST"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD"`
	Name     string `env:"DB_NAME" envDefault:"aura"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

// Enabled reports whether PostgreSQL is configured
func (c DBConfig) Enabled() bool {
	return c.Host != ""
}

// DSN returns a lib/pq connection string
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// RedisConfig enables the shared snapshot cache when Addr is set
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// Load initializes configuration from environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	var cfg Config

	cfg.Port = getEnvWithDefault("PORT", "5000")
	cfg.LogLevel = getEnvWithDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getEnvWithDefault("LOG_FORMAT", "console")
	cfg.DataDir = getEnvWithDefault("DATA_DIR", ".")

	cfg.DB = DBConfig{
		Host:     os.Getenv("DB_HOST"),
		Port:     getEnvWithDefault("DB_PORT", "5432"),
		User:     getEnvWithDefault("DB_USER", "postgres"),
		Password: os.Getenv("DB_PASSWORD"),
		Name:     getEnvWithDefault("DB_NAME", "aura"),
		SSLMode:  getEnvWithDefault("DB_SSLMODE", "disable"),
	}
	cfg.Redis = RedisConfig{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       getEnvIntWithDefault("REDIS_DB", 0),
	}

	cfg.CoinGeckoBaseURL = getEnvWithDefault("COINGECKO_BASE_URL", coingecko.DefaultBaseURL)
	cfg.CoinGeckoAPIKey = os.Getenv("COINGECKO_API_KEY")
	cfg.QuoteCurrency = strings.ToLower(getEnvWithDefault("QUOTE_CURRENCY", "usd"))
	cfg.PriceCacheTTL = getEnvSecondsWithDefault("PRICE_CACHE_SECONDS", 30)
	cfg.PriceRateLimit = getEnvIntWithDefault("PRICE_RATE_LIMIT", 10)
	cfg.PriceRateWindow = getEnvSecondsWithDefault("PRICE_RATE_WINDOW_SECONDS", 60)
	cfg.PriceTimeout = getEnvSecondsWithDefault("PRICE_TIMEOUT_SECONDS", 10)

	basket, err := ParseBasket(os.Getenv("MARKET_BASKET"))
	if err != nil {
		return nil, err
	}
	cfg.Basket = basket

	cfg.AIAPIKey = firstEnv("AI_API_KEY", "GOOGLE_API_KEY", "OPENAI_API_KEY")
	cfg.AIBaseURL = getEnvWithDefault("AI_BASE_URL", openai.DefaultBaseURL)
	cfg.AIModel = getEnvWithDefault("AI_MODEL", openai.DefaultModel)
	cfg.AITimeout = getEnvSecondsWithDefault("AI_TIMEOUT_SECONDS", 60)
	cfg.AIRequestsPerSec = getEnvIntWithDefault("AI_REQUESTS_PER_SEC", 2)

	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the limiter and cache cannot work with
func (c *Config) Validate() error {
	var errs []error
	if c.PriceCacheTTL <= 0 {
		errs = append(errs, errors.New("PRICE_CACHE_SECONDS must be positive"))
	}
	if c.PriceRateLimit <= 0 {
		errs = append(errs, errors.New("PRICE_RATE_LIMIT must be positive"))
	}
	if c.PriceRateWindow <= 0 {
		errs = append(errs, errors.New("PRICE_RATE_WINDOW_SECONDS must be positive"))
	}
	if c.PriceTimeout <= 0 {
		errs = append(errs, errors.New("PRICE_TIMEOUT_SECONDS must be positive"))
	}
	if len(c.Basket) == 0 {
		errs = append(errs, errors.New("MARKET_BASKET must name at least one asset"))
	}
	if c.Port == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}
	return errors.Join(errs...)
}

// ParseBasket reads "PAIR:coin-id" entries separated by commas. An empty
// value yields the default basket.
func ParseBasket(value string) ([]models.Asset, error) {
	if strings.TrimSpace(value) == "" {
		return append([]models.Asset(nil), models.DefaultBasket...), nil
	}

	seen := make(map[string]bool)
	var basket []models.Asset
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		pair, coinID, ok := strings.Cut(entry, ":")
		pair = strings.ToUpper(strings.TrimSpace(pair))
		coinID = strings.ToLower(strings.TrimSpace(coinID))
		if !ok || pair == "" || coinID == "" {
			return nil, fmt.Errorf("invalid MARKET_BASKET entry %q, want PAIR:coin-id", entry)
		}
		if seen[pair] {
			return nil, fmt.Errorf("duplicate MARKET_BASKET pair %q", pair)
		}
		seen[pair] = true
		basket = append(basket, models.Asset{Pair: pair, CoinID: coinID})
	}
	return basket, nil
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid integer, using default")
	}
	return defaultValue
}

func getEnvSecondsWithDefault(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvIntWithDefault(key, defaultSeconds)) * time.Second
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}
