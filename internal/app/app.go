package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Alias1177/Aura/internal/api/coingecko"
	"github.com/Alias1177/Aura/internal/api/openai"
	"github.com/Alias1177/Aura/internal/config"
	"github.com/Alias1177/Aura/internal/database"
	"github.com/Alias1177/Aura/internal/marketdata"
	"github.com/Alias1177/Aura/internal/ratelimit"
	"github.com/Alias1177/Aura/internal/service"
	"github.com/Alias1177/Aura/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// App holds the wired dependencies shared by every front end
type App struct {
	Service *service.Service
	Fetcher *marketdata.Fetcher
	AI      *openai.Client

	store models.Store
	redis *redis.Client
}

// SetupLogging configures the global logger
func SetupLogging(logLevel, format string) {
	if format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	// Set log level from config
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Logger.Level(level)
}

// New builds the store, market data pipeline, AI client and service
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}

	var connStr string
	if cfg.DB.Enabled() {
		connStr = cfg.DB.DSN()
	}
	store, err := database.Open(ctx, connStr, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.store = store
	log.Info().Bool("postgres", cfg.DB.Enabled()).Str("data_dir", cfg.DataDir).Msg("Store ready")

	a.connectRedis(ctx, cfg)

	cache, limiter, err := a.newPriceBudget(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	cgClient := coingecko.NewClient(coingecko.ClientOptions{
		BaseURL:        cfg.CoinGeckoBaseURL,
		APIKey:         cfg.CoinGeckoAPIKey,
		RequestTimeout: cfg.PriceTimeout,
	})
	a.Fetcher = marketdata.NewFetcher(cgClient, cache, limiter, cfg.Basket, cfg.QuoteCurrency)

	a.AI = openai.NewClient(openai.ClientOptions{
		APIKey:         cfg.AIAPIKey,
		BaseURL:        cfg.AIBaseURL,
		Model:          cfg.AIModel,
		RequestTimeout: cfg.AITimeout,
		RequestsPerSec: cfg.AIRequestsPerSec,
	})
	if a.AI.Enabled() {
		logAvailableModels(ctx, a.AI)
	} else {
		log.Warn().Msg("AI_API_KEY not set, chat is disabled and analyses use deterministic targets")
	}

	a.Service = service.New(store, a.Fetcher, a.AI)
	return a, nil
}

// Close releases the store and the Redis connection
func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}

// connectRedis leaves a.redis nil when Redis is not configured or does not
// answer, so the process runs on its local cache and limiter instead.
func (a *App) connectRedis(ctx context.Context, cfg *config.Config) {
	if cfg.Redis.Addr == "" {
		return
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unreachable, falling back to in-memory cache and limiter")
		client.Close()
		return
	}
	a.redis = client
}

func (a *App) newPriceBudget(cfg *config.Config) (marketdata.Cache, marketdata.Limiter, error) {
	if a.redis == nil {
		limiter, err := ratelimit.NewWindow(cfg.PriceRateLimit, cfg.PriceRateWindow)
		if err != nil {
			return nil, nil, err
		}
		return marketdata.NewMemoryCache(cfg.PriceCacheTTL), limiter, nil
	}

	limiter, err := ratelimit.NewRedisWindow(a.redis, ratelimit.DefaultRedisKey, cfg.PriceRateLimit, cfg.PriceRateWindow)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("Using Redis market snapshot cache and shared rate limit")
	return marketdata.NewRedisCache(a.redis, cfg.PriceCacheTTL), limiter, nil
}

func logAvailableModels(ctx context.Context, client *openai.Client) {
	listCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	ids, err := client.ListModels(listCtx)
	if err != nil {
		log.Warn().Err(err).Msg("Could not list AI models")
		return
	}
	log.Info().Str("model", client.Model()).Strs("available", ids).Msg("AI client ready")
}
