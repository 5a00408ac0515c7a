package marketdata

import (
	"context"
	"maps"
	"time"

	"github.com/Alias1177/Aura/internal/api/coingecko"
	"github.com/Alias1177/Aura/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PriceSource is the upstream market-data API
type PriceSource interface {
	SimplePrice(ctx context.Context, ids []string, vsCurrency string) (map[string]coingecko.Price, error)
}

// Limiter delays outbound calls to respect the upstream quota
type Limiter interface {
	Wait(ctx context.Context) error
}

// Fetcher serves basket quotes through the cache and the rate limiter
type Fetcher struct {
	source     PriceSource
	cache      Cache
	limiter    Limiter
	basket     []models.Asset
	vsCurrency string
	now        func() time.Time
	logger     zerolog.Logger
}

// NewFetcher creates a Fetcher for the given quote basket
func NewFetcher(source PriceSource, cache Cache, limiter Limiter, basket []models.Asset, vsCurrency string) *Fetcher {
	if vsCurrency == "" {
		vsCurrency = "usd"
	}
	return &Fetcher{
		source:     source,
		cache:      cache,
		limiter:    limiter,
		basket:     basket,
		vsCurrency: vsCurrency,
		now:        time.Now,
		logger:     log.With().Str("component", "market_fetcher").Logger(),
	}
}

// Basket returns the configured assets
func (f *Fetcher) Basket() []models.Asset {
	return f.basket
}

// FetchAll returns one quote per basket pair. It never fails: upstream
// errors fall back to the last snapshot (even an expired one) or to an
// empty map when nothing has been fetched yet.
func (f *Fetcher) FetchAll(ctx context.Context) map[string]models.PriceQuote {
	if snap, ok := f.cache.Get(ctx, f.now()); ok {
		f.logger.Debug().Time("captured_at", snap.CapturedAt).Msg("Serving market data from cache")
		return maps.Clone(snap.Quotes)
	}

	quotes, err := f.fetch(ctx)
	if err != nil {
		f.logger.Error().Err(err).Msg("Error fetching market prices")
		if snap, ok := f.cache.Latest(ctx); ok {
			f.logger.Warn().Time("captured_at", snap.CapturedAt).Msg("Serving stale market data")
			return maps.Clone(snap.Quotes)
		}
		return map[string]models.PriceQuote{}
	}

	snap := &Snapshot{Quotes: quotes, CapturedAt: f.now()}
	if err := f.cache.Put(ctx, snap); err != nil {
		f.logger.Warn().Err(err).Msg("Error caching market data")
	}
	return maps.Clone(quotes)
}

// Quote returns the quote of a single pair, if the basket tracks it
func (f *Fetcher) Quote(ctx context.Context, pair string) (models.PriceQuote, bool) {
	q, ok := f.FetchAll(ctx)[pair]
	return q, ok
}

func (f *Fetcher) fetch(ctx context.Context) (map[string]models.PriceQuote, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	f.logger.Info().Int("assets", len(f.basket)).Msg("Fetching new market data")

	ids := make([]string, 0, len(f.basket))
	for _, a := range f.basket {
		ids = append(ids, a.CoinID)
	}

	prices, err := f.source.SimplePrice(ctx, ids, f.vsCurrency)
	if err != nil {
		return nil, err
	}

	fetchedAt := f.now()
	quotes := make(map[string]models.PriceQuote, len(f.basket))
	for _, a := range f.basket {
		q := models.PriceQuote{Pair: a.Pair, FetchedAt: fetchedAt}
		if p, ok := prices[a.CoinID]; ok && p.Price != nil {
			q.Price = *p.Price
			if p.Change24h != nil {
				q.PercentChange = *p.Change24h
				q.Change = q.Price * q.PercentChange / 100
			}
		}
		quotes[a.Pair] = q
	}
	return quotes, nil
}
