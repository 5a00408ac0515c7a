package service

import (
	"context"
	"time"

	"github.com/Alias1177/Aura/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PriceProvider serves cached market snapshots
type PriceProvider interface {
	FetchAll(ctx context.Context) map[string]models.PriceQuote
	Quote(ctx context.Context, pair string) (models.PriceQuote, bool)
}

// Completer generates text from a prompt
type Completer interface {
	Enabled() bool
	GenerateCompletion(ctx context.Context, prompt string) (string, error)
}

// Service implements the assistant use cases shared by every front end
type Service struct {
	store  models.Store
	prices PriceProvider
	ai     Completer
	now    func() time.Time
	logger zerolog.Logger
}

// New creates a new Service
func New(store models.Store, prices PriceProvider, ai Completer) *Service {
	return &Service{
		store:  store,
		prices: prices,
		ai:     ai,
		now:    time.Now,
		logger: log.With().Str("component", "service").Logger(),
	}
}

// Prices returns the current market snapshot. It may be stale or empty
// when the upstream is unreachable.
func (s *Service) Prices(ctx context.Context) map[string]models.PriceQuote {
	return s.prices.FetchAll(ctx)
}

func (s *Service) aiEnabled() bool {
	return s.ai != nil && s.ai.Enabled()
}
