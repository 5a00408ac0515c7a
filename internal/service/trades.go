package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/Alias1177/Aura/models"
	"github.com/shopspring/decimal"
)

// TradeInput is a trade as submitted by a client. Pointers distinguish
// missing fields from zero values.
type TradeInput struct {
	Pair       *string  `json:"pair"`
	TradeType  *string  `json:"trade_type"`
	EntryPrice *float64 `json:"entry_price"`
	ExitPrice  *float64 `json:"exit_price"`
	ProfitLoss *float64 `json:"profit_loss"`
}

func (in TradeInput) validate() error {
	var missing []string
	if in.Pair == nil || strings.TrimSpace(*in.Pair) == "" {
		missing = append(missing, "pair")
	}
	if in.TradeType == nil || *in.TradeType == "" {
		missing = append(missing, "trade_type")
	}
	if in.EntryPrice == nil {
		missing = append(missing, "entry_price")
	}
	if in.ExitPrice == nil {
		missing = append(missing, "exit_price")
	}
	if in.ProfitLoss == nil {
		missing = append(missing, "profit_loss")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing, Reason: "Missing field"}
	}

	if !models.TradeType(strings.ToUpper(*in.TradeType)).Valid() {
		return &ValidationError{Fields: []string{"trade_type"}, Reason: "trade_type must be BUY or SELL"}
	}

	var invalid []string
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"entry_price", *in.EntryPrice},
		{"exit_price", *in.ExitPrice},
		{"profit_loss", *in.ProfitLoss},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			invalid = append(invalid, f.name)
		}
	}
	if len(invalid) > 0 {
		return &ValidationError{Fields: invalid, Reason: "Invalid number"}
	}
	return nil
}

// LogTrade validates and persists a trade
func (s *Service) LogTrade(ctx context.Context, in TradeInput) (models.TradeRecord, error) {
	if err := in.validate(); err != nil {
		return models.TradeRecord{}, err
	}

	trade := models.TradeRecord{
		Pair:       strings.TrimSpace(*in.Pair),
		TradeType:  models.TradeType(strings.ToUpper(*in.TradeType)),
		EntryPrice: *in.EntryPrice,
		ExitPrice:  *in.ExitPrice,
		ProfitLoss: *in.ProfitLoss,
		Timestamp:  s.now().UTC(),
	}
	if err := s.store.SaveTrade(ctx, &trade); err != nil {
		return models.TradeRecord{}, fmt.Errorf("save trade: %w", err)
	}

	s.logger.Info().
		Int64("id", trade.ID).
		Str("pair", trade.Pair).
		Str("type", string(trade.TradeType)).
		Float64("profit_loss", trade.ProfitLoss).
		Msg("Trade logged")
	return trade, nil
}

// ListTrades returns the trade log
func (s *Service) ListTrades(ctx context.Context) ([]models.TradeRecord, error) {
	trades, err := s.store.ListTrades(ctx)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	return trades, nil
}

// Summary aggregates the trade log
func (s *Service) Summary(ctx context.Context) (models.TradeSummary, error) {
	trades, err := s.ListTrades(ctx)
	if err != nil {
		return models.TradeSummary{}, err
	}
	return Summarize(trades), nil
}

// Summarize computes totals, win rate and the average P/L per trade.
// An empty log yields zeros.
func Summarize(trades []models.TradeRecord) models.TradeSummary {
	if len(trades) == 0 {
		return models.TradeSummary{}
	}

	total := decimal.Zero
	wins := 0
	for _, t := range trades {
		total = total.Add(decimal.NewFromFloat(t.ProfitLoss))
		if t.ProfitLoss > 0 {
			wins++
		}
	}

	count := decimal.NewFromInt(int64(len(trades)))
	winRate := decimal.NewFromInt(int64(wins)).Mul(decimal.NewFromInt(100)).Div(count)

	return models.TradeSummary{
		TotalProfitLoss:       total.InexactFloat64(),
		TotalTrades:           len(trades),
		WinRate:               winRate.InexactFloat64(),
		AverageProfitPerTrade: total.Div(count).InexactFloat64(),
	}
}
