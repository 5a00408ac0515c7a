package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/Alias1177/Aura/internal/analysis"
	"github.com/Alias1177/Aura/models"
)

const (
	defaultUserName = "Trader"
	defaultAIName   = "Aura"

	// maxQuotePrice keeps derived targets finite
	maxQuotePrice = 1e15
)

// ChatInput is a chat message with optional persona names
type ChatInput struct {
	Message  string `json:"message"`
	UserName string `json:"userName"`
	AIName   string `json:"aiName"`
}

// AnalysisResult is returned to the caller after an analysis
type AnalysisResult struct {
	ID           int64                  `json:"id"`
	Source       string                 `json:"source"`
	AnalysisText string                 `json:"ai_analysis_text"`
	Payload      models.AnalysisPayload `json:"analysis_data"`
}

// Chat answers a message with live prices and the trade summary as context
func (s *Service) Chat(ctx context.Context, in ChatInput) (string, error) {
	if strings.TrimSpace(in.Message) == "" {
		return "", &ValidationError{Fields: []string{"message"}, Reason: "No message provided"}
	}
	if !s.aiEnabled() {
		return "", ErrAIUnavailable
	}

	chat := analysis.ChatContext{
		UserName: defaultIfEmpty(in.UserName, defaultUserName),
		AIName:   defaultIfEmpty(in.AIName, defaultAIName),
		Message:  in.Message,
		Quotes:   s.prices.FetchAll(ctx),
	}

	trades, err := s.store.ListTrades(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Trade history unavailable for chat context")
	} else if len(trades) > 0 {
		summary := Summarize(trades)
		chat.Summary = &summary
	}

	reply, err := s.ai.GenerateCompletion(ctx, analysis.ChatPrompt(chat))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAIUnavailable, err)
	}
	return reply, nil
}

// Analyze produces a trade analysis and records it. The model is used in
// "ai" mode; "deterministic" mode, a disabled model or a model failure
// fall back to the fixed target tables.
func (s *Service) Analyze(ctx context.Context, req models.AnalysisRequest) (AnalysisResult, error) {
	if err := validateAnalysis(&req); err != nil {
		return AnalysisResult{}, err
	}

	price := req.CurrentPrice
	if price <= 0 {
		if q, ok := s.prices.Quote(ctx, req.Pair); ok && q.Price > 0 {
			price = q.Price
		}
	}

	result, ok := s.analyzeWithAI(ctx, req, price)
	if !ok {
		payload := analysis.Targets(req.TradeType, price, req.Leverage)
		result = AnalysisResult{
			Source:       models.AnalysisModeDeterministic,
			AnalysisText: analysis.DeterministicText(req, payload),
			Payload:      payload,
		}
	}

	record := models.AnalysisRecord{
		Timestamp:    s.now().UTC(),
		Pair:         req.Pair,
		Timeframes:   req.Timeframes,
		Indicators:   req.Indicators,
		TradeType:    req.TradeType,
		BalanceRange: req.BalanceRange,
		Leverage:     req.Leverage,
		Source:       result.Source,
		AnalysisText: result.AnalysisText,
		Payload:      result.Payload,
	}
	if err := s.store.SaveAnalysis(ctx, &record); err != nil {
		return AnalysisResult{}, fmt.Errorf("save analysis: %w", err)
	}
	result.ID = record.ID

	s.logger.Info().
		Int64("id", record.ID).
		Str("pair", req.Pair).
		Str("source", result.Source).
		Str("signal", string(result.Payload.Signal)).
		Msg("Analysis generated")
	return result, nil
}

// ListAnalyses returns the recorded analyses
func (s *Service) ListAnalyses(ctx context.Context) ([]models.AnalysisRecord, error) {
	records, err := s.store.ListAnalyses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	return records, nil
}

func (s *Service) analyzeWithAI(ctx context.Context, req models.AnalysisRequest, price float64) (AnalysisResult, bool) {
	if req.Mode == models.AnalysisModeDeterministic || !s.aiEnabled() {
		return AnalysisResult{}, false
	}

	prompt := analysis.AnalysisPrompt(req, price, s.prices.FetchAll(ctx))
	raw, err := s.ai.GenerateCompletion(ctx, prompt)
	if err != nil {
		s.logger.Warn().Err(err).Str("pair", req.Pair).Msg("AI analysis failed, using deterministic targets")
		return AnalysisResult{}, false
	}

	parsed := analysis.Parse(raw, price)
	if parsed.State != analysis.StateBlockValid {
		s.logger.Warn().Str("state", parsed.State.String()).Str("pair", req.Pair).Msg("AI response had no usable data block")
	}

	payload := parsed.Payload
	if payload.Leverage == "" {
		payload.Leverage = req.Leverage
	}
	return AnalysisResult{
		Source:       models.AnalysisModeAI,
		AnalysisText: parsed.Explanation,
		Payload:      payload,
	}, true
}

func validateAnalysis(req *models.AnalysisRequest) error {
	req.Pair = strings.TrimSpace(req.Pair)
	req.TradeType = strings.ToUpper(strings.TrimSpace(req.TradeType))
	req.Mode = strings.ToLower(strings.TrimSpace(req.Mode))

	var missing []string
	if req.Pair == "" {
		missing = append(missing, "pair")
	}
	if len(req.Timeframes) == 0 {
		missing = append(missing, "timeframes")
	}
	if len(req.Indicators) == 0 {
		missing = append(missing, "indicators")
	}
	if req.TradeType == "" {
		missing = append(missing, "trade_type")
	}
	if strings.TrimSpace(req.BalanceRange) == "" {
		missing = append(missing, "balance_range")
	}
	if strings.TrimSpace(req.Leverage) == "" {
		missing = append(missing, "leverage")
	}
	if len(missing) > 0 {
		return &ValidationError{Fields: missing, Reason: "Missing analysis parameters"}
	}

	switch req.Mode {
	case "", models.AnalysisModeAI, models.AnalysisModeDeterministic:
	default:
		return &ValidationError{Fields: []string{"mode"}, Reason: "mode must be ai or deterministic"}
	}
	if req.CurrentPrice < 0 {
		return &ValidationError{Fields: []string{"current_price_for_pair"}, Reason: "Price must not be negative"}
	}
	if math.IsNaN(req.CurrentPrice) || req.CurrentPrice > maxQuotePrice {
		return &ValidationError{Fields: []string{"current_price_for_pair"}, Reason: "Price is out of range"}
	}
	return nil
}

func defaultIfEmpty(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}
