package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/Alias1177/Aura/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu       sync.Mutex
	trades   []models.TradeRecord
	analyses []models.AnalysisRecord
	err      error
}

func (m *memStore) SaveTrade(_ context.Context, t *models.TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	t.ID = int64(len(m.trades) + 1)
	m.trades = append(m.trades, *t)
	return nil
}

func (m *memStore) ListTrades(context.Context) ([]models.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]models.TradeRecord{}, m.trades...), nil
}

func (m *memStore) SaveAnalysis(_ context.Context, r *models.AnalysisRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	r.ID = int64(len(m.analyses) + 1)
	m.analyses = append(m.analyses, *r)
	return nil
}

func (m *memStore) ListAnalyses(context.Context) ([]models.AnalysisRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return append([]models.AnalysisRecord{}, m.analyses...), nil
}

func (m *memStore) Close() error { return nil }

type fakePrices map[string]models.PriceQuote

func (f fakePrices) FetchAll(context.Context) map[string]models.PriceQuote {
	out := make(map[string]models.PriceQuote, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

func (f fakePrices) Quote(_ context.Context, pair string) (models.PriceQuote, bool) {
	q, ok := f[pair]
	return q, ok
}

type fakeAI struct {
	enabled bool
	reply   string
	err     error
	prompts []string
}

func (f *fakeAI) Enabled() bool { return f.enabled }

func (f *fakeAI) GenerateCompletion(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

var fixedNow = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

func newTestService(store *memStore, prices fakePrices, ai *fakeAI) *Service {
	svc := New(store, prices, ai)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func ptr[T any](v T) *T { return &v }

func validTrade() TradeInput {
	return TradeInput{
		Pair:       ptr("BTC/USD"),
		TradeType:  ptr("buy"),
		EntryPrice: ptr(60000.0),
		ExitPrice:  ptr(61000.0),
		ProfitLoss: ptr(1000.0),
	}
}

func TestLogTrade(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store, nil, nil)

	trade, err := svc.LogTrade(context.Background(), validTrade())
	require.NoError(t, err)

	assert.Equal(t, int64(1), trade.ID)
	assert.Equal(t, models.TradeTypeBuy, trade.TradeType)
	assert.Equal(t, fixedNow, trade.Timestamp)
	assert.Len(t, store.trades, 1)
}

func TestLogTrade_Validation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*TradeInput)
		fields []string
	}{
		{"missing pair", func(in *TradeInput) { in.Pair = nil }, []string{"pair"}},
		{"blank pair", func(in *TradeInput) { in.Pair = ptr("  ") }, []string{"pair"}},
		{"missing prices", func(in *TradeInput) { in.EntryPrice, in.ProfitLoss = nil, nil }, []string{"entry_price", "profit_loss"}},
		{"bad side", func(in *TradeInput) { in.TradeType = ptr("LONG") }, []string{"trade_type"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memStore{}
			svc := newTestService(store, nil, nil)
			in := validTrade()
			tt.modify(&in)

			_, err := svc.LogTrade(context.Background(), in)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.fields, ve.Fields)
			assert.Empty(t, store.trades)
		})
	}
}

func TestLogTrade_ZeroProfitIsPresent(t *testing.T) {
	svc := newTestService(&memStore{}, nil, nil)
	in := validTrade()
	in.ProfitLoss = ptr(0.0)

	_, err := svc.LogTrade(context.Background(), in)
	assert.NoError(t, err)
}

func TestLogTrade_StoreError(t *testing.T) {
	svc := newTestService(&memStore{err: errors.New("disk full")}, nil, nil)

	_, err := svc.LogTrade(context.Background(), validTrade())
	require.Error(t, err)
	assert.False(t, IsValidation(err))
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, models.TradeSummary{}, Summarize(nil))

	trades := []models.TradeRecord{
		{ProfitLoss: 0.1},
		{ProfitLoss: 0.2},
		{ProfitLoss: -0.3},
		{ProfitLoss: 0},
	}
	got := Summarize(trades)

	assert.Equal(t, 4, got.TotalTrades)
	assert.Equal(t, 0.0, got.TotalProfitLoss)
	assert.Equal(t, 50.0, got.WinRate)
	assert.Equal(t, 0.0, got.AverageProfitPerTrade)
}

func TestSummary(t *testing.T) {
	store := &memStore{trades: []models.TradeRecord{{ProfitLoss: 150}, {ProfitLoss: -50}, {ProfitLoss: 100}}}
	svc := newTestService(store, nil, nil)

	got, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 200.0, got.TotalProfitLoss)
	assert.InDelta(t, 66.6667, got.WinRate, 0.001)
	assert.InDelta(t, 66.6667, got.AverageProfitPerTrade, 0.001)
}

func TestChat(t *testing.T) {
	store := &memStore{trades: []models.TradeRecord{{ProfitLoss: 10}}}
	prices := fakePrices{"BTC/USD": {Pair: "BTC/USD", Price: 50000, PercentChange: 2}}
	ai := &fakeAI{enabled: true, reply: "Looking good."}
	svc := newTestService(store, prices, ai)

	reply, err := svc.Chat(context.Background(), ChatInput{Message: "How am I doing?"})
	require.NoError(t, err)
	assert.Equal(t, "Looking good.", reply)

	require.Len(t, ai.prompts, 1)
	assert.Contains(t, ai.prompts[0], "named Aura")
	assert.Contains(t, ai.prompts[0], "assist Trader")
	assert.Contains(t, ai.prompts[0], "BTC/USD: 50000.00 USD")
	assert.Contains(t, ai.prompts[0], "Total Trades: 1")
}

func TestChat_Errors(t *testing.T) {
	ctx := context.Background()

	svc := newTestService(&memStore{}, fakePrices{}, &fakeAI{enabled: true})
	_, err := svc.Chat(ctx, ChatInput{Message: "   "})
	assert.True(t, IsValidation(err))

	svc = newTestService(&memStore{}, fakePrices{}, &fakeAI{enabled: false})
	_, err = svc.Chat(ctx, ChatInput{Message: "hi"})
	assert.ErrorIs(t, err, ErrAIUnavailable)

	svc = newTestService(&memStore{}, fakePrices{}, &fakeAI{enabled: true, err: errors.New("quota exceeded")})
	_, err = svc.Chat(ctx, ChatInput{Message: "hi"})
	assert.ErrorIs(t, err, ErrAIUnavailable)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func analysisRequest() models.AnalysisRequest {
	return models.AnalysisRequest{
		Pair:         "ETH/USD",
		Timeframes:   []string{"1h"},
		Indicators:   []string{"RSI"},
		TradeType:    "buy",
		BalanceRange: "$1k-$5k",
		Leverage:     "5x",
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	store := &memStore{}
	ai := &fakeAI{enabled: true}
	svc := newTestService(store, fakePrices{}, ai)

	req := analysisRequest()
	req.Mode = "deterministic"
	req.CurrentPrice = 2000

	res, err := svc.Analyze(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, models.AnalysisModeDeterministic, res.Source)
	assert.Equal(t, models.SignalBuy, res.Payload.Signal)
	assert.Equal(t, 2010.0, res.Payload.TP1)
	assert.Equal(t, 1980.0, res.Payload.SL)
	assert.Equal(t, "5x", res.Payload.Leverage)
	assert.Empty(t, ai.prompts)

	require.Len(t, store.analyses, 1)
	assert.Equal(t, res.ID, store.analyses[0].ID)
	assert.Equal(t, fixedNow, store.analyses[0].Timestamp)
	assert.Equal(t, "BUY", store.analyses[0].TradeType)
}

func TestAnalyze_UsesLiveQuote(t *testing.T) {
	prices := fakePrices{"ETH/USD": {Pair: "ETH/USD", Price: 3000}}
	svc := newTestService(&memStore{}, prices, &fakeAI{})

	res, err := svc.Analyze(context.Background(), analysisRequest())
	require.NoError(t, err)
	assert.Equal(t, 3000.0, res.Payload.Entry)
}

func TestAnalyze_NoPriceIsNeutral(t *testing.T) {
	svc := newTestService(&memStore{}, fakePrices{}, &fakeAI{})

	res, err := svc.Analyze(context.Background(), analysisRequest())
	require.NoError(t, err)
	assert.Equal(t, models.SignalNeutral, res.Payload.Signal)
	assert.Equal(t, "N/A", res.Payload.RRRatio)
}

func TestAnalyze_AI(t *testing.T) {
	ai := &fakeAI{
		enabled: true,
		reply: "```json\n" +
			`{"signal": "SELL", "confidence": "70%", "entry": 3000, "tp1": 2950, "tp2": 2900, "tp3": 2800, "sl": 3050, "rr_ratio": "1:2"}` +
			"\n```\nBearish divergence on RSI.",
	}
	svc := newTestService(&memStore{}, fakePrices{"ETH/USD": {Price: 3000}}, ai)

	res, err := svc.Analyze(context.Background(), analysisRequest())
	require.NoError(t, err)

	assert.Equal(t, models.AnalysisModeAI, res.Source)
	assert.Equal(t, models.SignalSell, res.Payload.Signal)
	assert.Equal(t, "5x", res.Payload.Leverage)
	assert.Equal(t, "Bearish divergence on RSI.", res.AnalysisText)
	require.Len(t, ai.prompts, 1)
	assert.Contains(t, ai.prompts[0], "ETH/USD")
}

func TestAnalyze_AIFailureFallsBack(t *testing.T) {
	ai := &fakeAI{enabled: true, err: errors.New("timeout")}
	svc := newTestService(&memStore{}, fakePrices{}, ai)

	req := analysisRequest()
	req.CurrentPrice = 100

	res, err := svc.Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisModeDeterministic, res.Source)
	assert.Equal(t, 100.5, res.Payload.TP1)
}

func TestAnalyze_UnstructuredAIReply(t *testing.T) {
	ai := &fakeAI{enabled: true, reply: "Markets are unpredictable."}
	svc := newTestService(&memStore{}, fakePrices{}, ai)

	req := analysisRequest()
	req.CurrentPrice = 100

	res, err := svc.Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisModeAI, res.Source)
	assert.Equal(t, models.SignalNeutral, res.Payload.Signal)
	assert.Contains(t, res.AnalysisText, "Markets are unpredictable.")
}

func TestAnalyze_Validation(t *testing.T) {
	svc := newTestService(&memStore{}, fakePrices{}, &fakeAI{})

	_, err := svc.Analyze(context.Background(), models.AnalysisRequest{Pair: "BTC/USD"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"timeframes", "indicators", "trade_type", "balance_range", "leverage"}, ve.Fields)

	req := analysisRequest()
	req.Mode = "magic"
	_, err = svc.Analyze(context.Background(), req)
	assert.True(t, IsValidation(err))

	req = analysisRequest()
	req.CurrentPrice = -1
	_, err = svc.Analyze(context.Background(), req)
	assert.True(t, IsValidation(err))
}

func TestAnalyze_PriceOutOfRange(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store, fakePrices{}, &fakeAI{})

	for _, price := range []float64{1e308, math.MaxFloat64, math.Inf(1), math.NaN()} {
		req := analysisRequest()
		req.CurrentPrice = price
		_, err := svc.Analyze(context.Background(), req)

		var ve *ValidationError
		require.ErrorAs(t, err, &ve, "price %g", price)
		assert.Equal(t, []string{"current_price_for_pair"}, ve.Fields)
	}
	assert.Empty(t, store.analyses, "nothing persisted for rejected prices")

	req := analysisRequest()
	req.CurrentPrice = 1e12
	res, err := svc.Analyze(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, math.IsInf(res.Payload.TP3, 0))
}

func TestListAnalyses_StoreError(t *testing.T) {
	svc := newTestService(&memStore{err: errors.New("boom")}, fakePrices{}, &fakeAI{})

	_, err := svc.ListAnalyses(context.Background())
	assert.Error(t, err)
}
