package database

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Alias1177/Aura/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrade(pl float64) *models.TradeRecord {
	return &models.TradeRecord{
		Pair:       "BTC/USD",
		TradeType:  models.TradeTypeBuy,
		EntryPrice: 60000,
		ExitPrice:  60000 + pl,
		ProfitLoss: pl,
		Timestamp:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestFileStore_Trades(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	trades, err := store.ListTrades(ctx)
	require.NoError(t, err)
	assert.NotNil(t, trades)
	assert.Empty(t, trades)

	first, second := sampleTrade(100), sampleTrade(-50)
	require.NoError(t, store.SaveTrade(ctx, first))
	require.NoError(t, store.SaveTrade(ctx, second))
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)

	trades, err = store.ListTrades(ctx)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, *first, trades[0])
	assert.Equal(t, *second, trades[1])
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.SaveTrade(ctx, sampleTrade(10)))

	reopened, err := NewFileStore(dir)
	require.NoError(t, err)
	next := sampleTrade(20)
	require.NoError(t, reopened.SaveTrade(ctx, next))
	assert.Equal(t, int64(2), next.ID)
}

func TestFileStore_CorruptFileReadsEmptyAndBlocksAppends(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, TradesFile)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store, err := NewFileStore(dir)
	require.NoError(t, err)

	trades, err := store.ListTrades(ctx)
	require.NoError(t, err)
	assert.Empty(t, trades)

	err = store.SaveTrade(ctx, sampleTrade(5))
	require.ErrorIs(t, err, ErrCorruptLog)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(data))
}

func TestFileStore_TruncatedLogKeepsHistory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewFileStore(dir)
	require.NoError(t, err)
	for _, pl := range []float64{100, -50, 25} {
		require.NoError(t, store.SaveTrade(ctx, sampleTrade(pl)))
	}
	require.NoError(t, store.SaveAnalysis(ctx, &models.AnalysisRecord{Pair: "BTC/USD", TradeType: "BUY"}))

	tradesPath := filepath.Join(dir, TradesFile)
	full, err := os.ReadFile(tradesPath)
	require.NoError(t, err)
	truncated := full[:len(full)/2]
	require.NoError(t, os.WriteFile(tradesPath, truncated, 0o644))

	analysesPath := filepath.Join(dir, AnalysesFile)
	fullAnalyses, err := os.ReadFile(analysesPath)
	require.NoError(t, err)
	truncatedAnalyses := fullAnalyses[:len(fullAnalyses)-2]
	require.NoError(t, os.WriteFile(analysesPath, truncatedAnalyses, 0o644))

	require.ErrorIs(t, store.SaveTrade(ctx, sampleTrade(10)), ErrCorruptLog)
	require.ErrorIs(t, store.SaveAnalysis(ctx, &models.AnalysisRecord{Pair: "ETH/USD", TradeType: "SELL"}), ErrCorruptLog)

	data, err := os.ReadFile(tradesPath)
	require.NoError(t, err)
	assert.Equal(t, truncated, data, "trade bytes left for recovery")

	data, err = os.ReadFile(analysesPath)
	require.NoError(t, err)
	assert.Equal(t, truncatedAnalyses, data, "analysis bytes left for recovery")
}

func TestFileStore_EmptyFileIsEmptyLog(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, TradesFile), nil, 0o644))

	store, err := NewFileStore(dir)
	require.NoError(t, err)

	trade := sampleTrade(5)
	require.NoError(t, store.SaveTrade(ctx, trade))
	assert.Equal(t, int64(1), trade.ID)
}

func TestFileStore_IDsFollowMaximum(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	existing := `[{"id": 7, "pair": "ETH/USD", "trade_type": "SELL", "entry_price": 1, "exit_price": 1, "profit_loss": 0, "timestamp": "2024-01-01T00:00:00Z"},
		{"id": 3, "pair": "ETH/USD", "trade_type": "BUY", "entry_price": 1, "exit_price": 1, "profit_loss": 0, "timestamp": "2024-01-01T00:00:00Z"}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, TradesFile), []byte(existing), 0o644))

	store, err := NewFileStore(dir)
	require.NoError(t, err)

	trade := sampleTrade(1)
	require.NoError(t, store.SaveTrade(ctx, trade))
	assert.Equal(t, int64(8), trade.ID)
}

func TestFileStore_ConcurrentSavesGetDistinctIDs(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	const n = 20
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			trade := sampleTrade(1)
			assert.NoError(t, store.SaveTrade(ctx, trade))
			ids <- trade.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}

	trades, err := store.ListTrades(ctx)
	require.NoError(t, err)
	assert.Len(t, trades, n)
}

func TestFileStore_Analyses(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	record := &models.AnalysisRecord{
		Timestamp:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Pair:         "SOL/USD",
		Timeframes:   []string{"1h"},
		Indicators:   []string{"RSI"},
		TradeType:    "BUY",
		BalanceRange: "$1k-$5k",
		Leverage:     "5x",
		Source:       models.AnalysisModeDeterministic,
		AnalysisText: "text",
		Payload:      models.AnalysisPayload{Signal: models.SignalBuy, Confidence: "High Confidence", Entry: 150, RRRatio: "1:2.0"},
	}
	require.NoError(t, store.SaveAnalysis(ctx, record))
	assert.Equal(t, int64(1), record.ID)

	records, err := store.ListAnalyses(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, *record, records[0])

	data, err := os.ReadFile(filepath.Join(dir, AnalysesFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"ai_analysis_text": "text"`)
	assert.Contains(t, string(data), `"analysis_data"`)
}

func TestOpen_DefaultsToFileStore(t *testing.T) {
	store, err := Open(context.Background(), "", t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	assert.IsType(t, &FileStore{}, store)
}
