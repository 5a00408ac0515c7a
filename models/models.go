package models

import (
	"time"
)

// TradeType is the side of a logged trade
type TradeType string

const (
	TradeTypeBuy  TradeType = "BUY"
	TradeTypeSell TradeType = "SELL"
)

// Valid reports whether t is one of the known trade sides
func (t TradeType) Valid() bool {
	return t == TradeTypeBuy || t == TradeTypeSell
}

// Signal is the direction suggested by an analysis
type Signal string

const (
	SignalBuy     Signal = "BUY"
	SignalSell    Signal = "SELL"
	SignalHold    Signal = "HOLD"
	SignalNeutral Signal = "NEUTRAL"
)

// Valid reports whether s is one of the known signals
func (s Signal) Valid() bool {
	switch s {
	case SignalBuy, SignalSell, SignalHold, SignalNeutral:
		return true
	}
	return false
}

// Asset maps a dashboard pair to the market-data provider identifier
type Asset struct {
	Pair   string `json:"pair"`    // BTC/USD
	CoinID string `json:"coin_id"` // bitcoin
}

// DefaultBasket is the quote basket tracked when none is configured
var DefaultBasket = []Asset{
	{Pair: "BTC/USD", CoinID: "bitcoin"},
	{Pair: "ETH/USD", CoinID: "ethereum"},
	{Pair: "SOL/USD", CoinID: "solana"},
	{Pair: "XRP/USD", CoinID: "ripple"},
	{Pair: "ADA/USD", CoinID: "cardano"},
	{Pair: "DOGE/USD", CoinID: "dogecoin"},
	{Pair: "RVN/USD", CoinID: "ravencoin"},
}

// PriceQuote is a normalized price for one pair.
// Quotes are never mutated; the next successful fetch supersedes them.
type PriceQuote struct {
	Pair          string    `json:"pair"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`         // absolute change over 24h
	PercentChange float64   `json:"percent_change"` // % change over 24h
	FetchedAt     time.Time `json:"fetched_at"`
}

// TradeRecord is a logged trade. Records are append-only.
type TradeRecord struct {
	ID         int64     `json:"id"`
	Pair       string    `json:"pair"`
	TradeType  TradeType `json:"trade_type"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	ProfitLoss float64   `json:"profit_loss"`
	Timestamp  time.Time `json:"timestamp"`
}

// TradeSummary aggregates the trade log
type TradeSummary struct {
	TotalProfitLoss       float64 `json:"total_profit_loss"`
	TotalTrades           int     `json:"total_trades"`
	WinRate               float64 `json:"win_rate"` // percent of trades with positive P/L
	AverageProfitPerTrade float64 `json:"average_profit_per_trade"`
}

// Analysis modes
const (
	AnalysisModeAI            = "ai"
	AnalysisModeDeterministic = "deterministic"
)

// AnalysisRequest holds the parameters of an analysis call
type AnalysisRequest struct {
	Pair         string   `json:"pair"`
	Timeframes   []string `json:"timeframes"`
	Indicators   []string `json:"indicators"`
	TradeType    string   `json:"trade_type"`
	BalanceRange string   `json:"balance_range"`
	Leverage     string   `json:"leverage"`
	CurrentPrice float64  `json:"current_price_for_pair"`
	Mode         string   `json:"mode,omitempty"`
}

// AnalysisPayload is the structured part of an analysis
type AnalysisPayload struct {
	Signal     Signal  `json:"signal"`
	Confidence string  `json:"confidence"`
	Entry      float64 `json:"entry"`
	TP1        float64 `json:"tp1"`
	TP2        float64 `json:"tp2"`
	TP3        float64 `json:"tp3"`
	SL         float64 `json:"sl"`
	RRRatio    string  `json:"rr_ratio"`
	Leverage   string  `json:"leverage,omitempty"`
}

// AnalysisRecord is a persisted analysis. Records are append-only.
type AnalysisRecord struct {
	ID           int64           `json:"id"`
	Timestamp    time.Time       `json:"timestamp"`
	Pair         string          `json:"pair"`
	Timeframes   []string        `json:"timeframes"`
	Indicators   []string        `json:"indicators"`
	TradeType    string          `json:"trade_type"`
	BalanceRange string          `json:"balance_range"`
	Leverage     string          `json:"leverage"`
	Source       string          `json:"source"` // ai or deterministic
	AnalysisText string          `json:"ai_analysis_text"`
	Payload      AnalysisPayload `json:"analysis_data"`
}
