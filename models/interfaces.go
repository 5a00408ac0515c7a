package models

import "context"

// TradeStore persists the trade log
type TradeStore interface {
	SaveTrade(ctx context.Context, trade *TradeRecord) error
	ListTrades(ctx context.Context) ([]TradeRecord, error)
}

// AnalysisStore persists generated analyses
type AnalysisStore interface {
	SaveAnalysis(ctx context.Context, record *AnalysisRecord) error
	ListAnalyses(ctx context.Context) ([]AnalysisRecord, error)
}

// Store is the full persistence surface used by the service
type Store interface {
	TradeStore
	AnalysisStore
	Close() error
}
