package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Alias1177/Aura/models"
	_ "github.com/lib/pq"
)

// DB is the PostgreSQL-backed store
type DB struct {
	*sql.DB
}

// New connects to PostgreSQL and creates the tables if needed
func New(ctx context.Context, connStr string) (*DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Check connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := createTables(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &DB{db}, nil
}

// createTables creates the necessary tables if they don't exist
func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS trades (
			id BIGSERIAL PRIMARY KEY,
			pair TEXT NOT NULL,
			trade_type TEXT NOT NULL,
			entry_price DOUBLE PRECISION NOT NULL,
			exit_price DOUBLE PRECISION NOT NULL,
			profit_loss DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS analyses (
			id BIGSERIAL PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			pair TEXT NOT NULL,
			timeframes JSONB NOT NULL,
			indicators JSONB NOT NULL,
			trade_type TEXT NOT NULL,
			balance_range TEXT NOT NULL,
			leverage TEXT NOT NULL,
			source TEXT NOT NULL,
			analysis_text TEXT NOT NULL,
			payload JSONB NOT NULL
		)
	`)
	return err
}

// SaveTrade inserts a trade and fills in its id
func (db *DB) SaveTrade(ctx context.Context, trade *models.TradeRecord) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO trades (pair, trade_type, entry_price, exit_price, profit_loss, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`,
		trade.Pair, trade.TradeType, trade.EntryPrice, trade.ExitPrice, trade.ProfitLoss, trade.Timestamp,
	).Scan(&trade.ID)
}

// ListTrades returns every trade in insertion order
func (db *DB) ListTrades(ctx context.Context) ([]models.TradeRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, pair, trade_type, entry_price, exit_price, profit_loss, created_at
		FROM trades
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trades := []models.TradeRecord{}
	for rows.Next() {
		var t models.TradeRecord
		if err := rows.Scan(&t.ID, &t.Pair, &t.TradeType, &t.EntryPrice, &t.ExitPrice, &t.ProfitLoss, &t.Timestamp); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// SaveAnalysis inserts an analysis and fills in its id
func (db *DB) SaveAnalysis(ctx context.Context, record *models.AnalysisRecord) error {
	timeframes, err := json.Marshal(nonNil(record.Timeframes))
	if err != nil {
		return err
	}
	indicators, err := json.Marshal(nonNil(record.Indicators))
	if err != nil {
		return err
	}
	payload, err := json.Marshal(record.Payload)
	if err != nil {
		return err
	}

	return db.QueryRowContext(ctx, `
		INSERT INTO analyses (
			created_at, pair, timeframes, indicators, trade_type,
			balance_range, leverage, source, analysis_text, payload
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`,
		record.Timestamp, record.Pair, timeframes, indicators, record.TradeType,
		record.BalanceRange, record.Leverage, record.Source, record.AnalysisText, payload,
	).Scan(&record.ID)
}

// ListAnalyses returns every analysis in insertion order
func (db *DB) ListAnalyses(ctx context.Context) ([]models.AnalysisRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT
			id, created_at, pair, timeframes, indicators, trade_type,
			balance_range, leverage, source, analysis_text, payload
		FROM analyses
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []models.AnalysisRecord{}
	for rows.Next() {
		var (
			r                             models.AnalysisRecord
			timeframes, indicators, payld []byte
		)
		if err := rows.Scan(
			&r.ID, &r.Timestamp, &r.Pair, &timeframes, &indicators, &r.TradeType,
			&r.BalanceRange, &r.Leverage, &r.Source, &r.AnalysisText, &payld,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(timeframes, &r.Timeframes); err != nil {
			return nil, fmt.Errorf("analysis %d timeframes: %w", r.ID, err)
		}
		if err := json.Unmarshal(indicators, &r.Indicators); err != nil {
			return nil, fmt.Errorf("analysis %d indicators: %w", r.ID, err)
		}
		if err := json.Unmarshal(payld, &r.Payload); err != nil {
			return nil, fmt.Errorf("analysis %d payload: %w", r.ID, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
