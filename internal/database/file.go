package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/Alias1177/Aura/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	TradesFile   = "trades.json"
	AnalysesFile = "analysis_results.json"
)

// ErrCorruptLog is returned when a store file cannot be decoded. Appends are
// refused so the existing bytes are never overwritten.
var ErrCorruptLog = errors.New("store file is corrupt")

// FileStore keeps trades and analyses in flat JSON files.
// A missing file is an empty log; a corrupt one reads as empty but blocks appends.
type FileStore struct {
	mu     sync.Mutex
	dir    string
	logger zerolog.Logger
}

// NewFileStore creates the data directory if needed
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{
		dir:    dir,
		logger: log.With().Str("component", "file_store").Logger(),
	}, nil
}

// SaveTrade appends a trade and assigns the next id
func (s *FileStore) SaveTrade(_ context.Context, trade *models.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	trades, err := loadLog[models.TradeRecord](s, TradesFile)
	if err != nil {
		return fmt.Errorf("save trade: %w", err)
	}

	var maxID int64
	for _, t := range trades {
		maxID = max(maxID, t.ID)
	}
	trade.ID = maxID + 1

	return s.write(TradesFile, append(trades, *trade))
}

// ListTrades returns the trade log in file order
func (s *FileStore) ListTrades(_ context.Context) ([]models.TradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trades, err := loadLog[models.TradeRecord](s, TradesFile)
	if err != nil {
		s.logger.Warn().Err(err).Str("file", TradesFile).Msg("Serving empty trade log")
		return []models.TradeRecord{}, nil
	}
	return trades, nil
}

// SaveAnalysis appends an analysis and assigns the next id
func (s *FileStore) SaveAnalysis(_ context.Context, record *models.AnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := loadLog[models.AnalysisRecord](s, AnalysesFile)
	if err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}

	var maxID int64
	for _, r := range records {
		maxID = max(maxID, r.ID)
	}
	record.ID = maxID + 1

	return s.write(AnalysesFile, append(records, *record))
}

// ListAnalyses returns the analysis log in file order
func (s *FileStore) ListAnalyses(_ context.Context) ([]models.AnalysisRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := loadLog[models.AnalysisRecord](s, AnalysesFile)
	if err != nil {
		s.logger.Warn().Err(err).Str("file", AnalysesFile).Msg("Serving empty analysis log")
		return []models.AnalysisRecord{}, nil
	}
	return records, nil
}

// Close is a no-op
func (s *FileStore) Close() error {
	return nil
}

func loadLog[T any](s *FileStore, name string) ([]T, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []T{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if len(data) == 0 {
		return []T{}, nil
	}

	var decoded []T
	if err := json.Unmarshal(data, &decoded); err != nil {
		s.logger.Error().Err(err).Str("file", name).Msg("Store file is corrupt")
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptLog, name, err)
	}
	if decoded == nil {
		return []T{}, nil
	}
	return decoded, nil
}

func (s *FileStore) write(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	return os.Rename(tmp.Name(), filepath.Join(s.dir, name))
}

// Open returns the PostgreSQL store when connStr is set and the file store
// rooted at dataDir otherwise.
func Open(ctx context.Context, connStr, dataDir string) (models.Store, error) {
	if connStr != "" {
		db, err := New(ctx, connStr)
		if err != nil {
			return nil, err
		}
		return db, nil
	}

	fileStore, err := NewFileStore(dataDir)
	if err != nil {
		return nil, err
	}
	return fileStore, nil
}
