package memory

import (
	"context"
	"sort"
	"sync"

	"hft-multifactor/internal/domain"
	"hft-multifactor/internal/storage"
)

// dailyReturnKey is the composite key for daily returns.
type dailyReturnKey struct {
	runID      string
	date       string
	instrument string
}

// DailyReturnStore is an in-memory implementation of storage.DailyReturnStore.
type DailyReturnStore struct {
	mu   sync.RWMutex
	data map[dailyReturnKey]*domain.DailyReturn
}

// NewDailyReturnStore creates a new in-memory daily return store.
func NewDailyReturnStore() *DailyReturnStore {
	return &DailyReturnStore{
		data: make(map[dailyReturnKey]*domain.DailyReturn),
	}
}

// InsertBulk adds multiple rows atomically. Fails entire batch on any duplicate.
func (s *DailyReturnStore) InsertBulk(_ context.Context, returns []*domain.DailyReturn) error {
	if len(returns) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[dailyReturnKey]struct{}, len(returns))
	for _, r := range returns {
		if r == nil || r.RunID == "" || r.TradingDate == "" || r.Instrument == "" {
			return storage.ErrInvalidInput
		}
		key := dailyReturnKey{r.RunID, r.TradingDate, r.Instrument}
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, r := range returns {
		copy := *r
		s.data[dailyReturnKey{r.RunID, r.TradingDate, r.Instrument}] = &copy
	}

	return nil
}

// GetByRun retrieves all rows of a run, ordered by trading_date, instrument.
func (s *DailyReturnStore) GetByRun(_ context.Context, runID string) ([]*domain.DailyReturn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.DailyReturn
	for k, r := range s.data {
		if k.runID == runID {
			copy := *r
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].TradingDate != result[j].TradingDate {
			return result[i].TradingDate < result[j].TradingDate
		}
		return result[i].Instrument < result[j].Instrument
	})

	return result, nil
}

var _ storage.DailyReturnStore = (*DailyReturnStore)(nil)
