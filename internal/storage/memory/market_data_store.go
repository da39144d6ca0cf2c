package memory

import (
	"context"
	"sort"
	"sync"

	"hft-multifactor/internal/domain"
	"hft-multifactor/internal/storage"
)

// MarketDataStore is an in-memory implementation of storage.MarketDataStore.
type MarketDataStore struct {
	mu   sync.RWMutex
	data map[string]map[string]*domain.Frame // date -> instrument -> frame
}

// NewMarketDataStore creates a new in-memory market data store.
func NewMarketDataStore() *MarketDataStore {
	return &MarketDataStore{
		data: make(map[string]map[string]*domain.Frame),
	}
}

// InsertFrame adds one instrument-day. Returns ErrDuplicateKey if it exists.
func (s *MarketDataStore) InsertFrame(_ context.Context, date, instrument string, frame *domain.Frame) error {
	if date == "" || instrument == "" || frame == nil {
		return storage.ErrInvalidInput
	}
	if err := frame.Validate(); err != nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	day, ok := s.data[date]
	if !ok {
		day = make(map[string]*domain.Frame)
		s.data[date] = day
	}
	if _, exists := day[instrument]; exists {
		return storage.ErrDuplicateKey
	}

	day[instrument] = frame.Clone()
	return nil
}

// ListDates returns trading dates in ascending order.
func (s *MarketDataStore) ListDates(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dates := make([]string, 0, len(s.data))
	for d := range s.data {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates, nil
}

// ListInstruments returns the instruments stored for date, sorted.
func (s *MarketDataStore) ListInstruments(_ context.Context, date string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day := s.data[date]
	out := make([]string, 0, len(day))
	for inst := range day {
		out = append(out, inst)
	}
	sort.Strings(out)
	return out, nil
}

// LoadFrame loads one instrument-day. Returns ErrNotFound if absent.
func (s *MarketDataStore) LoadFrame(_ context.Context, date, instrument string) (*domain.Frame, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.data[date][instrument]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return f.Clone(), nil
}

var _ storage.MarketDataStore = (*MarketDataStore)(nil)
