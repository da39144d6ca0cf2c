package memory

import (
	"context"
	"sort"
	"sync"

	"hft-multifactor/internal/domain"
	"hft-multifactor/internal/storage"
)

// TradeStore keeps blotters in memory, grouped by run and held in
// (trading_date, instrument, seq) order.
type TradeStore struct {
	mu    sync.RWMutex
	ids   map[string]struct{}
	byRun map[string][]domain.TradeRecord
}

// NewTradeStore creates an empty store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		ids:   make(map[string]struct{}),
		byRun: make(map[string][]domain.TradeRecord),
	}
}

// InsertBulk stores the batch or nothing. A trade_id already stored, or
// repeated within the batch, returns ErrDuplicateKey.
func (s *TradeStore) InsertBulk(_ context.Context, trades []*domain.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(trades))
	for _, t := range trades {
		if t == nil || t.TradeID == "" || t.RunID == "" {
			return storage.ErrInvalidInput
		}
		_, stored := s.ids[t.TradeID]
		_, repeated := seen[t.TradeID]
		if stored || repeated {
			return storage.ErrDuplicateKey
		}
		seen[t.TradeID] = struct{}{}
	}

	touched := make(map[string]struct{})
	for _, t := range trades {
		s.ids[t.TradeID] = struct{}{}
		s.byRun[t.RunID] = append(s.byRun[t.RunID], *t)
		touched[t.RunID] = struct{}{}
	}
	for runID := range touched {
		blotter := s.byRun[runID]
		sort.SliceStable(blotter, func(i, j int) bool { return blotterLess(&blotter[i], &blotter[j]) })
	}
	return nil
}

// GetByRun returns the run's trades ordered by trading_date, instrument, seq.
func (s *TradeStore) GetByRun(_ context.Context, runID string) ([]*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clones(s.byRun[runID], func(*domain.TradeRecord) bool { return true }), nil
}

// GetByInstrumentDay returns one instrument-day blotter ordered by seq.
func (s *TradeStore) GetByInstrumentDay(_ context.Context, runID, date, instrument string) ([]*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clones(s.byRun[runID], func(t *domain.TradeRecord) bool {
		return t.TradingDate == date && t.Instrument == instrument
	}), nil
}

func clones(src []domain.TradeRecord, keep func(*domain.TradeRecord) bool) []*domain.TradeRecord {
	var out []*domain.TradeRecord
	for i := range src {
		if keep(&src[i]) {
			t := src[i]
			out = append(out, &t)
		}
	}
	return out
}

func blotterLess(a, b *domain.TradeRecord) bool {
	if a.TradingDate != b.TradingDate {
		return a.TradingDate < b.TradingDate
	}
	if a.Instrument != b.Instrument {
		return a.Instrument < b.Instrument
	}
	return a.Seq < b.Seq
}

var _ storage.TradeStore = (*TradeStore)(nil)
