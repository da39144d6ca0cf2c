package clickhouse

import (
	"context"
	"fmt"
	"sort"
	"time"

	"hft-multifactor/internal/domain"
	"hft-multifactor/internal/storage"
)

// MarketDataOptions configures instrument-day enumeration.
type MarketDataOptions struct {
	InstrumentFilter string // substring an instrument name must contain
	SkipFirstDate    bool
}

// MarketDataStore implements storage.MarketDataStore over the market_ticks
// table. Frames are stored long: one row per column value per bar.
type MarketDataStore struct {
	conn *Conn
	opts MarketDataOptions
}

// NewMarketDataStore creates a new MarketDataStore.
func NewMarketDataStore(conn *Conn, opts MarketDataOptions) *MarketDataStore {
	return &MarketDataStore{conn: conn, opts: opts}
}

// Compile-time interface check.
var _ storage.MarketDataStore = (*MarketDataStore)(nil)

// InsertFrame adds one instrument-day. Returns ErrDuplicateKey if any row
// already exists for (date, instrument) and ErrInvalidInput for a frame
// without columns or with unordered timestamps.
func (s *MarketDataStore) InsertFrame(ctx context.Context, date, instrument string, frame *domain.Frame) (err error) {
	if date == "" || instrument == "" || frame == nil {
		return storage.ErrInvalidInput
	}
	names := frame.Names()
	if len(names) == 0 || frame.Validate() != nil {
		return storage.ErrInvalidInput
	}

	start := time.Now()
	defer func() { observe("market_insert_frame", start, err) }()

	exists, err := s.exists(ctx, date, instrument)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO market_ticks (
			trading_date, instrument, timestamp_ms, column_name, value
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, name := range names {
		values, _ := frame.Column(name)
		for i, ts := range frame.Timestamps {
			if err := batch.Append(date, instrument, ts, name, values[i]); err != nil {
				return fmt.Errorf("append to batch: %w", err)
			}
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// ListDates returns trading dates in ascending order, without the first one
// when SkipFirstDate is set.
func (s *MarketDataStore) ListDates(ctx context.Context) ([]string, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT DISTINCT trading_date FROM market_ticks
		ORDER BY trading_date ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query dates: %w", err)
	}
	defer rows.Close()

	dates, err := scanStrings(rows)
	if err != nil {
		return nil, err
	}
	if s.opts.SkipFirstDate && len(dates) > 0 {
		dates = dates[1:]
	}
	return dates, nil
}

// ListInstruments returns the instruments on date that contain the filter.
func (s *MarketDataStore) ListInstruments(ctx context.Context, date string) ([]string, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT DISTINCT instrument FROM market_ticks
		WHERE trading_date = ? AND position(instrument, ?) > 0
		ORDER BY instrument ASC
	`, date, s.opts.InstrumentFilter)
	if err != nil {
		return nil, fmt.Errorf("query instruments: %w", err)
	}
	defer rows.Close()

	return scanStrings(rows)
}

// LoadFrame loads one instrument-day. Bars missing from a column are NaN.
// Returns ErrNotFound if no rows exist.
func (s *MarketDataStore) LoadFrame(ctx context.Context, date, instrument string) (frame *domain.Frame, err error) {
	start := time.Now()
	defer func() { observe("market_load_frame", start, err) }()

	rows, err := s.conn.Query(ctx, `
		SELECT column_name, timestamp_ms, value FROM market_ticks
		WHERE trading_date = ? AND instrument = ?
		ORDER BY column_name ASC, timestamp_ms ASC
	`, date, instrument)
	if err != nil {
		return nil, fmt.Errorf("query frame: %w", err)
	}
	defer rows.Close()

	type cell struct {
		ts    int64
		value float64
	}
	columns := make(map[string][]cell)
	tsSet := make(map[int64]struct{})

	for rows.Next() {
		var name string
		var c cell
		if err := rows.Scan(&name, &c.ts, &c.value); err != nil {
			return nil, fmt.Errorf("scan market tick row: %w", err)
		}
		columns[name] = append(columns[name], c)
		tsSet[c.ts] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate market tick rows: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%s/%s: %w", date, instrument, storage.ErrNotFound)
	}

	timestamps := make([]int64, 0, len(tsSet))
	for ts := range tsSet {
		timestamps = append(timestamps, ts)
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })

	index := make(map[int64]int, len(timestamps))
	for i, ts := range timestamps {
		index[ts] = i
	}

	frame = domain.NewFrame(timestamps)
	for name, cells := range columns {
		values := domain.NaNs(len(timestamps))
		for _, c := range cells {
			values[index[c.ts]] = c.value
		}
		if err := frame.Set(name, values); err != nil {
			return nil, err
		}
	}
	return frame, nil
}

// exists checks if any row exists for the instrument-day.
func (s *MarketDataStore) exists(ctx context.Context, date, instrument string) (bool, error) {
	query := `
		SELECT count(*) FROM market_ticks
		WHERE trading_date = ? AND instrument = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, date, instrument).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanStrings(rows chRows) ([]string, error) {
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}
