package marketdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/parquet-go/parquet-go"

	"hft-multifactor/internal/config"
	"hft-multifactor/internal/domain"
	"hft-multifactor/internal/storage"
)

// rowBatch is the number of rows decoded per ReadRows call.
const rowBatch = 1024

// ParquetDirOptions configures a ParquetDir.
type ParquetDirOptions struct {
	Root             string // contains one directory per trading date
	TimeColumn       string
	TimeUnit         string // unit of integer time columns without a logical type
	InstrumentFilter string // substring an instrument file name must contain
	SkipFirstDate    bool
}

// ParquetDir reads <root>/<date>/<instrument>.parquet files.
type ParquetDir struct {
	root          string
	timeColumn    string
	timeUnit      string
	filter        string
	skipFirstDate bool
}

// NewParquetDir creates a ParquetDir.
func NewParquetDir(opts ParquetDirOptions) *ParquetDir {
	if opts.TimeColumn == "" {
		opts.TimeColumn = config.DefaultColumns().Time
	}
	if opts.TimeUnit == "" {
		opts.TimeUnit = config.TimeUnitNanos
	}
	return &ParquetDir{
		root:          opts.Root,
		timeColumn:    opts.TimeColumn,
		timeUnit:      opts.TimeUnit,
		filter:        opts.InstrumentFilter,
		skipFirstDate: opts.SkipFirstDate,
	}
}

// ListDates returns date directory names in ascending order, without the
// first one when SkipFirstDate is set.
func (d *ParquetDir) ListDates(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("read market dir: %w", err)
	}

	var dates []string
	for _, e := range entries {
		if e.IsDir() {
			dates = append(dates, e.Name())
		}
	}
	sort.Strings(dates)

	if d.skipFirstDate && len(dates) > 0 {
		dates = dates[1:]
	}
	return dates, nil
}

// ListInstruments returns the file stems on date that contain the filter.
func (d *ParquetDir) ListInstruments(_ context.Context, date string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(d.root, date))
	if err != nil {
		return nil, fmt.Errorf("read date dir %s: %w", date, err)
	}

	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".parquet") || !strings.Contains(name, d.filter) {
			continue
		}
		out = append(out, stem(name))
	}
	sort.Strings(out)
	return out, nil
}

// LoadFrame reads one instrument-day. Every flat numeric column is loaded.
// Returns storage.ErrNotFound if the file does not exist.
func (d *ParquetDir) LoadFrame(ctx context.Context, date, instrument string) (*domain.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(d.root, date, instrument+".parquet")
	frame, err := ReadParquet(path, d.timeColumn, d.timeUnit)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s/%s: %w", date, instrument, storage.ErrNotFound)
	}
	return frame, err
}

// ReadParquet loads a parquet file into a frame keyed by timeColumn.
// Null numeric values become NaN.
func ReadParquet(path, timeColumn, timeUnit string) (*domain.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet %s: %w", path, err)
	}

	schema := pf.Schema()
	timeLeaf, ok := schema.Lookup(timeColumn)
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", ErrColumnNotFound, timeColumn, path)
	}
	toMs, err := timeDecoder(timeLeaf, timeUnit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	n := int(pf.NumRows())
	timestamps := make([]int64, n)

	// Numeric flat columns keyed by leaf index.
	names := make(map[int]string)
	values := make(map[int][]float64)
	for _, p := range schema.Columns() {
		if len(p) != 1 || p[0] == timeColumn {
			continue
		}
		leaf, ok := schema.Lookup(p...)
		if !ok || leaf.MaxRepetitionLevel > 0 || !numeric(leaf.Node.Type().Kind()) {
			continue
		}
		names[leaf.ColumnIndex] = p[0]
		values[leaf.ColumnIndex] = domain.NaNs(n)
	}

	row := 0
	buf := make([]parquet.Row, rowBatch)
	for _, rg := range pf.RowGroups() {
		rows := rg.Rows()
		for {
			k, err := rows.ReadRows(buf)
			for _, r := range buf[:k] {
				for _, v := range r {
					col := v.Column()
					if col == timeLeaf.ColumnIndex {
						ts, err := toMs(v)
						if err != nil {
							rows.Close()
							return nil, fmt.Errorf("%s row %d: %w", path, row, err)
						}
						timestamps[row] = ts
						continue
					}
					if dst, ok := values[col]; ok {
						dst[row] = toFloat(v)
					}
				}
				row++
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("read rows %s: %w", path, err)
			}
		}
		if err := rows.Close(); err != nil {
			return nil, fmt.Errorf("close rows %s: %w", path, err)
		}
	}

	frame := domain.NewFrame(timestamps[:row])
	for col, name := range names {
		if err := frame.Set(name, values[col][:row]); err != nil {
			return nil, err
		}
	}
	if err := frame.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotMonotonic, path, err)
	}
	return frame, nil
}

// timeDecoder picks the conversion for the time column from its physical and
// logical type. Integer columns without a timestamp annotation use unit.
func timeDecoder(leaf parquet.LeafColumn, unit string) (func(parquet.Value) (int64, error), error) {
	typ := leaf.Node.Type()

	switch typ.Kind() {
	case parquet.Int64, parquet.Int32:
		if lt := typ.LogicalType(); lt != nil && lt.Timestamp != nil {
			switch {
			case lt.Timestamp.Unit.Millis != nil:
				unit = config.TimeUnitMillis
			case lt.Timestamp.Unit.Micros != nil:
				unit = config.TimeUnitMicros
			case lt.Timestamp.Unit.Nanos != nil:
				unit = config.TimeUnitNanos
			}
		}
		return func(v parquet.Value) (int64, error) {
			if v.IsNull() {
				return 0, errors.New("null timestamp")
			}
			return toMillis(v.Int64(), unit), nil
		}, nil

	case parquet.ByteArray:
		return func(v parquet.Value) (int64, error) {
			if v.IsNull() {
				return 0, errors.New("null timestamp")
			}
			return ParseTime(string(v.ByteArray()))
		}, nil

	default:
		return nil, fmt.Errorf("unsupported time column type %s", typ)
	}
}

func numeric(k parquet.Kind) bool {
	switch k {
	case parquet.Boolean, parquet.Int32, parquet.Int64, parquet.Float, parquet.Double:
		return true
	default:
		return false
	}
}

func toFloat(v parquet.Value) float64 {
	if v.IsNull() {
		return math.NaN()
	}
	switch v.Kind() {
	case parquet.Double:
		return v.Double()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Int32:
		return float64(v.Int32())
	case parquet.Int64:
		return float64(v.Int64())
	case parquet.Boolean:
		if v.Boolean() {
			return 1
		}
		return 0
	default:
		return math.NaN()
	}
}

// stem returns the file name up to its first dot.
func stem(name string) string {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}

var _ storage.MarketDataSource = (*ParquetDir)(nil)
