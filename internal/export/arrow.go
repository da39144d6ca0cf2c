// Package export writes annotated indicator tables as Apache Arrow IPC streams.
package export

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"

	"hft-multifactor/internal/strategy"
)

// Schema is the layout of an exported table. Undefined indicator values are
// written as nulls.
var Schema = arrow.NewSchema([]arrow.Field{
	{Name: "timestamp_ms", Type: arrow.PrimitiveTypes.Int64},
	{Name: "close", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "high", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "low", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "volume", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "vwap", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "rolling_high", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "rolling_low", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "vol_ma", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "ema", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "ema_slope", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "atr", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "obi", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "long_entry", Type: arrow.FixedWidthTypes.Boolean},
	{Name: "short_entry", Type: arrow.FixedWidthTypes.Boolean},
	{Name: "position", Type: arrow.PrimitiveTypes.Int8},
}, nil)

// ArrowWriter writes <root>/<date>/<instrument>.arrow files.
type ArrowWriter struct {
	root  string
	alloc memory.Allocator
}

// NewArrowWriter creates an ArrowWriter rooted at root.
func NewArrowWriter(root string) *ArrowWriter {
	return &ArrowWriter{
		root:  root,
		alloc: memory.NewGoAllocator(),
	}
}

// WriteTable writes one instrument-day table.
func (w *ArrowWriter) WriteTable(date, instrument string, out *strategy.Output) error {
	path := filepath.Join(w.root, date, instrument+".arrow")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	bw := bufio.NewWriter(f)

	if err := Encode(bw, w.alloc, out); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Encode writes out as a single-record Arrow IPC stream.
func Encode(wr io.Writer, alloc memory.Allocator, out *strategy.Output) error {
	rec, err := Record(alloc, out)
	if err != nil {
		return err
	}
	defer rec.Release()

	writer := ipc.NewWriter(wr, ipc.WithSchema(Schema), ipc.WithAllocator(alloc))
	if err := writer.Write(rec); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write Arrow record: %w", err)
	}
	return writer.Close()
}

// Record builds the Arrow record for out. The caller must Release it.
func Record(alloc memory.Allocator, out *strategy.Output) (arrow.Record, error) {
	n := len(out.Timestamps)
	set := out.Indicators
	if set == nil || out.Signals == nil || set.Len() != n || len(out.Positions) != n {
		return nil, fmt.Errorf("inconsistent output lengths for %d bars", n)
	}

	cols := make([]arrow.Array, 0, len(Schema.Fields()))
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	tsb := array.NewInt64Builder(alloc)
	defer tsb.Release()
	tsb.AppendValues(out.Timestamps, nil)
	cols = append(cols, tsb.NewInt64Array())

	for _, series := range [][]float64{
		set.Close, set.High, set.Low, set.Volume, set.VWAP,
		set.RollingHigh, set.RollingLow, set.VolMA, set.EMA, set.EMASlope,
		set.ATR, set.OBI,
	} {
		cols = append(cols, float64Array(alloc, series))
	}

	for _, flags := range [][]bool{out.Signals.Long, out.Signals.Short} {
		bb := array.NewBooleanBuilder(alloc)
		bb.AppendValues(flags, nil)
		cols = append(cols, bb.NewBooleanArray())
		bb.Release()
	}

	pb := array.NewInt8Builder(alloc)
	defer pb.Release()
	pos := make([]int8, n)
	for i, p := range out.Positions {
		pos[i] = int8(p)
	}
	pb.AppendValues(pos, nil)
	cols = append(cols, pb.NewInt8Array())

	return array.NewRecord(Schema, cols, int64(n)), nil
}

// float64Array builds a column with NaN mapped to null.
func float64Array(alloc memory.Allocator, values []float64) arrow.Array {
	b := array.NewFloat64Builder(alloc)
	defer b.Release()

	valid := make([]bool, len(values))
	for i, v := range values {
		valid[i] = !math.IsNaN(v)
	}
	b.AppendValues(values, valid)
	return b.NewFloat64Array()
}

var _ strategy.TableWriter = (*ArrowWriter)(nil)
