package marketdata

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"hft-multifactor/internal/config"
	"hft-multifactor/internal/domain"
	"hft-multifactor/internal/storage"
)

// PositionColumn is the value column of a position file.
const PositionColumn = "position"

// PositionDir reads and writes <root>/<date>/<instrument>.csv position files
// with a time column and a position column.
type PositionDir struct {
	root       string
	timeColumn string
}

// NewPositionDir creates a PositionDir. An empty timeColumn uses the default
// binding.
func NewPositionDir(root, timeColumn string) *PositionDir {
	if timeColumn == "" {
		timeColumn = config.DefaultColumns().Time
	}
	return &PositionDir{root: root, timeColumn: timeColumn}
}

// Path returns the file path for an instrument-day.
func (d *PositionDir) Path(date, instrument string) string {
	return filepath.Join(d.root, date, instrument+".csv")
}

// Positions reads the stored series for an instrument-day. The frame is not
// consulted; alignment happens in the reconstructor. Stored files carry no
// exit events.
func (d *PositionDir) Positions(ctx context.Context, date, instrument string, _ *domain.Frame) ([]domain.PositionPoint, []domain.PositionEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	points, err := d.ReadPositions(date, instrument)
	return points, nil, err
}

// ReadPositions parses a position file. UTF-8 and UTF-16 files with a byte
// order mark are accepted. Values are returned unvalidated.
func (d *PositionDir) ReadPositions(date, instrument string) ([]domain.PositionPoint, error) {
	path := d.Path(date, instrument)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s/%s: %w", date, instrument, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	points, err := ParsePositions(f, d.timeColumn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return points, nil
}

// ParsePositions reads a position CSV with a header row naming timeColumn
// and PositionColumn.
func ParsePositions(r io.Reader, timeColumn string) ([]domain.PositionPoint, error) {
	dec := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	cr := csv.NewReader(bufio.NewReader(dec))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty file", ErrBadPositionFile)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPositionFile, err)
	}

	timeIdx, posIdx := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case timeColumn:
			timeIdx = i
		case PositionColumn:
			posIdx = i
		}
	}
	if timeIdx < 0 || posIdx < 0 {
		return nil, fmt.Errorf("%w: header %v lacks %s or %s", ErrBadPositionFile, header, timeColumn, PositionColumn)
	}

	var points []domain.PositionPoint
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrBadPositionFile, line, err)
		}
		if len(rec) <= timeIdx || len(rec) <= posIdx {
			return nil, fmt.Errorf("%w: line %d has %d fields", ErrBadPositionFile, line, len(rec))
		}

		ts, err := ParseTime(rec[timeIdx])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrBadPositionFile, line, err)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[posIdx]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrBadPositionFile, line, err)
		}
		points = append(points, domain.PositionPoint{TimestampMs: ts, Value: v})
	}
	return points, nil
}

// WritePositions writes a position file, creating the date directory.
func (d *PositionDir) WritePositions(date, instrument string, points []domain.PositionPoint) error {
	path := d.Path(date, instrument)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create position dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := writePositions(w, d.timeColumn, points); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func writePositions(w *csv.Writer, timeColumn string, points []domain.PositionPoint) error {
	if err := w.Write([]string{timeColumn, PositionColumn}); err != nil {
		return err
	}
	for _, p := range points {
		rec := []string{FormatTime(p.TimestampMs), strconv.FormatFloat(p.Value, 'f', -1, 64)}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
