package marketdata

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hft-multifactor/internal/domain"
	"hft-multifactor/internal/storage"
)

func TestPositionDir_RoundTrip(t *testing.T) {
	d := NewPositionDir(t.TempDir(), "")
	in := []domain.PositionPoint{
		{TimestampMs: 1_704_186_000_000, Value: 0},
		{TimestampMs: 1_704_186_000_500, Value: 1},
		{TimestampMs: 1_704_186_001_000, Value: -1},
	}
	require.NoError(t, d.WritePositions("20240102", "IF2401_M", in))

	raw, err := os.ReadFile(d.Path("20240102", "IF2401_M"))
	require.NoError(t, err)
	assert.Equal(t, "TRADINGTIME,position\n2024-01-02 09:00:00.000,0\n2024-01-02 09:00:00.500,1\n2024-01-02 09:00:01.000,-1\n", string(raw))

	out, events, err := d.Positions(context.Background(), "20240102", "IF2401_M", nil)
	require.NoError(t, err)
	assert.Nil(t, events)
	assert.Equal(t, in, out)
}

func TestParsePositions_Formats(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  []domain.PositionPoint
	}{
		{
			name:  "pandas float values",
			input: []byte("TRADINGTIME,position\n2024-01-02 09:00:00.5,1.0\n2024-01-02 09:00:01,0.0\n"),
			want:  []domain.PositionPoint{{1_704_186_000_500, 1}, {1_704_186_001_000, 0}},
		},
		{
			name:  "utf8 bom and extra columns",
			input: []byte("\xef\xbb\xbfidx,TRADINGTIME,position\n0,2024-01-02T09:00:00Z,-1\n"),
			want:  []domain.PositionPoint{{1_704_186_000_000, -1}},
		},
		{
			name:  "millisecond integers",
			input: []byte("TRADINGTIME,position\n1704186000000,0.5\n"),
			want:  []domain.PositionPoint{{1_704_186_000_000, 0.5}},
		},
		{
			name:  "utf16 little endian",
			input: utf16le("TRADINGTIME,position\r\n2024-01-02 09:00:00.000,1\r\n"),
			want:  []domain.PositionPoint{{1_704_186_000_000, 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePositions(bytes.NewReader(tt.input), "TRADINGTIME")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePositions_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"missing position column", "TRADINGTIME,pos\n2024-01-02 09:00:00,1\n"},
		{"bad time", "TRADINGTIME,position\nyesterday,1\n"},
		{"bad value", "TRADINGTIME,position\n2024-01-02 09:00:00,long\n"},
		{"short row", "TRADINGTIME,x,position\n2024-01-02 09:00:00\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePositions(strings.NewReader(tt.input), "TRADINGTIME")
			assert.True(t, errors.Is(err, ErrBadPositionFile), "got %v", err)
		})
	}
}

func TestPositionDir_Missing(t *testing.T) {
	d := NewPositionDir(filepath.Join(t.TempDir(), "none"), "")
	_, err := d.ReadPositions("20240102", "IF2401_M")
	assert.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)
}

// utf16le encodes ASCII s as UTF-16LE with a byte order mark.
func utf16le(s string) []byte {
	out := []byte{0xFF, 0xFE}
	for _, b := range []byte(s) {
		out = append(out, b, 0)
	}
	return out
}
