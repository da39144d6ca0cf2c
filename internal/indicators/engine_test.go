package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hft-multifactor/internal/config"
	"hft-multifactor/internal/domain"
)

func testParams() config.StrategyParams {
	p := config.DefaultParams()
	p.Window = 2
	p.EMAPeriod = 3
	p.ATRPeriod = 2
	return p
}

// buildFrame creates a frame with the default column names.
func buildFrame(t *testing.T, high, low, close, vol, bid, ask []float64) *domain.Frame {
	t.Helper()
	cols := config.DefaultColumns()
	ts := make([]int64, len(close))
	for i := range ts {
		ts[i] = int64(i) * 500
	}
	f := domain.NewFrame(ts)
	for name, values := range map[string][]float64{
		cols.High: high, cols.Low: low, cols.Close: close,
		cols.Volume: vol, cols.Bid: bid, cols.Ask: ask,
	} {
		if values == nil {
			continue
		}
		require.NoError(t, f.Set(name, values))
	}
	return f
}

func assertSeries(t *testing.T, name string, got, want []float64) {
	t.Helper()
	require.Len(t, got, len(want), name)
	for i := range want {
		if math.IsNaN(want[i]) {
			assert.True(t, math.IsNaN(got[i]), "%s[%d] = %v, want NaN", name, i, got[i])
			continue
		}
		assert.InDelta(t, want[i], got[i], 1e-9, "%s[%d]", name, i)
	}
}

func TestCompute_VWAP(t *testing.T) {
	close := []float64{10, 20, 30}
	vol := []float64{1, 1, 2}
	f := buildFrame(t, close, close, close, vol, vol, vol)

	set := NewEngine(testParams(), nil).Compute(f)

	// (10*1 + 20*1 + 30*2) / 4 = 22.5
	assertSeries(t, "vwap", set.VWAP, []float64{10, 15, 22.5})
}

func TestCompute_VWAPZeroVolumeIsUndefined(t *testing.T) {
	close := []float64{10, 11, 12}
	vol := []float64{0, 0, 2}
	f := buildFrame(t, close, close, close, vol, vol, vol)

	set := NewEngine(testParams(), nil).Compute(f)

	assertSeries(t, "vwap", set.VWAP, []float64{math.NaN(), math.NaN(), 12})
}

func TestCompute_RollingExtremaExcludeCurrentBar(t *testing.T) {
	high := []float64{1, 5, 3, 2, 4}
	low := []float64{0, 4, 2, 1, 3}
	close := []float64{1, 1, 1, 1, 1}
	vol := []float64{1, 2, 3, 4, 5}
	f := buildFrame(t, high, low, close, vol, vol, vol)

	set := NewEngine(testParams(), nil).Compute(f)

	nan := math.NaN()
	assertSeries(t, "rolling_high", set.RollingHigh, []float64{nan, nan, 5, 5, 3})
	assertSeries(t, "rolling_low", set.RollingLow, []float64{nan, nan, 0, 2, 1})
	assertSeries(t, "vol_ma", set.VolMA, []float64{nan, nan, 1.5, 2.5, 3.5})
}

func TestCompute_NoLookahead(t *testing.T) {
	high := []float64{1, 5, 3, 2, 4, 6, 2}
	low := []float64{0, 4, 2, 1, 3, 5, 1}
	close := []float64{1, 4, 3, 2, 3, 5, 2}
	vol := []float64{1, 2, 3, 4, 5, 6, 7}

	base := NewEngine(testParams(), nil).Compute(buildFrame(t, high, low, close, vol, vol, vol))

	for i := range close {
		h := append([]float64(nil), high...)
		l := append([]float64(nil), low...)
		v := append([]float64(nil), vol...)
		h[i] += 100
		l[i] -= 100
		v[i] *= 50

		mutated := NewEngine(testParams(), nil).Compute(buildFrame(t, h, l, close, v, v, v))

		for _, pair := range []struct {
			name      string
			got, want []float64
		}{
			{"rolling_high", mutated.RollingHigh, base.RollingHigh},
			{"rolling_low", mutated.RollingLow, base.RollingLow},
			{"vol_ma", mutated.VolMA, base.VolMA},
		} {
			g, w := pair.got[i], pair.want[i]
			if !(math.IsNaN(g) && math.IsNaN(w)) && g != w {
				t.Errorf("mutating bar %d changed %s[%d]: %v -> %v", i, pair.name, i, w, g)
			}
		}
	}
}

func TestCompute_EMAAndSlope(t *testing.T) {
	close := []float64{1, 2, 3}
	f := buildFrame(t, close, close, close, close, close, close)

	set := NewEngine(testParams(), nil).Compute(f)

	// alpha = 2/(3+1) = 0.5
	assertSeries(t, "ema", set.EMA, []float64{1, 1.5, 2.25})
	assertSeries(t, "ema_slope", set.EMASlope, []float64{0, 0.5, 0.75})
}

func TestCompute_ATRBackfilled(t *testing.T) {
	high := []float64{10, 12, 11}
	low := []float64{9, 10, 10}
	close := []float64{9.5, 11, 10.5}
	vol := []float64{1, 1, 1}
	f := buildFrame(t, high, low, close, vol, vol, vol)

	set := NewEngine(testParams(), nil).Compute(f)

	// TR = [1, 2.5, 1]; mean over 2 = [NaN, 1.75, 1.75]; back-filled.
	assertSeries(t, "atr", set.ATR, []float64{1.75, 1.75, 1.75})
}

func TestCompute_ATRZeroWhenUndefined(t *testing.T) {
	close := []float64{1, 2}
	f := buildFrame(t, nil, nil, close, close, close, close)

	set := NewEngine(testParams(), nil).Compute(f)

	assertSeries(t, "atr", set.ATR, []float64{0, 0})
}

func TestCompute_OBI(t *testing.T) {
	close := []float64{1, 1, 1}
	bid := []float64{3, 1, math.NaN()}
	ask := []float64{1, 1, 2}

	t.Run("enabled", func(t *testing.T) {
		set := NewEngine(testParams(), nil).Compute(buildFrame(t, close, close, close, close, bid, ask))
		assertSeries(t, "obi", set.OBI, []float64{0.5, 0, 0})
	})

	t.Run("disabled", func(t *testing.T) {
		p := testParams()
		p.UseOBI = false
		set := NewEngine(p, nil).Compute(buildFrame(t, close, close, close, close, bid, ask))
		assertSeries(t, "obi", set.OBI, []float64{0, 0, 0})
	})
}

func TestCompute_MissingColumnDegradedMode(t *testing.T) {
	close := []float64{1, 2, 3, 4}
	vol := []float64{1, 1, 1, 1}
	f := buildFrame(t, nil, close, close, vol, vol, vol)

	set := NewEngine(testParams(), nil).Compute(f)

	require.Equal(t, []string{config.DefaultColumns().High}, set.MissingColumns)
	for i, v := range set.RollingHigh {
		assert.True(t, math.IsNaN(v), "rolling_high[%d] = %v, want NaN", i, v)
	}
	assert.Len(t, set.VWAP, 4)
}

func TestCompute_OBIColumnsOnlyRequiredWhenEnabled(t *testing.T) {
	p := testParams()
	p.UseOBI = false
	close := []float64{1, 2}
	f := buildFrame(t, close, close, close, close, nil, nil)

	set := NewEngine(p, nil).Compute(f)

	assert.Empty(t, set.MissingColumns)
}

func TestCompute_InternalGapsForwardFilled(t *testing.T) {
	high := []float64{1, 2, 3, 4, 5, 6}
	close := []float64{1, 1, 1, 1, 1, 1}
	vol := []float64{2, 4, math.NaN(), 6, 8, 10}
	f := buildFrame(t, high, high, close, vol, vol, vol)

	set := NewEngine(testParams(), nil).Compute(f)

	nan := math.NaN()
	// vol_ma at 3 and 4 see the NaN and carry the value from bar 2.
	assertSeries(t, "vol_ma", set.VolMA, []float64{nan, nan, 3, 3, 3, 7})
}

func TestCompute_Deterministic(t *testing.T) {
	high := []float64{1, 5, 3, 2, 4, 6, 2}
	low := []float64{0, 4, 2, 1, 3, 5, 1}
	close := []float64{1, 4, 3, 2, 3, 5, 2}
	vol := []float64{1, 2, 0, 4, 5, 6, 7}
	f := buildFrame(t, high, low, close, vol, vol, low)
	engine := NewEngine(testParams(), nil)

	a := engine.Compute(f)
	b := engine.Compute(f)

	for _, pair := range [][2][]float64{
		{a.VWAP, b.VWAP}, {a.RollingHigh, b.RollingHigh}, {a.RollingLow, b.RollingLow},
		{a.VolMA, b.VolMA}, {a.EMA, b.EMA}, {a.EMASlope, b.EMASlope}, {a.ATR, b.ATR}, {a.OBI, b.OBI},
	} {
		for i := range pair[0] {
			if math.Float64bits(pair[0][i]) != math.Float64bits(pair[1][i]) {
				t.Fatalf("non-deterministic value at %d: %v vs %v", i, pair[0][i], pair[1][i])
			}
		}
	}
}
