package indicators

import (
	"math"

	"hft-multifactor/internal/domain"
)

// rollingExtreme returns, for each bar i, the extreme of x over the w values
// ending at i-lag. better(a, b) reports whether a beats b (a > b for max).
// Output is NaN until w values are available or when the window holds a NaN.
// Runs in O(n) with a monotonic deque.
func rollingExtreme(x []float64, w, lag int, better func(a, b float64) bool) []float64 {
	n := len(x)
	out := domain.NaNs(n)
	deque := make([]int, 0, n)
	head := 0
	nanCount := 0

	for j := 0; j < n; j++ {
		v := x[j]
		if math.IsNaN(v) {
			nanCount++
		} else {
			for len(deque) > head && !better(x[deque[len(deque)-1]], v) {
				deque = deque[:len(deque)-1]
			}
			deque = append(deque, j)
		}

		start := j - w + 1
		if start > 0 && math.IsNaN(x[start-1]) {
			nanCount--
		}
		for len(deque) > head && deque[head] < start {
			head++
		}

		i := j + lag
		if start >= 0 && nanCount == 0 && i < n && len(deque) > head {
			out[i] = x[deque[head]]
		}
	}
	return out
}

// rollingMax is max(x[i-lag-w+1 .. i-lag]).
func rollingMax(x []float64, w, lag int) []float64 {
	return rollingExtreme(x, w, lag, func(a, b float64) bool { return a > b })
}

// rollingMin is min(x[i-lag-w+1 .. i-lag]).
func rollingMin(x []float64, w, lag int) []float64 {
	return rollingExtreme(x, w, lag, func(a, b float64) bool { return a < b })
}

// rollingMean is mean(x[i-lag-w+1 .. i-lag]), NaN under the same rules as
// rollingExtreme.
func rollingMean(x []float64, w, lag int) []float64 {
	n := len(x)
	out := domain.NaNs(n)
	sum := 0.0
	nanCount := 0

	for j := 0; j < n; j++ {
		if v := x[j]; math.IsNaN(v) {
			nanCount++
		} else {
			sum += v
		}

		start := j - w + 1
		if start > 0 {
			if old := x[start-1]; math.IsNaN(old) {
				nanCount--
			} else {
				sum -= old
			}
		}

		i := j + lag
		if start >= 0 && nanCount == 0 && i < n {
			out[i] = sum / float64(w)
		}
	}
	return out
}

// ewmMean is an exponentially weighted mean with alpha = 2/(span+1), no
// bias adjustment. Undefined inputs carry the previous value; the decay of
// the old weight keeps accumulating across the gap.
func ewmMean(x []float64, span int) []float64 {
	n := len(x)
	out := domain.NaNs(n)
	alpha := 2.0 / (float64(span) + 1.0)
	oldWtFactor := 1 - alpha

	weighted := math.NaN()
	oldWt := 1.0

	for i := 0; i < n; i++ {
		cur := x[i]
		observed := !math.IsNaN(cur)

		switch {
		case !math.IsNaN(weighted):
			oldWt *= oldWtFactor
			if observed {
				if weighted != cur {
					weighted = (oldWt*weighted + alpha*cur) / (oldWt + alpha)
				}
				oldWt = 1
			}
		case observed:
			weighted = cur
		}
		out[i] = weighted
	}
	return out
}

// diff returns x[i] - x[i-1], with 0 where either side is undefined.
func diff(x []float64) []float64 {
	out := make([]float64, len(x))
	for i := 1; i < len(x); i++ {
		d := x[i] - x[i-1]
		if !math.IsNaN(d) {
			out[i] = d
		}
	}
	return out
}

// ffill replaces NaN with the last defined value, in place. Leading NaN stay.
func ffill(x []float64) {
	last := math.NaN()
	for i, v := range x {
		if math.IsNaN(v) {
			x[i] = last
		} else {
			last = v
		}
	}
}

// bfillLeading replaces the NaN run before the first defined value with that
// value, in place.
func bfillLeading(x []float64) {
	first := -1
	for i, v := range x {
		if !math.IsNaN(v) {
			first = i
			break
		}
	}
	for i := 0; i < first; i++ {
		x[i] = x[first]
	}
}

// fillNaN replaces NaN with v, in place.
func fillNaN(x []float64, v float64) {
	for i := range x {
		if math.IsNaN(x[i]) {
			x[i] = v
		}
	}
}

// nanMax returns the largest defined value, or NaN when none is defined.
func nanMax(vals ...float64) float64 {
	out := math.NaN()
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(out) || v > out {
			out = v
		}
	}
	return out
}
