// Package stats provides the numeric summaries used by the perf analyses:
// population summary, sparse fixed-width histograms and lag-k
// autocorrelation. All functions are pure and fail on empty input.
package stats

import (
	"math"
	"sort"

	perrors "github.com/logflow/perfkit/pkg/errors"
)

// DefaultBucketWidth is the histogram width used when none is configured.
const DefaultBucketWidth = 10

// Integer is the set of integer series element types.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64
}

// Number is the set of series element types.
type Number interface {
	Integer | ~float32 | ~float64
}

// Summary holds population statistics of a series.
type Summary struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
}

// Summarize computes min, max, mean and population standard deviation.
func Summarize[T Number](series []T) (Summary, error) {
	if len(series) == 0 {
		return Summary{}, perrors.EmptySeries("summary")
	}

	s := Summary{
		Count: len(series),
		Min:   float64(series[0]),
		Max:   float64(series[0]),
	}
	var sum float64
	for _, v := range series {
		x := float64(v)
		sum += x
		if x < s.Min {
			s.Min = x
		}
		if x > s.Max {
			s.Max = x
		}
	}
	s.Mean = sum / float64(len(series))
	s.StdDev = math.Sqrt(variance(series, s.Mean))

	// Rounding in the mean can land it a hair outside [min, max] for
	// constant series of large magnitude.
	s.Mean = math.Min(math.Max(s.Mean, s.Min), s.Max)
	return s, nil
}

// Mean returns the arithmetic mean of series.
func Mean[T Number](series []T) (float64, error) {
	if len(series) == 0 {
		return 0, perrors.EmptySeries("mean")
	}
	return mean(series), nil
}

// Variance returns the population variance of series.
func Variance[T Number](series []T) (float64, error) {
	if len(series) == 0 {
		return 0, perrors.EmptySeries("variance")
	}
	return variance(series, mean(series)), nil
}

func mean[T Number](series []T) float64 {
	var sum float64
	for _, v := range series {
		sum += float64(v)
	}
	return sum / float64(len(series))
}

func variance[T Number](series []T, mu float64) float64 {
	var acc float64
	for _, v := range series {
		d := float64(v) - mu
		acc += d * d
	}
	return acc / float64(len(series))
}

// Histogram maps bucket lower bound to count. Buckets with no values are
// absent.
type Histogram struct {
	Width   int64         `json:"width"`
	Buckets map[int64]int `json:"buckets"`
}

// Bucket is one populated histogram bucket covering [Lower, Upper].
type Bucket struct {
	Lower int64 `json:"lower"`
	Upper int64 `json:"upper"`
	Count int   `json:"count"`
}

// Sorted returns the populated buckets in ascending order of lower bound.
func (h Histogram) Sorted() []Bucket {
	out := make([]Bucket, 0, len(h.Buckets))
	for lower, n := range h.Buckets {
		out = append(out, Bucket{Lower: lower, Upper: lower + h.Width - 1, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Lower < out[j].Lower })
	return out
}

// Total returns the number of values counted.
func (h Histogram) Total() int {
	var n int
	for _, c := range h.Buckets {
		n += c
	}
	return n
}

// BuildHistogram buckets each value at floor(value/width)*width.
func BuildHistogram[T Integer](series []T, width int64) (Histogram, error) {
	if len(series) == 0 {
		return Histogram{}, perrors.EmptySeries("histogram")
	}
	if width <= 0 {
		return Histogram{}, perrors.InvalidArgument("bucket width", width, "must be positive")
	}

	h := Histogram{Width: width, Buckets: make(map[int64]int)}
	for _, v := range series {
		h.Buckets[floorDiv(int64(v), width)*width]++
	}
	return h, nil
}

// floorDiv rounds toward negative infinity, unlike Go's / operator.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Autocorrelation returns the lag-k autocorrelation of series:
//
//	sum_{i=0}^{n-1-k} (x_i - mu)(x_{i+k} - mu) / ((n-k) * var)
//
// A constant series (var == 0) yields 0.
func Autocorrelation[T Number](series []T, lag int) (float64, error) {
	n := len(series)
	if n == 0 {
		return 0, perrors.EmptySeries("autocorrelation")
	}
	if lag < 0 || lag >= n {
		return 0, perrors.InvalidArgument("lag", lag, "must be in [0, len(series))")
	}

	if constant(series) {
		return 0, nil
	}
	mu := mean(series)
	v := variance(series, mu)
	if v == 0 {
		return 0, nil
	}

	var acc float64
	for i := 0; i+lag < n; i++ {
		acc += (float64(series[i]) - mu) * (float64(series[i+lag]) - mu)
	}
	return acc / (float64(n-lag) * v), nil
}

// constant reports whether every element equals the first. Rounding in
// the mean leaves a constant float series with a tiny nonzero variance,
// so the check is made on the values themselves.
func constant[T Number](series []T) bool {
	for _, x := range series[1:] {
		if x != series[0] {
			return false
		}
	}
	return true
}
