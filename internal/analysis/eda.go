package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/socialhub-cli/internal/dataset"
)

// HistogramBins is the bucket count used for distributions.
const HistogramBins = 10

// Distribution is an equal-width histogram. Bins holds len(Counts)+1 edges.
type Distribution struct {
	Bins   []float64 `json:"bins"`
	Counts []int     `json:"counts"`
}

// EDA is the exploratory payload served by the eda endpoint.
type EDA struct {
	Correlation   CorrMatrix                    `json:"correlation"`
	Distributions map[string]Distribution       `json:"distributions"`
	SummaryStats  map[string]map[string]float64 `json:"summary_stats"`
}

// ComputeEDA profiles the numeric columns of ds. Every float is rounded to
// four decimals; correlations that are undefined are reported as 0.
func ComputeEDA(ds dataset.Dataset) EDA {
	out := EDA{
		Correlation:   CorrMatrix{Columns: []string{}, Values: [][]float64{}},
		Distributions: map[string]Distribution{},
		SummaryStats:  map[string]map[string]float64{},
	}
	var cols []*column
	for _, h := range ds.Headers {
		vals, present, ok := strictColumn(ds, h)
		if !ok {
			continue
		}
		cols = append(cols, &column{name: h, nums: vals, numAt: present})
	}
	if len(cols) == 0 {
		return out
	}
	idx := make([]int, len(cols))
	for i := range cols {
		idx[i] = i
	}
	m := correlate(cols, idx, nil)
	for i := range m.Values {
		for j := range m.Values[i] {
			m.Values[i][j] = round4(m.Values[i][j])
		}
	}
	out.Correlation = *m
	for _, c := range cols {
		vals := compact(c.nums, c.numAt)
		out.Distributions[c.name] = Histogram(vals, HistogramBins)
		out.SummaryStats[c.name] = Describe(vals)
	}
	return out
}

// Histogram buckets vals into bins equal-width buckets spanning [min, max];
// the last bucket is closed. A constant column spans [v-0.5, v+0.5] and an
// empty one [0, 1].
func Histogram(vals []float64, bins int) Distribution {
	if bins <= 0 {
		bins = HistogramBins
	}
	lo, hi := 0.0, 1.0
	if len(vals) > 0 {
		lo, hi = floats.Min(vals), floats.Max(vals)
		if lo == hi {
			lo, hi = lo-0.5, hi+0.5
		}
	}
	edges := floats.Span(make([]float64, bins+1), lo, hi)
	d := Distribution{Bins: make([]float64, len(edges)), Counts: make([]int, bins)}
	for i, e := range edges {
		d.Bins[i] = round4(e)
	}
	if len(vals) == 0 {
		return d
	}
	dividers := append([]float64(nil), edges...)
	dividers[bins] = math.Nextafter(hi, math.Inf(1))
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	for i, c := range stat.Histogram(nil, dividers, sorted, nil) {
		d.Counts[i] = int(c)
	}
	return d
}

// Describe returns count, mean, std, min, quartiles and max. std is omitted
// for fewer than two values.
func Describe(vals []float64) map[string]float64 {
	out := map[string]float64{"count": float64(len(vals))}
	if len(vals) == 0 {
		return out
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	out["mean"] = round4(stat.Mean(sorted, nil))
	if len(sorted) > 1 {
		out["std"] = round4(stat.StdDev(sorted, nil))
	}
	out["min"] = round4(sorted[0])
	out["25%"] = round4(quantile(sorted, 0.25))
	out["50%"] = round4(quantile(sorted, 0.5))
	out["75%"] = round4(quantile(sorted, 0.75))
	out["max"] = round4(sorted[len(sorted)-1])
	return out
}
