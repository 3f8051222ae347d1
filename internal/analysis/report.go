// Package analysis profiles a loaded dataset: column kinds, summary
// statistics, correlations, group-by summaries and the cleaning pass run by
// the preprocessing endpoint.
package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/socialhub-cli/internal/dataset"
)

// Options controls report generation.
type Options struct {
	// MaxRows limits rows processed; 0 means unlimited.
	MaxRows int
	// SampleRows is how many leading rows the report shows.
	SampleRows int
	// GroupBy computes per-group summaries for the given column names.
	GroupBy []string
	// Correlations computes Pearson correlations among numeric columns.
	Correlations bool
	// CorrPerGroup computes correlations inside each group.
	CorrPerGroup bool
	// Outliers counts robust Z-scores (MAD) above OutlierThreshold.
	Outliers         bool
	OutlierThreshold float64
}

// DefaultOptions returns the options used by the shell and the eda command.
func DefaultOptions() Options {
	return Options{
		MaxRows:          100000,
		SampleRows:       5,
		Correlations:     true,
		Outliers:         true,
		OutlierThreshold: 3.5,
	}
}

// Report is a markdown-friendly profile of a dataset.
type Report struct {
	Name      string
	Rows      int
	Processed int
	Cols      []ColumnSummary
	Samples   [][]string
	Warnings  []string
	Groups    []GroupResult
	Corr      *CorrMatrix
}

// ColumnSummary captures inferred kind and statistics per column.
type ColumnSummary struct {
	Name    string
	Kind    string
	NonNull int
	Missing int
	Unique  int

	Min  float64
	Max  float64
	Mean float64
	Std  float64

	OutliersCount    int
	OutliersMaxAbsZ  float64
	OutlierThreshold float64

	TopValues    []CategoryCount
	ExampleTexts []string
}

type CategoryCount struct {
	Value string
	Count int
}

// GroupResult captures aggregated metrics per group key.
type GroupResult struct {
	Key       string
	Size      int
	Metrics   map[string]NumSummary
	CorrPairs []PairCorr
}

type NumSummary struct {
	Count          int
	Min, Max, Mean float64
}

// CorrMatrix is a symmetric Pearson correlation matrix across numeric columns.
type CorrMatrix struct {
	Columns []string    `json:"columns"`
	Values  [][]float64 `json:"matrix"`
}

// PairCorr is one correlation pair.
type PairCorr struct {
	A, B string
	R    float64
}

type column struct {
	name    string
	nonNull int
	miss    int
	nums    []float64
	numAt   []bool
	dtCnt   int
	txtCnt  int
	cats    map[string]int
	exText  []string
}

// Analyze profiles ds. name labels the report.
func Analyze(name string, ds dataset.Dataset, opt Options) *Report {
	rep := &Report{Name: name, Rows: len(ds.Rows)}
	if len(ds.Headers) == 0 {
		return rep
	}
	limit := opt.MaxRows
	if limit <= 0 || limit > len(ds.Rows) {
		limit = len(ds.Rows)
	}
	rows := ds.Rows[:limit]
	rep.Processed = limit
	samples := opt.SampleRows
	if samples <= 0 {
		samples = 5
	}

	cols := make([]*column, len(ds.Headers))
	for j, h := range ds.Headers {
		cols[j] = &column{name: h, cats: map[string]int{}, nums: make([]float64, len(rows)), numAt: make([]bool, len(rows))}
	}
	for i, r := range rows {
		if len(rep.Samples) < samples {
			row := make([]string, len(ds.Headers))
			for j, h := range ds.Headers {
				row[j] = r[h]
			}
			rep.Samples = append(rep.Samples, row)
		}
		for j, h := range ds.Headers {
			c := cols[j]
			v := strings.TrimSpace(r[h])
			if missing(v) {
				c.miss++
				continue
			}
			c.nonNull++
			if x, ok := parseMetric(v); ok {
				c.nums[i] = x
				c.numAt[i] = true
				continue
			}
			if _, ok := parseTimeMaybe(v); ok {
				c.dtCnt++
				continue
			}
			c.txtCnt++
			if len(c.cats) <= 10000 && len(v) <= 64 {
				c.cats[v]++
			}
			if len(c.exText) < 3 {
				c.exText = append(c.exText, v)
			}
		}
	}

	var numCols []int
	for idx, c := range cols {
		s, numeric := c.summarize(opt)
		if numeric {
			numCols = append(numCols, idx)
		}
		rep.Cols = append(rep.Cols, s)
	}
	if rep.Processed < rep.Rows {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("processed only %d/%d rows due to MaxRows", rep.Processed, rep.Rows))
	}
	if len(opt.GroupBy) > 0 {
		rep.Groups = groupBy(ds.Headers, rows, cols, numCols, opt)
	}
	if opt.Correlations && len(numCols) >= 2 {
		rep.Corr = correlate(cols, numCols, nil)
	}
	return rep
}

func (c *column) numCount() int {
	n := 0
	for _, ok := range c.numAt {
		if ok {
			n++
		}
	}
	return n
}

// summarize picks the predominant kind and fills its statistics.
func (c *column) summarize(opt Options) (ColumnSummary, bool) {
	s := ColumnSummary{Name: c.name, NonNull: c.nonNull, Missing: c.miss, Kind: KindUnknown}
	numCnt := c.numCount()
	switch {
	case numCnt > 0 && numCnt >= c.dtCnt && numCnt >= c.txtCnt:
		s.Kind = KindNumeric
		vals := compact(c.nums, c.numAt)
		s.Min, s.Max = floats.Min(vals), floats.Max(vals)
		if len(vals) > 1 {
			s.Mean, s.Std = stat.MeanStdDev(vals, nil)
		} else {
			s.Mean = vals[0]
		}
		if opt.Outliers && len(vals) >= 8 {
			s.OutlierThreshold = opt.OutlierThreshold
			if s.OutlierThreshold <= 0 {
				s.OutlierThreshold = 3.5
			}
			s.OutliersCount, s.OutliersMaxAbsZ = robustOutliers(vals, s.OutlierThreshold)
		}
		return s, true
	case c.dtCnt > 0 && c.dtCnt >= c.txtCnt:
		s.Kind = KindDatetime
	case len(c.cats) > 0:
		s.Kind = KindCategorical
		tops := make([]CategoryCount, 0, len(c.cats))
		for k, v := range c.cats {
			tops = append(tops, CategoryCount{Value: k, Count: v})
		}
		sort.Slice(tops, func(i, j int) bool {
			if tops[i].Count == tops[j].Count {
				return tops[i].Value < tops[j].Value
			}
			return tops[i].Count > tops[j].Count
		})
		if len(tops) > 8 {
			tops = tops[:8]
		}
		s.TopValues = tops
		s.Unique = len(c.cats)
	case c.txtCnt > 0:
		s.Kind = KindText
		s.ExampleTexts = c.exText
	}
	return s, false
}

// robustOutliers counts values whose modified Z-score exceeds thr.
func robustOutliers(vals []float64, thr float64) (int, float64) {
	median, mad := medianMAD(vals)
	if mad == 0 {
		return 0, 0
	}
	var cnt int
	var maxAbsZ float64
	for _, v := range vals {
		az := math.Abs(0.6745 * (v - median) / mad)
		if az > thr {
			cnt++
		}
		maxAbsZ = math.Max(maxAbsZ, az)
	}
	return cnt, maxAbsZ
}

// pearson correlates a and b over rows where both are present and within keep.
func pearson(a, b *column, keep []bool) (float64, bool) {
	var x, y []float64
	for i := range a.nums {
		if !a.numAt[i] || !b.numAt[i] || (keep != nil && !keep[i]) {
			continue
		}
		x = append(x, a.nums[i])
		y = append(y, b.nums[i])
	}
	if len(x) < 2 {
		return 0, false
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}
	return math.Max(-1, math.Min(1, r)), true
}

func correlate(cols []*column, numCols []int, keep []bool) *CorrMatrix {
	n := len(numCols)
	m := &CorrMatrix{Columns: make([]string, n), Values: make([][]float64, n)}
	for a, ia := range numCols {
		m.Columns[a] = cols[ia].name
		m.Values[a] = make([]float64, n)
		m.Values[a][a] = 1
	}
	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			r, _ := pearson(cols[numCols[a]], cols[numCols[b]], keep)
			m.Values[a][b], m.Values[b][a] = r, r
		}
	}
	return m
}

// TopPairs returns the strongest off-diagonal pairs by |r|.
func (m *CorrMatrix) TopPairs(limit int) []PairCorr {
	var pairs []PairCorr
	for i := range m.Columns {
		for j := i + 1; j < len(m.Columns); j++ {
			pairs = append(pairs, PairCorr{A: m.Columns[i], B: m.Columns[j], R: m.Values[i][j]})
		}
	}
	sortPairs(pairs)
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs
}

func sortPairs(pairs []PairCorr) {
	sort.Slice(pairs, func(i, j int) bool {
		ai, aj := math.Abs(pairs[i].R), math.Abs(pairs[j].R)
		if ai == aj {
			return pairs[i].A+pairs[i].B < pairs[j].A+pairs[j].B
		}
		return ai > aj
	})
}

func groupBy(headers []string, rows []dataset.Record, cols []*column, numCols []int, opt Options) []GroupResult {
	var keyCols []string
	for _, name := range opt.GroupBy {
		want := strings.ToLower(strings.TrimSpace(name))
		for _, h := range headers {
			if strings.ToLower(h) == want {
				keyCols = append(keyCols, h)
				break
			}
		}
	}
	if len(keyCols) == 0 {
		return nil
	}
	members := map[string][]bool{}
	sizes := map[string]int{}
	for i, r := range rows {
		parts := make([]string, len(keyCols))
		for k, h := range keyCols {
			parts[k] = fmt.Sprintf("%s=%s", h, safeVal(strings.TrimSpace(r[h])))
		}
		key := strings.Join(parts, " | ")
		if members[key] == nil {
			members[key] = make([]bool, len(rows))
		}
		members[key][i] = true
		sizes[key]++
	}

	out := make([]GroupResult, 0, len(members))
	for key, in := range members {
		gr := GroupResult{Key: key, Size: sizes[key], Metrics: map[string]NumSummary{}}
		for _, idx := range numCols {
			c := cols[idx]
			var vals []float64
			for i, ok := range in {
				if ok && c.numAt[i] {
					vals = append(vals, c.nums[i])
				}
			}
			if len(vals) == 0 {
				continue
			}
			gr.Metrics[c.name] = NumSummary{Count: len(vals), Min: floats.Min(vals), Max: floats.Max(vals), Mean: stat.Mean(vals, nil)}
		}
		if opt.CorrPerGroup && len(numCols) >= 2 {
			var pairs []PairCorr
			for a := 0; a < len(numCols); a++ {
				for b := a + 1; b < len(numCols); b++ {
					ca, cb := cols[numCols[a]], cols[numCols[b]]
					if r, ok := pearson(ca, cb, in); ok {
						pairs = append(pairs, PairCorr{A: ca.name, B: cb.name, R: r})
					}
				}
			}
			sortPairs(pairs)
			if len(pairs) > 10 {
				pairs = pairs[:10]
			}
			gr.CorrPairs = pairs
		}
		out = append(out, gr)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Size == out[j].Size {
			return out[i].Key < out[j].Key
		}
		return out[i].Size > out[j].Size
	})
	if len(out) > 20 {
		out = out[:20]
	}
	return out
}

// medianMAD computes the median and the median absolute deviation.
func medianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	cp := append([]float64(nil), vals...)
	sort.Float64s(cp)
	median = quantile(cp, 0.5)
	dev := make([]float64, len(cp))
	for i, v := range cp {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	return median, quantile(dev, 0.5)
}

// quantile linearly interpolates between closest ranks of sorted values.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
