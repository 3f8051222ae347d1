package analysis

import (
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/socialhub-cli/internal/dataset"
)

// UnknownCategory fills text columns that have no value to take a mode from.
const UnknownCategory = "Unknown"

// CleanSummary reports what Clean changed.
type CleanSummary struct {
	RowsBefore           int      `json:"rows_before"`
	RowsAfter            int      `json:"rows_after"`
	RowsRemoved          int      `json:"rows_removed"`
	ConvertedDateColumns []string `json:"converted_date_columns"`
}

// Clean returns a cleaned copy of ds: missing numeric cells take the column
// median, missing text cells the column mode, date and time columns are
// rewritten in ISO form when every value parses, and duplicate rows are
// dropped.
func Clean(ds dataset.Dataset) (dataset.Dataset, CleanSummary) {
	out := ds.Clone()
	sum := CleanSummary{RowsBefore: len(out.Rows), ConvertedDateColumns: []string{}}

	for _, h := range out.Headers {
		var fill string
		if vals, present, ok := strictColumn(out, h); ok {
			sorted := compact(vals, present)
			sort.Float64s(sorted)
			fill = dataset.FormatNumber(quantile(sorted, 0.5))
		} else {
			fill = mode(out, h)
		}
		for _, r := range out.Rows {
			if v, has := r[h]; !has || missing(v) {
				r[h] = fill
			}
		}
	}

	for _, h := range out.Headers {
		lh := strings.ToLower(h)
		if !strings.Contains(lh, "date") && !strings.Contains(lh, "time") {
			continue
		}
		convertDates(out, h)
		sum.ConvertedDateColumns = append(sum.ConvertedDateColumns, h)
	}

	sum.RowsRemoved = out.DropDuplicates()
	sum.RowsAfter = len(out.Rows)
	return out, sum
}

// mode returns the most frequent non-missing value; ties go to the smallest.
func mode(ds dataset.Dataset, col string) string {
	counts := map[string]int{}
	for _, r := range ds.Rows {
		if v, has := r[col]; has && !missing(v) {
			counts[v]++
		}
	}
	best, bestN := UnknownCategory, 0
	for v, n := range counts {
		if n > bestN || (n == bestN && v < best) {
			best, bestN = v, n
		}
	}
	return best
}

// convertDates rewrites a column in ISO form. The column is left untouched
// unless every value parses.
func convertDates(ds dataset.Dataset, col string) {
	parsed := make([]time.Time, len(ds.Rows))
	clock := false
	for i, r := range ds.Rows {
		t, ok := parseTimeMaybe(r[col])
		if !ok {
			return
		}
		parsed[i] = t
		clock = clock || t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0
	}
	layout := "2006-01-02"
	if clock {
		layout = "2006-01-02 15:04:05"
	}
	for i, r := range ds.Rows {
		r[col] = parsed[i].Format(layout)
	}
}
