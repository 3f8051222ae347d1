package analysis

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/socialhub-cli/internal/dataset"
)

// Column kinds reported by Analyze.
const (
	KindNumeric     = "numeric"
	KindDatetime    = "datetime"
	KindCategorical = "categorical"
	KindText        = "text"
	KindUnknown     = "unknown"
)

// missing reports whether a cell counts as absent, including the placeholder
// written by null replacement.
func missing(v string) bool {
	return dataset.IsNull(v) || strings.EqualFold(strings.TrimSpace(v), dataset.NullPlaceholder)
}

var groupedThousands = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d+)?$`)

// parseMetric accepts the loose numeric forms found in social exports:
// "1,234", "12.5%", "3 400".
func parseMetric(s string) (float64, bool) {
	raw := strings.TrimSpace(s)
	raw = strings.ReplaceAll(raw, "\u00A0", " ")
	raw = strings.TrimSuffix(raw, "%")
	raw = strings.TrimSpace(raw)
	if groupedThousands.MatchString(raw) {
		raw = strings.ReplaceAll(raw, ",", "")
	}
	if strings.Contains(raw, " ") && strings.Trim(raw, "0123456789 .-+") == "" {
		raw = strings.ReplaceAll(raw, " ", "")
	}
	return dataset.ParseNumber(raw)
}

var timeLayouts = []string{
	time.RFC3339, "2006-01-02", "2006/01/02", "02/01/2006", "01/02/2006",
	"2006-01-02 15:04", "2006-01-02 15:04:05", "1/2/2006 15:04", "1/2/2006 15:04:05",
	"2006-01-02T15:04:05",
}

func parseTimeMaybe(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// strictColumn returns the parsed values of a column when every non-missing
// cell is a plain number. present[i] is false for missing cells.
func strictColumn(ds dataset.Dataset, col string) (vals []float64, present []bool, ok bool) {
	vals = make([]float64, len(ds.Rows))
	present = make([]bool, len(ds.Rows))
	seen := 0
	for i, r := range ds.Rows {
		v, has := r[col]
		if !has || missing(v) {
			continue
		}
		f, good := dataset.ParseNumber(v)
		if !good {
			return nil, nil, false
		}
		vals[i] = f
		present[i] = true
		seen++
	}
	return vals, present, seen > 0
}

// NumericHeaders lists the columns whose non-missing cells are all plain numbers.
func NumericHeaders(ds dataset.Dataset) []string {
	var out []string
	for _, h := range ds.Headers {
		if _, _, ok := strictColumn(ds, h); ok {
			out = append(out, h)
		}
	}
	return out
}

func compact(vals []float64, present []bool) []float64 {
	out := make([]float64, 0, len(vals))
	for i, v := range vals {
		if present[i] {
			out = append(out, v)
		}
	}
	return out
}

func round4(x float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(x, 'f', 4, 64), 64)
	if err != nil {
		return x
	}
	return r
}
