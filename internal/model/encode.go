package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/KaramelBytes/socialhub-cli/internal/dataset"
)

// Encoding turns records into feature vectors: numeric columns pass through
// and text columns are one-hot encoded as "<column>_<value>".
type Encoding struct {
	Numeric     []string            `json:"numeric_columns"`
	Categorical []string            `json:"categorical_columns"`
	Levels      map[string][]string `json:"levels"`
	Means       map[string]float64  `json:"means"`
	Features    []string            `json:"feature_columns"`
}

func missing(v string) bool {
	return dataset.IsNull(v) || strings.EqualFold(strings.TrimSpace(v), dataset.NullPlaceholder)
}

// fitEncoding inspects every column except target.
func fitEncoding(headers []string, rows []dataset.Record, target string) Encoding {
	enc := Encoding{Levels: map[string][]string{}, Means: map[string]float64{}}
	for _, h := range headers {
		if h == target {
			continue
		}
		var sum float64
		n := 0
		numeric := true
		seen := map[string]bool{}
		for _, r := range rows {
			v, has := r[h]
			if !has || missing(v) {
				continue
			}
			v = strings.TrimSpace(v)
			seen[v] = true
			if f, ok := dataset.ParseNumber(v); ok && numeric {
				sum += f
				n++
			} else {
				numeric = false
			}
		}
		if numeric && n > 0 {
			enc.Numeric = append(enc.Numeric, h)
			enc.Means[h] = sum / float64(n)
			continue
		}
		levels := make([]string, 0, len(seen))
		for v := range seen {
			levels = append(levels, v)
		}
		sort.Strings(levels)
		enc.Categorical = append(enc.Categorical, h)
		enc.Levels[h] = levels
	}
	enc.Features = append(enc.Features, enc.Numeric...)
	for _, h := range enc.Categorical {
		for _, lv := range enc.Levels[h] {
			enc.Features = append(enc.Features, dummyName(h, lv))
		}
	}
	return enc
}

func dummyName(col, level string) string { return col + "_" + level }

// encodeRecord builds the training vector; missing numeric cells take the column mean.
func (e Encoding) encodeRecord(r dataset.Record) []float64 {
	x := make([]float64, 0, len(e.Features))
	for _, h := range e.Numeric {
		f, ok := dataset.ParseNumber(strings.TrimSpace(r[h]))
		if !ok {
			f = e.Means[h]
		}
		x = append(x, f)
	}
	for _, h := range e.Categorical {
		v := strings.TrimSpace(r[h])
		for _, lv := range e.Levels[h] {
			if v == lv {
				x = append(x, 1)
			} else {
				x = append(x, 0)
			}
		}
	}
	return x
}

// encodePayload builds a prediction vector from loosely typed input. Unknown
// keys are ignored and absent features are 0. A key may also name an encoded
// feature directly.
func (e Encoding) encodePayload(p map[string]any) []float64 {
	x := make([]float64, len(e.Features))
	index := make(map[string]int, len(e.Features))
	for i, f := range e.Features {
		index[f] = i
	}
	for _, h := range e.Numeric {
		if f, ok := number(p[h]); ok {
			x[index[h]] = f
		}
	}
	for _, h := range e.Categorical {
		s, ok := p[h].(string)
		if !ok {
			continue
		}
		if i, known := index[dummyName(h, strings.TrimSpace(s))]; known {
			x[i] = 1
		}
	}
	for k, v := range p {
		i, ok := index[k]
		if !ok {
			continue
		}
		if f, ok := number(v); ok {
			x[i] = f
		}
	}
	return x
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		return dataset.ParseNumber(strings.TrimSpace(t))
	case fmt.Stringer:
		return dataset.ParseNumber(t.String())
	}
	return 0, false
}
