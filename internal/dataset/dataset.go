package dataset

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NullPlaceholder is written into cells that were missing or null.
const NullPlaceholder = "N/A"

// ErrColumnExists is returned when a rename targets a name held by another column.
var ErrColumnExists = errors.New("column already exists")

// nullMarkers are literal cell values treated as missing (compared case-insensitively).
var nullMarkers = []string{"null", "nan", "na", "none", "nil", "undefined"}

// Record maps a column name to its cell value. Keys may be sparse.
type Record map[string]string

// Dataset is an ordered table: unique headers plus records in file order.
type Dataset struct {
	Headers []string `json:"headers"`
	Rows    []Record `json:"rows"`
}

// Len returns the number of rows.
func (d Dataset) Len() int { return len(d.Rows) }

// Empty reports whether the dataset holds neither headers nor rows.
func (d Dataset) Empty() bool { return len(d.Headers) == 0 && len(d.Rows) == 0 }

// HasColumn reports whether name is one of the headers.
func (d *Dataset) HasColumn(name string) bool { return d.indexOf(name) >= 0 }

func (d *Dataset) indexOf(name string) int {
	for i, h := range d.Headers {
		if h == name {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy.
func (d *Dataset) Clone() Dataset {
	out := Dataset{
		Headers: append([]string(nil), d.Headers...),
		Rows:    make([]Record, len(d.Rows)),
	}
	for i, r := range d.Rows {
		cp := make(Record, len(r))
		for k, v := range r {
			cp[k] = v
		}
		out.Rows[i] = cp
	}
	return out
}

// Column returns the values of one column in row order; missing cells are "".
func (d Dataset) Column(name string) []string {
	out := make([]string, len(d.Rows))
	for i, r := range d.Rows {
		out[i] = r[name]
	}
	return out
}

// RenameColumn moves oldName to newName in the header list and in every record.
// It is a no-op when oldName is absent, newName is blank, or both are equal.
func (d *Dataset) RenameColumn(oldName, newName string) error {
	newName = strings.TrimSpace(newName)
	idx := d.indexOf(oldName)
	if idx < 0 || newName == "" || newName == oldName {
		return nil
	}
	if d.indexOf(newName) >= 0 {
		return fmt.Errorf("rename %q to %q: %w", oldName, newName, ErrColumnExists)
	}
	for _, r := range d.Rows {
		if v, ok := r[oldName]; ok {
			r[newName] = v
			delete(r, oldName)
		}
	}
	d.Headers[idx] = newName
	return nil
}

// ReplaceNulls writes NullPlaceholder into every missing, blank or null-marker cell.
// It returns the number of cells changed.
func (d *Dataset) ReplaceNulls() int {
	changed := 0
	for _, r := range d.Rows {
		for _, h := range d.Headers {
			v, ok := r[h]
			if !ok || IsNull(v) {
				r[h] = NullPlaceholder
				changed++
			}
		}
	}
	return changed
}

// IsNull reports whether a cell value counts as missing.
func IsNull(v string) bool {
	t := strings.TrimSpace(v)
	if t == "" {
		return true
	}
	for _, m := range nullMarkers {
		if strings.EqualFold(t, m) {
			return true
		}
	}
	return false
}

// NormalizeNumeric min-max scales every column whose cells all parse as finite
// numbers. A constant column maps to 0. It returns the names of scaled columns.
func (d *Dataset) NormalizeNumeric() []string {
	if len(d.Rows) == 0 {
		return nil
	}
	var scaled []string
	for _, h := range d.Headers {
		vals, ok := d.strictNumeric(h)
		if !ok {
			continue
		}
		lo, hi := vals[0], vals[0]
		for _, v := range vals[1:] {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		for i, r := range d.Rows {
			r[h] = FormatNumber(minMax(vals[i], lo, hi))
		}
		scaled = append(scaled, h)
	}
	return scaled
}

// minMax maps v from [lo, hi] onto [0, 1]. Extremes of opposite sign can
// overflow hi-lo, so the halved form is used then.
func minMax(v, lo, hi float64) float64 {
	if hi == lo {
		return 0
	}
	var n float64
	if span := hi - lo; !math.IsInf(span, 0) {
		n = (v - lo) / span
	} else {
		n = (v/2 - lo/2) / (hi/2 - lo/2)
	}
	return math.Max(0, math.Min(1, n))
}

// strictNumeric returns the parsed column when every row holds a finite number.
func (d *Dataset) strictNumeric(h string) ([]float64, bool) {
	vals := make([]float64, len(d.Rows))
	for i, r := range d.Rows {
		f, ok := ParseNumber(r[h])
		if !ok {
			return nil, false
		}
		vals[i] = f
	}
	return vals, true
}

// DropDuplicates removes rows whose values across all headers repeat an earlier
// row, keeping the first occurrence. It returns the number of rows removed.
func (d *Dataset) DropDuplicates() int {
	seen := make(map[string]struct{}, len(d.Rows))
	kept := d.Rows[:0]
	removed := 0
	var b strings.Builder
	for _, r := range d.Rows {
		b.Reset()
		for _, h := range d.Headers {
			v, ok := r[h]
			if ok {
				b.WriteByte(1)
			} else {
				b.WriteByte(0)
			}
			b.WriteString(v)
			b.WriteByte(0x1f)
		}
		key := b.String()
		if _, dup := seen[key]; dup {
			removed++
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, r)
	}
	for i := len(kept); i < len(d.Rows); i++ {
		d.Rows[i] = nil
	}
	d.Rows = kept
	return removed
}

// ParseNumber parses a trimmed cell as a finite float.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// FormatNumber renders a float without exponent or trailing zeros.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
