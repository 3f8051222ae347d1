// Package views holds read-only projections over a dataset. Nothing here
// mutates its input.
package views

import (
	"strings"

	"github.com/KaramelBytes/socialhub-cli/internal/dataset"
)

// AllPlatforms is the selection that disables platform filtering.
const AllPlatforms = "all"

// ChartLimit is the number of rows projected into chart series.
const ChartLimit = 15

var (
	platformKeys   = []string{"platform", "channel", "source"}
	fallbackDomain = []string{"twitter", "instagram", "facebook", "youtube", "linkedin", "tiktok"}
	socialKeys     = []string{"engagement", "likes", "shares", "comments", "reach", "followers", "views", "impressions", "sentiment"}
)

// NumericColumns returns headers whose non-empty cells all parse as finite
// numbers. Empty cells are skipped. A column with no values is not numeric.
func NumericColumns(ds dataset.Dataset) []string {
	var out []string
	for _, h := range ds.Headers {
		seen := false
		ok := true
		for _, r := range ds.Rows {
			v := strings.TrimSpace(r[h])
			if v == "" {
				continue
			}
			if _, isNum := dataset.ParseNumber(v); !isNum {
				ok = false
				break
			}
			seen = true
		}
		if ok && seen {
			out = append(out, h)
		}
	}
	return out
}

// measurableColumns returns headers where at least one row holds a number.
func measurableColumns(headers []string, rows []dataset.Record) []string {
	var out []string
	for _, h := range headers {
		for _, r := range rows {
			if _, ok := dataset.ParseNumber(r[h]); ok {
				out = append(out, h)
				break
			}
		}
	}
	return out
}

// PlatformColumn returns the first header naming a platform, channel or source.
func PlatformColumn(headers []string) (string, bool) {
	for _, h := range headers {
		if containsAny(h, platformKeys...) {
			return h, true
		}
	}
	return "", false
}

// PlatformDomain returns the filter choices: "all" followed by the distinct
// non-empty values of the platform column in first-seen order, or a fixed
// list of networks when no such column exists. An empty dataset has no domain.
func PlatformDomain(ds dataset.Dataset) []string {
	if len(ds.Rows) == 0 {
		return nil
	}
	col, ok := PlatformColumn(ds.Headers)
	if !ok {
		return append([]string{AllPlatforms}, fallbackDomain...)
	}
	out := []string{AllPlatforms}
	seen := map[string]bool{}
	for _, r := range ds.Rows {
		v := r[col]
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// FilterByPlatform returns the rows whose platform cell equals selection,
// ignoring case. "all", an empty selection or a dataset with no platform
// column yields every row.
func FilterByPlatform(ds dataset.Dataset, selection string) []dataset.Record {
	col, ok := PlatformColumn(ds.Headers)
	if !ok || selection == "" || strings.EqualFold(selection, AllPlatforms) {
		return ds.Rows
	}
	var out []dataset.Record
	for _, r := range ds.Rows {
		if strings.EqualFold(r[col], selection) {
			out = append(out, r)
		}
	}
	return out
}

// SocialColumns returns headers that look like social-media metrics.
func SocialColumns(headers []string) []string {
	var out []string
	for _, h := range headers {
		if IsSocialColumn(h) {
			out = append(out, h)
		}
	}
	return out
}

// IsSocialColumn reports whether a header looks like a social-media metric.
func IsSocialColumn(h string) bool { return containsAny(h, socialKeys...) }

func containsAny(s string, subs ...string) bool {
	ls := strings.ToLower(s)
	for _, sub := range subs {
		if strings.Contains(ls, sub) {
			return true
		}
	}
	return false
}

func firstMatching(headers []string, sub string) string {
	for _, h := range headers {
		if strings.Contains(strings.ToLower(h), sub) {
			return h
		}
	}
	return ""
}

func filterHeaders(headers []string, subs ...string) []string {
	var out []string
	for _, h := range headers {
		if containsAny(h, subs...) {
			out = append(out, h)
		}
	}
	return out
}

func num(r dataset.Record, col string) float64 {
	f, _ := dataset.ParseNumber(r[col])
	return f
}
