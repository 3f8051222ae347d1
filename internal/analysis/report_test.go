package analysis

import (
	"math"
	"sort"
	"strings"
	"testing"

	"github.com/KaramelBytes/socialhub-cli/internal/dataset"
)

var postRows = [][]string{
	{"twitter", "100", "10", "1,000", "hello", "2024-01-01"},
	{"twitter", "110", "12", "1,100", "world", "2024-01-02"},
	{"instagram", "95", "9", "900", "launch", "2024-01-03"},
	{"instagram", "105", "11", "1,050", "promo", "2024-01-04"},
	{"twitter", "98", "10", "980", "recap", "2024-01-05"},
	{"instagram", "102", "10", "1,020", "teaser", "2024-01-06"},
	{"twitter", "90", "8", "880", "thread", "2024-01-07"},
	{"instagram", "97", "9", "970", "reel", "2024-01-08"},
	{"twitter", "500", "50", "5,000", "viral", "2024-01-09"},
	{"instagram", "101", "10", "1,010", "story", "2024-01-10"},
}

var (
	processedLikes  = []float64{100, 110, 95, 105, 98, 102, 90, 97, 500}
	processedShares = []float64{10, 12, 9, 11, 10, 10, 8, 9, 50}
	processedReach  = []float64{1000, 1100, 900, 1050, 980, 1020, 880, 970, 5000}
	twitterIdx      = []int{0, 1, 4, 6, 8}
	instagramIdx    = []int{2, 3, 5, 7}
)

func postsDataset() dataset.Dataset {
	headers := []string{"platform", "likes", "shares", "reach", "caption", "posted"}
	ds := dataset.Dataset{Headers: headers}
	for _, row := range postRows {
		r := dataset.Record{}
		for i, h := range headers {
			r[h] = row[i]
		}
		ds.Rows = append(ds.Rows, r)
	}
	return ds
}

func TestAnalyzeAndMarkdown(t *testing.T) {
	opt := DefaultOptions()
	opt.SampleRows = 3
	opt.MaxRows = 9
	opt.GroupBy = []string{"Platform"}
	opt.CorrPerGroup = true

	rep := Analyze("posts.csv", postsDataset(), opt)
	assertReport(t, rep)

	md := rep.Markdown()
	for _, want := range []string{
		"[DATASET SUMMARY]",
		"File: posts.csv",
		"Rows: ~10 (processed 9)",
		"- likes: numeric",
		"outliers: 1 above |z|>3.5",
		"- posted: datetime",
		"[GROUP-BY SUMMARY]",
		"platform=twitter (n=5)",
		"[PER-GROUP CORRELATIONS]",
		"[CORRELATIONS]",
		"likes ~ reach",
		"| platform | likes | shares | reach | caption | posted |",
		"[NOTES]",
		"processed only 9/10 rows due to MaxRows",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
}

func assertReport(t *testing.T, rep *Report) {
	t.Helper()
	if rep.Rows != 10 || rep.Processed != 9 {
		t.Fatalf("rows = %d processed = %d", rep.Rows, rep.Processed)
	}
	if len(rep.Samples) != 3 || !equalStrings(rep.Samples[0], postRows[0]) {
		t.Fatalf("samples = %#v", rep.Samples)
	}

	likes := columnByName(t, rep, "likes")
	checkStats(t, likes, processedLikes)
	count, maxZ := robustOutlierStats(processedLikes, 3.5)
	if likes.OutliersCount != count || count != 1 {
		t.Fatalf("likes outliers = %d, want %d", likes.OutliersCount, count)
	}
	if !almostEqual(likes.OutliersMaxAbsZ, maxZ, 1e-6) {
		t.Fatalf("likes max |z| = %f, want %f", likes.OutliersMaxAbsZ, maxZ)
	}
	checkStats(t, columnByName(t, rep, "reach"), processedReach)

	platform := columnByName(t, rep, "platform")
	if platform.Kind != KindCategorical || platform.TopValues[0].Value != "twitter" || platform.TopValues[0].Count != 5 {
		t.Fatalf("platform = %#v", platform)
	}
	if k := columnByName(t, rep, "posted").Kind; k != KindDatetime {
		t.Fatalf("posted kind = %q", k)
	}

	if len(rep.Groups) != 2 {
		t.Fatalf("groups = %#v", rep.Groups)
	}
	tw, ig := rep.Groups[0], rep.Groups[1]
	if tw.Key != "platform=twitter" || tw.Size != 5 || ig.Key != "platform=instagram" || ig.Size != 4 {
		t.Fatalf("group keys = %q/%d %q/%d", tw.Key, tw.Size, ig.Key, ig.Size)
	}
	checkNumSummary(t, tw.Metrics["likes"], subset(processedLikes, twitterIdx))
	checkNumSummary(t, ig.Metrics["likes"], subset(processedLikes, instagramIdx))

	if rep.Corr == nil || !equalStrings(rep.Corr.Columns, []string{"likes", "shares", "reach"}) {
		t.Fatalf("corr = %#v", rep.Corr)
	}
	if want := correlation(processedLikes, processedReach); !almostEqual(rep.Corr.Values[0][2], want, 1e-9) {
		t.Fatalf("likes~reach = %f, want %f", rep.Corr.Values[0][2], want)
	}
	if rep.Corr.Values[2][0] != rep.Corr.Values[0][2] || rep.Corr.Values[1][1] != 1 {
		t.Fatalf("matrix not symmetric with unit diagonal: %#v", rep.Corr.Values)
	}

	want := correlation(subset(processedShares, instagramIdx), subset(processedReach, instagramIdx))
	found := false
	for _, p := range ig.CorrPairs {
		if p.A == "shares" && p.B == "reach" {
			found = true
			if !almostEqual(p.R, want, 1e-9) {
				t.Fatalf("instagram shares~reach = %f, want %f", p.R, want)
			}
		}
	}
	if !found {
		t.Fatalf("instagram pairs = %#v", ig.CorrPairs)
	}
}

func TestAnalyzeCountsMissingCells(t *testing.T) {
	ds := dataset.Dataset{
		Headers: []string{"likes", "note"},
		Rows: []dataset.Record{
			{"likes": "1", "note": "N/A"},
			{"likes": "", "note": "ok"},
			{"likes": "NaN"},
		},
	}
	rep := Analyze("", ds, DefaultOptions())
	likes := columnByName(t, rep, "likes")
	if likes.NonNull != 1 || likes.Missing != 2 || likes.Kind != KindNumeric {
		t.Fatalf("likes = %#v", likes)
	}
	if note := columnByName(t, rep, "note"); note.Missing != 2 {
		t.Fatalf("note = %#v", note)
	}
	if rep.Corr != nil {
		t.Fatal("correlations need two numeric columns")
	}
}

func TestAnalyzeEmpty(t *testing.T) {
	rep := Analyze("x", dataset.Dataset{}, DefaultOptions())
	if rep.Rows != 0 || len(rep.Cols) != 0 {
		t.Fatalf("report = %#v", rep)
	}
	if md := rep.Markdown(); !strings.Contains(md, "Columns: 0") {
		t.Fatalf("markdown = %s", md)
	}
}

func TestParseMetric(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1,234", 1234, true},
		{"12.5%", 12.5, true},
		{"3 400", 3400, true},
		{"-2.5e3", -2500, true},
		{"1,23", 0, false},
		{"abc", 0, false},
	}
	for _, c := range cases {
		got, ok := parseMetric(c.in)
		if ok != c.ok || (ok && got != c.want) {
			t.Errorf("parseMetric(%q) = %v, %v", c.in, got, ok)
		}
	}
}

func columnByName(t *testing.T, rep *Report, name string) ColumnSummary {
	t.Helper()
	for _, c := range rep.Cols {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("column %q not found", name)
	return ColumnSummary{}
}

func checkStats(t *testing.T, col ColumnSummary, vals []float64) {
	t.Helper()
	if col.NonNull != len(vals) {
		t.Fatalf("%s non-null = %d, want %d", col.Name, col.NonNull, len(vals))
	}
	if !almostEqual(col.Min, minFloat(vals), 1e-6) || !almostEqual(col.Max, maxFloat(vals), 1e-6) {
		t.Fatalf("%s range = [%f, %f]", col.Name, col.Min, col.Max)
	}
	if !almostEqual(col.Mean, mean(vals), 1e-6) {
		t.Fatalf("%s mean = %f, want %f", col.Name, col.Mean, mean(vals))
	}
	if !almostEqual(col.Std, sampleStd(vals), 1e-6) {
		t.Fatalf("%s std = %f, want %f", col.Name, col.Std, sampleStd(vals))
	}
}

func checkNumSummary(t *testing.T, s NumSummary, vals []float64) {
	t.Helper()
	if s.Count != len(vals) {
		t.Fatalf("summary count = %d, want %d", s.Count, len(vals))
	}
	if !almostEqual(s.Min, minFloat(vals), 1e-6) || !almostEqual(s.Max, maxFloat(vals), 1e-6) {
		t.Fatalf("summary range = [%f, %f]", s.Min, s.Max)
	}
	if !almostEqual(s.Mean, mean(vals), 1e-6) {
		t.Fatalf("summary mean = %f, want %f", s.Mean, mean(vals))
	}
}

func robustOutlierStats(vals []float64, threshold float64) (count int, maxAbs float64) {
	cp := append([]float64(nil), vals...)
	sort.Float64s(cp)
	med := quantile(cp, 0.5)
	devs := make([]float64, len(cp))
	for i, v := range cp {
		devs[i] = math.Abs(v - med)
	}
	sort.Float64s(devs)
	mad := quantile(devs, 0.5)
	if mad == 0 {
		return 0, 0
	}
	for _, v := range cp {
		az := math.Abs(0.6745 * (v - med) / mad)
		if az > threshold {
			count++
		}
		if az > maxAbs {
			maxAbs = az
		}
	}
	return
}

func subset(vals []float64, idxs []int) []float64 {
	out := make([]float64, len(idxs))
	for i, idx := range idxs {
		out[i] = vals[idx]
	}
	return out
}

func mean(vals []float64) float64 {
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func sampleStd(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	m := mean(vals)
	var sum float64
	for _, v := range vals {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(vals)-1))
}

func minFloat(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		m = math.Min(m, v)
	}
	return m
}

func maxFloat(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		m = math.Max(m, v)
	}
	return m
}

func correlation(a, b []float64) float64 {
	ma, mb := mean(a), mean(b)
	var num, da2, db2 float64
	for i := range a {
		da, db := a[i]-ma, b[i]-mb
		num += da * db
		da2 += da * da
		db2 += db * db
	}
	if da2 == 0 || db2 == 0 {
		return 0
	}
	return num / math.Sqrt(da2*db2)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func almostEqual(a, b, eps float64) bool { return math.Abs(a-b) <= eps }
