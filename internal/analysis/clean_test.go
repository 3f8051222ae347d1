package analysis

import (
	"testing"

	"github.com/KaramelBytes/socialhub-cli/internal/dataset"
)

func dirtyDataset() dataset.Dataset {
	return dataset.Dataset{
		Headers: []string{"id", "likes", "platform", "post_date", "time_zone", "note"},
		Rows: []dataset.Record{
			{"id": "1", "likes": "10", "platform": "x", "post_date": "2024/01/02", "time_zone": "UTC", "note": ""},
			{"id": "2", "likes": "", "platform": "", "post_date": "2024/01/03", "time_zone": "UTC", "note": ""},
			{"id": "3", "likes": "30", "platform": "y", "post_date": "2024/01/04", "time_zone": "UTC", "note": ""},
			{"id": "1", "likes": "10", "platform": "x", "post_date": "2024/01/02", "time_zone": "UTC", "note": ""},
			{"id": "4", "likes": "NaN", "platform": "x", "post_date": "2024/01/05", "time_zone": "UTC"},
		},
	}
}

func TestClean(t *testing.T) {
	in := dirtyDataset()
	out, sum := Clean(in)

	if sum.RowsBefore != 5 || sum.RowsAfter != 4 || sum.RowsRemoved != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if !equalStrings(sum.ConvertedDateColumns, []string{"post_date", "time_zone"}) {
		t.Fatalf("date columns = %v", sum.ConvertedDateColumns)
	}
	second := out.Rows[1]
	if second["likes"] != "10" || second["platform"] != "x" || second["post_date"] != "2024-01-03" {
		t.Fatalf("filled row = %v", second)
	}
	if out.Rows[3]["likes"] != "10" || out.Rows[3]["note"] != UnknownCategory {
		t.Fatalf("last row = %v", out.Rows[3])
	}
	if out.Rows[0]["time_zone"] != "UTC" {
		t.Fatalf("unparseable time column rewritten: %v", out.Rows[0])
	}

	if in.Rows[1]["likes"] != "" || len(in.Rows) != 5 {
		t.Fatal("Clean mutated its input")
	}
}

func TestCleanModeTieTakesSmallest(t *testing.T) {
	ds := dataset.Dataset{
		Headers: []string{"c"},
		Rows:    []dataset.Record{{"c": "b"}, {"c": "a"}, {"c": ""}},
	}
	out, _ := Clean(ds)
	if out.Rows[2]["c"] != "a" {
		t.Fatalf("fill = %q", out.Rows[2]["c"])
	}
}

func TestCleanKeepsClockInDatetimes(t *testing.T) {
	ds := dataset.Dataset{
		Headers: []string{"created_time"},
		Rows:    []dataset.Record{{"created_time": "2024-01-02 10:30"}, {"created_time": "2024-01-03"}},
	}
	out, _ := Clean(ds)
	if out.Rows[0]["created_time"] != "2024-01-02 10:30:00" || out.Rows[1]["created_time"] != "2024-01-03 00:00:00" {
		t.Fatalf("rows = %v", out.Rows)
	}
}

func TestNumericHeaders(t *testing.T) {
	got := NumericHeaders(edaDataset())
	if !equalStrings(got, []string{"a", "b", "d"}) {
		t.Fatalf("numeric = %v", got)
	}
}
