package ingest

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/KaramelBytes/socialhub-cli/internal/dataset"
	"github.com/KaramelBytes/socialhub-cli/internal/notify"
)

func TestReadCSV_EndToEndScenario(t *testing.T) {
	tbl, err := ReadCSV([]byte("a,b\n1,2\n,4\n"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(tbl.Headers, []string{"a", "b"}) {
		t.Fatalf("headers = %v", tbl.Headers)
	}
	want := []dataset.Record{{"a": "1", "b": "2"}, {"a": "", "b": "4"}}
	if !reflect.DeepEqual(tbl.Rows, want) {
		t.Fatalf("rows = %v", tbl.Rows)
	}

	s := dataset.NewStore()
	s.LoadDataset(tbl.Rows, tbl.Headers)
	s.ReplaceNulls()
	if got := s.Snapshot().Rows[1]; !reflect.DeepEqual(got, dataset.Record{"a": "N/A", "b": "4"}) {
		t.Fatalf("row 2 after nulls = %v", got)
	}
	if err := s.RenameColumn("a", "alpha"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	snap := s.Snapshot()
	if !reflect.DeepEqual(snap.Headers, []string{"alpha", "b"}) {
		t.Fatalf("headers = %v", snap.Headers)
	}
	if !reflect.DeepEqual(snap.Rows[0], dataset.Record{"alpha": "1", "b": "2"}) {
		t.Fatalf("row 1 = %v", snap.Rows[0])
	}
}

func TestReadCSV_BlankLinesAndShortRows(t *testing.T) {
	in := "\n\nplatform,likes,shares\n\ntwitter,10,2\n\ninstagram,5\n   \nfacebook,1,2,3,4\n"
	tbl, err := ReadCSV([]byte(in))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(tbl.Headers, []string{"platform", "likes", "shares"}) {
		t.Fatalf("headers = %v", tbl.Headers)
	}
	if len(tbl.Rows) != 3 {
		t.Fatalf("rows = %d, want 3: %v", len(tbl.Rows), tbl.Rows)
	}
	if _, ok := tbl.Rows[1]["shares"]; ok {
		t.Fatalf("short row should omit trailing key: %v", tbl.Rows[1])
	}
	if tbl.Truncated != 1 || len(tbl.Rows[2]) != 3 {
		t.Fatalf("extra fields not dropped: truncated=%d row=%v", tbl.Truncated, tbl.Rows[2])
	}
}

func TestReadCSV_MalformedRowSkipped(t *testing.T) {
	tbl, err := ReadCSV([]byte("a,b\n1,2\nx\"y,3\n4,5\n"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if tbl.Skipped != 1 {
		t.Fatalf("skipped = %d", tbl.Skipped)
	}
	if len(tbl.Rows) != 2 || tbl.Rows[1]["a"] != "4" {
		t.Fatalf("rows = %v", tbl.Rows)
	}
	if n := tbl.Notice(); !strings.Contains(n.Message, "Loaded 2 rows successfully!") {
		t.Fatalf("notice = %q", n.Message)
	}
}

func TestReadCSV_UnclosedQuoteCountsSwallowedLines(t *testing.T) {
	tbl, err := ReadCSV([]byte("a,b\n1,\"x\n2,3\n4,5\n"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(tbl.Rows) != 0 || tbl.Skipped != 3 || tbl.UnclosedQuoteLine != 2 {
		t.Fatalf("rows=%v skipped=%d unclosed=%d", tbl.Rows, tbl.Skipped, tbl.UnclosedQuoteLine)
	}
	n := tbl.Notice()
	if n.Kind != notify.KindWarning || !strings.Contains(n.Message, "3 lines skipped after an unclosed quote on line 2") {
		t.Fatalf("notice = %+v", n)
	}
}

func TestReadCSV_QuotedFieldsAndBOM(t *testing.T) {
	tbl, err := ReadCSV([]byte("\xef\xbb\xbfname,caption\nx,\"hello, world\"\ny,\"multi\nline\"\n"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if tbl.Headers[0] != "name" {
		t.Fatalf("BOM not stripped: %q", tbl.Headers[0])
	}
	if tbl.Rows[0]["caption"] != "hello, world" || tbl.Rows[1]["caption"] != "multi\nline" {
		t.Fatalf("rows = %v", tbl.Rows)
	}
}

func TestReadCSV_DuplicateHeadersDeduplicated(t *testing.T) {
	tbl, err := ReadCSV([]byte("likes,likes,,likes_2\n1,2,3,4\n"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := []string{"likes", "likes_2", "column_3", "likes_2_2"}
	if !reflect.DeepEqual(tbl.Headers, want) {
		t.Fatalf("headers = %v, want %v", tbl.Headers, want)
	}
	if tbl.Rows[0]["likes_2"] != "2" || tbl.Rows[0]["likes_2_2"] != "4" {
		t.Fatalf("row = %v", tbl.Rows[0])
	}
	if tbl.Renamed["likes_2"] != "likes" {
		t.Fatalf("renamed = %v", tbl.Renamed)
	}
}

func TestReadCSV_Failures(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want error
	}{
		{"empty", nil, ErrEmptyFile},
		{"whitespace", []byte("  \n\n"), ErrEmptyFile},
		{"binary", []byte{0x89, 'P', 'N', 'G', 0x00, 0x01}, ErrNotText},
		{"invalid utf8", []byte("a,b\n\xff\xfe,1\n"), ErrNotText},
	}
	for _, tc := range cases {
		_, err := ReadCSV(tc.in)
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestReadCSV_HeaderOnlyIsZeroRowSuccess(t *testing.T) {
	tbl, err := ReadCSV([]byte("a,b\n"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(tbl.Rows) != 0 || tbl.Rows == nil {
		t.Fatalf("rows = %#v", tbl.Rows)
	}
}

func TestIngestFile_RejectsNonCSV(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "data.xlsx")
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := IngestFile(p); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("err = %v", err)
	}
	p = filepath.Join(dir, "posts.CSV")
	if err := os.WriteFile(p, []byte("a\n1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tbl, err := IngestFile(p)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if tbl.Name != "posts.CSV" || len(tbl.Rows) != 1 {
		t.Fatalf("table = %+v", tbl)
	}
}

func TestIngestUpload_UnsupportedType(t *testing.T) {
	if _, err := IngestUpload("legacy.xls", strings.NewReader("x")); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("err = %v", err)
	}
}

func buildWorkbook(t *testing.T, relTarget string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string]string{
		"xl/workbook.xml": `<?xml version="1.0"?><workbook xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"><sheets><sheet name="Posts" sheetId="1" r:id="rId1"/></sheets></workbook>`,
		"xl/_rels/workbook.xml.rels": `<?xml version="1.0"?><Relationships><Relationship Id="rId1" Target="` + relTarget + `"/></Relationships>`,
		"xl/sharedStrings.xml":       `<?xml version="1.0"?><sst><si><t>platform</t></si><si><t>likes</t></si><si><t>twitter</t></si></sst>`,
		"xl/worksheets/sheet1.xml": `<?xml version="1.0"?><worksheet><sheetData>` +
			`<row r="1"><c r="A1" t="s"><v>0</v></c><c r="B1" t="s"><v>1</v></c></row>` +
			`<row r="2"><c r="A2" t="s"><v>2</v></c><c r="B2"><v>42</v></c></row>` +
			`<row r="3"><c r="B3"><v>7</v></c></row>` +
			`</sheetData></worksheet>`,
	}
	for name, body := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestIngestUpload_XLSX(t *testing.T) {
	for _, target := range []string{"worksheets/sheet1.xml", "/xl/worksheets/sheet1.xml"} {
		tbl, err := IngestUpload("report.xlsx", bytes.NewReader(buildWorkbook(t, target)))
		if err != nil {
			t.Fatalf("%s: ingest: %v", target, err)
		}
		if !reflect.DeepEqual(tbl.Headers, []string{"platform", "likes"}) {
			t.Fatalf("headers = %v", tbl.Headers)
		}
		want := []dataset.Record{{"platform": "twitter", "likes": "42"}, {"platform": "", "likes": "7"}}
		if !reflect.DeepEqual(tbl.Rows, want) {
			t.Fatalf("rows = %v", tbl.Rows)
		}
	}
}

func TestReadXLSX_NotAZip(t *testing.T) {
	if _, err := ReadXLSX([]byte("plain text")); !errors.Is(err, ErrNotText) {
		t.Fatalf("err = %v", err)
	}
}

func TestNormalizeRelPath(t *testing.T) {
	tests := []struct{ in, want string }{
		{"/xl/worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
		{"worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
		{"/worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
	}
	for _, tt := range tests {
		if got := normalizeRelPath(tt.in); got != tt.want {
			t.Errorf("normalizeRelPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestColIndexFromRef(t *testing.T) {
	for ref, want := range map[string]int{"A1": 0, "C12": 2, "Z3": 25, "AA10": 26, "ab2": 27} {
		if got := colIndexFromRef(ref); got != want {
			t.Errorf("colIndexFromRef(%q) = %d, want %d", ref, got, want)
		}
	}
}
