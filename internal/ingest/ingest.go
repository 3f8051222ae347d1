package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/KaramelBytes/socialhub-cli/internal/dataset"
	"github.com/KaramelBytes/socialhub-cli/internal/notify"
)

var (
	// ErrEmptyFile indicates the input had no content at all.
	ErrEmptyFile = errors.New("file is empty")
	// ErrNotText indicates binary or non UTF-8 input.
	ErrNotText = errors.New("file is not text")
	// ErrUnsupportedType indicates a file extension no reader accepts.
	ErrUnsupportedType = errors.New("unsupported file type")
)

// Table is an ingested dataset plus counters describing what was dropped.
type Table struct {
	Name    string
	Headers []string
	Rows    []dataset.Record
	// Skipped counts data lines rejected for malformed quoting.
	Skipped int
	// UnclosedQuoteLine is the line of a quoted field that ran over the
	// following lines, or 0.
	UnclosedQuoteLine int
	// Truncated counts rows that carried more fields than headers.
	Truncated int
	// Renamed maps a deduplicated header to the name it had in the file.
	Renamed map[string]string
}

// Dataset returns the table as a dataset value.
func (t *Table) Dataset() dataset.Dataset {
	return dataset.Dataset{Headers: t.Headers, Rows: t.Rows}
}

// Notice returns the success notice for a completed ingestion.
func (t *Table) Notice() notify.Notice {
	if t.UnclosedQuoteLine > 0 {
		return notify.Warning("Loaded %d rows; %d lines skipped after an unclosed quote on line %d", len(t.Rows), t.Skipped, t.UnclosedQuoteLine)
	}
	if t.Skipped > 0 {
		return notify.Success("Loaded %d rows successfully! (%d malformed rows skipped)", len(t.Rows), t.Skipped)
	}
	return notify.Success("Loaded %d rows successfully!", len(t.Rows))
}

// FailureNotice describes a failed ingestion.
func FailureNotice(err error) notify.Notice {
	return notify.Error("Error parsing file: %v", err)
}

// Reader turns a tabular file into a Table.
type Reader interface {
	CanRead(filename string) bool
	Read(r io.Reader) (*Table, error)
}

var registry []Reader

// Register adds a reader implementation to the registry.
func Register(r Reader) {
	registry = append(registry, r)
}

func init() {
	Register(csvReader{})
	Register(xlsxReader{})
}

// IngestFile reads a local CSV file. Other extensions are rejected.
func IngestFile(path string) (*Table, error) {
	if !(csvReader{}).CanRead(path) {
		return nil, fmt.Errorf("%s: %w (only .csv is accepted)", filepath.Base(path), ErrUnsupportedType)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	t, err := csvReader{}.Read(f)
	if err != nil {
		return nil, err
	}
	t.Name = filepath.Base(path)
	return t, nil
}

// IngestUpload reads an uploaded file with whichever registered reader accepts its name.
func IngestUpload(name string, r io.Reader) (*Table, error) {
	for _, rd := range registry {
		if rd.CanRead(name) {
			t, err := rd.Read(r)
			if err != nil {
				return nil, err
			}
			t.Name = filepath.Base(name)
			return t, nil
		}
	}
	return nil, ErrUnsupportedType
}

// builder assembles records keyed positionally by the first row.
type builder struct {
	t      *Table
	haveHd bool
}

func newBuilder() *builder { return &builder{t: &Table{}} }

// add consumes one parsed line. Lines with no content are ignored.
func (b *builder) add(fields []string) {
	if blankLine(fields) {
		return
	}
	if !b.haveHd {
		b.t.Headers, b.t.Renamed = uniqueHeaders(fields)
		b.haveHd = true
		return
	}
	n := len(b.t.Headers)
	if len(fields) > n {
		b.t.Truncated++
		fields = fields[:n]
	}
	rec := make(dataset.Record, len(fields))
	for i, v := range fields {
		rec[b.t.Headers[i]] = v
	}
	b.t.Rows = append(b.t.Rows, rec)
}

func (b *builder) table() *Table {
	if b.t.Rows == nil {
		b.t.Rows = []dataset.Record{}
	}
	return b.t
}

func blankLine(fields []string) bool {
	return len(fields) == 0 || (len(fields) == 1 && strings.TrimSpace(fields[0]) == "")
}

// uniqueHeaders trims names, fills blanks and suffixes repeats with _2, _3, ...
func uniqueHeaders(raw []string) ([]string, map[string]string) {
	out := make([]string, len(raw))
	seen := make(map[string]bool, len(raw))
	var renamed map[string]string
	for i, h := range raw {
		name := strings.TrimSpace(h)
		orig := name
		if name == "" {
			name = "column_" + strconv.Itoa(i+1)
		}
		if seen[name] {
			base := name
			for n := 2; seen[name]; n++ {
				name = base + "_" + strconv.Itoa(n)
			}
		}
		if name != orig {
			if renamed == nil {
				renamed = map[string]string{}
			}
			renamed[name] = orig
		}
		seen[name] = true
		out[i] = name
	}
	return out, renamed
}
