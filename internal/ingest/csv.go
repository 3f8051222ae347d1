package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// maxCSVBytes bounds a single ingestion.
const maxCSVBytes = 64 << 20

type csvReader struct{}

func (csvReader) CanRead(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".csv")
}

// Read parses CSV with a header row. Malformed data lines are skipped and counted.
func (csvReader) Read(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxCSVBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(data) > maxCSVBytes {
		return nil, fmt.Errorf("read csv: file exceeds %d MiB", maxCSVBytes>>20)
	}
	return ReadCSV(data)
}

// ReadCSV parses raw CSV bytes into a Table.
func ReadCSV(data []byte) (*Table, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}
	if !utf8.Valid(data) || bytes.IndexByte(data, 0) >= 0 {
		return nil, ErrNotText
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	b := newBuilder()
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				if !b.haveHd {
					return nil, fmt.Errorf("read header: %w", err)
				}
				// An unclosed quote swallows every line up to perr.Line.
				b.t.Skipped += max(1, perr.Line-perr.StartLine+1)
				if perr.Line > perr.StartLine && b.t.UnclosedQuoteLine == 0 {
					b.t.UnclosedQuoteLine = perr.StartLine
				}
				continue
			}
			return nil, fmt.Errorf("read csv: %w", err)
		}
		b.add(rec)
	}
	if !b.haveHd {
		return nil, ErrEmptyFile
	}
	return b.table(), nil
}
