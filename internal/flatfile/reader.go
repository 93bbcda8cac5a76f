package flatfile

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const utf8BOM = "﻿"

// Source streams rows from one flatfile. Rows are keyed by the mapped,
// normalized header names; short rows are padded with empty cells and long
// rows truncated so every row exposes exactly the header set.
type Source struct {
	path    string
	file    *os.File
	csv     *csv.Reader
	headers []string
}

// Open opens a flatfile for streaming. The first line is consumed as the
// header row, normalized and mapped through the format.
func Open(path string, format *Format) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open flatfile: %w", err)
	}
	cr := csv.NewReader(f)
	cr.Comma = format.Comma()
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	rawHeader, err := cr.Read()
	if err != nil {
		f.Close()
		if err == io.EOF {
			return nil, fmt.Errorf("flatfile %s: empty file", path)
		}
		return nil, fmt.Errorf("flatfile %s: read header: %w", path, err)
	}
	headers := make([]string, len(rawHeader))
	for i, h := range rawHeader {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		headers[i] = format.mapHeader(normalizeHeader(h))
	}
	return &Source{path: path, file: f, csv: cr, headers: headers}, nil
}

// Headers returns the mapped header names in file order.
func (s *Source) Headers() []string {
	return s.headers
}

// Next returns the next data row, or io.EOF when the file is exhausted.
// A malformed line is returned as a non-nil error with a nil row; the
// stream stays usable, so callers can record the fault and keep going.
func (s *Source) Next() (map[string]string, error) {
	record, err := s.csv.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("flatfile %s: %w", s.path, err)
	}
	row := make(map[string]string, len(s.headers))
	for i, name := range s.headers {
		if i < len(record) {
			row[name] = record[i]
		} else {
			row[name] = ""
		}
	}
	return row, nil
}

// Close releases the underlying file.
func (s *Source) Close() error {
	return s.file.Close()
}

// headerFold strips combining marks so accented headers compare equal to
// their ASCII spellings.
var headerFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeHeader canonicalizes one header cell: diacritics folded,
// lowercased and trimmed. Punctuation is kept intact because spectral
// headers such as "sa(0.010)" and "pga(cm/s/s)" are recognized by shape.
func normalizeHeader(name string) string {
	folded, _, err := transform.String(headerFold, name)
	if err != nil {
		folded = name
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// NormalizeHeader reports the canonical form of a source column header, the
// form under which Format.Columns keys are matched.
func NormalizeHeader(name string) string {
	return normalizeHeader(name)
}
