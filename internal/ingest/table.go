// Package ingest reads raw expression and annotation tables and builds the
// annotated matrix from them.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"sctools/internal/xio"
)

// ErrEmptyTable is returned for a table without a header row.
var ErrEmptyTable = errors.New("table is empty")

// Table is a delimited text table. Header includes the first (key) column.
type Table struct {
	Header []string
	Rows   [][]string
}

// Keys returns the first column of every row.
func (t *Table) Keys() []string {
	out := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[0]
	}
	return out
}

// Column returns the position of a header name.
func (t *Table) Column(name string) (int, bool) {
	for i, h := range t.Header {
		if h == name {
			return i, true
		}
	}
	return -1, false
}

// Delimiter picks the field separator from the file name: tab for .tsv,
// .tab and .txt (optionally gzipped), comma otherwise.
func Delimiter(path string) rune {
	p := strings.TrimSuffix(strings.ToLower(path), ".gz")
	switch filepath.Ext(p) {
	case ".tsv", ".tab", ".txt":
		return '\t'
	}
	return ','
}

// ReadTable reads a CSV/TSV file (gzip allowed; "-" is stdin).
func ReadTable(path string) (*Table, error) {
	rc, err := xio.Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	t, err := ParseTable(rc, Delimiter(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// ParseTable reads a delimited table from r. Every row must have as many
// fields as the header.
func ParseTable(r io.Reader, delim rune) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = delim
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyTable
	}
	if err != nil {
		return nil, err
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	t := &Table{Header: header}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}
