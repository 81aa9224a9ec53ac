// internal/output/text.go
package output

import (
	"encoding/csv"
	"io"
	"strings"
)

// WriteTextHeader prints the tab-joined column names.
func WriteTextHeader[T any](w io.Writer, cols Columns[T]) error {
	_, err := io.WriteString(w, strings.Join(cols.Names, "\t")+"\n")
	return err
}

// StreamText prints one TSV line per row as rows arrive.
func StreamText[T any](w io.Writer, in <-chan T, header bool, cols Columns[T]) error {
	if header {
		if err := WriteTextHeader(w, cols); err != nil {
			return err
		}
	}
	for r := range in {
		if _, err := io.WriteString(w, strings.Join(cols.Cells(r), "\t")+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// StreamCSV is StreamText with RFC 4180 quoting.
func StreamCSV[T any](w io.Writer, in <-chan T, header bool, cols Columns[T]) error {
	cw := csv.NewWriter(w)
	if header {
		if err := cw.Write(cols.Names); err != nil {
			return err
		}
	}
	for r := range in {
		if err := cw.Write(cols.Cells(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
