package output

import "fmt"

// Output formats.
const (
	FormatText  = "text"
	FormatCSV   = "csv"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
)

// Formats lists every supported format.
var Formats = []string{FormatText, FormatCSV, FormatJSON, FormatJSONL}

// CheckFormat returns an error for an unsupported format.
func CheckFormat(f string) error {
	for _, v := range Formats {
		if f == v {
			return nil
		}
	}
	return fmt.Errorf("unsupported output %q (want text, csv, json or jsonl)", f)
}

// Columns describes how a row type renders as delimited text.
type Columns[T any] struct {
	Names []string
	Cells func(T) []string
}
