package output

import (
	"encoding/json"
	"io"
)

// WriteJSON writes list as one indented JSON array. A nil slice is
// written as [].
func WriteJSON[T any](w io.Writer, list []T) error {
	if list == nil {
		list = []T{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(list)
}
