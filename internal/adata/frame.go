package adata

import (
	"errors"
	"fmt"
	"strconv"

	"sctools/internal/common"
)

// ErrLength is returned when a column does not match its frame length.
var ErrLength = errors.New("column length mismatch")

// Column is either numeric (Num) or string-valued (Str). Categorical string
// columns carry their category order in Categories.
type Column struct {
	Name       string
	Num        []float64
	Str        []string
	Categories []string
}

// IsNumeric reports whether the column holds numbers.
func (c *Column) IsNumeric() bool { return c.Str == nil }

// Len is the number of values.
func (c *Column) Len() int {
	if c.IsNumeric() {
		return len(c.Num)
	}
	return len(c.Str)
}

// String returns value i rendered as text.
func (c *Column) String(i int) string {
	if c.IsNumeric() {
		return strconv.FormatFloat(c.Num[i], 'g', -1, 64)
	}
	return c.Str[i]
}

// Strings renders every value as text.
func (c *Column) Strings() []string {
	if !c.IsNumeric() {
		return append([]string(nil), c.Str...)
	}
	out := make([]string, len(c.Num))
	for i := range c.Num {
		out[i] = c.String(i)
	}
	return out
}

func (c *Column) take(idx []int) *Column {
	out := &Column{Name: c.Name, Categories: append([]string(nil), c.Categories...)}
	if c.IsNumeric() {
		out.Num = make([]float64, len(idx))
		for k, i := range idx {
			out.Num[k] = c.Num[i]
		}
		return out
	}
	out.Str = make([]string, len(idx))
	for k, i := range idx {
		out.Str[k] = c.Str[i]
	}
	return out
}

// Frame is an ordered table keyed by Names.
type Frame struct {
	Names []string
	cols  []*Column
}

// NewFrame returns a frame with no columns.
func NewFrame(names []string) *Frame {
	return &Frame{Names: append([]string(nil), names...)}
}

// Len is the number of rows.
func (f *Frame) Len() int { return len(f.Names) }

// Columns lists column names in insertion order.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.cols))
	for i, c := range f.cols {
		out[i] = c.Name
	}
	return out
}

// Col returns the named column.
func (f *Frame) Col(name string) (*Column, bool) {
	for _, c := range f.cols {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// Index maps row names to positions.
func (f *Frame) Index() map[string]int { return common.IndexOf(f.Names) }

// Set adds c, replacing any column of the same name in place.
func (f *Frame) Set(c *Column) error {
	if c.Len() != f.Len() {
		return fmt.Errorf("%w: %s has %d values, frame has %d rows", ErrLength, c.Name, c.Len(), f.Len())
	}
	for i, old := range f.cols {
		if old.Name == c.Name {
			f.cols[i] = c
			return nil
		}
	}
	f.cols = append(f.cols, c)
	return nil
}

// SetNumeric sets a numeric column.
func (f *Frame) SetNumeric(name string, vals []float64) error {
	if vals == nil {
		vals = []float64{}
	}
	return f.Set(&Column{Name: name, Num: vals})
}

// SetStrings sets a string column without categories.
func (f *Frame) SetStrings(name string, vals []string) error {
	if vals == nil {
		vals = []string{}
	}
	return f.Set(&Column{Name: name, Str: vals})
}

// SetCategorical sets a string column whose categories are its distinct
// values in natural label order.
func (f *Frame) SetCategorical(name string, vals []string) error {
	if vals == nil {
		vals = []string{}
	}
	return f.Set(&Column{Name: name, Str: vals, Categories: common.Levels(vals)})
}

// Drop removes a column; it is a no-op for unknown names.
func (f *Frame) Drop(name string) {
	for i, c := range f.cols {
		if c.Name == name {
			f.cols = append(f.cols[:i], f.cols[i+1:]...)
			return
		}
	}
}

// Take returns a deep copy holding rows idx, in that order.
func (f *Frame) Take(idx []int) *Frame {
	out := &Frame{Names: make([]string, len(idx)), cols: make([]*Column, len(f.cols))}
	for k, i := range idx {
		out.Names[k] = f.Names[i]
	}
	for j, c := range f.cols {
		out.cols[j] = c.take(idx)
	}
	return out
}

// Copy returns a deep copy.
func (f *Frame) Copy() *Frame { return f.Take(seq(f.Len())) }

func (f *Frame) validate(what string) error {
	seen := make(map[string]struct{}, len(f.Names))
	for _, n := range f.Names {
		if _, dup := seen[n]; dup {
			return fmt.Errorf("%s names are not unique: %q", what, n)
		}
		seen[n] = struct{}{}
	}
	for _, c := range f.cols {
		if c.Len() != f.Len() {
			return fmt.Errorf("%w: %s column %s has %d values, want %d", ErrLength, what, c.Name, c.Len(), f.Len())
		}
	}
	return nil
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
