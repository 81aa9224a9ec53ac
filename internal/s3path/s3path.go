// Package s3path derives sample naming prefixes from an object-storage path.
package s3path

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedPath is returned when the final path segment does not hold at
// least two '_'-delimited tokens before its first '.'.
var ErrMalformedPath = errors.New("malformed object path")

// Prefixes are the names derived from one input file.
type Prefixes struct {
	FilePrefix string // SAMPLE_PLATE01_L001
	Prefix     string // SAMPLE_PLATE01
	Plate      string // PLATE01
}

// Parse splits the last segment of path on '.' and '_'.
//
//	s3://bucket/SAMPLE_PLATE01_L001.fastq.gz -> SAMPLE_PLATE01_L001, SAMPLE_PLATE01, PLATE01
func Parse(path string) (Prefixes, error) {
	seg := strings.TrimRight(path, "/")
	if i := strings.LastIndexByte(seg, '/'); i >= 0 {
		seg = seg[i+1:]
	}
	file := seg
	if i := strings.IndexByte(seg, '.'); i >= 0 {
		file = seg[:i]
	}
	tok := strings.Split(file, "_")
	if len(tok) < 2 || tok[0] == "" || tok[1] == "" {
		return Prefixes{}, fmt.Errorf("%w: %q", ErrMalformedPath, path)
	}
	return Prefixes{
		FilePrefix: file,
		Prefix:     tok[0] + "_" + tok[1],
		Plate:      tok[1],
	}, nil
}

// SJOutTab is the splice-junction table produced by the aligner for this sample.
func (p Prefixes) SJOutTab() string { return p.FilePrefix + ".homo.SJ.out.tab" }
