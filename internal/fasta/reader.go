// Package fasta scans FASTA headers; the reference genome is only checked,
// never loaded.
package fasta

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"sctools/internal/xio"
)

// ErrNoRecords is returned when a file holds no '>' header.
var ErrNoRecords = errors.New("no FASTA records")

// Header is one record header with its sequence length.
type Header struct {
	ID  string
	Len int
}

// ScanHeaders streams the headers of path to emit, in file order.
// Return a non-nil error from emit to stop early (it is returned as-is).
func ScanHeaders(ctx context.Context, path string, emit func(Header) error) error {
	rc, err := xio.Open(path)
	if err != nil {
		return err
	}
	defer rc.Close()

	sc := bufio.NewScanner(rc)
	const maxLine = 64 * 1024 * 1024 // allow very long single-line sequences (64 MiB)
	sc.Buffer(make([]byte, 64*1024), maxLine)

	var (
		cur  Header
		have bool
		n    int
	)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) > 0 && line[0] == '>' {
			if have {
				if err := emit(cur); err != nil {
					return err
				}
			}
			if n++; n%1024 == 0 && ctx.Err() != nil {
				return ctx.Err()
			}
			f := strings.Fields(string(line[1:]))
			if len(f) == 0 {
				return fmt.Errorf("%s: empty FASTA header at record %d", path, n)
			}
			cur, have = Header{ID: f[0]}, true
			continue
		}
		if have {
			cur.Len += len(strings.TrimSpace(string(line)))
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	if !have {
		return fmt.Errorf("%s: %w", path, ErrNoRecords)
	}
	return emit(cur)
}

var errStop = errors.New("stop")

// FirstHeader returns the first record's ID without reading the rest.
func FirstHeader(ctx context.Context, path string) (string, error) {
	var id string
	err := ScanHeaders(ctx, path, func(h Header) error {
		id = h.ID
		return errStop
	})
	if err != nil && !errors.Is(err, errStop) {
		return "", err
	}
	return id, nil
}
