package writers

import (
	"io"

	"sctools/internal/output"
)

// Start spins up a writer goroutine for rows of type T in the given format.
// Close the returned channel, then read exactly one value from the error
// channel. Broken pipes are not reported.
func Start[T any](out io.Writer, format string, header bool, cols output.Columns[T], bufSize int) (chan<- T, <-chan error) {
	if format == output.FormatJSONL {
		return StartJSONL[T](out, bufSize)
	}
	if bufSize <= 0 {
		bufSize = 64
	}
	in := make(chan T, bufSize)
	errCh := make(chan error, 1)

	go func() {
		var err error
		switch format {
		case output.FormatJSON:
			var buf []T
			for r := range in {
				buf = append(buf, r)
			}
			err = output.WriteJSON(out, buf)
		case output.FormatCSV:
			err = output.StreamCSV(out, in, header, cols)
		case output.FormatText:
			err = output.StreamText(out, in, header, cols)
		default:
			err = output.CheckFormat(format)
		}
		if err != nil {
			// Keep the producer from blocking on a dead writer.
			for range in {
			}
		}
		if IsBrokenPipe(err) {
			err = nil
		}
		errCh <- err
	}()

	return in, errCh
}

// WriteAll writes rows through a Start writer and waits for it.
func WriteAll[T any](out io.Writer, format string, header bool, cols output.Columns[T], rows []T) error {
	in, errCh := Start(out, format, header, cols, len(rows))
	for _, r := range rows {
		in <- r
	}
	close(in)
	return <-errCh
}
