package writers

import (
	"bufio"
	"encoding/json"
	"io"
	"sync"
)

// Line writers share 64 KiB buffers; encoders are rebuilt per stream.
var linePool = sync.Pool{
	New: func() any { return bufio.NewWriterSize(io.Discard, 64<<10) },
}

// StartJSONL streams each row as one JSON line using its v1 json tags.
// A failed encode drains the channel so the producer never blocks.
func StartJSONL[T any](out io.Writer, bufSize int) (chan<- T, <-chan error) {
	if bufSize <= 0 {
		bufSize = 64
	}
	in := make(chan T, bufSize)
	done := make(chan error, 1)

	go func() {
		bw := linePool.Get().(*bufio.Writer)
		bw.Reset(out)
		defer func() {
			bw.Reset(io.Discard)
			linePool.Put(bw)
		}()

		enc := json.NewEncoder(bw)
		for v := range in {
			if err := enc.Encode(v); err != nil {
				for range in {
				}
				if IsBrokenPipe(err) {
					err = nil
				}
				done <- err
				return
			}
		}
		if err := bw.Flush(); err != nil && !IsBrokenPipe(err) {
			done <- err
			return
		}
		done <- nil
	}()
	return in, done
}
