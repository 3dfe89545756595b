package output

import "io"

// flushIfPossible pushes buffered event lines through to the reader side.
// Both buffered writers (Flush() error) and streaming HTTP responses
// (Flush()) are supported; other writers are left alone.
func flushIfPossible(w io.Writer) error {
	switch f := w.(type) {
	case interface{ Flush() error }:
		return f.Flush()
	case interface{ Flush() }:
		f.Flush()
	}
	return nil
}
