package pkg

import (
	"io"

	"go.uber.org/multierr"
)

// CombinedWriter fans every write out to all of its writers, used to log to
// stdout and a rotated file at once. A failing writer does not stop the
// others, its error is combined into the returned one.
type CombinedWriter struct {
	writers []io.Writer
}

func NewCombinedWriter(writers ...io.Writer) *CombinedWriter {
	return &CombinedWriter{
		writers: append([]io.Writer(nil), writers...),
	}
}

// Write reports len(p) once every writer took the whole of p.
func (cw *CombinedWriter) Write(p []byte) (int, error) {
	var errs error
	for _, w := range cw.writers {
		n, err := w.Write(p)
		if err == nil && n < len(p) {
			err = io.ErrShortWrite
		}
		errs = multierr.Append(errs, err)
	}
	if errs != nil {
		return 0, errs
	}
	return len(p), nil
}
