package daemon

import (
	"fmt"
	"io"
	"time"
)

// PrefixedWriter wraps a LogRotator as an io.Writer, stamping each write
// with a timestamp and a static prefix before handing it to the rotator
// (§4.10: "timestamp + prefix are injected per write by the adjacent
// writer"). It is what the logrus/zerolog/zap sinks write through.
type PrefixedWriter struct {
	rotator *LogRotator
	prefix  string
}

// NewPrefixedWriter builds a writer over rotator, opening it if not
// already open.
func NewPrefixedWriter(rotator *LogRotator, prefix string) (*PrefixedWriter, error) {
	if rotator.file == nil {
		if err := rotator.Open(); err != nil {
			return nil, err
		}
	}
	return &PrefixedWriter{rotator: rotator, prefix: prefix}, nil
}

// Write implements io.Writer, stamping p with a timestamp/prefix before
// delegating to the rotator.
func (w *PrefixedWriter) Write(p []byte) (int, error) {
	stamped := fmt.Sprintf("%s %s %s", time.Now().UTC().Format(time.RFC3339Nano), w.prefix, p)
	if err := w.rotator.Write([]byte(stamped)); err != nil {
		return 0, err
	}
	return len(p), nil
}

var _ io.Writer = (*PrefixedWriter)(nil)
