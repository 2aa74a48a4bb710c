package daemon

import (
	"io"

	"github.com/rs/zerolog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewZapSink builds a zap.Logger that writes JSON-encoded entries through
// writer (normally a *PrefixedWriter over a LogRotator). It backs kerneld's
// own structured startup/shutdown log.
func NewZapSink(writer io.Writer) *zap.Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(writer), zapcore.InfoLevel)
	return zap.New(core)
}

// NewZerologSink builds a zerolog.Logger over writer for the low-allocation
// hot-path hook-execution trace log.
func NewZerologSink(writer io.Writer) zerolog.Logger {
	return zerolog.New(writer).With().Timestamp().Logger()
}
