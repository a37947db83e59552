// Package logging builds the zap loggers used across the engine.
package logging

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	Level string // debug | info | warn | error
	JSON  bool
}

// New returns a sugared logger. JSON output uses the production encoder;
// otherwise a console encoder with short timestamps is written to stderr.
func New(opts Options) (*zap.SugaredLogger, error) {
	level := zap.InfoLevel
	if s := strings.TrimSpace(opts.Level); s != "" {
		if err := level.Set(s); err != nil {
			return nil, errors.Wrapf(err, "log level %q", s)
		}
	}

	if opts.JSON {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(level)
		l, err := cfg.Build()
		if err != nil {
			return nil, errors.Wrap(err, "build json logger")
		}
		return l.Sugar(), nil
	}

	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(os.Stderr), level)
	return zap.New(core).Sugar(), nil
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.SugaredLogger) *zap.SugaredLogger {
	if l == nil {
		return zap.NewNop().Sugar()
	}
	return l
}
