package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process logger. It discards everything until Init runs.
var Log = zap.NewNop()

type Options struct {
	Dir         string
	MaxSizeKB   int64
	MaxFiles    int
	Level       string
	ConsoleOnly bool
	FileOnly    bool // keep stdout clean for CLI output
}

// Init writes JSON logs to stdout and to a size-rotated clouddb.log in
// opts.Dir. The returned func flushes and closes the log file.
func Init(opts Options) (func() error, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encCfg)

	var cores []zapcore.Core
	if !opts.FileOnly {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level))
	}

	var r *rotator.Rotator
	if !opts.ConsoleOnly {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return nil, err
		}
		var err error
		r, err = rotator.New(filepath.Join(opts.Dir, "clouddb.log"), opts.MaxSizeKB, false, opts.MaxFiles)
		if err != nil {
			return nil, fmt.Errorf("failed to create log rotator: %w", err)
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(r)), level))
	}

	Log = zap.New(zapcore.NewTee(cores...), zap.AddCaller())

	return func() error {
		_ = Log.Sync()
		if r != nil {
			return r.Close()
		}
		return nil
	}, nil
}
