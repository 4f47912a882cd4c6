// Package logging builds the zap loggers used by the timewarp commands.
package logging

import (
	"bytes"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger logs progress to stderr and, when logFile is set, everything to
// the file. Debug messages reach stderr only in verbose mode.
func NewLogger(stderr io.Writer, logFile *os.File, verbose bool) *zap.SugaredLogger {
	var cores []zapcore.Core
	if logFile != nil {
		cores = append(cores, fileCore(logFile))
	}
	cores = append(cores, consoleCore(stderr, verbose))
	return zap.New(zapcore.NewTee(cores...)).Sugar()
}

func fileCore(logFile *os.File) zapcore.Core {
	all := zap.LevelEnablerFunc(func(zapcore.Level) bool { return true })
	encoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "ts",
		LevelKey:         "level",
		MessageKey:       "msg",
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		ConsoleSeparator: "\t",
	})
	return zapcore.NewCore(encoder, zapcore.Lock(logFile), all)
}

func consoleCore(w io.Writer, verbose bool) zapcore.Core {
	level := zapcore.InfoLevel
	levelKey := ""
	if verbose {
		level = zapcore.DebugLevel
		levelKey = "level"
	}
	encoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		MessageKey:       "msg",
		LevelKey:         levelKey,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		ConsoleSeparator: "\t",
	})
	return zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(w)), level)
}

// Buffer collects log output in tests. It is safe for concurrent use.
type Buffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// NewDebugLogger returns a logger that writes every level to a buffer.
func NewDebugLogger() (*zap.SugaredLogger, *Buffer) {
	buf := &Buffer{}
	encoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		LevelKey:         "level",
		MessageKey:       "msg",
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		ConsoleSeparator: "  ",
	})
	logger := zap.New(zapcore.NewCore(encoder, zapcore.AddSync(buf), zapcore.DebugLevel))
	return logger.Sugar(), buf
}
