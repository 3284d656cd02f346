package log

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// InitLog builds the console logger used by every command. Colors are only
// enabled when stdout is a terminal.
func InitLog(lvl zap.AtomicLevel) *zap.Logger {
	levelEncoder := zapcore.LowercaseLevelEncoder
	if term.IsTerminal(int(os.Stdout.Fd())) {
		levelEncoder = zapcore.CapitalColorLevelEncoder
	}

	loggerCfg := &zap.Config{
		Level:    lvl,
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "severity",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeTime:     zapcore.RFC3339TimeEncoder,
			EncodeLevel:    levelEncoder,
			EncodeDuration: zapcore.MillisDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	plain, err := loggerCfg.Build(zap.AddStacktrace(zap.DPanicLevel))
	if err != nil {
		panic(err)
	}

	return plain
}

// ParseLevel returns the atomic level for name, falling back to info for
// unknown names.
func ParseLevel(name string) zap.AtomicLevel {
	lvl, err := zap.ParseAtomicLevel(name)
	if err != nil {
		return zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	return lvl
}

// Setup builds a logger for level and installs it as the zap global. The
// returned func restores the previous globals and flushes the logger.
func Setup(level string, fields ...zap.Field) func() {
	logger := InitLog(ParseLevel(level)).With(fields...)
	undo := zap.ReplaceGlobals(logger)
	return func() {
		_ = logger.Sync()
		undo()
	}
}
