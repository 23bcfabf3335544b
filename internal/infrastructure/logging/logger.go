package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the console's root logger. Its level can be changed while the
// pipeline runs; every Named child follows the change.
type Logger struct {
	*zap.Logger
	level zap.AtomicLevel
}

// Config defines logger configuration.
type Config struct {
	Level       string // "debug", "info", "warn", "error"; empty picks by mode
	Development bool
	// Output is a zap sink: "stderr", "stdout" or a file path
	Output string
}

// Resolve fills the gaps of a loaded configuration. DSP_ENV=production
// forces JSON output, an empty level means debug in development and info
// otherwise, and logs go to stderr unless told otherwise so they never
// interleave with the shell on stdout.
func Resolve(cfg Config) Config {
	if IsProduction() {
		cfg.Development = false
	}
	if cfg.Level == "" {
		cfg.Level = "info"
		if cfg.Development {
			cfg.Level = "debug"
		}
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
	return cfg
}

// New builds a logger from a resolved configuration.
func New(cfg Config) (*Logger, error) {
	cfg = Resolve(cfg)
	lvl, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	level := zap.NewAtomicLevelAt(lvl)

	zapCfg := zap.Config{
		Level:             level,
		Development:       cfg.Development,
		Encoding:          "json",
		EncoderConfig:     productionEncoder(),
		OutputPaths:       []string{cfg.Output},
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: !cfg.Development,
	}
	if cfg.Development {
		zapCfg.Encoding = "console"
		zapCfg.EncoderConfig = developmentEncoder()
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger for %s: %w", cfg.Output, err)
	}
	return &Logger{Logger: logger, level: level}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop(), level: zap.NewAtomicLevelAt(zapcore.InfoLevel)}
}

// Level reports the current minimum level
func (l *Logger) Level() string {
	return l.level.Level().String()
}

// SetLevel changes the minimum level of this logger and all its children
func (l *Logger) SetLevel(text string) error {
	lvl, err := parseLevel(text)
	if err != nil {
		return err
	}
	prev := l.level.Level()
	l.level.SetLevel(lvl)
	if prev != lvl {
		l.Info("Log level changed",
			zap.Stringer("from", prev),
			zap.Stringer("to", lvl),
		)
	}
	return nil
}

// Sync flushes buffered entries. Errors from syncing a terminal are ignored.
func (l *Logger) Sync() {
	_ = l.Logger.Sync()
}

func parseLevel(level string) (zapcore.Level, error) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("log level %q: %w", level, err)
	}
	return l, nil
}

func developmentEncoder() zapcore.EncoderConfig {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	enc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	return enc
}

func productionEncoder() zapcore.EncoderConfig {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.MessageKey = "message"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeDuration = zapcore.MillisDurationEncoder
	return enc
}

// IsProduction checks if running in production environment.
func IsProduction() bool {
	env := os.Getenv("DSP_ENV")
	return env == "production" || env == "prod"
}
