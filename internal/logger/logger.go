package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// L and S discard everything until Init is called.
var (
	L       = zap.NewNop()
	S       = L.Sugar()
	helpers = S
	logFile *os.File
)

// Init points the global logger at the capedit log file, truncated on each
// run. See Path for where it lives.
func Init(debug bool) error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if debug {
		level.SetLevel(zapcore.DebugLevel)
	}
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.FunctionKey = zapcore.OmitKey

	logFile = f
	L = zap.New(
		zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(f), level),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(zap.Int("pid", os.Getpid())),
	)
	S = L.Sugar()
	// the helpers below report their caller, not this file
	helpers = S.WithOptions(zap.AddCallerSkip(1))

	L.Info("logger initialized", zap.String("path", path), zap.Stringer("level", level))
	return nil
}

// Named returns a child of the global logger for one component.
func Named(name string) *zap.Logger {
	return L.Named(name)
}

// Close flushes and closes the log file.
func Close() {
	_ = L.Sync()
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
	L = zap.NewNop()
	S = L.Sugar()
	helpers = S
}

// Path is $CAPEDIT_LOG_FILE, or capedit.log in the config directory.
func Path() (string, error) {
	if v := os.Getenv("CAPEDIT_LOG_FILE"); v != "" {
		return v, nil
	}
	if v := os.Getenv("CAPEDIT_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "capedit.log"), nil
	}
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "capedit", "capedit.log"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "capedit", "capedit.log"), nil
}

func Debug(msg string, keysAndValues ...interface{}) {
	helpers.Debugw(msg, keysAndValues...)
}

func Info(msg string, keysAndValues ...interface{}) {
	helpers.Infow(msg, keysAndValues...)
}

func Warn(msg string, keysAndValues ...interface{}) {
	helpers.Warnw(msg, keysAndValues...)
}

func Error(msg string, keysAndValues ...interface{}) {
	helpers.Errorw(msg, keysAndValues...)
}
