package logging

import (
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const fileName = "tileprobe.log"

func fileCore(logDir string) (zapcore.Core, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, err
	}
	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(logDir, fileName),
		MaxSize:    10, // MB
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	})
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	return zapcore.NewCore(zapcore.NewJSONEncoder(cfg), w, zap.InfoLevel), nil
}

// NewLogger writes JSON lines to a rotated file under logDir.
func NewLogger(logDir string) (*zap.Logger, error) {
	core, err := fileCore(logDir)
	if err != nil {
		return nil, err
	}
	return zap.New(core), nil
}

// NewConsoleLogger is NewLogger plus a human readable copy on console, for
// command line use. An unusable logDir degrades to console only.
func NewConsoleLogger(logDir string, console io.Writer, level zapcore.Level) *zap.Logger {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.TimeKey = ""
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.AddSync(console), level),
	}
	fc, err := fileCore(logDir)
	if err == nil {
		cores = append(cores, fc)
	}
	log := zap.New(zapcore.NewTee(cores...))
	if err != nil {
		log.Warn("log_file_unavailable", zap.String("dir", logDir), zap.Error(err))
	}
	return log
}
