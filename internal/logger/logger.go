// Package logger собирает zap-логгер сервиса.
package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New создаёт production-логгер с уровнем level. Если задан file,
// записи дублируются в файл с ротацией.
func New(level, file string) (*zap.Logger, error) {
	lvl := zap.InfoLevel
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		lvl = parsed
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	if file == "" {
		return cfg.Build()
	}

	rotator := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    64,
		MaxBackups: 7,
		MaxAge:     7,
	}

	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.AddSync(rotator), cfg.Level),
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), cfg.Level),
	)
	return zap.New(core, zap.AddCaller()), nil
}
