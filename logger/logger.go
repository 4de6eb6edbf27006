// Package logger 对 zap 的简单封装
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config 日志配置
type Config struct {
	Level       string `yaml:"level"` // debug | info | warn | error
	ServiceName string `yaml:"service_name"`
	Development bool   `yaml:"development"`
}

// Logger 包装 zap.Logger
type Logger struct {
	Zap *zap.Logger
}

// New 按配置创建 JSON 格式、输出到 stderr 的 logger
func New(cfg Config) (*Logger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeDuration = zapcore.MillisDurationEncoder

	encoding := "json"
	if cfg.Development {
		encoding = "console"
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zcfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(ParseLevel(cfg.Level)),
		Development:      cfg.Development,
		Encoding:         encoding,
		EncoderConfig:    encoderCfg,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
		InitialFields: map[string]interface{}{
			"pid":     os.Getpid(),
			"service": cfg.ServiceName,
		},
	}

	z, err := zcfg.Build(zap.AddCaller(), zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return &Logger{Zap: z}, nil
}

// Nop 不输出任何内容，测试用
func Nop() *Logger {
	return &Logger{Zap: zap.NewNop()}
}

// ParseLevel 未识别的级别按 info 处理
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zap.DebugLevel
	case "warn", "warning":
		return zap.WarnLevel
	case "error":
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

func (l *Logger) Debug(msg string, err error, fields map[string]interface{}) {
	l.Zap.Debug(msg, toZapFields(err, fields)...)
}

func (l *Logger) Info(msg string, err error, fields map[string]interface{}) {
	l.Zap.Info(msg, toZapFields(err, fields)...)
}

func (l *Logger) Warn(msg string, err error, fields map[string]interface{}) {
	l.Zap.Warn(msg, toZapFields(err, fields)...)
}

func (l *Logger) Error(msg string, err error, fields map[string]interface{}) {
	l.Zap.Error(msg, toZapFields(err, fields)...)
}

// Sync 刷新缓冲
func (l *Logger) Sync() error {
	return l.Zap.Sync()
}

func toZapFields(err error, fields map[string]interface{}) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+1)
	if err != nil {
		out = append(out, zap.Error(err))
	}
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}
