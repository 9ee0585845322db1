package log

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileSink is a size-rotated log file written alongside stderr.
type FileSink struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func newConfig(env string) zap.Config {
	var config zap.Config

	if env == "prod" {
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	} else {
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	return config
}

// NewLogger builds the service logger. A non-nil sink with a path tees JSON
// records into a rotating file.
func NewLogger(env string, sink *FileSink) (*zap.Logger, error) {
	config := newConfig(env)
	if sink == nil || sink.Path == "" {
		return config.Build()
	}

	fileEnc := config.EncoderConfig
	fileEnc.EncodeLevel = zapcore.LowercaseLevelEncoder

	var consoleEnc zapcore.Encoder
	if env == "prod" {
		consoleEnc = zapcore.NewJSONEncoder(config.EncoderConfig)
	} else {
		consoleEnc = zapcore.NewConsoleEncoder(config.EncoderConfig)
	}

	rotator := &lumberjack.Logger{
		Filename:   sink.Path,
		MaxSize:    sink.MaxSizeMB,
		MaxBackups: sink.MaxBackups,
		MaxAge:     sink.MaxAgeDays,
		Compress:   true,
	}

	core := zapcore.NewTee(
		zapcore.NewCore(consoleEnc, zapcore.Lock(os.Stderr), config.Level),
		zapcore.NewCore(zapcore.NewJSONEncoder(fileEnc), zapcore.AddSync(rotator), config.Level),
	)

	opts := []zap.Option{zap.AddCaller()}
	if env != "prod" {
		opts = append(opts, zap.Development(), zap.AddStacktrace(zap.WarnLevel))
	} else {
		opts = append(opts, zap.AddStacktrace(zap.ErrorLevel))
	}
	return zap.New(core, opts...), nil
}

func NewSugar(env string, sink *FileSink) (*zap.SugaredLogger, error) {
	logger, err := NewLogger(env, sink)
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}
