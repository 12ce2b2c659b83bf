package log

import (
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var commitID string

func LinkID(linkID uuid.UUID) zap.Field {
	return zap.String("payment_link_id", linkID.String())
}

func ExternalID(externalID string) zap.Field {
	return zap.String("external_id", externalID)
}

func TransactionID(transactionID string) zap.Field {
	return zap.String("transaction_id", transactionID)
}

func NewLogger() *zap.SugaredLogger {
	logPath := os.Getenv("LOG_PATH")
	if logPath == "" {
		logPath = "stdout"
	}

	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		if parsed, err := zapcore.ParseLevel(lvl); err == nil {
			level = zap.NewAtomicLevelAt(parsed)
		}
	}

	zapConfig := zap.Config{
		Level:       level,
		Development: false,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02T15:04:05.999999Z07:00"),
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	}

	l, err := zapConfig.Build()
	if err != nil {
		panic(err)
	}
	return l.Sugar().With(zap.String("commit_id", commitID))
}
