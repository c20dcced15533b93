package infrastructure

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the application logger. Production gets JSON output
// with ISO timestamps, everything else gets the colored console encoder.
func NewLogger(environment string) (*zap.Logger, error) {
	var config zap.Config
	if environment == "production" {
		config = zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	config.EncoderConfig.MessageKey = "message"

	return config.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
}

// SyncLogger flushes buffered entries on shutdown. Sync errors against
// stdout or stderr are expected on some platforms and ignored.
func SyncLogger(logger *zap.Logger) {
	if err := logger.Sync(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			logger.Error("Failed to sync logger", zap.Error(err))
		}
	}
}
