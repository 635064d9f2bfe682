package notify

import (
	"strings"

	"go.uber.org/zap"
)

// LogSink reports notifications through a zap logger when no visual surface exists.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wraps logger; nil uses a no-op logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Show logs "[SEVERITY] message" at a level matching the severity.
func (sink *LogSink) Show(message string, severity Severity) {
	normalized := severity.Normalize()
	line := "[" + strings.ToUpper(string(normalized)) + "] " + message
	fields := []zap.Field{
		zap.String("code", "notify.show"),
		zap.String("severity", string(normalized)),
	}
	switch normalized {
	case SeverityError:
		sink.logger.Error(line, fields...)
	case SeverityWarning:
		sink.logger.Warn(line, fields...)
	default:
		sink.logger.Info(line, fields...)
	}
}
