package notify

import (
	"context"

	"github.com/charmbracelet/log"
)

// LogSink writes every event through the package's standard structured
// logger, so notifications remain visible even with no webhook
// configured.
type LogSink struct {
	Logger *log.Logger
}

// NewLogSink creates a LogSink. A nil logger makes Send a no-op.
func NewLogSink(logger *log.Logger) *LogSink {
	return &LogSink{Logger: logger}
}

func (l *LogSink) Name() string { return "log" }

func (l *LogSink) Send(ctx context.Context, ev Event) error {
	if l.Logger == nil {
		return nil
	}
	fields := []interface{}{"type", ev.Type}
	if ev.Phase != "" {
		fields = append(fields, "phase", ev.Phase)
	}
	if ev.Story != "" {
		fields = append(fields, "story", ev.Story)
	}
	if ev.Err != nil {
		fields = append(fields, "error", ev.Err)
	}
	l.Logger.Info(ev.Message, fields...)
	return nil
}
