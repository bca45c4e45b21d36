// Package sinks provides progress.Sink implementations: structured logging
// and Prometheus collectors.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/mjsoul-tools/soulcrawl/internal/progress"
)

// LogSink writes each progress event as a structured log line.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunID.String()),
			zap.String("stage", string(evt.Stage)),
			zap.Stringer("mode", evt.Mode),
			zap.Int64("cursor_ms", evt.CursorMs),
			zap.Int("page", evt.Page),
			zap.Int("fetched", evt.Fetched),
			zap.Int("inserted", evt.Inserted),
			zap.Int("skipped", evt.Skipped),
			zap.Duration("dur", evt.Dur),
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		s.logger.Info("fetch progress", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
