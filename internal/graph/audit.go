package graph

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mailtriage/internal/model"
	"mailtriage/pkg/logger"
)

// AuditEvent is emitted for every history append.
type AuditEvent struct {
	EmailID   string          `json:"email_id"`
	RunID     string          `json:"run_id"`
	Node      string          `json:"node"`
	Timestamp time.Time       `json:"timestamp"`
	Outcome   string          `json:"outcome"`
	Summary   string          `json:"summary,omitempty"`
	ErrorKind model.ErrorKind `json:"error_kind,omitempty"`
}

type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent) error
}

// LogSink writes audit events to a zap logger.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(ctx context.Context, ev AuditEvent) error {
	fields := []zap.Field{
		zap.String("run_id", ev.RunID),
		zap.String("node", ev.Node),
		zap.String("outcome", ev.Outcome),
		zap.Time("timestamp", ev.Timestamp),
	}
	if ev.Summary != "" {
		fields = append(fields, zap.String("summary", ev.Summary))
	}
	if ev.ErrorKind != "" {
		fields = append(fields, zap.String("error_kind", string(ev.ErrorKind)))
	}
	logger.WithEmail(ctx, s.logger, ev.EmailID).Info("audit", fields...)
	return nil
}

// MultiSink fans out to every sink and returns the first error.
type MultiSink []AuditSink

func (m MultiSink) Emit(ctx context.Context, ev AuditEvent) error {
	var first error
	for _, s := range m {
		if err := s.Emit(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type nopSink struct{}

func (nopSink) Emit(context.Context, AuditEvent) error { return nil }
