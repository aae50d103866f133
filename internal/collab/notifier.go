// Package collab holds the adapters for external collaborators: calendar,
// human alerting and the audit event stream.
package collab

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	mqcontracts "mailtriage/contracts/mq"
	"mailtriage/internal/graph"
	"mailtriage/internal/model"
	"mailtriage/pkg/logger"
	"mailtriage/pkg/mq"
	"mailtriage/pkg/trace"
)

// Publisher 发布能力，*mq.Publisher 满足该接口
type Publisher interface {
	PublishWithContext(ctx context.Context, routingKey string, payload any) error
}

// MQAlerter 把告警发布到 triage.alert
type MQAlerter struct {
	publisher Publisher
	logger    *zap.Logger
}

func NewMQAlerter(publisher Publisher, logger *zap.Logger) *MQAlerter {
	return &MQAlerter{publisher: publisher, logger: logger}
}

func (a *MQAlerter) Notify(ctx context.Context, alert model.Alert) error {
	payload := mqcontracts.NewAlertRaised(alert, trace.FromContext(ctx))
	if err := a.publisher.PublishWithContext(ctx, mq.RoutingAlertRaised, payload); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	return nil
}

// LogAlerter 只写日志，用于没有 MQ 的本地运行
type LogAlerter struct {
	logger *zap.Logger
}

func NewLogAlerter(logger *zap.Logger) *LogAlerter {
	return &LogAlerter{logger: logger}
}

func (a *LogAlerter) Notify(ctx context.Context, alert model.Alert) error {
	logger.WithEmail(ctx, a.logger, alert.EmailID).Warn("Human attention required",
		zap.String("run_id", alert.RunID),
		zap.String("category", string(alert.Category)),
		zap.String("rationale", alert.Rationale),
		zap.String("reason", alert.Reason),
	)
	return nil
}

// MQAuditSink 把每条 history 追加发布到 triage.audit
type MQAuditSink struct {
	publisher Publisher
}

func NewMQAuditSink(publisher Publisher) *MQAuditSink {
	return &MQAuditSink{publisher: publisher}
}

func (s *MQAuditSink) Emit(ctx context.Context, ev graph.AuditEvent) error {
	payload := mqcontracts.AuditPayload{
		EmailID:   ev.EmailID,
		RunID:     ev.RunID,
		Node:      ev.Node,
		Timestamp: ev.Timestamp,
		Outcome:   ev.Outcome,
		Summary:   ev.Summary,
		ErrorKind: string(ev.ErrorKind),
		TraceID:   trace.FromContext(ctx),
	}
	return s.publisher.PublishWithContext(ctx, mq.RoutingAudit, payload)
}
