package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// NodeSpan 为一次图节点执行创建 span
func NodeSpan(ctx context.Context, node, emailID, runID string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "triage.node."+node,
		trace.WithAttributes(
			attribute.String("triage.node", node),
			attribute.String("triage.email_id", emailID),
			attribute.String("triage.run_id", runID),
		),
	)
}

// EndNodeSpan 记录结果并结束 span
func EndNodeSpan(span trace.Span, outcome string, err error) {
	span.SetAttributes(attribute.String("triage.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
