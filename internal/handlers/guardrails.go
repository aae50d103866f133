package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"mailtriage/internal/graph"
	"mailtriage/internal/guardrails"
	"mailtriage/internal/model"
	"mailtriage/pkg/logger"
	"mailtriage/pkg/metrics"
)

// GuardrailsNode 校验草稿：通过则保存，回复草稿可重写，否则升级给人工
type GuardrailsNode struct {
	checker *guardrails.Checker
	policy  model.Policy
	logger  *zap.Logger
}

func NewGuardrailsNode(policy model.Policy, logger *zap.Logger) *GuardrailsNode {
	return &GuardrailsNode{
		checker: guardrails.New(policy.Guardrails),
		policy:  policy,
		logger:  logger,
	}
}

func (n *GuardrailsNode) Run(ctx context.Context, st *model.RunState, email model.Email) (graph.Transition, error) {
	if st.Draft == nil {
		return graph.Transition{}, model.E(model.KindInvalidGraph, "handlers.Guardrails", errors.New("no draft to validate"))
	}

	checked, violations := n.checker.Validate(email, *st.Draft)
	st.Draft = &checked

	metrics.IncrementGuardrailVerdict(string(checked.Kind), string(checked.GuardrailStatus))
	for _, v := range violations {
		metrics.IncrementGuardrailViolation(string(v.Rule))
	}

	if checked.GuardrailStatus == model.GuardrailPassed {
		return graph.Next(LabelPassed, fmt.Sprintf("%s draft v%d passed", checked.Kind, checked.Version)), nil
	}

	logger.WithEmail(ctx, n.logger, email.ID).Warn("Draft rejected by guardrails",
		zap.String("run_id", st.RunID),
		zap.String("kind", string(checked.Kind)),
		zap.Int("version", checked.Version),
		zap.Strings("violations", checked.Violations),
	)

	if checked.Kind == model.DraftKindReply && checked.Version <= n.policy.MaxRedraftAttempts {
		return graph.Next(LabelRedraft, fmt.Sprintf("reply draft v%d rejected: %s", checked.Version, strings.Join(checked.Violations, "; "))), nil
	}

	st.Escalation = fmt.Sprintf("%s: %s draft v%d rejected: %s",
		model.KindGuardrailExhausted, checked.Kind, checked.Version, strings.Join(checked.Violations, "; "))
	return graph.Transition{
		Label:   LabelEscalate,
		Summary: st.Escalation,
		Kind:    model.KindGuardrailExhausted,
	}, nil
}
