package handlers

import (
	"context"

	"mailtriage/internal/graph"
	"mailtriage/internal/model"
)

// AcknowledgeHandler 生成模板确认回复，不调用模型，同样要经过 guardrails
type AcknowledgeHandler struct {
	policy model.Policy
}

func NewAcknowledgeHandler(policy model.Policy) *AcknowledgeHandler {
	return &AcknowledgeHandler{policy: policy}
}

func (h *AcknowledgeHandler) Run(ctx context.Context, st *model.RunState, email model.Email) (graph.Transition, error) {
	st.Draft = &model.DraftReply{
		EmailID:         email.ID,
		Kind:            model.DraftKindAcknowledgement,
		Body:            buildAcknowledgement(email.Subject, h.policy.Signature),
		GuardrailStatus: model.GuardrailPending,
		Version:         1,
	}
	return graph.Next(LabelDrafted, "acknowledgement draft v1"), nil
}
