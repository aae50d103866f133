package handlers

import (
	"context"

	"go.uber.org/zap"

	"mailtriage/internal/graph"
	"mailtriage/internal/model"
	"mailtriage/pkg/logger"
)

type IgnoreHandler struct {
	logger *zap.Logger
}

func NewIgnoreHandler(logger *zap.Logger) *IgnoreHandler {
	return &IgnoreHandler{logger: logger}
}

func (h *IgnoreHandler) Run(ctx context.Context, st *model.RunState, email model.Email) (graph.Transition, error) {
	rationale := ""
	if st.Category != nil {
		rationale = st.Category.Rationale
	}
	logger.WithEmail(ctx, h.logger, email.ID).Info("Email ignored",
		zap.String("run_id", st.RunID),
		zap.String("sender", email.Sender),
		zap.String("rationale", rationale),
	)
	return graph.Done("ignored: " + rationale), nil
}
