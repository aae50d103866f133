package handlers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"mailtriage/internal/graph"
	"mailtriage/internal/model"
	"mailtriage/pkg/logger"
)

// AlertHandler 通知人工并挂起运行，收到决定后完成
type AlertHandler struct {
	alerter HumanAlerter
	logger  *zap.Logger
	now     func() time.Time
}

func NewAlertHandler(alerter HumanAlerter, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{alerter: alerter, logger: logger, now: time.Now}
}

func (h *AlertHandler) Run(ctx context.Context, st *model.RunState, email model.Email) (graph.Transition, error) {
	alert := model.Alert{
		EmailID:  email.ID,
		RunID:    st.RunID,
		Reason:   alertReason(st),
		RaisedAt: h.now(),
	}
	if st.Category != nil {
		alert.Category = st.Category.Category
		alert.Rationale = st.Category.Rationale
	}

	if err := h.alerter.Notify(ctx, alert); err != nil {
		return graph.Transition{}, model.E(model.KindNotificationFailure, "handlers.Alert", err)
	}

	logger.WithEmail(ctx, h.logger, email.ID).Info("Human alert raised",
		zap.String("run_id", st.RunID),
		zap.String("reason", alert.Reason),
	)
	return graph.Suspend("alert sent: " + alert.Reason), nil
}

func (h *AlertHandler) Resume(ctx context.Context, st *model.RunState, email model.Email, d model.HumanDecision) (graph.Transition, error) {
	st.Decision = &d
	logger.WithEmail(ctx, h.logger, email.ID).Info("Human decision received",
		zap.String("run_id", st.RunID),
		zap.String("action", string(d.Action)),
		zap.String("reviewer", d.Reviewer),
	)
	return graph.Done(fmt.Sprintf("%s by %s", d.Action, d.Reviewer)), nil
}

func alertReason(st *model.RunState) string {
	if st.Escalation != "" {
		return st.Escalation
	}
	if st.Category == nil {
		return "escalated without classification"
	}
	if st.Category.Category != model.CategoryUrgent {
		return fmt.Sprintf("low confidence %s (%.2f)", st.Category.Category, st.Category.Confidence)
	}
	return "classified URGENT"
}
