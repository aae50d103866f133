package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	mqcontracts "mailtriage/contracts/mq"
	"mailtriage/internal/graph"
	"mailtriage/internal/model"
	"mailtriage/internal/repository"
	"mailtriage/internal/service"
	"mailtriage/pkg/logger"
	"mailtriage/pkg/mq"
	"mailtriage/pkg/trace"
)

// Decider 恢复等待人工的运行
type Decider interface {
	DecideByEmail(ctx context.Context, emailID string, d model.HumanDecision) (*model.RunState, error)
}

// DecisionHandler 消费 triage.decision，人工在外部系统里做出的决定
type DecisionHandler struct {
	svc    Decider
	logger *zap.Logger
}

func NewDecisionHandler(svc Decider, logger *zap.Logger) *DecisionHandler {
	return &DecisionHandler{svc: svc, logger: logger}
}

func (h *DecisionHandler) HandleDecision(ctx context.Context, raw json.RawMessage) error {
	var payload mqcontracts.DecisionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.logger.Error("Invalid DecisionPayload, sending to DLQ",
			zap.String("raw", string(raw)),
			zap.Error(err),
		)
		return mq.DeadLetter(fmt.Errorf("bad_payload: %w", err))
	}
	if payload.TraceID != "" {
		ctx = trace.WithContext(ctx, payload.TraceID)
	}
	log := logger.WithEmail(ctx, h.logger, payload.EmailID)

	d := payload.Decision()
	if !d.Action.Valid() {
		return mq.DeadLetter(fmt.Errorf("bad_payload: %w", graph.ErrInvalidDecision))
	}

	st, err := h.svc.DecideByEmail(ctx, payload.EmailID, d)
	switch {
	case err == nil:
		log.Info("Decision applied",
			zap.String("run_id", st.RunID),
			zap.String("status", string(st.Status)),
			zap.String("reviewer", d.Reviewer),
		)
		return nil
	case errors.Is(err, graph.ErrNotWaiting):
		// 重复投递，决定已生效
		log.Info("Run no longer waiting, dropping decision")
		return nil
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, graph.ErrEmailMismatch),
		errors.Is(err, graph.ErrInvalidDecision),
		errors.Is(err, graph.ErrNodeNotResumable):
		return mq.DeadLetter(err)
	case errors.Is(err, service.ErrInFlight), model.KindOf(err) == model.KindPersistenceFailure:
		return err
	default:
		// 恢复后的运行失败已经落库
		log.Warn("Resumed run failed", zap.Error(err))
		return nil
	}
}
