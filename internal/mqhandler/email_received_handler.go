package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	mqcontracts "mailtriage/contracts/mq"
	"mailtriage/internal/model"
	"mailtriage/internal/service"
	"mailtriage/pkg/logger"
	"mailtriage/pkg/mq"
	"mailtriage/pkg/trace"
	"mailtriage/pkg/util"
)

const (
	defaultMaxRetries = 5
	handlerTriage     = "triage"
)

// Processor 单封邮件处理，*service.TriageService 满足该接口
type Processor interface {
	Process(ctx context.Context, email model.Email) (*model.RunState, error)
}

// RetryCounter 重投计数，*util.RetryCounter 满足该接口
type RetryCounter interface {
	IncrementAndGet(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

// EmailReceivedHandler 消费 email.received，把邮件交给分拣流程
type EmailReceivedHandler struct {
	svc          Processor
	retryCounter RetryCounter
	maxRetries   int64
	logger       *zap.Logger
}

// NewEmailReceivedHandler creates the handler. retryCounter may be nil, in
// which case retryable failures are requeued without a bound.
func NewEmailReceivedHandler(svc Processor, retryCounter RetryCounter, maxRetries int64, logger *zap.Logger) *EmailReceivedHandler {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &EmailReceivedHandler{
		svc:          svc,
		retryCounter: retryCounter,
		maxRetries:   maxRetries,
		logger:       logger,
	}
}

func (h *EmailReceivedHandler) HandleEmailReceived(ctx context.Context, raw json.RawMessage) error {
	var payload mqcontracts.EmailReceivedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.logger.Error("Invalid EmailReceivedPayload, sending to DLQ",
			zap.String("raw", string(raw)),
			zap.Error(err),
		)
		return mq.DeadLetter(fmt.Errorf("bad_payload: %w", err))
	}
	if payload.EmailID == "" {
		return mq.DeadLetter(fmt.Errorf("bad_payload: %w", service.ErrInvalidEmail))
	}

	if payload.TraceID != "" {
		ctx = trace.WithContext(ctx, payload.TraceID)
	}
	log := logger.WithEmail(ctx, h.logger, payload.EmailID)
	log.Info("EmailReceivedHandler: received email", zap.String("sender", payload.Sender))

	st, err := h.svc.Process(ctx, payload.Email())
	if err == nil {
		h.resetRetry(ctx, payload.EmailID)
		log.Info("Email triaged",
			zap.String("run_id", st.RunID),
			zap.String("status", string(st.Status)),
		)
		return nil
	}

	// 运行已落库为 FAILED，重投只会拿回同一个 run
	if st != nil && st.Status == model.RunFailed && model.KindOf(err) != model.KindPersistenceFailure {
		h.resetRetry(ctx, payload.EmailID)
		log.Warn("Run failed, not requeueing",
			zap.String("run_id", st.RunID),
			zap.String("error_kind", string(model.KindOf(err))),
			zap.Error(err),
		)
		return nil
	}

	return h.handleError(ctx, log, payload.EmailID, err)
}

func (h *EmailReceivedHandler) handleError(ctx context.Context, log *zap.Logger, emailID string, err error) error {
	retryable := errors.Is(err, service.ErrInFlight) || model.KindOf(err) == model.KindPersistenceFailure
	errType := "in_flight"
	if !retryable {
		retryable, errType = util.IsRetryableError(err)
	}

	if !retryable {
		log.Error("Non-retryable triage error, sending to DLQ", zap.String("error_type", errType), zap.Error(err))
		return mq.DeadLetter(err)
	}
	if h.retryCounter == nil {
		log.Warn("Retryable triage error, requeueing", zap.String("error_type", errType), zap.Error(err))
		return err
	}

	retryKey := util.FormatRetryKey(handlerTriage, emailID)
	retryCount, cerr := h.retryCounter.IncrementAndGet(ctx, retryKey)
	if cerr != nil {
		log.Warn("Retry counter unavailable", zap.Error(cerr))
	}
	log.Warn("Retryable triage error",
		zap.String("error_type", errType),
		zap.Int64("retry", retryCount),
		zap.Error(err),
	)

	if !util.ShouldRetry(retryCount, h.maxRetries, true) {
		log.Error("Max retries exceeded, sending to DLQ", zap.Int64("retry", retryCount))
		h.resetRetry(ctx, emailID)
		return mq.DeadLetter(err)
	}
	return err
}

func (h *EmailReceivedHandler) resetRetry(ctx context.Context, emailID string) {
	if h.retryCounter == nil {
		return
	}
	_ = h.retryCounter.Reset(ctx, util.FormatRetryKey(handlerTriage, emailID))
}
