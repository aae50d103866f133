package llm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"mailtriage/internal/model"
	"mailtriage/pkg/logger"
)

type retryClient struct {
	next    ModelClient
	backoff time.Duration
	logger  *zap.Logger
}

// WithRetry 对暂时性错误（ModelUnavailable、Timeout）重试一次
func WithRetry(next ModelClient, backoff time.Duration, log *zap.Logger) ModelClient {
	return &retryClient{next: next, backoff: backoff, logger: log}
}

func (c *retryClient) Complete(ctx context.Context, prompt string, hint SchemaHint) (Completion, error) {
	out, err := c.next.Complete(ctx, prompt, hint)
	if err == nil || !model.IsTransient(err) {
		return out, err
	}

	logger.WithTrace(ctx, c.logger).Info("Retrying model call",
		zap.String("kind", string(model.KindOf(err))),
		zap.Duration("backoff", c.backoff),
		zap.Error(err),
	)

	if c.backoff > 0 {
		timer := time.NewTimer(c.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Completion{}, err
		case <-timer.C:
		}
	}
	return c.next.Complete(ctx, prompt, hint)
}
