package llm

import (
	"context"
	"errors"

	"mailtriage/internal/model"
	"mailtriage/pkg/circuitbreaker"
	"mailtriage/pkg/util"
)

// SchemaHint 告诉后端期望的输出格式，空值表示自由文本
type SchemaHint string

const (
	SchemaNone SchemaHint = ""
	SchemaJSON SchemaHint = "json"
)

// Completion 一次模型调用的结果
type Completion struct {
	Text  string
	Model string
}

// ModelClient 文本生成后端。每次调用无状态
type ModelClient interface {
	Complete(ctx context.Context, prompt string, hint SchemaHint) (Completion, error)
}

// Func adapts a plain function to ModelClient.
type Func func(ctx context.Context, prompt string, hint SchemaHint) (Completion, error)

func (f Func) Complete(ctx context.Context, prompt string, hint SchemaHint) (Completion, error) {
	return f(ctx, prompt, hint)
}

// classify 把传输层错误映射为 model.ErrorKind；超时与不可用同等对待
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var me *model.Error
	if errors.As(err, &me) {
		return err
	}
	if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
		return model.E(model.KindModelUnavailable, op, err)
	}
	_, errType := util.IsRetryableError(err)
	if util.IsTimeoutType(errType) {
		return model.E(model.KindTimeout, op, err)
	}
	return model.E(model.KindModelUnavailable, op, err)
}
