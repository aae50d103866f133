// Package categorizer turns an email into a CategoryResult using the model
// backend. Output is validated strictly; an unparseable answer is retried
// once with a repair prompt and otherwise surfaces as ParseFailure.
package categorizer

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"mailtriage/internal/llm"
	"mailtriage/internal/model"
	"mailtriage/pkg/logger"
)

const op = "categorizer.Categorize"

type Categorizer struct {
	client llm.ModelClient
	logger *zap.Logger
}

func New(client llm.ModelClient, logger *zap.Logger) *Categorizer {
	return &Categorizer{client: client, logger: logger}
}

func (c *Categorizer) Categorize(ctx context.Context, email model.Email) (model.CategoryResult, error) {
	log := logger.WithEmail(ctx, c.logger, email.ID)

	out, err := c.client.Complete(ctx, BuildPrompt(email), llm.SchemaJSON)
	if err != nil {
		return model.CategoryResult{}, asModelError(err)
	}

	result, err := Parse(out.Text)
	if err == nil {
		result.ModelVersion = out.Model
		return result, nil
	}

	log.Warn("Classification output rejected, sending repair prompt", zap.Error(err))

	out, cerr := c.client.Complete(ctx, BuildRepairPrompt(email, out.Text, err), llm.SchemaJSON)
	if cerr != nil {
		return model.CategoryResult{}, asModelError(cerr)
	}

	result, err = Parse(out.Text)
	if err != nil {
		log.Error("Classification output rejected after repair", zap.Error(err))
		return model.CategoryResult{}, model.E(model.KindParseFailure, op, err)
	}
	result.ModelVersion = out.Model
	return result, nil
}

func asModelError(err error) error {
	var me *model.Error
	if errors.As(err, &me) {
		return err
	}
	return model.E(model.KindModelUnavailable, op, err)
}
