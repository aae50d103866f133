package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"mailtriage/internal/graph"
	"mailtriage/internal/llm"
	"mailtriage/internal/model"
	"mailtriage/pkg/logger"
)

// DraftHandler 通过模型生成回复草稿；LEAD 邮件附带预约链接
type DraftHandler struct {
	client   llm.ModelClient
	calendar Calendar
	policy   model.Policy
	logger   *zap.Logger
	now      func() time.Time
}

func NewDraftHandler(client llm.ModelClient, calendar Calendar, policy model.Policy, logger *zap.Logger) *DraftHandler {
	return &DraftHandler{client: client, calendar: calendar, policy: policy, logger: logger, now: time.Now}
}

func (h *DraftHandler) Run(ctx context.Context, st *model.RunState, email model.Email) (graph.Transition, error) {
	log := logger.WithEmail(ctx, h.logger, email.ID)

	version := 1
	var link, previous string
	var violations []string
	if prev := st.Draft; prev != nil && prev.Kind == model.DraftKindReply {
		version = prev.Version + 1
		link = prev.CalendarLink
		previous = prev.Body
		violations = prev.Violations
	} else if st.Route == model.RouteLead {
		link = h.findSlot(ctx, log, email)
	}

	data := replyData{
		Signature:  h.policy.Signature,
		History:    email.History,
		Sender:     email.Sender,
		Subject:    email.Subject,
		Body:       email.Body,
		Link:       link,
		Violations: violations,
		Previous:   previous,
	}
	if st.Category != nil {
		data.Category = st.Category.Category
	}

	out, err := h.client.Complete(ctx, buildReplyPrompt(data), llm.SchemaNone)
	if err != nil {
		var me *model.Error
		if !errors.As(err, &me) {
			err = model.E(model.KindModelUnavailable, "handlers.Draft", err)
		}
		return graph.Transition{}, err
	}

	body := strings.TrimSpace(out.Text)
	if link != "" && !strings.Contains(body, link) {
		body += "\n\nYou can book a time here: " + link
	}

	st.Draft = &model.DraftReply{
		EmailID:         email.ID,
		Kind:            model.DraftKindReply,
		Body:            body,
		CalendarLink:    link,
		GuardrailStatus: model.GuardrailPending,
		Version:         version,
	}

	summary := fmt.Sprintf("reply draft v%d", version)
	if link != "" {
		summary += " with calendar link"
	}
	return graph.Next(LabelDrafted, summary), nil
}

// findSlot 日历不可用时不附带链接，不影响起草
func (h *DraftHandler) findSlot(ctx context.Context, log *zap.Logger, email model.Email) string {
	if h.calendar == nil {
		return ""
	}
	link, ok, err := h.calendar.FindSlot(ctx, model.SlotConstraints{
		EmailID:   email.ID,
		Attendee:  email.Sender,
		Duration:  30 * time.Minute,
		NotBefore: h.now(),
	})
	if err != nil {
		log.Warn("Calendar lookup failed, drafting without link", zap.Error(err))
		return ""
	}
	if !ok {
		return ""
	}
	return link
}
