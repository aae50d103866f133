package mq

import (
	"time"

	"mailtriage/internal/model"
)

// AlertRaisedPayload 需要人工处理的邮件
type AlertRaisedPayload struct {
	EmailID   string    `json:"email_id"`
	RunID     string    `json:"run_id"`
	Category  string    `json:"category"`
	Rationale string    `json:"rationale"`
	Reason    string    `json:"reason"`
	RaisedAt  time.Time `json:"raised_at"`
	TraceID   string    `json:"trace_id,omitempty"`
}

func NewAlertRaised(a model.Alert, traceID string) AlertRaisedPayload {
	return AlertRaisedPayload{
		EmailID:   a.EmailID,
		RunID:     a.RunID,
		Category:  string(a.Category),
		Rationale: a.Rationale,
		Reason:    a.Reason,
		RaisedAt:  a.RaisedAt,
		TraceID:   traceID,
	}
}

// DecisionPayload 人工决定，用于恢复 WAITING_HUMAN 的运行
type DecisionPayload struct {
	EmailID   string    `json:"email_id"`
	Action    string    `json:"action"` // acknowledge / dismiss
	Reviewer  string    `json:"reviewer"`
	Note      string    `json:"note,omitempty"`
	DecidedAt time.Time `json:"decided_at"`
	TraceID   string    `json:"trace_id,omitempty"`
}

func (p DecisionPayload) Decision() model.HumanDecision {
	return model.HumanDecision{
		EmailID:   p.EmailID,
		Action:    model.DecisionAction(p.Action),
		Reviewer:  p.Reviewer,
		Note:      p.Note,
		DecidedAt: p.DecidedAt,
	}
}

// DraftSavedPayload 草稿写入发件存储后通过 outbox 发布
type DraftSavedPayload struct {
	DraftID      int64     `json:"draft_id"`
	EmailID      string    `json:"email_id"`
	Kind         string    `json:"kind"`
	Version      int       `json:"version"`
	CalendarLink string    `json:"calendar_link,omitempty"`
	SavedAt      time.Time `json:"saved_at"`
	TraceID      string    `json:"trace_id,omitempty"`
}

// AuditPayload 每次 history 追加产生一条
type AuditPayload struct {
	EmailID   string    `json:"email_id"`
	RunID     string    `json:"run_id"`
	Node      string    `json:"node"`
	Timestamp time.Time `json:"timestamp"`
	Outcome   string    `json:"outcome"`
	Summary   string    `json:"summary,omitempty"`
	ErrorKind string    `json:"error_kind,omitempty"`
	TraceID   string    `json:"trace_id,omitempty"`
}
