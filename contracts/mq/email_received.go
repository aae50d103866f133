package mq

import (
	"time"

	"mailtriage/internal/model"
)

// EmailReceivedPayload 邮件收到事件的 payload
type EmailReceivedPayload struct {
	EmailID    string            `json:"email_id"`
	Sender     string            `json:"sender"`
	Subject    string            `json:"subject"`
	Body       string            `json:"body"`
	History    string            `json:"history,omitempty"`
	RawHeaders map[string]string `json:"raw_headers,omitempty"`
	ReceivedAt time.Time         `json:"received_at"`
	TraceID    string            `json:"trace_id,omitempty"`
}

// Email converts the payload to the domain type.
func (p EmailReceivedPayload) Email() model.Email {
	return model.Email{
		ID:         p.EmailID,
		Sender:     p.Sender,
		Subject:    p.Subject,
		Body:       p.Body,
		ReceivedAt: p.ReceivedAt,
		RawHeaders: p.RawHeaders,
		History:    p.History,
	}
}
