package model

import "time"

// Email 入站邮件，进入引擎后不可变
type Email struct {
	ID         string            `json:"id"`
	Sender     string            `json:"sender"`
	Subject    string            `json:"subject"`
	Body       string            `json:"body"`
	ReceivedAt time.Time         `json:"received_at"`
	RawHeaders map[string]string `json:"raw_headers,omitempty"`
	// History 之前的会话内容，作为分类和起草的上下文
	History string `json:"history,omitempty"`
}
