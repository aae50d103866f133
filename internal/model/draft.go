package model

// GuardrailStatus 草稿的安全校验状态
type GuardrailStatus string

const (
	GuardrailPending  GuardrailStatus = "PENDING"
	GuardrailPassed   GuardrailStatus = "PASSED"
	GuardrailRejected GuardrailStatus = "REJECTED"
)

// DraftKind 区分模型生成的回复和模板确认回复
type DraftKind string

const (
	DraftKindReply           DraftKind = "reply"
	DraftKindAcknowledgement DraftKind = "acknowledgement"
)

// DraftReply 待发送的回复草稿。只有 GuardrailStatus == PASSED 才允许写入发件存储
type DraftReply struct {
	EmailID         string          `json:"email_id"`
	Kind            DraftKind       `json:"kind"`
	Body            string          `json:"body"`
	CalendarLink    string          `json:"calendar_link,omitempty"`
	GuardrailStatus GuardrailStatus `json:"guardrail_status"`
	Version         int             `json:"version"`
	// Violations 最近一次校验发现的问题，重新起草时会反馈给模型
	Violations []string `json:"violations,omitempty"`
}
