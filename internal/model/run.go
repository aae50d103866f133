package model

import "time"

// RunStatus 运行状态
type RunStatus string

const (
	RunRunning      RunStatus = "RUNNING"
	RunWaitingHuman RunStatus = "WAITING_HUMAN"
	RunCompleted    RunStatus = "COMPLETED"
	RunFailed       RunStatus = "FAILED"
)

// Terminal reports whether no further progression is possible.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed
}

// HistoryEntry 一次节点执行的记录
type HistoryEntry struct {
	Node          string    `json:"node"`
	Timestamp     time.Time `json:"timestamp"`
	Outcome       string    `json:"outcome"`
	OutputSummary string    `json:"output_summary,omitempty"`
	ErrorKind     ErrorKind `json:"error_kind,omitempty"`
}

// Failure 失败原因
type Failure struct {
	Kind    ErrorKind `json:"kind"`
	Node    string    `json:"node,omitempty"`
	Message string    `json:"message"`
}

// RunState 单封邮件的执行记录，只由 graph engine 修改；History 只追加
type RunState struct {
	RunID       string          `json:"run_id"`
	EmailID     string          `json:"email_id"`
	CurrentNode string          `json:"current_node"`
	Status      RunStatus       `json:"status"`
	History     []HistoryEntry  `json:"history"`
	Category    *CategoryResult `json:"category,omitempty"`
	Route       RouteTag        `json:"route,omitempty"`
	Draft       *DraftReply     `json:"draft,omitempty"`
	Escalation  string          `json:"escalation,omitempty"`
	Decision    *HumanDecision  `json:"decision,omitempty"`
	Failure     *Failure        `json:"failure,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Clone returns a deep copy, used when a state leaves the engine.
func (s *RunState) Clone() *RunState {
	if s == nil {
		return nil
	}
	c := *s
	c.History = append([]HistoryEntry(nil), s.History...)
	if s.Category != nil {
		cat := *s.Category
		c.Category = &cat
	}
	if s.Draft != nil {
		d := *s.Draft
		d.Violations = append([]string(nil), s.Draft.Violations...)
		c.Draft = &d
	}
	if s.Decision != nil {
		dec := *s.Decision
		c.Decision = &dec
	}
	if s.Failure != nil {
		f := *s.Failure
		c.Failure = &f
	}
	return &c
}
