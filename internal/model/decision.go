package model

import "time"

// DecisionAction is what a human reviewer decided about an escalated email.
type DecisionAction string

const (
	DecisionAcknowledge DecisionAction = "acknowledge"
	DecisionDismiss     DecisionAction = "dismiss"
)

// Valid reports whether a is a known action.
func (a DecisionAction) Valid() bool {
	return a == DecisionAcknowledge || a == DecisionDismiss
}

// HumanDecision resumes a run parked in WAITING_HUMAN.
type HumanDecision struct {
	EmailID   string         `json:"email_id"`
	Action    DecisionAction `json:"action"`
	Reviewer  string         `json:"reviewer"`
	Note      string         `json:"note,omitempty"`
	DecidedAt time.Time      `json:"decided_at"`
}

// Alert is what the human-alert channel receives.
type Alert struct {
	EmailID   string    `json:"email_id"`
	RunID     string    `json:"run_id"`
	Category  Category  `json:"category"`
	Rationale string    `json:"rationale"`
	Reason    string    `json:"reason"`
	RaisedAt  time.Time `json:"raised_at"`
}
