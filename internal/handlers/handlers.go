// Package handlers implements the triage graph nodes.
//
// Nodes fill in domain fields of the RunState (category, route, draft,
// decision). Status and history belong to the graph engine.
package handlers

import (
	"context"

	"mailtriage/internal/model"
)

// Node names.
const (
	NodeCategorize  = "categorize"
	NodeGate        = "gate"
	NodeAlert       = "alert"
	NodeIgnore      = "ignore"
	NodeDraft       = "draft"
	NodeAcknowledge = "acknowledge"
	NodeGuardrails  = "guardrails"
	NodePersist     = "persist"
)

// Edge labels. The gate node uses the route tags as labels.
const (
	LabelCategorized = "categorized"
	LabelDrafted     = "drafted"
	LabelPassed      = "passed"
	LabelRedraft     = "redraft"
	LabelEscalate    = "escalate"
)

// Categorizer 分类能力，*categorizer.Categorizer 满足该接口
type Categorizer interface {
	Categorize(ctx context.Context, email model.Email) (model.CategoryResult, error)
}

// HumanAlerter 通知人工处理
type HumanAlerter interface {
	Notify(ctx context.Context, alert model.Alert) error
}

// Calendar 返回预约链接；ok 为 false 表示没有可用时段
type Calendar interface {
	FindSlot(ctx context.Context, c model.SlotConstraints) (link string, ok bool, err error)
}

// DraftStore 发件存储，SaveDraft 必须是原子的
type DraftStore interface {
	SaveDraft(ctx context.Context, draft model.DraftReply) error
}
