// Package workflow wires the triage graph:
//
//	categorize --categorized--> gate
//	gate --URGENT--> alert
//	gate --SPAM--> ignore
//	gate --LEAD--> draft
//	gate --OTHER--> acknowledge
//	draft, acknowledge --drafted--> guardrails
//	guardrails --passed--> persist
//	guardrails --redraft--> draft
//	guardrails --escalate--> alert
package workflow

import (
	"errors"

	"go.uber.org/zap"

	"mailtriage/internal/categorizer"
	"mailtriage/internal/graph"
	h "mailtriage/internal/handlers"
	"mailtriage/internal/llm"
	"mailtriage/internal/model"
)

// Deps are the collaborators of a triage engine.
type Deps struct {
	Client   llm.ModelClient
	Calendar h.Calendar
	Alerter  h.HumanAlerter
	Store    h.DraftStore
	Audit    graph.AuditSink
	Policy   model.Policy
	Logger   *zap.Logger
}

// Graph builds and validates the triage graph. The model client is wrapped
// so transient backend errors are retried once.
func Graph(d Deps) (*graph.Graph, model.Policy, error) {
	if d.Client == nil || d.Alerter == nil || d.Store == nil {
		return nil, model.Policy{}, model.E(model.KindInvalidGraph, "workflow.Graph",
			errors.New("model client, alerter and draft store are required"))
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	policy := d.Policy.WithDefaults()
	client := llm.WithRetry(d.Client, policy.RetryBackoff, d.Logger)

	g, err := graph.NewBuilder().
		Entry(h.NodeCategorize).
		Node(h.NodeCategorize, h.NewCategorizeNode(categorizer.New(client, d.Logger))).
		Node(h.NodeGate, h.NewGateNode(policy)).
		Node(h.NodeAlert, h.NewAlertHandler(d.Alerter, d.Logger)).
		Node(h.NodeIgnore, h.NewIgnoreHandler(d.Logger)).
		Node(h.NodeDraft, h.NewDraftHandler(client, d.Calendar, policy, d.Logger)).
		Node(h.NodeAcknowledge, h.NewAcknowledgeHandler(policy)).
		Node(h.NodeGuardrails, h.NewGuardrailsNode(policy, d.Logger)).
		Node(h.NodePersist, h.NewPersistNode(d.Store)).
		Edge(h.NodeCategorize, h.LabelCategorized, h.NodeGate).
		Edge(h.NodeGate, string(model.RouteUrgent), h.NodeAlert).
		Edge(h.NodeGate, string(model.RouteSpam), h.NodeIgnore).
		Edge(h.NodeGate, string(model.RouteLead), h.NodeDraft).
		Edge(h.NodeGate, string(model.RouteOther), h.NodeAcknowledge).
		Edge(h.NodeDraft, h.LabelDrafted, h.NodeGuardrails).
		Edge(h.NodeAcknowledge, h.LabelDrafted, h.NodeGuardrails).
		Edge(h.NodeGuardrails, h.LabelPassed, h.NodePersist).
		Edge(h.NodeGuardrails, h.LabelRedraft, h.NodeDraft).
		Edge(h.NodeGuardrails, h.LabelEscalate, h.NodeAlert).
		Build()
	if err != nil {
		return nil, model.Policy{}, err
	}
	return g, policy, nil
}

// NewEngine builds the triage graph and an engine to run it.
func NewEngine(d Deps) (*graph.Engine, error) {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	g, policy, err := Graph(d)
	if err != nil {
		return nil, err
	}
	opts := []graph.Option{graph.WithLogger(d.Logger)}
	if d.Audit != nil {
		opts = append(opts, graph.WithAuditSink(d.Audit))
	}
	return graph.NewEngine(g, policy, opts...), nil
}
