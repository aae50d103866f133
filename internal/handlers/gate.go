package handlers

import (
	"context"
	"errors"
	"fmt"

	"mailtriage/internal/gate"
	"mailtriage/internal/graph"
	"mailtriage/internal/model"
)

type GateNode struct {
	policy model.Policy
}

func NewGateNode(policy model.Policy) *GateNode {
	return &GateNode{policy: policy}
}

func (n *GateNode) Run(ctx context.Context, st *model.RunState, email model.Email) (graph.Transition, error) {
	if st.Category == nil {
		return graph.Transition{}, model.E(model.KindInvalidGraph, "handlers.Gate", errors.New("no category result"))
	}
	route := gate.Select(*st.Category, n.policy)
	st.Route = route

	summary := fmt.Sprintf("route %s", route)
	if string(route) != string(st.Category.Category) {
		summary = fmt.Sprintf("route %s (%s at %.2f below threshold %.2f)",
			route, st.Category.Category, st.Category.Confidence, n.policy.LowConfidenceThreshold)
	}
	return graph.Next(string(route), summary), nil
}
