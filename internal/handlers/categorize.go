package handlers

import (
	"context"
	"fmt"

	"mailtriage/internal/graph"
	"mailtriage/internal/model"
)

type CategorizeNode struct {
	categorizer Categorizer
}

func NewCategorizeNode(c Categorizer) *CategorizeNode {
	return &CategorizeNode{categorizer: c}
}

func (n *CategorizeNode) Run(ctx context.Context, st *model.RunState, email model.Email) (graph.Transition, error) {
	result, err := n.categorizer.Categorize(ctx, email)
	if err != nil {
		return graph.Transition{}, err
	}
	st.Category = &result
	return graph.Next(LabelCategorized, fmt.Sprintf("%s %.2f: %s", result.Category, result.Confidence, result.Rationale)), nil
}
