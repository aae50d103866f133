package handlers

import (
	"context"
	"errors"
	"fmt"

	"mailtriage/internal/graph"
	"mailtriage/internal/model"
)

// PersistNode 保存通过校验的草稿；其他状态一律拒绝
type PersistNode struct {
	store DraftStore
}

func NewPersistNode(store DraftStore) *PersistNode {
	return &PersistNode{store: store}
}

func (n *PersistNode) Run(ctx context.Context, st *model.RunState, email model.Email) (graph.Transition, error) {
	const op = "handlers.Persist"
	if st.Draft == nil {
		return graph.Transition{}, model.E(model.KindPersistenceFailure, op, errors.New("no draft"))
	}
	if st.Draft.GuardrailStatus != model.GuardrailPassed {
		return graph.Transition{}, model.E(model.KindPersistenceFailure, op,
			fmt.Errorf("draft status %s, only PASSED drafts are saved", st.Draft.GuardrailStatus))
	}

	if err := n.store.SaveDraft(ctx, *st.Draft); err != nil {
		var me *model.Error
		if !errors.As(err, &me) {
			err = model.E(model.KindPersistenceFailure, op, err)
		}
		return graph.Transition{}, err
	}
	return graph.Done(fmt.Sprintf("%s draft v%d saved", st.Draft.Kind, st.Draft.Version)), nil
}
