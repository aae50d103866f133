package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mailtriage/internal/model"
	"mailtriage/pkg/logger"
	"mailtriage/pkg/metrics"
	"mailtriage/pkg/otel"
)

// History outcomes written by the engine.
const (
	OutcomeCompleted = "completed"
	OutcomeSuspended = "suspended"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
	OutcomeDeadlock  = "deadlock"
)

var (
	ErrNotWaiting       = errors.New("run is not waiting for a human decision")
	ErrNotRunning       = errors.New("run is not running")
	ErrEmailMismatch    = errors.New("email does not belong to run")
	ErrInvalidDecision  = errors.New("invalid human decision")
	ErrNodeNotResumable = errors.New("suspended node cannot be resumed")
)

// Engine executes a Graph. It holds no per-run state and is safe for
// concurrent use.
type Engine struct {
	graph  *Graph
	policy model.Policy
	audit  AuditSink
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

type Option func(*Engine)

func WithAuditSink(s AuditSink) Option {
	return func(e *Engine) { e.audit = s }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithIDGenerator(f func() string) Option {
	return func(e *Engine) { e.newID = f }
}

func NewEngine(g *Graph, policy model.Policy, opts ...Option) *Engine {
	e := &Engine{
		graph:  g,
		policy: policy.WithDefaults(),
		audit:  nopSink{},
		logger: zap.NewNop(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Policy() model.Policy { return e.policy }

// Run executes email from the entry node until the run completes, suspends
// or fails. The returned state is never nil; err is the recorded failure
// when the state is FAILED.
func (e *Engine) Run(ctx context.Context, email model.Email) (*model.RunState, error) {
	return e.Continue(ctx, e.Start(email), email)
}

// Start returns the initial RUNNING state for email at the entry node. No
// node runs; callers persist it to claim the email before Continue.
func (e *Engine) Start(email model.Email) *model.RunState {
	now := e.now()
	return &model.RunState{
		RunID:       e.newID(),
		EmailID:     email.ID,
		CurrentNode: e.graph.entry,
		Status:      model.RunRunning,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Continue runs a RUNNING state from its current node. The input state is
// not modified.
func (e *Engine) Continue(ctx context.Context, state *model.RunState, email model.Email) (*model.RunState, error) {
	if state == nil || state.Status != model.RunRunning {
		return state, ErrNotRunning
	}
	if state.EmailID != email.ID {
		return state, ErrEmailMismatch
	}
	return e.loop(ctx, state.Clone(), email)
}

// Resume continues a WAITING_HUMAN run with a human decision. Nodes already
// in the history are not run again. The input state is not modified.
func (e *Engine) Resume(ctx context.Context, state *model.RunState, email model.Email, decision model.HumanDecision) (*model.RunState, error) {
	if state == nil || state.Status != model.RunWaitingHuman {
		return state, ErrNotWaiting
	}
	if state.EmailID != email.ID || (decision.EmailID != "" && decision.EmailID != email.ID) {
		return state, ErrEmailMismatch
	}
	if !decision.Action.Valid() {
		return state, fmt.Errorf("%w: action %q", ErrInvalidDecision, decision.Action)
	}
	r, ok := e.graph.nodes[state.CurrentNode].(Resumer)
	if !ok {
		return state, fmt.Errorf("%w: %s", ErrNodeNotResumable, state.CurrentNode)
	}

	st := state.Clone()
	st.Status = model.RunRunning
	if decision.DecidedAt.IsZero() {
		decision.DecidedAt = e.now()
	}
	decision.EmailID = email.ID

	if err := ctx.Err(); err != nil {
		return e.fail(ctx, st, OutcomeCancelled, model.E(model.KindCancelled, "graph.Resume", err))
	}
	if len(st.History) >= e.policy.MaxSteps {
		return e.fail(ctx, st, OutcomeDeadlock, model.E(model.KindGraphDeadlock, "graph.Resume",
			fmt.Errorf("step bound %d reached", e.policy.MaxSteps)))
	}

	tr, err := e.step(ctx, st, email, func(nctx context.Context) (Transition, error) {
		return r.Resume(nctx, st, email, decision)
	})
	if done, err := e.advance(ctx, st, tr, err); done {
		return st, err
	}
	return e.loop(ctx, st, email)
}

// Cancel ends a WAITING_HUMAN run as FAILED with kind Cancelled. A RUNNING
// state is accepted only for claims nothing executes any more; runs in
// flight are cancelled through their context instead.
func (e *Engine) Cancel(ctx context.Context, state *model.RunState, reason string) (*model.RunState, error) {
	if state == nil || (state.Status != model.RunWaitingHuman && state.Status != model.RunRunning) {
		return state, ErrNotWaiting
	}
	st := state.Clone()
	if reason == "" {
		reason = "cancelled"
	}
	st, _ = e.fail(ctx, st, OutcomeCancelled, model.E(model.KindCancelled, "graph.Cancel", errors.New(reason)))
	return st, nil
}

func (e *Engine) loop(ctx context.Context, st *model.RunState, email model.Email) (*model.RunState, error) {
	for {
		if err := ctx.Err(); err != nil {
			return e.fail(ctx, st, OutcomeCancelled, model.E(model.KindCancelled, "graph.Run", err))
		}
		if len(st.History) >= e.policy.MaxSteps {
			err := model.E(model.KindGraphDeadlock, "graph.Run",
				fmt.Errorf("step bound %d reached at node %s", e.policy.MaxSteps, st.CurrentNode))
			return e.fail(ctx, st, OutcomeDeadlock, err)
		}

		node := e.graph.nodes[st.CurrentNode]
		if node == nil {
			return e.fail(ctx, st, OutcomeFailed, model.E(model.KindInvalidGraph, "graph.Run",
				fmt.Errorf("unknown node %q", st.CurrentNode)))
		}

		tr, err := e.step(ctx, st, email, func(nctx context.Context) (Transition, error) {
			return node.Run(nctx, st, email)
		})
		if done, err := e.advance(ctx, st, tr, err); done {
			return st, err
		}
	}
}

// step runs one node and appends its history entry. The node gets a context
// that is not cancelled with ctx so an in-flight model call finishes.
func (e *Engine) step(ctx context.Context, st *model.RunState, email model.Email, run func(context.Context) (Transition, error)) (Transition, error) {
	name := st.CurrentNode
	spanCtx, span := otel.NodeSpan(ctx, name, email.ID, st.RunID)

	// 节点只能修改领域字段
	status, history := st.Status, st.History
	start := time.Now()
	tr, err := run(context.WithoutCancel(spanCtx))
	elapsed := time.Since(start)
	st.Status, st.History, st.CurrentNode = status, history, name

	entry := model.HistoryEntry{
		Node:          name,
		Timestamp:     e.now(),
		OutputSummary: tr.Summary,
		ErrorKind:     tr.Kind,
	}
	switch {
	case err != nil:
		entry.Outcome = OutcomeFailed
		entry.ErrorKind = model.KindOf(err)
		entry.OutputSummary = err.Error()
	case tr.Terminal:
		entry.Outcome = OutcomeCompleted
	case tr.Suspend:
		entry.Outcome = OutcomeSuspended
	default:
		entry.Outcome = tr.Label
	}

	otel.EndNodeSpan(span, entry.Outcome, err)
	metrics.RecordNodeDuration(name, entry.Outcome, elapsed)
	e.append(ctx, st, entry)
	return tr, err
}

// advance applies a node result. It reports true when the run stopped.
func (e *Engine) advance(ctx context.Context, st *model.RunState, tr Transition, err error) (bool, error) {
	log := logger.WithEmail(ctx, e.logger, st.EmailID).With(zap.String("run_id", st.RunID))

	switch {
	case err != nil:
		var me *model.Error
		if !errors.As(err, &me) {
			err = model.E(model.KindUnknown, "graph.Run", err)
		}
		e.finishFailed(ctx, st, err)
		return true, err
	case tr.Terminal:
		st.Status = model.RunCompleted
		st.UpdatedAt = e.now()
		metrics.IncrementRunFinished(string(st.Status), string(st.Route))
		log.Info("Run completed", zap.String("node", st.CurrentNode), zap.String("summary", tr.Summary))
		return true, nil
	case tr.Suspend:
		st.Status = model.RunWaitingHuman
		st.UpdatedAt = e.now()
		log.Info("Run waiting for human decision", zap.String("node", st.CurrentNode))
		return true, nil
	}

	to, ok := e.graph.next(st.CurrentNode, tr.Label)
	if !ok {
		err := model.E(model.KindInvalidGraph, "graph.Run",
			fmt.Errorf("no edge %s --%s-->", st.CurrentNode, tr.Label))
		e.finishFailed(ctx, st, err)
		return true, err
	}
	st.CurrentNode = to
	st.UpdatedAt = e.now()
	return false, nil
}

// fail records a failure that happened outside a node, appending a history
// entry only while the history is under the step bound.
func (e *Engine) fail(ctx context.Context, st *model.RunState, outcome string, err error) (*model.RunState, error) {
	if len(st.History) < e.policy.MaxSteps {
		e.append(ctx, st, model.HistoryEntry{
			Node:          st.CurrentNode,
			Timestamp:     e.now(),
			Outcome:       outcome,
			OutputSummary: err.Error(),
			ErrorKind:     model.KindOf(err),
		})
	}
	return e.finishFailed(ctx, st, err)
}

func (e *Engine) finishFailed(ctx context.Context, st *model.RunState, err error) (*model.RunState, error) {
	kind := model.KindOf(err)
	st.Status = model.RunFailed
	st.Failure = &model.Failure{Kind: kind, Node: st.CurrentNode, Message: err.Error()}
	st.UpdatedAt = e.now()

	metrics.IncrementRunFailure(string(kind))
	metrics.IncrementRunFinished(string(st.Status), string(st.Route))
	logger.WithEmail(ctx, e.logger, st.EmailID).Error("Run failed",
		zap.String("run_id", st.RunID),
		zap.String("node", st.CurrentNode),
		zap.String("kind", string(kind)),
		zap.Error(err),
	)
	return st, err
}

func (e *Engine) append(ctx context.Context, st *model.RunState, entry model.HistoryEntry) {
	st.History = append(st.History, entry)
	st.UpdatedAt = entry.Timestamp

	ev := AuditEvent{
		EmailID:   st.EmailID,
		RunID:     st.RunID,
		Node:      entry.Node,
		Timestamp: entry.Timestamp,
		Outcome:   entry.Outcome,
		Summary:   entry.OutputSummary,
		ErrorKind: entry.ErrorKind,
	}
	if err := e.audit.Emit(context.WithoutCancel(ctx), ev); err != nil {
		e.logger.Warn("Audit sink failed",
			zap.String("run_id", st.RunID),
			zap.String("node", entry.Node),
			zap.Error(err),
		)
	}
}
