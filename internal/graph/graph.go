// Package graph runs an email through a directed graph of named nodes.
//
// Nodes return a Transition naming an edge label; the engine resolves the
// label against an explicit edge table. A label with no matching edge fails
// the run, there is no fallthrough. The engine alone sets status, current
// node and history on a RunState.
package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"mailtriage/internal/model"
)

// Transition is what a node returns.
type Transition struct {
	// Label 出边标签；Terminal 或 Suspend 时忽略
	Label    string
	Terminal bool
	Suspend  bool
	Summary  string
	// Kind 记录在历史中但不让运行失败，如 GuardrailExhausted
	Kind     model.ErrorKind
}

// Next follows the edge with the given label.
func Next(label, summary string) Transition {
	return Transition{Label: label, Summary: summary}
}

// Done ends the run as COMPLETED.
func Done(summary string) Transition {
	return Transition{Terminal: true, Summary: summary}
}

// Suspend parks the run in WAITING_HUMAN.
func Suspend(summary string) Transition {
	return Transition{Suspend: true, Summary: summary}
}

type Node interface {
	Run(ctx context.Context, state *model.RunState, email model.Email) (Transition, error)
}

// Resumer is implemented by nodes that can suspend a run and later
// continue it with a human decision.
type Resumer interface {
	Resume(ctx context.Context, state *model.RunState, email model.Email, decision model.HumanDecision) (Transition, error)
}

// NodeFunc adapts a function to Node.
type NodeFunc func(ctx context.Context, state *model.RunState, email model.Email) (Transition, error)

func (f NodeFunc) Run(ctx context.Context, state *model.RunState, email model.Email) (Transition, error) {
	return f(ctx, state, email)
}

// Graph is an immutable, validated node/edge table.
type Graph struct {
	entry string
	nodes map[string]Node
	edges map[string]map[string]string
}

func (g *Graph) Entry() string { return g.entry }

// Nodes returns node names in sorted order.
func (g *Graph) Nodes() []string {
	names := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (g *Graph) next(from, label string) (string, bool) {
	to, ok := g.edges[from][label]
	return to, ok
}

// Builder collects nodes and edges; Build validates them.
type Builder struct {
	entry string
	nodes map[string]Node
	edges map[string]map[string]string
	errs  []error
}

func NewBuilder() *Builder {
	return &Builder{
		nodes: make(map[string]Node),
		edges: make(map[string]map[string]string),
	}
}

func (b *Builder) Entry(name string) *Builder {
	b.entry = name
	return b
}

func (b *Builder) Node(name string, n Node) *Builder {
	switch {
	case name == "":
		b.errs = append(b.errs, errors.New("node with empty name"))
	case n == nil:
		b.errs = append(b.errs, fmt.Errorf("node %q is nil", name))
	case b.nodes[name] != nil:
		b.errs = append(b.errs, fmt.Errorf("duplicate node %q", name))
	default:
		b.nodes[name] = n
	}
	return b
}

func (b *Builder) Edge(from, label, to string) *Builder {
	if b.edges[from] == nil {
		b.edges[from] = make(map[string]string)
	}
	if prev, ok := b.edges[from][label]; ok && prev != to {
		b.errs = append(b.errs, fmt.Errorf("edge %s --%s--> already points to %s", from, label, prev))
		return b
	}
	b.edges[from][label] = to
	return b
}

// Build validates the graph and returns it.
func (b *Builder) Build() (*Graph, error) {
	g := &Graph{entry: b.entry, nodes: b.nodes, edges: b.edges}
	if err := errors.Join(append(b.errs, g.Validate())...); err != nil {
		return nil, model.E(model.KindInvalidGraph, "graph.Build", err)
	}
	return g, nil
}

// Validate checks the entry node exists and every edge joins known nodes.
func (g *Graph) Validate() error {
	var errs []error
	if g.entry == "" {
		errs = append(errs, errors.New("no entry node"))
	} else if g.nodes[g.entry] == nil {
		errs = append(errs, fmt.Errorf("entry node %q is not registered", g.entry))
	}
	for from, out := range g.edges {
		if g.nodes[from] == nil {
			errs = append(errs, fmt.Errorf("edge from unknown node %q", from))
		}
		for label, to := range out {
			if label == "" {
				errs = append(errs, fmt.Errorf("edge from %q has empty label", from))
			}
			if g.nodes[to] == nil {
				errs = append(errs, fmt.Errorf("edge %s --%s--> unknown node %q", from, label, to))
			}
		}
	}
	return errors.Join(errs...)
}
