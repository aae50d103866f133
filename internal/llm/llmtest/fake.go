// Package llmtest provides scripted ModelClient fakes for tests.
package llmtest

import (
	"context"
	"fmt"
	"sync"

	"mailtriage/internal/llm"
)

// Reply is one scripted answer: either Text or Err.
type Reply struct {
	Text string
	Err  error
}

// Client answers calls in order from a script and records every prompt.
// Once the script runs out, the last reply repeats.
type Client struct {
	mu      sync.Mutex
	script  []Reply
	prompts []string
	hints   []llm.SchemaHint
}

func NewClient(script ...Reply) *Client {
	return &Client{script: script}
}

func (c *Client) Complete(ctx context.Context, prompt string, hint llm.SchemaHint) (llm.Completion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.script) == 0 {
		return llm.Completion{}, fmt.Errorf("llmtest: no scripted reply")
	}
	i := len(c.prompts)
	if i >= len(c.script) {
		i = len(c.script) - 1
	}
	c.prompts = append(c.prompts, prompt)
	c.hints = append(c.hints, hint)

	r := c.script[i]
	if r.Err != nil {
		return llm.Completion{}, r.Err
	}
	return llm.Completion{Text: r.Text, Model: "fake"}, nil
}

// Calls returns the number of Complete calls so far.
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.prompts)
}

// Prompts returns a copy of the prompts received so far.
func (c *Client) Prompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.prompts...)
}

// Hints returns a copy of the schema hints received so far.
func (c *Client) Hints() []llm.SchemaHint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.SchemaHint(nil), c.hints...)
}

// Router dispatches on the schema hint: JSON calls go to Classify,
// free-text calls go to Draft. Handy for full-graph tests.
type Router struct {
	Classify llm.ModelClient
	Draft    llm.ModelClient
}

func (r Router) Complete(ctx context.Context, prompt string, hint llm.SchemaHint) (llm.Completion, error) {
	if hint == llm.SchemaJSON {
		return r.Classify.Complete(ctx, prompt, hint)
	}
	return r.Draft.Complete(ctx, prompt, hint)
}
