package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"

	mqcontracts "mailtriage/contracts/mq"
	"mailtriage/internal/graph"
	"mailtriage/internal/model"
	"mailtriage/internal/repository"
	"mailtriage/internal/service"
	"mailtriage/pkg/mq"
)

type fakeProcessor struct {
	st    *model.RunState
	err   error
	calls int
	last  model.Email
}

func (f *fakeProcessor) Process(ctx context.Context, email model.Email) (*model.RunState, error) {
	f.calls++
	f.last = email
	return f.st, f.err
}

type memCounter struct {
	counts map[string]int64
}

func (m *memCounter) IncrementAndGet(ctx context.Context, key string) (int64, error) {
	if m.counts == nil {
		m.counts = make(map[string]int64)
	}
	m.counts[key]++
	return m.counts[key], nil
}

func (m *memCounter) Reset(ctx context.Context, key string) error {
	delete(m.counts, key)
	return nil
}

func emailPayload(t *testing.T, id string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(mqcontracts.EmailReceivedPayload{
		EmailID: id,
		Sender:  "jane@example.com",
		Subject: "Demo",
		Body:    "Can we book a demo?",
		TraceID: "trace-1",
	})
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func TestHandleEmailReceived_BadPayload(t *testing.T) {
	h := NewEmailReceivedHandler(&fakeProcessor{}, nil, 0, zap.NewNop())

	for _, raw := range []string{`{not json`, `{"subject":"no id"}`} {
		err := h.HandleEmailReceived(context.Background(), json.RawMessage(raw))
		if !errors.Is(err, mq.ErrDeadLetter) {
			t.Errorf("%s: err = %v, want dead letter", raw, err)
		}
	}
}

func TestHandleEmailReceived_Success(t *testing.T) {
	p := &fakeProcessor{st: &model.RunState{RunID: "r-1", Status: model.RunCompleted}}
	h := NewEmailReceivedHandler(p, &memCounter{}, 3, zap.NewNop())

	if err := h.HandleEmailReceived(context.Background(), emailPayload(t, "e-1")); err != nil {
		t.Fatalf("err = %v", err)
	}
	if p.last.ID != "e-1" || p.last.Sender != "jane@example.com" {
		t.Errorf("email = %+v", p.last)
	}
}

func TestHandleEmailReceived_FailedRunIsAcked(t *testing.T) {
	p := &fakeProcessor{
		st:  &model.RunState{RunID: "r-1", Status: model.RunFailed},
		err: model.E(model.KindModelUnavailable, "test", errors.New("down")),
	}
	h := NewEmailReceivedHandler(p, &memCounter{}, 3, zap.NewNop())

	if err := h.HandleEmailReceived(context.Background(), emailPayload(t, "e-1")); err != nil {
		t.Errorf("err = %v, want nil", err)
	}
}

func TestHandleEmailReceived_InFlightRetriesThenDeadLetters(t *testing.T) {
	p := &fakeProcessor{err: service.ErrInFlight}
	counter := &memCounter{}
	h := NewEmailReceivedHandler(p, counter, 2, zap.NewNop())
	raw := emailPayload(t, "e-1")

	for i := 0; i < 2; i++ {
		err := h.HandleEmailReceived(context.Background(), raw)
		if err == nil || errors.Is(err, mq.ErrDeadLetter) {
			t.Fatalf("attempt %d: err = %v, want requeue", i+1, err)
		}
	}
	err := h.HandleEmailReceived(context.Background(), raw)
	if !errors.Is(err, mq.ErrDeadLetter) {
		t.Fatalf("err = %v, want dead letter", err)
	}
	if len(counter.counts) != 0 {
		t.Errorf("retry counter not reset: %v", counter.counts)
	}
}

func TestHandleEmailReceived_NonRetryable(t *testing.T) {
	p := &fakeProcessor{err: errors.New("something odd")}
	h := NewEmailReceivedHandler(p, &memCounter{}, 3, zap.NewNop())

	if err := h.HandleEmailReceived(context.Background(), emailPayload(t, "e-1")); !errors.Is(err, mq.ErrDeadLetter) {
		t.Errorf("err = %v, want dead letter", err)
	}
}

type fakeDecider struct {
	st  *model.RunState
	err error
	got model.HumanDecision
}

func (f *fakeDecider) DecideByEmail(ctx context.Context, emailID string, d model.HumanDecision) (*model.RunState, error) {
	f.got = d
	return f.st, f.err
}

func decisionPayload(t *testing.T, action string) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(mqcontracts.DecisionPayload{EmailID: "e-1", Action: action, Reviewer: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func TestHandleDecision(t *testing.T) {
	tests := []struct {
		name       string
		action     string
		err        error
		wantNil    bool
		wantDLQ    bool
		wantCalled bool
	}{
		{name: "applied", action: "acknowledge", wantNil: true, wantCalled: true},
		{name: "invalid action", action: "later", wantDLQ: true},
		{name: "duplicate", action: "dismiss", err: graph.ErrNotWaiting, wantNil: true, wantCalled: true},
		{name: "unknown email", action: "dismiss", err: repository.ErrNotFound, wantDLQ: true, wantCalled: true},
		{name: "busy", action: "dismiss", err: service.ErrInFlight, wantCalled: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDecider{st: &model.RunState{RunID: "r-1", Status: model.RunCompleted}, err: tt.err}
			h := NewDecisionHandler(d, zap.NewNop())

			err := h.HandleDecision(context.Background(), decisionPayload(t, tt.action))
			switch {
			case tt.wantNil && err != nil:
				t.Errorf("err = %v, want nil", err)
			case tt.wantDLQ && !errors.Is(err, mq.ErrDeadLetter):
				t.Errorf("err = %v, want dead letter", err)
			case !tt.wantNil && !tt.wantDLQ && (err == nil || errors.Is(err, mq.ErrDeadLetter)):
				t.Errorf("err = %v, want requeue", err)
			}
			if called := d.got.Action != ""; called != tt.wantCalled {
				t.Errorf("called = %v, want %v", called, tt.wantCalled)
			}
			if tt.wantCalled && d.got.Reviewer != "alice" {
				t.Errorf("reviewer = %q", d.got.Reviewer)
			}
		})
	}
}
