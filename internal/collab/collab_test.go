package collab

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	mqcontracts "mailtriage/contracts/mq"
	"mailtriage/internal/graph"
	"mailtriage/internal/model"
	"mailtriage/pkg/mq"
	"mailtriage/pkg/trace"
)

type published struct {
	key     string
	payload any
}

type fakePublisher struct {
	msgs []published
	err  error
}

func (p *fakePublisher) PublishWithContext(ctx context.Context, key string, payload any) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{key, payload})
	return nil
}

func TestHTTPCalendar(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/slots" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch r.URL.Query().Get("attendee") {
		case "busy@example.com":
			w.WriteHeader(http.StatusNoContent)
		case "broken@example.com":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			if r.URL.Query().Get("duration_minutes") != "30" {
				t.Errorf("duration = %q", r.URL.Query().Get("duration_minutes"))
			}
			json.NewEncoder(w).Encode(slotResponse{Link: "https://cal.example.com/s/1", Available: true})
		}
	}))
	defer srv.Close()

	cal := NewHTTPCalendar(srv.URL, time.Second)
	ctx := context.Background()

	link, ok, err := cal.FindSlot(ctx, model.SlotConstraints{Attendee: "jane@example.com", Duration: 30 * time.Minute})
	if err != nil || !ok || link != "https://cal.example.com/s/1" {
		t.Errorf("FindSlot = %q, %v, %v", link, ok, err)
	}
	if _, ok, err := cal.FindSlot(ctx, model.SlotConstraints{Attendee: "busy@example.com"}); ok || err != nil {
		t.Errorf("busy: ok = %v err = %v", ok, err)
	}
	if _, _, err := cal.FindSlot(ctx, model.SlotConstraints{Attendee: "broken@example.com"}); err == nil {
		t.Error("expected error for 500")
	}
}

func TestStaticCalendar(t *testing.T) {
	if _, ok, _ := (StaticCalendar{}).FindSlot(context.Background(), model.SlotConstraints{}); ok {
		t.Error("empty static calendar offered a slot")
	}
	link, ok, _ := StaticCalendar{Link: "https://cal.com/demo-link"}.FindSlot(context.Background(), model.SlotConstraints{})
	if !ok || link != "https://cal.com/demo-link" {
		t.Errorf("link = %q ok = %v", link, ok)
	}
}

func TestMQAlerter(t *testing.T) {
	pub := &fakePublisher{}
	ctx := trace.WithContext(context.Background(), "trace-1")

	alert := model.Alert{EmailID: "e-1", RunID: "r-1", Category: model.CategoryUrgent, Rationale: "server down", Reason: "classified URGENT"}
	if err := NewMQAlerter(pub, zap.NewNop()).Notify(ctx, alert); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(pub.msgs) != 1 || pub.msgs[0].key != mq.RoutingAlertRaised {
		t.Fatalf("published = %+v", pub.msgs)
	}
	p := pub.msgs[0].payload.(mqcontracts.AlertRaisedPayload)
	if p.EmailID != "e-1" || p.Category != "URGENT" || p.TraceID != "trace-1" {
		t.Errorf("payload = %+v", p)
	}

	pub.err = errors.New("closed")
	if err := NewMQAlerter(pub, zap.NewNop()).Notify(ctx, alert); err == nil {
		t.Error("expected publish error")
	}
}

func TestMQAuditSink(t *testing.T) {
	pub := &fakePublisher{}
	ev := graph.AuditEvent{EmailID: "e-1", RunID: "r-1", Node: "gate", Outcome: "LEAD"}
	if err := NewMQAuditSink(pub).Emit(context.Background(), ev); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if pub.msgs[0].key != mq.RoutingAudit {
		t.Errorf("key = %s", pub.msgs[0].key)
	}
	if p := pub.msgs[0].payload.(mqcontracts.AuditPayload); p.Node != "gate" || p.Outcome != "LEAD" {
		t.Errorf("payload = %+v", p)
	}
}
