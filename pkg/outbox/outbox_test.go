package outbox

import (
	"testing"
)

func TestNewEvent(t *testing.T) {
	ev, err := NewEvent("draft", "e-1", "draft.saved", map[string]string{"email_id": "e-1"})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	if ev.Status != StatusPending || ev.AggregateID != "e-1" || ev.RoutingKey != "draft.saved" {
		t.Errorf("unexpected event: %+v", ev)
	}
	if string(ev.Payload) != `{"email_id":"e-1"}` {
		t.Errorf("payload = %s", ev.Payload)
	}

	if _, err := NewEvent("draft", "e-1", "draft.saved", make(chan int)); err == nil {
		t.Error("expected encode error for unencodable payload")
	}
}
