package handlers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"mailtriage/internal/graph"
	"mailtriage/internal/llm/llmtest"
	"mailtriage/internal/model"
)

var email = model.Email{
	ID:      "e-1",
	Sender:  "jane@example.com",
	Subject: "Demo request",
	Body:    "Could we book a demo next week?",
}

type fakeStore struct {
	saved []model.DraftReply
	err   error
}

func (s *fakeStore) SaveDraft(ctx context.Context, d model.DraftReply) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, d)
	return nil
}

type fakeCalendar struct {
	link  string
	calls int
}

func (c *fakeCalendar) FindSlot(ctx context.Context, sc model.SlotConstraints) (string, bool, error) {
	c.calls++
	return c.link, c.link != "", nil
}

type fakeAlerter struct {
	alerts []model.Alert
	err    error
}

func (a *fakeAlerter) Notify(ctx context.Context, alert model.Alert) error {
	if a.err != nil {
		return a.err
	}
	a.alerts = append(a.alerts, alert)
	return nil
}

func TestGateNode_SetsRoute(t *testing.T) {
	st := &model.RunState{Category: &model.CategoryResult{Category: model.CategoryOther, Confidence: 0.2}}
	tr, err := NewGateNode(model.DefaultPolicy()).Run(context.Background(), st, email)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if tr.Label != string(model.RouteUrgent) || st.Route != model.RouteUrgent {
		t.Errorf("label = %s route = %s, want URGENT", tr.Label, st.Route)
	}
}

func TestGateNode_WithoutCategory(t *testing.T) {
	_, err := NewGateNode(model.DefaultPolicy()).Run(context.Background(), &model.RunState{}, email)
	if err == nil {
		t.Fatal("expected error without category")
	}
}

func TestDraftHandler_LeadGetsCalendarLink(t *testing.T) {
	client := llmtest.NewClient(llmtest.Reply{Text: "  Thanks for reaching out, happy to show you a demo.  "})
	cal := &fakeCalendar{link: "https://cal.com/demo-link"}
	h := NewDraftHandler(client, cal, model.DefaultPolicy(), zap.NewNop())

	st := &model.RunState{Route: model.RouteLead, Category: &model.CategoryResult{Category: model.CategoryLead, Confidence: 0.8}}
	tr, err := h.Run(context.Background(), st, email)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if tr.Label != LabelDrafted {
		t.Errorf("label = %s", tr.Label)
	}
	d := st.Draft
	if d.Version != 1 || d.GuardrailStatus != model.GuardrailPending || d.CalendarLink != cal.link {
		t.Errorf("draft = %+v", d)
	}
	if !strings.HasPrefix(d.Body, "Thanks for reaching out") || !strings.Contains(d.Body, cal.link) {
		t.Errorf("body = %q", d.Body)
	}
	if !strings.Contains(client.Prompts()[0], cal.link) {
		t.Error("prompt does not mention the booking link")
	}
}

func TestDraftHandler_RedraftIncrementsVersion(t *testing.T) {
	client := llmtest.NewClient(llmtest.Reply{Text: "Second try at a reply for you."})
	cal := &fakeCalendar{link: "https://cal.com/demo-link"}
	h := NewDraftHandler(client, cal, model.DefaultPolicy(), zap.NewNop())

	st := &model.RunState{
		Route: model.RouteLead,
		Draft: &model.DraftReply{
			Kind:            model.DraftKindReply,
			Body:            "We guarantee a refund.",
			CalendarLink:    cal.link,
			GuardrailStatus: model.GuardrailRejected,
			Version:         1,
			Violations:      []string{`commitment: unapproved commitment "guarantee"`},
		},
	}
	if _, err := h.Run(context.Background(), st, email); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st.Draft.Version != 2 || st.Draft.GuardrailStatus != model.GuardrailPending || len(st.Draft.Violations) != 0 {
		t.Errorf("draft = %+v", st.Draft)
	}
	if cal.calls != 0 {
		t.Errorf("calendar called %d times on redraft, want 0", cal.calls)
	}
	prompt := client.Prompts()[0]
	if !strings.Contains(prompt, "unapproved commitment") || !strings.Contains(prompt, "We guarantee a refund.") {
		t.Errorf("redraft prompt lacks feedback:\n%s", prompt)
	}
}

func TestDraftHandler_ModelErrorPropagates(t *testing.T) {
	client := llmtest.NewClient(llmtest.Reply{Err: model.E(model.KindTimeout, "test", context.DeadlineExceeded)})
	h := NewDraftHandler(client, nil, model.DefaultPolicy(), zap.NewNop())

	st := &model.RunState{Route: model.RouteOther}
	_, err := h.Run(context.Background(), st, email)
	if model.KindOf(err) != model.KindTimeout {
		t.Fatalf("kind = %q, want Timeout", model.KindOf(err))
	}
	if st.Draft != nil {
		t.Error("draft set after model failure")
	}
}

func TestGuardrailsNode_Routing(t *testing.T) {
	p := model.DefaultPolicy()
	bad := "We guarantee a full refund for everything."
	good := "Thanks for your message. We will get back to you shortly."

	tests := []struct {
		name      string
		draft     model.DraftReply
		wantLabel string
		wantKind  model.ErrorKind
	}{
		{"passed", model.DraftReply{Kind: model.DraftKindReply, Body: good, Version: 1}, LabelPassed, ""},
		{"first rejection redrafts", model.DraftReply{Kind: model.DraftKindReply, Body: bad, Version: 1}, LabelRedraft, ""},
		{"last redraft allowed", model.DraftReply{Kind: model.DraftKindReply, Body: bad, Version: p.MaxRedraftAttempts}, LabelRedraft, ""},
		{"exhausted", model.DraftReply{Kind: model.DraftKindReply, Body: bad, Version: p.MaxRedraftAttempts + 1}, LabelEscalate, model.KindGuardrailExhausted},
		{"acknowledgement escalates", model.DraftReply{Kind: model.DraftKindAcknowledgement, Body: bad, Version: 1}, LabelEscalate, model.KindGuardrailExhausted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.draft
			st := &model.RunState{Draft: &d}
			tr, err := NewGuardrailsNode(p, zap.NewNop()).Run(context.Background(), st, email)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if tr.Label != tt.wantLabel || tr.Kind != tt.wantKind {
				t.Errorf("transition = %+v, want label %s kind %q", tr, tt.wantLabel, tt.wantKind)
			}
			if tt.wantKind != "" && !strings.HasPrefix(st.Escalation, string(model.KindGuardrailExhausted)) {
				t.Errorf("escalation = %q", st.Escalation)
			}
			if tt.wantLabel == LabelPassed && st.Draft.GuardrailStatus != model.GuardrailPassed {
				t.Errorf("status = %s", st.Draft.GuardrailStatus)
			}
			if tt.wantLabel != LabelPassed && st.Draft.GuardrailStatus != model.GuardrailRejected {
				t.Errorf("status = %s", st.Draft.GuardrailStatus)
			}
		})
	}
}

func TestAcknowledgeDraftPassesGuardrails(t *testing.T) {
	p := model.DefaultPolicy()
	st := &model.RunState{}
	if _, err := NewAcknowledgeHandler(p).Run(context.Background(), st, email); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if st.Draft.Kind != model.DraftKindAcknowledgement || !strings.Contains(st.Draft.Body, email.Subject) {
		t.Errorf("draft = %+v", st.Draft)
	}
	tr, err := NewGuardrailsNode(p, zap.NewNop()).Run(context.Background(), st, email)
	if err != nil || tr.Label != LabelPassed {
		t.Errorf("acknowledgement rejected: %+v %v (%v)", tr, err, st.Draft.Violations)
	}
}

func TestPersistNode(t *testing.T) {
	store := &fakeStore{}
	n := NewPersistNode(store)

	for _, status := range []model.GuardrailStatus{model.GuardrailPending, model.GuardrailRejected} {
		st := &model.RunState{Draft: &model.DraftReply{GuardrailStatus: status}}
		if _, err := n.Run(context.Background(), st, email); model.KindOf(err) != model.KindPersistenceFailure {
			t.Errorf("%s: kind = %q, want PersistenceFailure", status, model.KindOf(err))
		}
	}
	if len(store.saved) != 0 {
		t.Fatalf("non-PASSED draft saved: %+v", store.saved)
	}

	st := &model.RunState{Draft: &model.DraftReply{EmailID: email.ID, GuardrailStatus: model.GuardrailPassed, Version: 1}}
	tr, err := n.Run(context.Background(), st, email)
	if err != nil || !tr.Terminal {
		t.Fatalf("Run = %+v, %v", tr, err)
	}
	if len(store.saved) != 1 {
		t.Errorf("saved = %d, want 1", len(store.saved))
	}

	store.err = errors.New("db down")
	if _, err := n.Run(context.Background(), st, email); model.KindOf(err) != model.KindPersistenceFailure {
		t.Errorf("kind = %q, want PersistenceFailure", model.KindOf(err))
	}
}

func TestAlertHandler(t *testing.T) {
	alerter := &fakeAlerter{}
	h := NewAlertHandler(alerter, zap.NewNop())
	st := &model.RunState{RunID: "r-1", Category: &model.CategoryResult{Category: model.CategoryOther, Confidence: 0.3, Rationale: "unclear"}}

	tr, err := h.Run(context.Background(), st, email)
	if err != nil || !tr.Suspend {
		t.Fatalf("Run = %+v, %v", tr, err)
	}
	if len(alerter.alerts) != 1 {
		t.Fatalf("alerts = %d", len(alerter.alerts))
	}
	a := alerter.alerts[0]
	if a.EmailID != email.ID || a.RunID != "r-1" || a.Category != model.CategoryOther || a.Rationale != "unclear" {
		t.Errorf("alert = %+v", a)
	}
	if !strings.Contains(a.Reason, "low confidence") {
		t.Errorf("reason = %q", a.Reason)
	}

	tr, err = h.Resume(context.Background(), st, email, model.HumanDecision{Action: model.DecisionDismiss, Reviewer: "bob"})
	if err != nil || !tr.Terminal || st.Decision == nil {
		t.Errorf("Resume = %+v, %v", tr, err)
	}

	alerter.err = errors.New("broker down")
	if _, err := h.Run(context.Background(), st, email); model.KindOf(err) != model.KindNotificationFailure {
		t.Errorf("kind = %q, want NotificationFailure", model.KindOf(err))
	}
}

var _ graph.Resumer = (*AlertHandler)(nil)
