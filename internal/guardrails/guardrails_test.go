package guardrails

import (
	"testing"

	"mailtriage/internal/model"
)

var source = model.Email{
	ID:      "e-1",
	Sender:  "jane@example.com",
	Subject: "Demo",
	Body:    "Hi, I'd like a demo of the product. You can reach me on 555-987-6543.",
}

func check(body string) (model.DraftReply, []Violation) {
	c := New(model.DefaultPolicy().Guardrails)
	return c.Validate(source, model.DraftReply{
		EmailID:         source.ID,
		Kind:            model.DraftKindReply,
		Body:            body,
		CalendarLink:    "https://cal.com/demo-link",
		GuardrailStatus: model.GuardrailPending,
		Version:         1,
	})
}

func rules(vs []Violation) map[Rule]bool {
	out := make(map[Rule]bool)
	for _, v := range vs {
		out[v.Rule] = true
	}
	return out
}

func TestValidate_Passes(t *testing.T) {
	body := "Hi Jane,\n\nThanks for reaching out about a demo. You can pick a time here: https://cal.com/demo-link\n\n" +
		"We will get back to you with an agenda. We look forward to speaking with you.\n\nBest regards,\nThe Team"

	got, vs := check(body)
	if len(vs) != 0 {
		t.Fatalf("unexpected violations: %v", vs)
	}
	if got.GuardrailStatus != model.GuardrailPassed {
		t.Errorf("status = %s, want PASSED", got.GuardrailStatus)
	}
	if got.Body != body || got.Version != 1 {
		t.Error("Validate must not change body or version")
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Rule
	}{
		{"new phone number", "Thanks for your note, please call our desk at 555-123-4567 any time.", RulePII},
		{"foreign email address", "Thanks for your note, please write to sales@other-company.com instead.", RulePII},
		{"card number", "Thanks for your note, we have card 4111 1111 1111 1111 on file for you.", RulePII},
		{"ssn", "Thanks for your note, your record shows 123-45-6789 as the identifier.", RulePII},
		{"unapproved commitment", "Thanks for your note. We guarantee a full refund by Friday.", RuleCommitment},
		{"too short", "Thanks.", RuleLength},
		{"exclamations", "Great!!!! Thanks for writing to us today.", RuleTone},
		{"shouting", "PLEASE CALL US RIGHT NOW ABOUT THIS AMAZING OFFER", RuleTone},
		{"prohibited phrase", "Thanks for your note. Please pay the deposit by gift card to continue.", RuleProhibited},
		{"subject line", "Subject: Re: Demo\n\nThanks for your note about the demo.", RuleArtifact},
		{"placeholder", "Hi [Insert Name], thanks for your note about the demo.", RuleArtifact},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, vs := check(tt.body)
			if !rules(vs)[tt.want] {
				t.Fatalf("expected %s violation, got %v", tt.want, vs)
			}
			if got.GuardrailStatus != model.GuardrailRejected {
				t.Errorf("status = %s, want REJECTED", got.GuardrailStatus)
			}
			if len(got.Violations) != len(vs) {
				t.Errorf("draft carries %d violations, want %d", len(got.Violations), len(vs))
			}
		})
	}
}

func TestValidate_PIIFromSourceAllowed(t *testing.T) {
	body := "Thanks Jane, we have noted jane@example.com and 555-987-6543 as your contact details."
	_, vs := check(body)
	if rules(vs)[RulePII] {
		t.Errorf("PII copied from the source email should be allowed: %v", vs)
	}
}

func TestValidate_ClearsPreviousViolations(t *testing.T) {
	c := New(model.DefaultPolicy().Guardrails)
	draft := model.DraftReply{
		Body:       "Thanks for your message. We will get back to you shortly.",
		Violations: []string{"length: old finding"},
	}
	got, vs := c.Validate(source, draft)
	if len(vs) != 0 || len(got.Violations) != 0 {
		t.Errorf("violations = %v / %v, want none", vs, got.Violations)
	}
}

func TestLuhn(t *testing.T) {
	if !luhn("4111 1111 1111 1111") {
		t.Error("valid test card rejected")
	}
	if luhn("4111 1111 1111 1112") {
		t.Error("invalid number accepted")
	}
}
