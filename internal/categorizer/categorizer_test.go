package categorizer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"mailtriage/internal/llm"
	"mailtriage/internal/llm/llmtest"
	"mailtriage/internal/model"
)

var testEmail = model.Email{
	ID:      "e-1",
	Sender:  "buyer@example.com",
	Subject: "Pricing",
	Body:    "Could we book a demo next week?",
	History: "Earlier we talked about the enterprise plan.",
}

func TestCategorize_FirstAnswerValid(t *testing.T) {
	client := llmtest.NewClient(llmtest.Reply{Text: `{"category":"LEAD","confidence":0.8,"rationale":"demo request"}`})

	got, err := New(client, zap.NewNop()).Categorize(context.Background(), testEmail)
	if err != nil {
		t.Fatalf("Categorize: %v", err)
	}
	if got.Category != model.CategoryLead || got.ModelVersion != "fake" {
		t.Errorf("result = %+v", got)
	}
	if client.Calls() != 1 {
		t.Errorf("calls = %d, want 1", client.Calls())
	}
	prompt := client.Prompts()[0]
	if !strings.Contains(prompt, testEmail.Body) || !strings.Contains(prompt, testEmail.History) {
		t.Errorf("prompt missing email fields:\n%s", prompt)
	}
	if client.Hints()[0] != llm.SchemaJSON {
		t.Errorf("hint = %q, want json", client.Hints()[0])
	}
}

func TestCategorize_RepairSucceeds(t *testing.T) {
	client := llmtest.NewClient(
		llmtest.Reply{Text: "LEAD"},
		llmtest.Reply{Text: `{"category":"LEAD","confidence":0.7,"rationale":"demo request"}`},
	)

	got, err := New(client, zap.NewNop()).Categorize(context.Background(), testEmail)
	if err != nil {
		t.Fatalf("Categorize: %v", err)
	}
	if got.Confidence != 0.7 {
		t.Errorf("confidence = %v", got.Confidence)
	}
	if client.Calls() != 2 {
		t.Fatalf("calls = %d, want 2", client.Calls())
	}
	if !strings.Contains(client.Prompts()[1], "Previous answer:\nLEAD") {
		t.Errorf("repair prompt does not quote previous answer:\n%s", client.Prompts()[1])
	}
}

func TestCategorize_RepairFails(t *testing.T) {
	client := llmtest.NewClient(llmtest.Reply{Text: "OTHER"}, llmtest.Reply{Text: "still OTHER"})

	_, err := New(client, zap.NewNop()).Categorize(context.Background(), testEmail)
	if kind := model.KindOf(err); kind != model.KindParseFailure {
		t.Fatalf("kind = %q, want ParseFailure (err=%v)", kind, err)
	}
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Error("ParseFailure should wrap *ParseError")
	}
	if client.Calls() != 2 {
		t.Errorf("calls = %d, want 2", client.Calls())
	}
}

func TestCategorize_BackendErrorPropagates(t *testing.T) {
	client := llmtest.NewClient(llmtest.Reply{Err: errors.New("connection refused")})

	_, err := New(client, zap.NewNop()).Categorize(context.Background(), testEmail)
	if kind := model.KindOf(err); kind != model.KindModelUnavailable {
		t.Fatalf("kind = %q, want ModelUnavailable", kind)
	}
	if client.Calls() != 1 {
		t.Errorf("calls = %d, want 1", client.Calls())
	}
}
