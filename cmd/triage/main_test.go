package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"mailtriage/internal/config"
	"mailtriage/internal/llm"
	"mailtriage/internal/model"
)

// fakeOllama answers /api/generate: JSON-format requests get the given
// classification, free-text requests get a safe reply.
func fakeOllama(t *testing.T, classification string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model  string `json:"model"`
			Format string `json:"format"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		text := "Hi Jane,\n\nThanks for your interest. We look forward to showing you the product.\n\nBest regards,\nThe Team"
		if req.Format == "json" {
			text = classification
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"model": req.Model, "response": text, "done": true})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(modelURL string) *config.Config {
	p := model.DefaultPolicy()
	p.RetryBackoff = time.Millisecond
	return &config.Config{
		Policy:   p,
		Ollama:   llm.OllamaConfig{BaseURL: modelURL, Model: "llama3", Timeout: 5 * time.Second},
		Calendar: config.CalendarConfig{Link: "https://cal.com/demo-link"},
	}
}

func TestTriageOnce_LeadThroughOllama(t *testing.T) {
	srv := fakeOllama(t, `{"category":"LEAD","confidence":0.8,"rationale":"asks for a demo"}`)
	cfg := testConfig(srv.URL)
	client := llm.NewOllamaClient(cfg.Ollama, zap.NewNop())

	email := model.Email{ID: "e-1", Sender: "jane@example.com", Subject: "Demo", Body: "Can we book a demo next week?"}
	st, drafts, err := triageOnce(context.Background(), cfg, client, email, zap.NewNop())
	if err != nil {
		t.Fatalf("triageOnce: %v", err)
	}
	if st.Status != model.RunCompleted {
		t.Fatalf("status = %s (%+v)", st.Status, st.Failure)
	}
	if len(drafts) != 1 {
		t.Fatalf("drafts = %d, want 1", len(drafts))
	}
	if !strings.Contains(drafts[0].Body, "https://cal.com/demo-link") {
		t.Errorf("draft lacks booking link: %q", drafts[0].Body)
	}
}

func TestTriageOnce_ModelDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	cfg := testConfig(srv.URL)
	client := llm.NewOllamaClient(cfg.Ollama, zap.NewNop())

	st, drafts, err := triageOnce(context.Background(), cfg, client, model.Email{ID: "e-1", Body: "hello"}, zap.NewNop())
	if model.KindOf(err) != model.KindModelUnavailable {
		t.Fatalf("kind = %q, want ModelUnavailable", model.KindOf(err))
	}
	if st == nil || st.Status != model.RunFailed {
		t.Fatalf("state = %+v", st)
	}
	if len(drafts) != 0 {
		t.Error("failed run persisted a draft")
	}
}

func TestReadEmail_Flags(t *testing.T) {
	saved := runFlags
	defer func() { runFlags = saved }()

	runFlags.body = "hello"
	runFlags.sender = "a@b.com"
	email, err := readEmail(strings.NewReader(""))
	if err != nil {
		t.Fatalf("readEmail: %v", err)
	}
	if email.ID == "" || email.ReceivedAt.IsZero() || email.Sender != "a@b.com" {
		t.Errorf("email = %+v", email)
	}

	runFlags.body = ""
	runFlags.file = "-"
	email, err = readEmail(strings.NewReader(`{"id":"e-7","body":"from stdin"}`))
	if err != nil {
		t.Fatalf("readEmail stdin: %v", err)
	}
	if email.ID != "e-7" || email.Body != "from stdin" {
		t.Errorf("email = %+v", email)
	}

	runFlags.file = ""
	if _, err := readEmail(strings.NewReader("")); err == nil {
		t.Error("expected error without body or file")
	}
}
