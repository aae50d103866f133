package categorizer

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"mailtriage/internal/model"
)

func TestParse_Valid(t *testing.T) {
	got, err := Parse(" {\"category\":\"LEAD\",\"confidence\":0.8,\"rationale\":\" wants a demo \"}\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := model.CategoryResult{Category: model.CategoryLead, Confidence: 0.8, Rationale: "wants a demo"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"plain label", "LEAD"},
		{"code fence", "```json\n{\"category\":\"LEAD\",\"confidence\":0.8,\"rationale\":\"x\"}\n```"},
		{"lowercase category", `{"category":"lead","confidence":0.8,"rationale":"x"}`},
		{"unknown category", `{"category":"SALES","confidence":0.8,"rationale":"x"}`},
		{"unknown field", `{"category":"LEAD","confidence":0.8,"rationale":"x","extra":1}`},
		{"missing confidence", `{"category":"LEAD","rationale":"x"}`},
		{"confidence as string", `{"category":"LEAD","confidence":"0.8","rationale":"x"}`},
		{"confidence above one", `{"category":"LEAD","confidence":1.2,"rationale":"x"}`},
		{"negative confidence", `{"category":"LEAD","confidence":-0.1,"rationale":"x"}`},
		{"empty rationale", `{"category":"LEAD","confidence":0.8,"rationale":"  "}`},
		{"trailing object", `{"category":"LEAD","confidence":0.8,"rationale":"x"} {}`},
		{"truncated", `{"category":"LEAD","confidence":0.8`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw)
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("expected *ParseError, got %v", err)
			}
			if perr.Raw != tt.raw {
				t.Errorf("Raw = %q", perr.Raw)
			}
		})
	}
}
