package categorizer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"mailtriage/internal/model"
)

// ParseError 模型输出不符合分类 schema
type ParseError struct {
	Raw    string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid classification output: %s: %v", e.Reason, e.Err)
	}
	return "invalid classification output: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

type rawResult struct {
	Category   *string  `json:"category"`
	Confidence *float64 `json:"confidence"`
	Rationale  *string  `json:"rationale"`
}

// Parse validates a completion against the classification schema.
// It returns either a CategoryResult or a *ParseError; nothing is coerced.
func Parse(raw string) (model.CategoryResult, error) {
	fail := func(reason string, err error) (model.CategoryResult, error) {
		return model.CategoryResult{}, &ParseError{Raw: raw, Reason: reason, Err: err}
	}

	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "{") {
		return fail("output is not a JSON object", nil)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.DisallowUnknownFields()

	var r rawResult
	if err := dec.Decode(&r); err != nil {
		return fail("malformed JSON", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fail("trailing data after JSON object", nil)
	}

	if r.Category == nil {
		return fail("missing field category", nil)
	}
	if r.Confidence == nil {
		return fail("missing field confidence", nil)
	}
	if r.Rationale == nil {
		return fail("missing field rationale", nil)
	}

	cat := model.Category(*r.Category)
	if !cat.Valid() {
		return fail(fmt.Sprintf("unknown category %q", *r.Category), nil)
	}
	conf := *r.Confidence
	if math.IsNaN(conf) || conf < 0 || conf > 1 {
		return fail(fmt.Sprintf("confidence %v out of range [0,1]", conf), nil)
	}
	rationale := strings.TrimSpace(*r.Rationale)
	if rationale == "" {
		return fail("empty rationale", nil)
	}

	return model.CategoryResult{
		Category:   cat,
		Confidence: conf,
		Rationale:  rationale,
	}, nil
}
