package model

import "time"

// GuardrailPolicy 草稿校验规则
type GuardrailPolicy struct {
	MinLength          int      `yaml:"min_length" json:"min_length"`
	MaxLength          int      `yaml:"max_length" json:"max_length"`
	MaxExclamations    int      `yaml:"max_exclamations" json:"max_exclamations"`
	AllowedCommitments []string `yaml:"allowed_commitments" json:"allowed_commitments"`
	ProhibitedPhrases  []string `yaml:"prohibited_phrases" json:"prohibited_phrases"`
}

// Policy 只读配置快照，在构造时注入，运行期间不变
type Policy struct {
	LowConfidenceThreshold float64         `yaml:"low_confidence_threshold" json:"low_confidence_threshold"`
	MaxRedraftAttempts     int             `yaml:"max_redraft_attempts" json:"max_redraft_attempts"`
	MaxSteps               int             `yaml:"max_steps" json:"max_steps"`
	ModelTimeout           time.Duration   `yaml:"model_timeout" json:"model_timeout"`
	RetryBackoff           time.Duration   `yaml:"retry_backoff" json:"retry_backoff"`
	Signature              string          `yaml:"signature" json:"signature"`
	Guardrails             GuardrailPolicy `yaml:"guardrails" json:"guardrails"`
}

// DefaultPolicy returns the documented defaults.
func DefaultPolicy() Policy {
	return Policy{
		LowConfidenceThreshold: 0.55,
		MaxRedraftAttempts:     2,
		MaxSteps:               10,
		ModelTimeout:           30 * time.Second,
		RetryBackoff:           500 * time.Millisecond,
		Signature:              "The Team",
		Guardrails: GuardrailPolicy{
			MinLength:       20,
			MaxLength:       2000,
			MaxExclamations: 3,
			AllowedCommitments: []string{
				"get back to you",
				"be in touch",
				"follow up",
				"respond shortly",
				"review your message",
				"look forward to",
			},
			ProhibitedPhrases: []string{
				"wire transfer",
				"gift card",
				"bitcoin",
				"your password",
				"social security number",
			},
		},
	}
}

// WithDefaults fills the fields whose zero value cannot be run with. Zero
// stays an explicit setting for the threshold, redraft attempts, retry
// backoff, minimum length and exclamation limit.
func (p Policy) WithDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxSteps == 0 {
		p.MaxSteps = d.MaxSteps
	}
	if p.ModelTimeout == 0 {
		p.ModelTimeout = d.ModelTimeout
	}
	if p.Signature == "" {
		p.Signature = d.Signature
	}
	g := &p.Guardrails
	if g.MaxLength == 0 {
		g.MaxLength = d.Guardrails.MaxLength
	}
	if g.AllowedCommitments == nil {
		g.AllowedCommitments = d.Guardrails.AllowedCommitments
	}
	if g.ProhibitedPhrases == nil {
		g.ProhibitedPhrases = d.Guardrails.ProhibitedPhrases
	}
	return p
}
