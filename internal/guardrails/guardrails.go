// Package guardrails validates drafted replies before they can be saved.
package guardrails

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"mailtriage/internal/model"
)

// Violation 一条校验失败记录
type Violation struct {
	Rule   Rule
	Detail string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Rule, v.Detail)
}

type Checker struct {
	policy model.GuardrailPolicy
}

func New(policy model.GuardrailPolicy) *Checker {
	return &Checker{policy: policy}
}

// Validate checks draft against the policy and returns it with status set:
// PASSED when nothing was found, REJECTED otherwise.
func (c *Checker) Validate(email model.Email, draft model.DraftReply) (model.DraftReply, []Violation) {
	body := draft.Body
	if draft.CalendarLink != "" {
		body = strings.ReplaceAll(body, draft.CalendarLink, "")
	}

	var found []Violation
	found = append(found, c.checkPII(email, body)...)
	found = append(found, c.checkCommitments(body)...)
	found = append(found, c.checkLength(draft.Body)...)
	found = append(found, c.checkTone(body)...)
	found = append(found, c.checkProhibited(body)...)
	found = append(found, checkArtifacts(body)...)

	draft.Violations = nil
	if len(found) == 0 {
		draft.GuardrailStatus = model.GuardrailPassed
		return draft, nil
	}

	draft.GuardrailStatus = model.GuardrailRejected
	for _, v := range found {
		draft.Violations = append(draft.Violations, v.String())
	}
	return draft, found
}

// checkPII 草稿中的 PII 只有在原邮件里出现过才允许
func (c *Checker) checkPII(email model.Email, body string) []Violation {
	source := sourceText(email)

	var out []Violation
	for _, p := range piiPatterns {
		known := make(map[string]bool)
		for _, m := range p.re.FindAllString(source, -1) {
			known[p.normalize(m)] = true
		}
		for _, m := range p.re.FindAllString(body, -1) {
			if p.valid != nil && !p.valid(m) {
				continue
			}
			if known[p.normalize(m)] {
				continue
			}
			out = append(out, Violation{Rule: RulePII, Detail: fmt.Sprintf("%s not present in source email", p.name)})
			break
		}
	}
	return out
}

func sourceText(email model.Email) string {
	parts := []string{email.Sender, email.Subject, email.Body, email.History}
	for _, v := range email.RawHeaders {
		parts = append(parts, v)
	}
	return strings.Join(parts, "\n")
}

// checkCommitments 含承诺用语的句子必须包含允许的短语
func (c *Checker) checkCommitments(body string) []Violation {
	var out []Violation
	for _, sentence := range sentenceRe.Split(body, -1) {
		m := commitmentRe.FindString(sentence)
		if m == "" {
			continue
		}
		if c.allowed(sentence) {
			continue
		}
		out = append(out, Violation{Rule: RuleCommitment, Detail: fmt.Sprintf("unapproved commitment %q", strings.ToLower(m))})
	}
	return out
}

func (c *Checker) allowed(sentence string) bool {
	lower := strings.ToLower(sentence)
	for _, phrase := range c.policy.AllowedCommitments {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}

func (c *Checker) checkLength(body string) []Violation {
	n := utf8.RuneCountInString(strings.TrimSpace(body))
	switch {
	case n < c.policy.MinLength:
		return []Violation{{Rule: RuleLength, Detail: fmt.Sprintf("%d characters, minimum is %d", n, c.policy.MinLength)}}
	case c.policy.MaxLength > 0 && n > c.policy.MaxLength:
		return []Violation{{Rule: RuleLength, Detail: fmt.Sprintf("%d characters, maximum is %d", n, c.policy.MaxLength)}}
	}
	return nil
}

func (c *Checker) checkTone(body string) []Violation {
	var out []Violation
	if n := strings.Count(body, "!"); n > c.policy.MaxExclamations {
		out = append(out, Violation{Rule: RuleTone, Detail: fmt.Sprintf("%d exclamation marks, maximum is %d", n, c.policy.MaxExclamations)})
	}
	if shouting(body) {
		out = append(out, Violation{Rule: RuleTone, Detail: "mostly upper-case text"})
	}
	return out
}

func (c *Checker) checkProhibited(body string) []Violation {
	lower := strings.ToLower(body)
	var out []Violation
	for _, phrase := range c.policy.ProhibitedPhrases {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			out = append(out, Violation{Rule: RuleProhibited, Detail: fmt.Sprintf("prohibited phrase %q", phrase)})
		}
	}
	return out
}

func checkArtifacts(body string) []Violation {
	var out []Violation
	if subjectLineRe.MatchString(body) {
		out = append(out, Violation{Rule: RuleArtifact, Detail: "model-written Subject: line"})
	}
	if m := placeholderRe.FindString(body); m != "" {
		out = append(out, Violation{Rule: RuleArtifact, Detail: fmt.Sprintf("unfilled placeholder %s", m)})
	}
	return out
}
