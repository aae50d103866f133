package guardrails

import (
	"regexp"
	"strings"
	"unicode"
)

// Rule 违规规则名称，同时用作 metrics label
type Rule string

const (
	RulePII        Rule = "pii"
	RuleCommitment Rule = "commitment"
	RuleLength     Rule = "length"
	RuleTone       Rule = "tone"
	RuleProhibited Rule = "prohibited"
	RuleArtifact   Rule = "template_artifact"
)

var (
	emailRe = regexp.MustCompile(`(?i)\b[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}\b`)
	phoneRe = regexp.MustCompile(`(?:\+\d{1,3}[\s.-]?)?\(?\b\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}\b`)
	cardRe  = regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`)
	ssnRe   = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	ibanRe  = regexp.MustCompile(`\b[A-Z]{2}\d{2}(?: ?[A-Z0-9]{4}){2,7}(?: ?[A-Z0-9]{1,4})?\b`)

	commitmentRe = regexp.MustCompile(`(?i)\b(promise[ds]?|guarantee[ds]?|commit(?:ment|ted)?|assure[ds]?|refund(?:ed)?|discount|free of charge|we will|i will|we'll|i'll)\b`)
	sentenceRe   = regexp.MustCompile(`[.!?\n]+`)

	subjectLineRe = regexp.MustCompile(`(?mi)^\s*subject\s*:`)
	placeholderRe = regexp.MustCompile(`(?i)\[(?:insert|your|recipient|placeholder|name|company|date)[^\]]*\]`)
)

type piiPattern struct {
	name      string
	re        *regexp.Regexp
	normalize func(string) string
	valid     func(string) bool
}

var piiPatterns = []piiPattern{
	{name: "email address", re: emailRe, normalize: strings.ToLower},
	{name: "phone number", re: phoneRe, normalize: digitsOnly},
	{name: "card number", re: cardRe, normalize: digitsOnly, valid: luhn},
	{name: "social security number", re: ssnRe, normalize: digitsOnly},
	{name: "IBAN", re: ibanRe, normalize: stripSpaces},
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

func stripSpaces(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}

// luhn 过滤掉长数字串里不是卡号的部分，如订单号
func luhn(s string) bool {
	digits := digitsOnly(s)
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// shouting 字母数足够多且大写占多数
func shouting(s string) bool {
	letters, upper := 0, 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	return letters >= 20 && upper*2 > letters
}
