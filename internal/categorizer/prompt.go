package categorizer

import (
	"strings"
	"text/template"

	"mailtriage/internal/model"
)

const noHistory = "No previous history."

var classifyTmpl = template.Must(template.New("classify").Parse(`You are an email triage assistant.
Analyze the following email conversation.

HISTORY: "{{.History}}"
FROM: {{.Sender}}
SUBJECT: {{.Subject}}
CURRENT EMAIL: "{{.Body}}"

Categorize the current email into exactly one of: URGENT, LEAD, SPAM, OTHER.
Respond with a single JSON object and nothing else:
{"category": "<URGENT|LEAD|SPAM|OTHER>", "confidence": <number between 0 and 1>, "rationale": "<one sentence>"}
`))

var repairTmpl = template.Must(template.New("repair").Parse(`Your previous answer could not be used: {{.Reason}}

Previous answer:
{{.Previous}}

Classify this email again.
FROM: {{.Sender}}
SUBJECT: {{.Subject}}
CURRENT EMAIL: "{{.Body}}"

Return ONLY one JSON object with exactly these three fields and no others:
"category" (one of "URGENT", "LEAD", "SPAM", "OTHER", uppercase),
"confidence" (a number from 0 to 1),
"rationale" (a non-empty string).
No markdown, no code fences, no text before or after the object.
`))

type promptData struct {
	Sender   string
	Subject  string
	Body     string
	History  string
	Previous string
	Reason   string
}

func dataFor(email model.Email) promptData {
	history := strings.TrimSpace(email.History)
	if history == "" {
		history = noHistory
	}
	return promptData{
		Sender:  email.Sender,
		Subject: email.Subject,
		Body:    email.Body,
		History: history,
	}
}

// BuildPrompt renders the classification prompt for an email.
func BuildPrompt(email model.Email) string {
	var sb strings.Builder
	// 模板是固定的，执行错误只可能来自 writer
	_ = classifyTmpl.Execute(&sb, dataFor(email))
	return sb.String()
}

// BuildRepairPrompt asks the model to fix a completion that failed to parse.
func BuildRepairPrompt(email model.Email, previous string, reason error) string {
	d := dataFor(email)
	d.Previous = previous
	d.Reason = reason.Error()

	var sb strings.Builder
	_ = repairTmpl.Execute(&sb, d)
	return sb.String()
}
