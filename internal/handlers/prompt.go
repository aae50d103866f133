package handlers

import (
	"strings"
	"text/template"

	"mailtriage/internal/model"
)

var replyTmpl = template.Must(template.New("reply").Parse(`You are a helpful assistant replying on behalf of {{.Signature}}.
Reply to the email below. Category: {{.Category}}.

HISTORY: "{{.History}}"
FROM: {{.Sender}}
SUBJECT: {{.Subject}}
EMAIL: "{{.Body}}"
{{if .Link}}
Include this booking link exactly once: {{.Link}}
{{end}}
Keep it professional and short. Write only the reply body, no subject line,
no placeholders in square brackets. Sign off as "{{.Signature}}".
Do not promise refunds, discounts or anything else on our behalf.
{{if .Violations}}
Your previous draft was rejected for these reasons:
{{range .Violations}}- {{.}}
{{end}}
Previous draft:
{{.Previous}}

Write a new draft that fixes every problem listed.
{{end}}`))

var ackTmpl = template.Must(template.New("ack").Parse(`Hello,

Thank you for your message{{if .Subject}} regarding "{{.Subject}}"{{end}}. We have received it and will get back to you as soon as possible.

Best regards,
{{.Signature}}`))

type replyData struct {
	Signature  string
	Category   model.Category
	History    string
	Sender     string
	Subject    string
	Body       string
	Link       string
	Violations []string
	Previous   string
}

func buildReplyPrompt(d replyData) string {
	if strings.TrimSpace(d.History) == "" {
		d.History = "No previous history."
	}
	var sb strings.Builder
	_ = replyTmpl.Execute(&sb, d)
	return sb.String()
}

func buildAcknowledgement(subject, signature string) string {
	var sb strings.Builder
	_ = ackTmpl.Execute(&sb, struct{ Subject, Signature string }{strings.TrimSpace(subject), signature})
	return sb.String()
}
