package notify

import (
	"context"
	"log"
	"strings"
	"text/template"

	"signet/internal/usecase"
)

// Templates maps template IDs to their message bodies. Bodies are
// text/template sources rendered with the per-recipient data map.
var defaultTemplates = map[string]string{
	usecase.TemplateMultiSignInvite:    "You have been invited to sign document {{.document_id}}.{{if .custom_message}} Message: {{.custom_message}}{{end}}{{if .due_date}} Due: {{.due_date}}{{end}}",
	usecase.TemplateMultiSignProgress:  "Document {{.document_id}} was signed by {{.signed_by}}: {{.completed}} of {{.required}} required signatures collected. Still pending: {{.remaining_signers}}.",
	usecase.TemplateMultiSignCompleted: "Document {{.document_id}} has collected all required signatures.",
	usecase.TemplateMultiSignCancelled: "The signing process for document {{.document_id}} was cancelled.",
}

type Registry struct {
	templates map[string]*template.Template
}

func NewRegistry() (*Registry, error) {
	parsed := make(map[string]*template.Template, len(defaultTemplates))
	for id, body := range defaultTemplates {
		t, err := template.New(id).Option("missingkey=zero").Parse(body)
		if err != nil {
			return nil, err
		}
		parsed[id] = t
	}
	return &Registry{templates: parsed}, nil
}

func (r *Registry) Render(templateID string, data map[string]any) (string, bool) {
	t, ok := r.templates[templateID]
	if !ok {
		return "", false
	}
	var buf strings.Builder
	if err := t.Execute(&buf, data); err != nil {
		return "", false
	}
	return buf.String(), true
}

// LogNotifier renders the template and writes it to the process log.
// It stands in for a mail or push gateway; delivery is counted as
// successful once the message is rendered and emitted.
type LogNotifier struct {
	Registry *Registry
	From     string
}

func NewLogNotifier(registry *Registry, from string) *LogNotifier {
	return &LogNotifier{Registry: registry, From: from}
}

func (n *LogNotifier) Send(ctx context.Context, templateID string, recipient string, data map[string]any) bool {
	if recipient == "" {
		return false
	}
	body, ok := n.Registry.Render(templateID, data)
	if !ok {
		log.Printf("notify: unknown or unrenderable template %q for %s", templateID, recipient)
		return false
	}
	log.Printf("notify: from=%s to=%s template=%s body=%q", n.From, recipient, templateID, body)
	return true
}

var _ usecase.NotificationCollaborator = (*LogNotifier)(nil)
