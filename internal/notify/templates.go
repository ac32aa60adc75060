package notify

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
	"time"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const (
	tmplCodeDelivery    = "code_delivery.tmpl"
	tmplManualFallback  = "manual_fallback.tmpl"
	tmplRechargeSuccess = "recharge_success.tmpl"
	tmplOperatorAlert   = "operator_alert.tmpl"
	tmplStaleReport     = "stale_allocations.tmpl"
)

// Support is the contact block printed in customer mail.
type Support struct {
	Email     string
	WhatsApp  string
	PortalURL string
}

type Templates struct{ t *template.Template }

func ParseTemplates() (*Templates, error) {
	t, err := template.New("mail").Funcs(template.FuncMap{
		"ts": func(t time.Time) string { return t.UTC().Format(time.RFC3339) },
	}).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}
	return &Templates{t: t}, nil
}

func MustParseTemplates() *Templates {
	t, err := ParseTemplates()
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Templates) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.t.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
