// Package render is the templating collaborator consumed by the content
// agents: it resolves a template ID against the embedded template set and
// renders it with strict variable checking, failing fast on any undefined
// variable reference.
package render

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"text/template"
)

//go:embed templates
var templateFS embed.FS

// Error is a templating failure surfaced from the renderer. The orchestrator
// maps it to the render error terminal outcome.
type Error struct {
	TemplateID string
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("render %s: %v", e.TemplateID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Renderer renders a template ID with a variable map.
type Renderer interface {
	Render(templateID string, vars map[string]any) ([]byte, error)
}

// TemplateRenderer renders from the embedded template set using
// text/template with missingkey=error, so a reference to an undefined
// variable is an immediate *Error rather than silent empty output.
type TemplateRenderer struct{}

// NewRenderer returns a renderer over the embedded template set.
func NewRenderer() *TemplateRenderer {
	return &TemplateRenderer{}
}

// funcs are the helpers available to every template. jsonstr renders a value
// as a quoted JSON string, so templates that produce JSON documents stay
// well-formed whatever the interpolated value contains.
var funcs = template.FuncMap{
	"jsonstr": func(v any) (string, error) {
		raw, err := json.Marshal(fmt.Sprint(v))
		if err != nil {
			return "", err
		}
		return string(raw), nil
	},
}

// Render executes the named template. Template IDs are paths relative to the
// template set root, e.g. "balanced/prd.md.tmpl".
func (r *TemplateRenderer) Render(templateID string, vars map[string]any) ([]byte, error) {
	src, err := templateFS.ReadFile("templates/" + templateID)
	if err != nil {
		return nil, &Error{TemplateID: templateID, Err: fmt.Errorf("unknown template: %w", err)}
	}

	tmpl, err := template.New(templateID).Funcs(funcs).Option("missingkey=error").Parse(string(src))
	if err != nil {
		return nil, &Error{TemplateID: templateID, Err: err}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return nil, &Error{TemplateID: templateID, Err: err}
	}
	return buf.Bytes(), nil
}
