// Package prompt renders the system turn of a reasoning run.
package prompt

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Renderer combines a system prompt with the format instructions of the current output
// contract.
type Renderer interface {
	Render(systemPrompt string, formatInstructions string) (string, error)
}

// TemplateRenderer treats the system prompt as a text/template with the hermetic sprig
// function map, so env and expandenv are not available. The instructions are available as
// {{ .FormatInstructions }}; when the template does not place them they are appended after
// a blank line. A prompt that does not parse as a template is used as literal text.
type TemplateRenderer struct {
	// Data is exposed to the template next to FormatInstructions.
	Data map[string]interface{}
}

var _ Renderer = (*TemplateRenderer)(nil)

func NewTemplateRenderer() *TemplateRenderer {
	return &TemplateRenderer{}
}

func (r *TemplateRenderer) Render(systemPrompt string, formatInstructions string) (string, error) {
	if !strings.Contains(systemPrompt, "{{") {
		return join(systemPrompt, formatInstructions), nil
	}

	tmpl, err := template.New("system-prompt").Funcs(sprig.HermeticTxtFuncMap()).Parse(systemPrompt)
	if err != nil {
		log.Debug().Err(err).Msg("System prompt is not a template, using it as is")
		return join(systemPrompt, formatInstructions), nil
	}

	data := map[string]interface{}{}
	for k, v := range r.Data {
		data[k] = v
	}
	data["FormatInstructions"] = formatInstructions

	buf := &bytes.Buffer{}
	if err := tmpl.Execute(buf, data); err != nil {
		return "", errors.Wrap(err, "could not render system prompt")
	}

	if strings.Contains(systemPrompt, ".FormatInstructions") {
		return buf.String(), nil
	}
	return join(buf.String(), formatInstructions), nil
}

// LiteralRenderer never interprets the system prompt. It is used for prompts coming from
// untrusted callers.
type LiteralRenderer struct{}

var _ Renderer = LiteralRenderer{}

func (LiteralRenderer) Render(systemPrompt string, formatInstructions string) (string, error) {
	return join(systemPrompt, formatInstructions), nil
}

func join(systemPrompt string, formatInstructions string) string {
	if formatInstructions == "" {
		return systemPrompt
	}
	if systemPrompt == "" {
		return formatInstructions
	}
	return strings.TrimRight(systemPrompt, "\n") + "\n\n" + formatInstructions
}
