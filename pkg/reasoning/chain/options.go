package chain

import (
	"github.com/go-go-golems/ponder/pkg/events"
	"github.com/go-go-golems/ponder/pkg/prompt"
	"github.com/go-go-golems/ponder/pkg/reasoning/repair"
	"github.com/go-go-golems/ponder/pkg/settings"
	"go.opentelemetry.io/otel/trace"
)

type Option func(*Chain)

// WithRunConfiguration replaces the whole run configuration. Options applied after it
// still override single fields.
func WithRunConfiguration(cfg settings.RunConfiguration) Option {
	return func(c *Chain) { c.cfg = cfg.Clone() }
}

func WithMinSteps(n int) Option {
	return func(c *Chain) { c.cfg.MinSteps = n }
}

// WithMaxSteps bounds the run. Without it the model decides when to stop.
func WithMaxSteps(n int) Option {
	return func(c *Chain) { c.cfg.MaxSteps = &n }
}

// WithSystemPrompt sets the system prompt. With the default renderer it is a template; a
// prompt that does not parse as one, such as one embedding literal JSON braces, is used as
// is. Combine with WithRenderer(prompt.LiteralRenderer{}) for prompts from untrusted input.
func WithSystemPrompt(p string) Option {
	return func(c *Chain) { c.cfg.SystemPrompt = p }
}

func WithRepairer(r repair.Repairer) Option {
	return func(c *Chain) { c.repairer = r }
}

func WithRenderer(r prompt.Renderer) Option {
	return func(c *Chain) { c.renderer = r }
}

// WithEventSinks adds sinks that receive the events of every run. Sinks attached to the
// run context with events.WithEventSinks receive them as well.
func WithEventSinks(sinks ...events.EventSink) Option {
	return func(c *Chain) { c.sinks = append(c.sinks, sinks...) }
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Chain) { c.tracer = t }
}

func WithFinalAnswerPrompt(p string) Option {
	return func(c *Chain) { c.finalAnswerPrompt = p }
}
