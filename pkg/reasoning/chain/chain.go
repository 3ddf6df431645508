// Package chain drives a reasoning run: it asks the model for one step at a time until
// the step budget or the model itself calls for the final answer, then asks for that
// answer.
//
// A run moves through two states. In StateReason the model produces a JSON step which
// is repaired, parsed against the contract that was sent with the request, and routed by
// the decision package. CONTINUE loops back into StateReason, FINAL_ANSWER moves to
// StateAnswer where a plain text answer is requested and the run ends.
package chain

import (
	"context"

	"github.com/go-go-golems/ponder/pkg/conversation"
	"github.com/go-go-golems/ponder/pkg/events"
	"github.com/go-go-golems/ponder/pkg/helpers"
	"github.com/go-go-golems/ponder/pkg/inference/engine"
	"github.com/go-go-golems/ponder/pkg/prompt"
	"github.com/go-go-golems/ponder/pkg/reasoning/repair"
	"github.com/go-go-golems/ponder/pkg/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	StateReason = "Reason"
	StateAnswer = "Answer"
)

const DefaultFinalAnswerPrompt = "Please provide the final answer based on your reasoning above."

const tracerName = "github.com/go-go-golems/ponder/pkg/reasoning/chain"

// Chain holds the configuration shared by all runs. It keeps no per-run state, so a
// single Chain can serve concurrent runs.
type Chain struct {
	eng               engine.Engine
	cfg               settings.RunConfiguration
	repairer          repair.Repairer
	renderer          prompt.Renderer
	sinks             []events.EventSink
	tracer            trace.Tracer
	finalAnswerPrompt string
}

func New(eng engine.Engine, opts ...Option) (*Chain, error) {
	if eng == nil {
		return nil, errors.New("chain engine is nil")
	}

	c := &Chain{
		eng:               eng,
		cfg:               settings.NewRunConfiguration(),
		repairer:          repair.JSONRepairer{},
		renderer:          prompt.NewTemplateRenderer(),
		finalAnswerPrompt: DefaultFinalAnswerPrompt,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if c.cfg.SystemPrompt == "" {
		c.cfg.SystemPrompt = settings.DefaultSystemPrompt
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}
	if err := c.cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid run configuration")
	}
	if err := c.cfg.Budget().Check(); err != nil {
		log.Warn().Err(err).Msg("inconsistent step budget, min steps take precedence")
	}

	return c, nil
}

// RunConfiguration returns a copy of the configuration every run uses.
func (c *Chain) RunConfiguration() settings.RunConfiguration {
	return c.cfg.Clone()
}

// Run reasons about userMessage until the final answer, which is the last message of the
// returned transcript. On error the transcript accumulated so far is returned with it.
func (c *Chain) Run(ctx context.Context, userMessage string) (conversation.Conversation, error) {
	r := c.newRun(nil)
	err := r.execute(ctx, userMessage)
	return r.transcript, err
}

// Stream runs like Run and yields every message as it is appended to the transcript.
// A failed run ends with an error result. The channel is closed when the run is over.
func (c *Chain) Stream(ctx context.Context, userMessage string) <-chan helpers.Result[*conversation.Message] {
	out := make(chan helpers.Result[*conversation.Message])

	go func() {
		defer close(out)

		send := func(res helpers.Result[*conversation.Message]) error {
			select {
			case out <- res:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		r := c.newRun(func(m *conversation.Message) error {
			return send(helpers.NewValueResult(m.Clone()))
		})
		if err := r.execute(ctx, userMessage); err != nil {
			_ = send(helpers.NewErrorResult[*conversation.Message](err))
		}
	}()

	return out
}
