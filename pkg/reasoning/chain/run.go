package chain

import (
	"context"

	"github.com/go-go-golems/ponder/pkg/conversation"
	"github.com/go-go-golems/ponder/pkg/events"
	"github.com/go-go-golems/ponder/pkg/reasoning/decision"
	"github.com/go-go-golems/ponder/pkg/reasoning/schema"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// run is the state of a single reasoning run. The transcript is append-only.
type run struct {
	c          *Chain
	id         string
	budget     decision.Budget
	counter    decision.Counter
	state      string
	transcript conversation.Conversation
	emit       func(*conversation.Message) error
}

func (c *Chain) newRun(emit func(*conversation.Message) error) *run {
	return &run{
		c:      c,
		id:     uuid.NewString(),
		budget: c.cfg.Budget(),
		state:  StateReason,
		emit:   emit,
	}
}

func (r *run) metadata(step int) events.EventMetadata {
	meta := events.NewEventMetadata(r.id, step)
	meta.State = r.state
	return meta
}

func (r *run) append(m *conversation.Message) error {
	r.transcript = append(r.transcript, m)
	if r.emit != nil {
		return r.emit(m)
	}
	return nil
}

func (r *run) execute(ctx context.Context, userMessage string) (err error) {
	ctx = events.WithEventSinks(ctx, r.c.sinks...)

	attrs := []attribute.KeyValue{
		attribute.String("ponder.run_id", r.id),
		attribute.Int("ponder.min_steps", r.budget.MinSteps),
	}
	if r.budget.MaxSteps != nil {
		attrs = append(attrs, attribute.Int("ponder.max_steps", *r.budget.MaxSteps))
	}
	ctx, span := r.c.tracer.Start(ctx, "ponder.run", trace.WithAttributes(attrs...))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			events.PublishEventToContext(ctx, events.NewErrorEvent(r.metadata(r.counter.Count()), err))
			log.Debug().Err(err).Str("run_id", r.id).Str("state", r.state).Msg("reasoning run failed")
		}
		span.End()
	}()

	events.PublishEventToContext(ctx, events.NewRunStartedEvent(r.metadata(0), userMessage))

	if err := r.seed(userMessage); err != nil {
		return err
	}

	for {
		action, err := r.reason(ctx)
		if err != nil {
			return err
		}
		if action == schema.NextActionFinalAnswer {
			break
		}
	}

	return r.answer(ctx)
}

// systemTurn renders the configured system prompt with the instructions of variant.
func (r *run) systemTurn(variant schema.Variant) (*conversation.Message, error) {
	instructions, err := schema.FormatInstructions(variant)
	if err != nil {
		return nil, err
	}
	text, err := r.c.renderer.Render(r.c.cfg.SystemPrompt, instructions)
	if err != nil {
		return nil, err
	}
	return conversation.NewChatMessage(conversation.RoleSystem, text,
		conversation.WithMetadata(map[string]interface{}{
			conversation.MetadataKeyVariant: variant.String(),
		}),
	), nil
}

func (r *run) seed(userMessage string) error {
	system, err := r.systemTurn(r.counter.Variant(r.budget))
	if err != nil {
		return errors.Wrap(err, "could not render system prompt")
	}
	if err := r.append(system); err != nil {
		return err
	}
	return r.append(conversation.NewChatMessage(conversation.RoleUser, userMessage))
}

// request is what the model sees: a freshly rendered system turn followed by everything
// after the seed system turn.
func (r *run) request(system *conversation.Message) conversation.Conversation {
	ret := make(conversation.Conversation, 0, len(r.transcript))
	ret = append(ret, system)
	if len(r.transcript) > 1 {
		ret = append(ret, r.transcript[1:]...)
	}
	return ret.Clone()
}

func (r *run) reason(ctx context.Context) (schema.NextAction, error) {
	step := r.counter.Count()
	variant := r.counter.Variant(r.budget)

	ctx, span := r.c.tracer.Start(ctx, StateReason, trace.WithAttributes(
		attribute.Int("ponder.step", step),
		attribute.String("ponder.variant", variant.String()),
	))
	defer span.End()

	log.Debug().Str("run_id", r.id).Int("step", step).Str("variant", variant.String()).Msg("chain: reasoning step")

	system, err := r.systemTurn(variant)
	if err != nil {
		return 0, errors.Wrapf(err, "reason step %d", step)
	}

	reply, err := r.c.eng.RunInference(ctx, r.request(system))
	if err != nil {
		return 0, errors.Wrapf(err, "reason step %d", step)
	}
	if reply == nil {
		return 0, errors.Errorf("reason step %d: engine returned no message", step)
	}

	msg := reply.Clone()
	msg.Role = conversation.RoleAssistant
	if msg.Metadata == nil {
		msg.Metadata = map[string]interface{}{}
	}
	msg.Metadata[conversation.MetadataKeyPhase] = StateReason
	msg.Metadata[conversation.MetadataKeyStep] = step
	msg.Metadata[conversation.MetadataKeyVariant] = variant.String()
	if err := r.append(msg); err != nil {
		return 0, err
	}

	repaired, err := r.c.repairer.Repair(msg.Text)
	if err != nil {
		return 0, &schema.MalformedOutputError{
			Variant: variant,
			Reason:  err.Error(),
			Raw:     msg.Text,
		}
	}
	parsed, err := schema.Parse(repaired, variant)
	if err != nil {
		return 0, err
	}

	declared := ""
	if a, ok := parsed.NextAction(); ok {
		declared = a.String()
	}

	action, err := r.counter.Advance(r.budget, &parsed)
	if err != nil {
		return 0, err
	}

	log.Debug().
		Str("run_id", r.id).
		Int("step", step).
		Str("title", parsed.Title()).
		Str("declared_action", declared).
		Str("next_action", action.String()).
		Msg("chain: step routed")
	span.SetAttributes(attribute.String("ponder.next_action", action.String()))

	meta := r.metadata(step)
	meta.Variant = variant.String()
	events.PublishEventToContext(ctx, events.NewReasoningStepEvent(
		meta, parsed.Title(), parsed.Reasoning(), declared, action.String(),
	))

	switch action {
	case schema.NextActionContinue, schema.NextActionFinalAnswer:
		return action, nil
	default:
		return 0, errors.Errorf("reason step %d: unexpected action %s", step, action)
	}
}

// answer requests the free-form final answer. The format instructions are left out of
// the system turn since no schema applies.
func (r *run) answer(ctx context.Context) error {
	steps := r.counter.Count()
	r.counter.Reset()
	r.state = StateAnswer

	ctx, span := r.c.tracer.Start(ctx, StateAnswer, trace.WithAttributes(
		attribute.Int("ponder.steps", steps),
	))
	defer span.End()

	log.Debug().Str("run_id", r.id).Int("steps", steps).Msg("chain: requesting final answer")

	if err := r.append(conversation.NewChatMessage(conversation.RoleUser, r.c.finalAnswerPrompt,
		conversation.WithMetadata(map[string]interface{}{
			conversation.MetadataKeyPhase: StateAnswer,
		}),
	)); err != nil {
		return err
	}

	text, err := r.c.renderer.Render(r.c.cfg.SystemPrompt, "")
	if err != nil {
		return errors.Wrap(err, "could not render system prompt")
	}
	system := conversation.NewChatMessage(conversation.RoleSystem, text)

	reply, err := r.c.eng.RunInference(ctx, r.request(system))
	if err != nil {
		return errors.Wrap(err, "final answer")
	}
	if reply == nil {
		return errors.New("final answer: engine returned no message")
	}

	msg := reply.Clone()
	msg.Role = conversation.RoleAssistant
	if msg.Metadata == nil {
		msg.Metadata = map[string]interface{}{}
	}
	msg.Metadata[conversation.MetadataKeyPhase] = StateAnswer
	if err := r.append(msg); err != nil {
		return err
	}

	events.PublishEventToContext(ctx, events.NewFinalEvent(r.metadata(steps), msg.Text))
	return nil
}
