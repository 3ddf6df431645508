package events

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type EventType string

const (
	EventTypeRunStarted EventType = "run-started"
	// EventTypeReasoningStep is published once per parsed reasoning step, after routing.
	EventTypeReasoningStep EventType = "reasoning-step"
	EventTypeFinal         EventType = "final"
	EventTypeError         EventType = "error"
)

type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() []byte
}

// EventMetadata correlates an event with its run and position in the loop.
type EventMetadata struct {
	ID    uuid.UUID `json:"message_id" yaml:"message_id" mapstructure:"message_id"`
	RunID string    `json:"run_id,omitempty" yaml:"run_id,omitempty" mapstructure:"run_id"`
	Step  int       `json:"step" yaml:"step" mapstructure:"step"`
	// Variant is "warmup" or "hot", empty outside of reasoning steps.
	Variant string `json:"variant,omitempty" yaml:"variant,omitempty" mapstructure:"variant"`
	State   string `json:"state,omitempty" yaml:"state,omitempty" mapstructure:"state"`
}

func NewEventMetadata(runID string, step int) EventMetadata {
	return EventMetadata{
		ID:    uuid.New(),
		RunID: runID,
		Step:  step,
	}
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("message_id", em.ID.String())
	if em.RunID != "" {
		e.Str("run_id", em.RunID)
	}
	e.Int("step", em.Step)
	if em.Variant != "" {
		e.Str("variant", em.Variant)
	}
	if em.State != "" {
		e.Str("state", em.State)
	}
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"meta"`

	// store payload if the event was deserialized from JSON (see NewEventFromJson), not further used
	payload []byte
}

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
	ev.Object("meta", e.Metadata_)
}

func (e *EventImpl) Type() EventType {
	return e.Type_
}

func (e *EventImpl) Metadata() EventMetadata {
	return e.Metadata_
}

func (e *EventImpl) Payload() []byte {
	return e.payload
}

var _ Event = &EventImpl{}

type EventRunStarted struct {
	EventImpl
	Question string `json:"question"`
}

func NewRunStartedEvent(metadata EventMetadata, question string) *EventRunStarted {
	return &EventRunStarted{
		EventImpl: EventImpl{
			Type_:     EventTypeRunStarted,
			Metadata_: metadata,
		},
		Question: question,
	}
}

var _ Event = &EventRunStarted{}

// EventReasoningStep carries a parsed step together with the routing verdict.
type EventReasoningStep struct {
	EventImpl
	Title     string `json:"title"`
	Reasoning string `json:"reasoning"`
	// DeclaredAction is what the model asked for, empty for warm-up steps.
	DeclaredAction string `json:"declared_action,omitempty"`
	Decision       string `json:"decision"`
}

func NewReasoningStepEvent(metadata EventMetadata, title, reasoning, declared, decision string) *EventReasoningStep {
	return &EventReasoningStep{
		EventImpl: EventImpl{
			Type_:     EventTypeReasoningStep,
			Metadata_: metadata,
		},
		Title:          title,
		Reasoning:      reasoning,
		DeclaredAction: declared,
		Decision:       decision,
	}
}

func (e *EventReasoningStep) MarshalZerologObject(ev *zerolog.Event) {
	e.EventImpl.MarshalZerologObject(ev)
	ev.Str("title", e.Title)
	if e.DeclaredAction != "" {
		ev.Str("declared_action", e.DeclaredAction)
	}
	ev.Str("decision", e.Decision)
}

var _ Event = &EventReasoningStep{}

type EventFinal struct {
	EventImpl
	Text string `json:"text"`
}

func NewFinalEvent(metadata EventMetadata, text string) *EventFinal {
	return &EventFinal{
		EventImpl: EventImpl{
			Type_:     EventTypeFinal,
			Metadata_: metadata,
		},
		Text: text,
	}
}

var _ Event = &EventFinal{}

type EventError struct {
	EventImpl
	ErrorString string `json:"error_string"`
}

func NewErrorEvent(metadata EventMetadata, err error) *EventError {
	return &EventError{
		EventImpl: EventImpl{
			Type_:     EventTypeError,
			Metadata_: metadata,
		},
		ErrorString: err.Error(),
	}
}

func (e *EventError) MarshalZerologObject(ev *zerolog.Event) {
	e.EventImpl.MarshalZerologObject(ev)
	ev.Str("error", e.ErrorString)
}

var _ Event = &EventError{}

// NewEventFromJson decodes an event published on the bus back into its typed form.
func NewEventFromJson(b []byte) (Event, error) {
	var e *EventImpl
	err := json.Unmarshal(b, &e)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("empty event payload")
	}

	e.payload = b

	switch e.Type_ {
	case EventTypeRunStarted:
		return toTypedEvent[EventRunStarted](e)
	case EventTypeReasoningStep:
		return toTypedEvent[EventReasoningStep](e)
	case EventTypeFinal:
		return toTypedEvent[EventFinal](e)
	case EventTypeError:
		return toTypedEvent[EventError](e)
	}

	return e, nil
}

// typedEvent lets toTypedEvent keep the raw payload on the decoded value.
type typedEvent[T any] interface {
	*T
	Event
	setPayload([]byte)
}

func (e *EventImpl) setPayload(b []byte) {
	e.payload = b
}

func toTypedEvent[T any, PT typedEvent[T]](e Event) (Event, error) {
	var ret T
	if err := json.Unmarshal(e.Payload(), &ret); err != nil {
		return nil, fmt.Errorf("could not cast event to %T: %w", ret, err)
	}
	p := PT(&ret)
	p.setPayload(e.Payload())
	return p, nil
}
