// Package schema defines the shape of a single reasoning step produced by the model.
//
// Two variants exist. During warm-up the model is asked for a title and its reasoning
// only; once the minimum number of steps is reached it is also asked to declare the next
// action. The warm-up wire shape is a structural subset of the hot one.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

type Variant int

const (
	VariantWarmup Variant = iota
	VariantHot
)

func (v Variant) String() string {
	switch v {
	case VariantWarmup:
		return "warmup"
	case VariantHot:
		return "hot"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// NextAction is the routing decision a hot step declares. The zero value is not a valid
// action.
type NextAction int

const (
	NextActionContinue NextAction = iota + 1
	NextActionFinalAnswer
)

const (
	nextActionContinueString    = "continue"
	nextActionFinalAnswerString = "final_answer"
)

func (a NextAction) String() string {
	switch a {
	case NextActionContinue:
		return nextActionContinueString
	case NextActionFinalAnswer:
		return nextActionFinalAnswerString
	default:
		return fmt.Sprintf("next_action(%d)", int(a))
	}
}

func (a NextAction) IsValid() bool {
	switch a {
	case NextActionContinue, NextActionFinalAnswer:
		return true
	default:
		return false
	}
}

// ParseNextAction maps the wire value onto a NextAction.
func ParseNextAction(s string) (NextAction, error) {
	switch s {
	case nextActionContinueString:
		return NextActionContinue, nil
	case nextActionFinalAnswerString:
		return NextActionFinalAnswer, nil
	default:
		return 0, errors.Errorf("unknown next action %q", s)
	}
}

func (a NextAction) MarshalJSON() ([]byte, error) {
	if !a.IsValid() {
		return nil, errors.Errorf("cannot marshal invalid next action %d", int(a))
	}
	return json.Marshal(a.String())
}

func (a *NextAction) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.Wrap(err, "next action must be a string")
	}
	v, err := ParseNextAction(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// JSONSchema describes NextAction as a string enum rather than the underlying int.
func (NextAction) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Title:       "Next Action",
		Description: "Your next action.",
		Enum:        []interface{}{nextActionContinueString, nextActionFinalAnswerString},
	}
}

// WarmupStep is the wire shape of a warm-up step.
type WarmupStep struct {
	Title     string `json:"title" jsonschema:"title=Title,description=A summary of your reasoning in the form of a title.,example=Identifying Key Information"`
	Reasoning string `json:"reasoning" jsonschema:"title=Reasoning,description=Your reasoning."`
}

// HotStep is the wire shape of a step once the model may decide to stop.
type HotStep struct {
	WarmupStep
	NextAction NextAction `json:"next_action"`
}

// ReasoningStep is one parsed unit of thought. Only hot steps carry a next action.
type ReasoningStep struct {
	variant    Variant
	title      string
	reasoning  string
	nextAction NextAction
}

func NewWarmupStep(title, reasoning string) ReasoningStep {
	return ReasoningStep{
		variant:   VariantWarmup,
		title:     title,
		reasoning: reasoning,
	}
}

func NewHotStep(title, reasoning string, action NextAction) ReasoningStep {
	return ReasoningStep{
		variant:    VariantHot,
		title:      title,
		reasoning:  reasoning,
		nextAction: action,
	}
}

func (s ReasoningStep) Variant() Variant {
	return s.variant
}

func (s ReasoningStep) Title() string {
	return s.title
}

func (s ReasoningStep) Reasoning() string {
	return s.reasoning
}

// NextAction returns the declared action. ok is false for warm-up steps, which never
// carry one.
func (s ReasoningStep) NextAction() (action NextAction, ok bool) {
	if s.variant != VariantHot {
		return 0, false
	}
	return s.nextAction, true
}
