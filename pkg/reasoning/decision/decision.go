// Package decision holds the step-control rules of a reasoning run: which output
// contract applies to the next step, and whether the run continues or moves on to the
// final answer. It performs no I/O and keeps no state beyond the Counter it is handed.
package decision

import (
	"fmt"

	"github.com/go-go-golems/ponder/pkg/reasoning/schema"
)

// Budget bounds the number of reasoning steps. MaxSteps nil means unbounded.
type Budget struct {
	MinSteps int
	MaxSteps *int
}

// ConfigurationInconsistencyError flags a budget whose minimum exceeds its maximum. It is
// advisory: routing still follows the regular priority order, which keeps forcing
// CONTINUE until MinSteps is reached.
type ConfigurationInconsistencyError struct {
	MinSteps int
	MaxSteps int
}

func (e *ConfigurationInconsistencyError) Error() string {
	return fmt.Sprintf("min steps (%d) exceeds max steps (%d)", e.MinSteps, e.MaxSteps)
}

// Check reports budget inconsistencies without rejecting them.
func (b Budget) Check() error {
	if b.MaxSteps != nil && b.MinSteps > *b.MaxSteps {
		return &ConfigurationInconsistencyError{MinSteps: b.MinSteps, MaxSteps: *b.MaxSteps}
	}
	return nil
}

// SelectVariant returns the warm-up contract while fewer than minSteps steps have been
// taken, and the hot contract afterwards.
func SelectVariant(stepCount int, minSteps int) schema.Variant {
	if stepCount < minSteps {
		return schema.VariantWarmup
	}
	return schema.VariantHot
}

// Route decides what follows the step that was just parsed, in strict priority order:
//
//  1. below MinSteps the run continues, whatever the step says
//  2. at or past MaxSteps the run moves to the final answer
//  3. otherwise the hot step's declared next action wins
//
// step may be nil when one of the first two rules applies.
func Route(stepCount int, b Budget, step *schema.ReasoningStep) (schema.NextAction, error) {
	if stepCount < b.MinSteps {
		return schema.NextActionContinue, nil
	}
	if b.MaxSteps != nil && stepCount >= *b.MaxSteps {
		return schema.NextActionFinalAnswer, nil
	}

	if step == nil {
		return 0, &schema.MalformedOutputError{
			Variant: schema.VariantHot,
			Field:   "next_action",
			Reason:  "no parsed step to take the next action from",
		}
	}
	action, ok := step.NextAction()
	if !ok {
		return 0, &schema.MalformedOutputError{
			Variant: step.Variant(),
			Field:   "next_action",
			Reason:  "step does not declare a next action",
		}
	}

	switch action {
	case schema.NextActionContinue, schema.NextActionFinalAnswer:
		return action, nil
	default:
		return 0, &schema.MalformedOutputError{
			Variant: step.Variant(),
			Field:   "next_action",
			Reason:  fmt.Sprintf("invalid next action %s", action),
		}
	}
}

// Counter is the step counter of a single run. The zero value is ready to use.
type Counter struct {
	n int
}

func (c *Counter) Count() int {
	return c.n
}

// Variant is the contract that applies to the next step.
func (c *Counter) Variant(b Budget) schema.Variant {
	return SelectVariant(c.n, b.MinSteps)
}

// Advance routes the step with the current count, then counts it. The counter is left
// alone when routing fails, the run is over at that point anyway.
func (c *Counter) Advance(b Budget, step *schema.ReasoningStep) (schema.NextAction, error) {
	action, err := Route(c.n, b, step)
	if err != nil {
		return 0, err
	}
	c.n++
	return action, nil
}

func (c *Counter) Reset() {
	c.n = 0
}
