package decision

import (
	"testing"

	"github.com/go-go-golems/ponder/pkg/helpers"
	"github.com/go-go-golems/ponder/pkg/reasoning/schema"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hot(action schema.NextAction) *schema.ReasoningStep {
	s := schema.NewHotStep("t", "r", action)
	return &s
}

func warmup() *schema.ReasoningStep {
	s := schema.NewWarmupStep("t", "r")
	return &s
}

func TestSelectVariant(t *testing.T) {
	assert.Equal(t, schema.VariantHot, SelectVariant(0, 0))
	assert.Equal(t, schema.VariantWarmup, SelectVariant(0, 3))
	assert.Equal(t, schema.VariantWarmup, SelectVariant(2, 3))
	assert.Equal(t, schema.VariantHot, SelectVariant(3, 3))
	assert.Equal(t, schema.VariantHot, SelectVariant(7, 3))
}

func TestRoutePriority(t *testing.T) {
	tests := []struct {
		name     string
		count    int
		budget   Budget
		step     *schema.ReasoningStep
		expected schema.NextAction
	}{
		{"below min ignores the step", 0, Budget{MinSteps: 2}, nil, schema.NextActionContinue},
		{"below min ignores a declared final answer", 1, Budget{MinSteps: 2}, hot(schema.NextActionFinalAnswer), schema.NextActionContinue},
		{"max reached overrides continue", 5, Budget{MinSteps: 2, MaxSteps: helpers.ToPointer(5)}, hot(schema.NextActionContinue), schema.NextActionFinalAnswer},
		{"max reached without a step", 3, Budget{MaxSteps: helpers.ToPointer(3)}, nil, schema.NextActionFinalAnswer},
		{"zero budget forces the answer at once", 0, Budget{MaxSteps: helpers.ToPointer(0)}, nil, schema.NextActionFinalAnswer},
		{"model continues", 2, Budget{MinSteps: 2}, hot(schema.NextActionContinue), schema.NextActionContinue},
		{"model answers", 0, Budget{}, hot(schema.NextActionFinalAnswer), schema.NextActionFinalAnswer},
		{"min checked before max", 1, Budget{MinSteps: 4, MaxSteps: helpers.ToPointer(1)}, nil, schema.NextActionContinue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, err := Route(tt.count, tt.budget, tt.step)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, action)
		})
	}
}

func TestRouteNeedsDeclaredAction(t *testing.T) {
	for _, step := range []*schema.ReasoningStep{nil, warmup(), hot(schema.NextAction(0))} {
		_, err := Route(0, Budget{}, step)
		require.Error(t, err)
		assert.True(t, errors.Is(err, schema.ErrMalformedOutput))

		var malformed *schema.MalformedOutputError
		require.True(t, errors.As(err, &malformed))
		assert.Equal(t, "next_action", malformed.Field)
	}
}

func TestCounterAdvance(t *testing.T) {
	b := Budget{MinSteps: 2, MaxSteps: helpers.ToPointer(5)}
	c := &Counter{}

	var variants []schema.Variant
	var actions []schema.NextAction
	for {
		variants = append(variants, c.Variant(b))
		action, err := c.Advance(b, hot(schema.NextActionContinue))
		require.NoError(t, err)
		actions = append(actions, action)
		if action == schema.NextActionFinalAnswer {
			break
		}
	}

	assert.Equal(t, []schema.Variant{
		schema.VariantWarmup, schema.VariantWarmup,
		schema.VariantHot, schema.VariantHot, schema.VariantHot, schema.VariantHot,
	}, variants)
	assert.Equal(t, []schema.NextAction{
		schema.NextActionContinue, schema.NextActionContinue,
		schema.NextActionContinue, schema.NextActionContinue, schema.NextActionContinue,
		schema.NextActionFinalAnswer,
	}, actions)
	assert.Equal(t, 6, c.Count())

	c.Reset()
	assert.Equal(t, 0, c.Count())
	assert.Equal(t, schema.VariantWarmup, c.Variant(b))
}

func TestCounterAdvanceIncrementsOnEveryBranch(t *testing.T) {
	c := &Counter{}
	_, err := c.Advance(Budget{MinSteps: 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Count())

	_, err = c.Advance(Budget{MaxSteps: helpers.ToPointer(1)}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Count())

	_, err = c.Advance(Budget{}, hot(schema.NextActionContinue))
	require.NoError(t, err)
	assert.Equal(t, 3, c.Count())

	_, err = c.Advance(Budget{}, warmup())
	require.Error(t, err)
	assert.Equal(t, 3, c.Count())
}

func TestBudgetCheck(t *testing.T) {
	assert.NoError(t, Budget{}.Check())
	assert.NoError(t, Budget{MinSteps: 2, MaxSteps: helpers.ToPointer(2)}.Check())

	err := Budget{MinSteps: 3, MaxSteps: helpers.ToPointer(1)}.Check()
	var inconsistent *ConfigurationInconsistencyError
	require.True(t, errors.As(err, &inconsistent))
	assert.Equal(t, 3, inconsistent.MinSteps)
	assert.Equal(t, 1, inconsistent.MaxSteps)
}
