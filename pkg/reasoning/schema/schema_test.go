package schema

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatInstructionsDifferByVariant(t *testing.T) {
	warmup, err := FormatInstructions(VariantWarmup)
	require.NoError(t, err)
	hot, err := FormatInstructions(VariantHot)
	require.NoError(t, err)

	assert.Contains(t, warmup, "The output should be formatted as a JSON instance")
	assert.Contains(t, warmup, `"title"`)
	assert.Contains(t, warmup, `"reasoning"`)
	assert.NotContains(t, warmup, "next_action")

	assert.Contains(t, hot, `"next_action"`)
	assert.Contains(t, hot, "final_answer")
	assert.Contains(t, hot, "Identifying Key Information")
}

func TestJSONSchemaRequiredFields(t *testing.T) {
	s, err := JSONSchema(VariantHot)
	require.NoError(t, err)

	var doc struct {
		Required   []string                   `json:"required"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	require.NoError(t, json.Unmarshal([]byte(s), &doc))
	assert.ElementsMatch(t, []string{"title", "reasoning", "next_action"}, doc.Required)
	assert.Contains(t, doc.Properties, "next_action")
}

func TestParseWarmup(t *testing.T) {
	step, err := Parse(`{"title": "Identifying Key Information", "reasoning": "The word has ten letters."}`, VariantWarmup)
	require.NoError(t, err)

	assert.Equal(t, VariantWarmup, step.Variant())
	assert.Equal(t, "Identifying Key Information", step.Title())
	assert.Equal(t, "The word has ten letters.", step.Reasoning())
	_, ok := step.NextAction()
	assert.False(t, ok)
}

func TestParseWarmupIgnoresDeclaredAction(t *testing.T) {
	step, err := Parse(`{"title": "t", "reasoning": "r", "next_action": "final_answer"}`, VariantWarmup)
	require.NoError(t, err)

	_, ok := step.NextAction()
	assert.False(t, ok, "a warm-up step never carries a next action")
}

func TestParseHot(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected NextAction
	}{
		{"continue", `{"title": "t", "reasoning": "r", "next_action": "continue"}`, NextActionContinue},
		{"final answer", `{"title": "t", "reasoning": "r", "next_action": "final_answer"}`, NextActionFinalAnswer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step, err := Parse(tt.raw, VariantHot)
			require.NoError(t, err)
			action, ok := step.NextAction()
			require.True(t, ok)
			assert.Equal(t, tt.expected, action)
		})
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		variant Variant
		field   string
	}{
		{"empty", "   ", VariantWarmup, ""},
		{"not json", "I think the answer is 3", VariantWarmup, ""},
		{"not an object", `"just a string"`, VariantHot, ""},
		{"missing reasoning", `{"title": "t"}`, VariantWarmup, "reasoning"},
		{"missing next action", `{"title": "t", "reasoning": "r"}`, VariantHot, "next_action"},
		{"unknown next action", `{"title": "t", "reasoning": "r", "next_action": "give_up"}`, VariantHot, "next_action"},
		{"wrong type", `{"title": 3, "reasoning": "r"}`, VariantWarmup, "title"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.raw, tt.variant)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedOutput))

			var malformed *MalformedOutputError
			require.True(t, errors.As(err, &malformed))
			assert.Equal(t, tt.variant, malformed.Variant)
			assert.Equal(t, tt.raw, malformed.Raw)
			if tt.field != "" {
				assert.Equal(t, tt.field, malformed.Field)
			}
		})
	}
}

func TestNextActionJSON(t *testing.T) {
	b, err := json.Marshal(NextActionFinalAnswer)
	require.NoError(t, err)
	assert.Equal(t, `"final_answer"`, string(b))

	var a NextAction
	require.NoError(t, json.Unmarshal([]byte(`"continue"`), &a))
	assert.Equal(t, NextActionContinue, a)

	assert.Error(t, json.Unmarshal([]byte(`"CONTINUE"`), &a))
	assert.Error(t, json.Unmarshal([]byte(`1`), &a))

	_, err = json.Marshal(NextAction(0))
	assert.Error(t, err)
}
