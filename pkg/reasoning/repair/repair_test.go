package repair

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type step struct {
	Title      string `json:"title"`
	Reasoning  string `json:"reasoning"`
	NextAction string `json:"next_action"`
}

func TestRepairLeavesValidJSONUntouched(t *testing.T) {
	input := "  {\"title\": \"a\",\n \"reasoning\": \"b\"}\n"
	out, err := Repair(input)
	require.NoError(t, err)
	assert.Equal(t, input, out)
}

func TestRepair(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected step
	}{
		{
			name:     "fenced block",
			input:    "Here is my step:\n\n```json\n{\"title\": \"Counting\", \"reasoning\": \"s-t-r\", \"next_action\": \"continue\"}\n```\n",
			expected: step{Title: "Counting", Reasoning: "s-t-r", NextAction: "continue"},
		},
		{
			name:     "prose around object",
			input:    `Sure! {"title": "Counting", "reasoning": "three", "next_action": "final_answer"} Hope this helps.`,
			expected: step{Title: "Counting", Reasoning: "three", NextAction: "final_answer"},
		},
		{
			name:     "missing closing brace",
			input:    `{"title": "Counting", "reasoning": "three", "next_action": "continue"`,
			expected: step{Title: "Counting", Reasoning: "three", NextAction: "continue"},
		},
		{
			name:     "trailing comma",
			input:    `{"title": "Counting", "reasoning": "three", "next_action": "continue",}`,
			expected: step{Title: "Counting", Reasoning: "three", NextAction: "continue"},
		},
		{
			name:     "single quotes",
			input:    `{'title': 'Counting', 'reasoning': 'three', 'next_action': 'continue'}`,
			expected: step{Title: "Counting", Reasoning: "three", NextAction: "continue"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Repair(tt.input)
			require.NoError(t, err)
			require.True(t, json.Valid([]byte(out)), "repaired output is not JSON: %s", out)

			var s step
			require.NoError(t, json.Unmarshal([]byte(out), &s))
			assert.Equal(t, tt.expected, s)
		})
	}
}

func TestRepairIsIdempotent(t *testing.T) {
	inputs := []string{
		`{"title": "a", "reasoning": "b"}`,
		`{"title": "a", "reasoning": "b"`,
		"```json\n{\"title\": \"a\", \"reasoning\": \"b\",}\n```",
		`{'title': 'a'}`,
		`prefix {"title": "a"} suffix`,
	}

	for _, input := range inputs {
		once, err := Repair(input)
		require.NoError(t, err, input)
		twice, err := Repair(once)
		require.NoError(t, err, input)
		assert.Equal(t, once, twice, input)
	}
}

func TestExtractJSONBlocks(t *testing.T) {
	md := "intro\n\n```yaml\ntitle: nope\n```\n\n```json\n{\"a\": 1}\n```\n\n```\n{\"b\": 2}\n```\n"
	blocks := ExtractJSONBlocks(md)
	require.Len(t, blocks, 2)
	assert.JSONEq(t, `{"a": 1}`, blocks[0])
	assert.JSONEq(t, `{"b": 2}`, blocks[1])
}

func TestExtractCandidateTruncated(t *testing.T) {
	assert.Equal(t, `{"title": "Count`, ExtractCandidate(`I will answer: {"title": "Count`))
	assert.Equal(t, "no braces here", ExtractCandidate("  no braces here "))
}

func TestRepairerFunc(t *testing.T) {
	var r Repairer = RepairerFunc(func(s string) (string, error) { return s + "!", nil })
	out, err := r.Repair("x")
	require.NoError(t, err)
	assert.Equal(t, "x!", out)

	out, err = JSONRepairer{}.Repair(`{"a": 1`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": 1}`, out)
}
