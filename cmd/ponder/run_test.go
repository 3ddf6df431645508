package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/go-go-golems/ponder/pkg/conversation"
	"github.com/go-go-golems/ponder/pkg/inference/engine"
	"github.com/go-go-golems/ponder/pkg/reasoning/chain"
	"github.com/go-go-golems/ponder/pkg/reasoning/schema"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunQuestionPrintsSteps(t *testing.T) {
	eng := engine.NewScriptedEngine(
		step("Spelling", "continue"),
		step("Counting", "final_answer"),
		"There are **3** Rs.",
	)
	transcriptFile := filepath.Join(t.TempDir(), "transcript.yaml")

	var buf bytes.Buffer
	err := runQuestion(context.Background(), eng, &runSettings{
		Question:       "How many Rs are in strawberry?",
		SaveTranscript: transcriptFile,
		PrintSteps:     true,
	}, &buf, chain.WithMinSteps(1))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "How many Rs are in strawberry?")
	assert.Contains(t, out, "### Step 1: Spelling")
	assert.Contains(t, out, "### Step 2: Counting")
	assert.Contains(t, out, "There are **3** Rs.")

	saved, err := conversation.LoadFromFile(transcriptFile)
	require.NoError(t, err)
	assert.Len(t, saved, 6)
	assert.Equal(t, "There are **3** Rs.", saved.LastMessage().Text)
}

func TestRunQuestionAnswerOnly(t *testing.T) {
	eng := engine.NewScriptedEngine(step("Only", "final_answer"), "42")

	var buf bytes.Buffer
	err := runQuestion(context.Background(), eng, &runSettings{Question: "q"}, &buf)
	require.NoError(t, err)
	assert.Equal(t, "42\n", buf.String())
}

func TestRunQuestionMalformedSavesTranscript(t *testing.T) {
	transcriptFile := filepath.Join(t.TempDir(), "transcript.json")

	var buf bytes.Buffer
	err := runQuestion(context.Background(), engine.NewLoopingEngine("nope"), &runSettings{
		Question:       "q",
		SaveTranscript: transcriptFile,
		PrintSteps:     true,
	}, &buf)
	require.Error(t, err)
	assert.True(t, errors.Is(err, schema.ErrMalformedOutput))

	saved, err := conversation.LoadFromFile(transcriptFile)
	require.NoError(t, err)
	assert.Len(t, saved, 3)
}
