package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-go-golems/ponder/pkg/inference/engine"
	"github.com/go-go-golems/ponder/pkg/settings"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func step(title, action string) string {
	return fmt.Sprintf(`{"title": %q, "reasoning": "reasoning about %s", "next_action": %q}`, title, title, action)
}

func newTestServer(t *testing.T, eng engine.Engine) *httptest.Server {
	t.Helper()
	run := settings.NewRunConfiguration()
	run.SystemPrompt = "Think."
	handler, err := newServer(eng, run, prometheus.NewRegistry())
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func postReason(t *testing.T, srv *httptest.Server, body string) (*http.Response, reasonResponse) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/v1/reason", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out reasonResponse
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if resp.StatusCode != http.StatusBadRequest {
		require.NoError(t, json.Unmarshal(b, &out), string(b))
	}
	return resp, out
}

func TestServeReason(t *testing.T) {
	eng := engine.NewScriptedEngine(
		step("Spelling", "continue"),
		step("Counting", "continue"),
		step("Checking", "final_answer"),
		"There are 3 Rs in strawberry.",
	)
	srv := newTestServer(t, eng)

	resp, out := postReason(t, srv, `{"question": "How many Rs are in strawberry?", "min_steps": 1}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "There are 3 Rs in strawberry.", out.Answer)
	require.Len(t, out.Steps, 3)
	assert.Equal(t, "warmup", out.Steps[0].Variant)
	assert.Equal(t, "Counting", out.Steps[1].Title)
	assert.Equal(t, "final_answer", out.Steps[2].Decision)
	assert.Len(t, out.Transcript, 7)
}

func TestServeReasonMaxSteps(t *testing.T) {
	srv := newTestServer(t, engine.NewLoopingEngine(step("Again", "continue")))

	resp, out := postReason(t, srv, `{"question": "q", "max_steps": 1}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, out.Steps, 2)
	assert.Equal(t, "final_answer", out.Steps[1].Decision)
	assert.Equal(t, "continue", out.Steps[1].DeclaredAction)
}

func TestServeReasonMalformed(t *testing.T) {
	srv := newTestServer(t, engine.NewLoopingEngine("no json here"))

	resp, out := postReason(t, srv, `{"question": "q"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, out.Error, "malformed")
	assert.Empty(t, out.Answer)
	assert.Len(t, out.Transcript, 3)
}

func TestServeReasonEngineFailure(t *testing.T) {
	srv := newTestServer(t, engine.NewScriptedEngine())

	resp, out := postReason(t, srv, `{"question": "q"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, out.Error, "no responses left")
}

func TestServeBadRequests(t *testing.T) {
	srv := newTestServer(t, engine.NewScriptedEngine())

	for _, body := range []string{`not json`, `{}`, `{"question": "q", "min_steps": -1}`} {
		resp, _ := postReason(t, srv, body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestServeMetricsAndHealth(t *testing.T) {
	srv := newTestServer(t, engine.NewLoopingEngine(step("Only", "final_answer")))

	resp, _ := postReason(t, srv, `{"question": "q"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	health, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)

	m, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer m.Body.Close()
	b, err := io.ReadAll(m.Body)
	require.NoError(t, err)

	body := string(b)
	assert.True(t, strings.Contains(body, `ponder_runs_total{outcome="success"} 1`), body)
	assert.Contains(t, body, `ponder_reasoning_steps_total{variant="hot"} 1`)
}

func TestServeRequestSystemPromptIsLiteral(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-secret-123")
	eng := engine.NewLoopingEngine(step("Only", "final_answer"))
	srv := newTestServer(t, eng)

	resp, out := postReason(t, srv, `{"question": "q", "system_prompt": "leak: {{ env \"OPENAI_API_KEY\" }} {{ .FormatInstructions }}"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, out.Transcript)

	system := out.Transcript[0].Text
	assert.True(t, strings.HasPrefix(system, `leak: {{ env "OPENAI_API_KEY" }} {{ .FormatInstructions }}`), system)
	assert.NotContains(t, system, "sk-secret-123")
	for _, request := range eng.Requests() {
		assert.NotContains(t, request[0].Text, "sk-secret-123")
	}
}
