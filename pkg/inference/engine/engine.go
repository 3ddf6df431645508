package engine

import (
	"context"

	"github.com/go-go-golems/ponder/pkg/conversation"
)

// Engine is a model capability: it takes the ordered conversation and returns the
// model's reply. Engines handle provider-specific logic for OpenAI compatible APIs and
// the like. A single call is one blocking round trip, retries are up to the caller.
type Engine interface {
	// RunInference returns the assistant message produced for messages. The input is
	// never modified.
	RunInference(ctx context.Context, messages conversation.Conversation) (*conversation.Message, error)
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, messages conversation.Conversation) (*conversation.Message, error)

func (f EngineFunc) RunInference(ctx context.Context, messages conversation.Conversation) (*conversation.Message, error) {
	return f(ctx, messages)
}

var _ Engine = EngineFunc(nil)
