package engine

import (
	"context"
	"time"

	"github.com/go-go-golems/ponder/pkg/conversation"
	"github.com/rs/zerolog/log"
)

// HandlerFunc processes an inference request.
type HandlerFunc func(ctx context.Context, messages conversation.Conversation) (*conversation.Message, error)

// Middleware wraps a HandlerFunc with additional functionality.
// Middlewares are applied in order: Chain(h, m1, m2) results in m1(m2(h)).
type Middleware func(HandlerFunc) HandlerFunc

// Chain composes multiple middleware into a single HandlerFunc.
func Chain(handler HandlerFunc, middlewares ...Middleware) HandlerFunc {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

// EngineWithMiddleware wraps an Engine with a middleware chain.
type EngineWithMiddleware struct {
	handler HandlerFunc
}

var _ Engine = (*EngineWithMiddleware)(nil)

func NewEngineWithMiddleware(engine Engine, middlewares ...Middleware) *EngineWithMiddleware {
	return &EngineWithMiddleware{
		handler: Chain(engine.RunInference, middlewares...),
	}
}

func (e *EngineWithMiddleware) RunInference(ctx context.Context, messages conversation.Conversation) (*conversation.Message, error) {
	return e.handler(ctx, messages)
}

// NewLoggingMiddleware logs every inference call at debug level, and failures at error
// level.
func NewLoggingMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, messages conversation.Conversation) (*conversation.Message, error) {
			logger := log.With().Int("message_count", len(messages)).Logger()
			logger.Debug().Msg("Starting inference")

			start := time.Now()
			msg, err := next(ctx, messages)
			if err != nil {
				logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("Inference failed")
				return nil, err
			}
			logger.Debug().
				Dur("duration", time.Since(start)).
				Int("response_length", len(msg.Text)).
				Msg("Inference completed")
			return msg, nil
		}
	}
}
