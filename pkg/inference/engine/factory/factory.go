package factory

import (
	"strings"

	"github.com/go-go-golems/ponder/pkg/inference/engine"
	"github.com/go-go-golems/ponder/pkg/inference/engine/openai"
	"github.com/go-go-golems/ponder/pkg/settings"
	"github.com/pkg/errors"
)

// EngineFactory creates inference engines based on the configured api type, so that
// callers never need to know the concrete provider implementation.
type EngineFactory interface {
	// CreateEngine creates an Engine for settings.Chat.ApiType, wrapped in the given
	// middlewares.
	CreateEngine(s *settings.Settings, middlewares ...engine.Middleware) (engine.Engine, error)

	SupportedProviders() []string

	// DefaultProvider is used when settings.Chat.ApiType is empty.
	DefaultProvider() string
}

// StandardEngineFactory creates OpenAI compatible engines. Every engine it returns logs
// its inference calls.
type StandardEngineFactory struct{}

var _ EngineFactory = (*StandardEngineFactory)(nil)

func NewStandardEngineFactory() *StandardEngineFactory {
	return &StandardEngineFactory{}
}

func (f *StandardEngineFactory) CreateEngine(s *settings.Settings, middlewares ...engine.Middleware) (engine.Engine, error) {
	if s == nil {
		return nil, errors.New("settings cannot be nil")
	}

	provider := f.DefaultProvider()
	if s.Chat.ApiType != "" {
		provider = strings.ToLower(string(s.Chat.ApiType))
	}

	if err := s.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid settings for provider %s", provider)
	}

	var e engine.Engine
	switch provider {
	case string(settings.ApiTypeOpenAI), string(settings.ApiTypeOllama):
		cfg := s.Clone()
		cfg.Chat.ApiType = settings.ApiType(provider)
		oe, err := openai.NewOpenAIEngine(cfg)
		if err != nil {
			return nil, err
		}
		e = oe
	default:
		supported := strings.Join(f.SupportedProviders(), ", ")
		return nil, errors.Errorf("unsupported provider %s. Supported providers: %s", provider, supported)
	}

	mws := append([]engine.Middleware{engine.NewLoggingMiddleware()}, middlewares...)
	return engine.NewEngineWithMiddleware(e, mws...), nil
}

func (f *StandardEngineFactory) SupportedProviders() []string {
	return []string{
		string(settings.ApiTypeOpenAI),
		string(settings.ApiTypeOllama),
	}
}

func (f *StandardEngineFactory) DefaultProvider() string {
	return string(settings.ApiTypeOpenAI)
}

// NewEngineFromSettings is a shortcut for NewStandardEngineFactory().CreateEngine.
func NewEngineFromSettings(s *settings.Settings, middlewares ...engine.Middleware) (engine.Engine, error) {
	return NewStandardEngineFactory().CreateEngine(s, middlewares...)
}
