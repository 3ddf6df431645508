// Package settings holds the configuration of a reasoning run and of the model client.
package settings

import (
	"strings"
	"time"

	"github.com/go-go-golems/ponder/pkg/reasoning/decision"
	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const DefaultSystemPrompt = "You are an expert AI assistant that explains your reasoning step by step. " +
	"For each step, provide a title that describes what you're doing in that step, " +
	"along with the content. Decide if you need another step or if you're ready to " +
	"give the final answer. USE AS MANY REASONING STEPS AS POSSIBLE. AT LEAST 3. " +
	"BE AWARE OF YOUR LIMITATIONS AS AN LLM AND WHAT YOU CAN AND CANNOT DO. " +
	"IN YOUR REASONING, INCLUDE EXPLORATION OF ALTERNATIVE ANSWERS. " +
	"CONSIDER YOU MAY BE WRONG, AND IF YOU ARE WRONG IN YOUR REASONING, " +
	"WHERE IT WOULD BE. FULLY TEST ALL OTHER POSSIBILITIES. " +
	"YOU CAN BE WRONG. WHEN YOU SAY YOU ARE RE-EXAMINING, ACTUALLY RE-EXAMINE, " +
	"AND USE ANOTHER APPROACH TO DO SO. DO NOT JUST SAY YOU ARE RE-EXAMINING. " +
	"USE AT LEAST 3 METHODS TO DERIVE THE ANSWER. USE BEST PRACTICES."

const DefaultModel = "gpt-4o-mini"

type ApiType string

const (
	ApiTypeOpenAI ApiType = "openai"
	// ApiTypeOllama talks to a local ollama server through its OpenAI compatible endpoint.
	ApiTypeOllama ApiType = "ollama"
)

const DefaultOllamaBaseURL = "http://localhost:11434/v1"

var (
	ErrMissingAPIKey   = errors.New("missing client settings api key")
	ErrMissingModel    = errors.New("missing chat model")
	ErrUnknownApiType  = errors.New("unknown api type")
	ErrNegativeMinStep = errors.New("min steps must not be negative")
	ErrNegativeMaxStep = errors.New("max steps must not be negative")
)

// RunConfiguration is fixed for the duration of a run.
type RunConfiguration struct {
	SystemPrompt string `yaml:"system_prompt,omitempty" mapstructure:"system_prompt"`
	MinSteps     int    `yaml:"min_steps" mapstructure:"min_steps"`
	// MaxSteps nil means unbounded.
	MaxSteps *int `yaml:"max_steps,omitempty" mapstructure:"max_steps"`
}

func NewRunConfiguration() RunConfiguration {
	return RunConfiguration{
		SystemPrompt: DefaultSystemPrompt,
	}
}

func (r RunConfiguration) Budget() decision.Budget {
	return decision.Budget{MinSteps: r.MinSteps, MaxSteps: r.MaxSteps}
}

// Validate rejects negative budgets. A minimum larger than the maximum is allowed, see
// decision.Budget.Check.
func (r RunConfiguration) Validate() error {
	if r.MinSteps < 0 {
		return ErrNegativeMinStep
	}
	if r.MaxSteps != nil && *r.MaxSteps < 0 {
		return ErrNegativeMaxStep
	}
	return nil
}

func (r RunConfiguration) Clone() RunConfiguration {
	return clone.Clone(r).(RunConfiguration)
}

type ClientSettings struct {
	APIKey       string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL      string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Organization string        `yaml:"organization,omitempty" mapstructure:"organization"`
	Timeout      time.Duration `yaml:"timeout,omitempty" mapstructure:"timeout"`
}

func (c ClientSettings) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

type ChatSettings struct {
	ApiType           ApiType  `yaml:"api_type,omitempty" mapstructure:"api_type"`
	Model             string   `yaml:"model" mapstructure:"model"`
	Temperature       *float32 `yaml:"temperature,omitempty" mapstructure:"temperature"`
	TopP              *float32 `yaml:"top_p,omitempty" mapstructure:"top_p"`
	MaxResponseTokens *int     `yaml:"max_response_tokens,omitempty" mapstructure:"max_response_tokens"`
	Stop              []string `yaml:"stop,omitempty" mapstructure:"stop"`
}

func (c ChatSettings) Clone() ChatSettings {
	return clone.Clone(c).(ChatSettings)
}

type Settings struct {
	Run    RunConfiguration `yaml:"run" mapstructure:"run"`
	Client ClientSettings   `yaml:"client" mapstructure:"client"`
	Chat   ChatSettings     `yaml:"chat" mapstructure:"chat"`
}

func NewSettings() *Settings {
	return &Settings{
		Run: NewRunConfiguration(),
		Client: ClientSettings{
			Timeout: 60 * time.Second,
		},
		Chat: ChatSettings{
			ApiType: ApiTypeOpenAI,
			Model:   DefaultModel,
		},
	}
}

func (s *Settings) Clone() *Settings {
	return clone.Clone(s).(*Settings)
}

func (s *Settings) Validate() error {
	if err := s.Run.Validate(); err != nil {
		return err
	}
	switch s.Chat.ApiType {
	case "", ApiTypeOpenAI:
		if err := s.Client.Validate(); err != nil {
			return err
		}
	case ApiTypeOllama:
	default:
		return errors.Wrapf(ErrUnknownApiType, "%q", s.Chat.ApiType)
	}
	if s.Chat.Model == "" {
		return ErrMissingModel
	}
	return nil
}

var settingsKeys = []string{
	"run.system_prompt",
	"run.min_steps",
	"run.max_steps",
	"client.base_url",
	"client.organization",
	"client.timeout",
	"chat.api_type",
	"chat.model",
	"chat.temperature",
	"chat.top_p",
	"chat.max_response_tokens",
	"chat.stop",
}

// BindEnv makes every settings key readable from the environment, e.g. chat.model from
// PONDER_CHAT_MODEL when v uses the PONDER prefix. The api key is also read from
// OPENAI_API_KEY.
func BindEnv(v *viper.Viper, prefix string) error {
	v.SetEnvPrefix(prefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	for _, key := range settingsKeys {
		if err := v.BindEnv(key); err != nil {
			return errors.Wrapf(err, "could not bind %s", key)
		}
	}
	envPrefix := strings.ToUpper(prefix) + "_"
	if prefix == "" {
		envPrefix = ""
	}
	return v.BindEnv("client.api_key", envPrefix+"CLIENT_API_KEY", "OPENAI_API_KEY")
}

// LoadFromViper overlays the values known to v on top of the defaults.
func LoadFromViper(v *viper.Viper) (*Settings, error) {
	s := NewSettings()
	if err := v.Unmarshal(s); err != nil {
		return nil, errors.Wrap(err, "could not decode settings")
	}
	if s.Run.SystemPrompt == "" {
		s.Run.SystemPrompt = DefaultSystemPrompt
	}
	return s, nil
}

// ToYAML renders the settings with the api key masked.
func (s *Settings) ToYAML() ([]byte, error) {
	c := s.Clone()
	if c.Client.APIKey != "" {
		c.Client.APIKey = "***"
	}
	return yaml.Marshal(c)
}
