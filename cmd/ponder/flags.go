package main

import (
	"github.com/go-go-golems/ponder/pkg/helpers"
	"github.com/go-go-golems/ponder/pkg/settings"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// addSettingsFlags registers the flags that override the configured settings. They are
// applied only when given explicitly, so an unset --max-steps keeps the run unbounded.
func addSettingsFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("min-steps", 0, "Minimum number of reasoning steps before the model may answer")
	f.Int("max-steps", 0, "Maximum number of reasoning steps (unbounded when not set)")
	f.String("system-prompt", "", "System prompt, may use {{ .FormatInstructions }} and sprig functions")
	f.String("api-type", "", "API type (openai, ollama)")
	f.String("api-key", "", "API key")
	f.String("base-url", "", "Base URL of the OpenAI compatible endpoint")
	f.String("model", "", "Model name")
	f.Float32("temperature", 0, "Sampling temperature")
}

func loadSettings(cmd *cobra.Command) (*settings.Settings, error) {
	s, err := settings.LoadFromViper(viper.GetViper())
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if f.Changed("min-steps") {
		s.Run.MinSteps, _ = f.GetInt("min-steps")
	}
	if f.Changed("max-steps") {
		n, _ := f.GetInt("max-steps")
		s.Run.MaxSteps = helpers.ToPointer(n)
	}
	if f.Changed("system-prompt") {
		s.Run.SystemPrompt, _ = f.GetString("system-prompt")
	}
	if f.Changed("api-type") {
		apiType, _ := f.GetString("api-type")
		s.Chat.ApiType = settings.ApiType(apiType)
	}
	if f.Changed("api-key") {
		s.Client.APIKey, _ = f.GetString("api-key")
	}
	if f.Changed("base-url") {
		s.Client.BaseURL, _ = f.GetString("base-url")
	}
	if f.Changed("model") {
		s.Chat.Model, _ = f.GetString("model")
	}
	if f.Changed("temperature") {
		t, _ := f.GetFloat32("temperature")
		s.Chat.Temperature = helpers.ToPointer(t)
	}

	return s, nil
}
