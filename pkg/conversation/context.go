package conversation

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// LoadFromFile reads messages from a JSON or YAML file. The format is picked from the
// file extension.
func LoadFromFile(filename string) (Conversation, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return loadFromJSONFile(filename)
	case ".yaml", ".yml":
		return loadFromYAMLFile(filename)
	default:
		return nil, errors.Errorf("unsupported conversation file format: %s", filename)
	}
}

func loadFromYAMLFile(filename string) (Conversation, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	var messages Conversation
	err = yaml.NewDecoder(f).Decode(&messages)
	if err != nil {
		return nil, errors.Wrapf(err, "could not decode %s", filename)
	}

	return messages, nil
}

func loadFromJSONFile(filename string) (Conversation, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	var messages Conversation
	err = json.NewDecoder(f).Decode(&messages)
	if err != nil {
		return nil, errors.Wrapf(err, "could not decode %s", filename)
	}

	return messages, nil
}

// SaveToFile persists the conversation as JSON or YAML, depending on the file extension.
func (messages Conversation) SaveToFile(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return errors.Errorf("unsupported conversation file format: %s", filename)
	}

	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	if ext == ".json" {
		encoder := json.NewEncoder(f)
		encoder.SetIndent("", "  ")
		return encoder.Encode(messages)
	}

	encoder := yaml.NewEncoder(f)
	encoder.SetIndent(2)
	if err := encoder.Encode(messages); err != nil {
		return err
	}
	return encoder.Close()
}
