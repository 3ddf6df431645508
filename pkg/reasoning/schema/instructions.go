package schema

import (
	"bytes"
	"encoding/json"
	"sync"
	"text/template"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

const reasoningExample = "To begin solving this problem, we need to carefully examine the " +
	"given information and identify the crucial elements that will guide our solution " +
	"process. This involves..."

const formatInstructionsTemplate = `The output should be formatted as a JSON instance that conforms to the JSON schema below.

As an example, for the schema {"properties": {"foo": {"title": "Foo", "description": "a list of strings", "type": "array", "items": {"type": "string"}}}, "required": ["foo"]}
the object {"foo": ["bar", "baz"]} is a well-formatted instance of the schema. The object {"properties": {"foo": ["bar", "baz"]}} is not well-formatted.

Here is the output schema:
` + "```" + `
{{ .Schema }}
` + "```"

var (
	schemasOnce sync.Once
	schemas     map[Variant]string
	schemasErr  error

	instructionsTmpl = template.Must(template.New("format-instructions").Parse(formatInstructionsTemplate))
)

func reflectSchema(v interface{}) (string, error) {
	r := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
		// extra keys are dropped on decode, a warm-up answer carrying next_action is
		// still a warm-up answer
		AllowAdditionalProperties: true,
	}
	s := r.Reflect(v)
	s.Version = ""
	s.ID = ""

	if s.Properties != nil {
		if reasoning, ok := s.Properties.Get("reasoning"); ok && reasoning != nil {
			reasoning.Examples = []interface{}{reasoningExample}
		}
	}

	b, err := json.Marshal(s)
	if err != nil {
		return "", errors.Wrap(err, "could not marshal step schema")
	}
	return string(b), nil
}

func loadSchemas() (map[Variant]string, error) {
	schemasOnce.Do(func() {
		warmup, err := reflectSchema(&WarmupStep{})
		if err != nil {
			schemasErr = err
			return
		}
		hot, err := reflectSchema(&HotStep{})
		if err != nil {
			schemasErr = err
			return
		}
		schemas = map[Variant]string{
			VariantWarmup: warmup,
			VariantHot:    hot,
		}
	})
	return schemas, schemasErr
}

// JSONSchema returns the JSON schema document for the given variant.
func JSONSchema(v Variant) (string, error) {
	s, err := loadSchemas()
	if err != nil {
		return "", err
	}
	ret, ok := s[v]
	if !ok {
		return "", errors.Errorf("unknown step variant %s", v)
	}
	return ret, nil
}

// FormatInstructions describes the expected output shape of the given variant, ready to
// be appended to a system prompt.
func FormatInstructions(v Variant) (string, error) {
	s, err := JSONSchema(v)
	if err != nil {
		return "", err
	}

	buf := &bytes.Buffer{}
	err = instructionsTmpl.Execute(buf, struct{ Schema string }{Schema: s})
	if err != nil {
		return "", errors.Wrap(err, "could not render format instructions")
	}
	return buf.String(), nil
}
