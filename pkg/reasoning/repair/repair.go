// Package repair turns slightly broken model output into a JSON document.
//
// Models asked for JSON frequently wrap it in a markdown fence, prefix it with prose,
// forget the closing brace or use single quotes. Repair fixes the punctuation and leaves
// values alone. Well-formed JSON is returned untouched, so repairing twice is the same
// as repairing once.
package repair

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Repairer is the structural repair capability used before parsing a step.
type Repairer interface {
	Repair(text string) (string, error)
}

// RepairerFunc adapts a plain function to Repairer.
type RepairerFunc func(text string) (string, error)

func (f RepairerFunc) Repair(text string) (string, error) {
	return f(text)
}

// JSONRepairer is the default Repairer.
type JSONRepairer struct{}

var _ Repairer = JSONRepairer{}

func (JSONRepairer) Repair(text string) (string, error) {
	return Repair(text)
}

// ErrUnrepairable is returned when no JSON document can be recovered from the text.
var ErrUnrepairable = errors.New("output could not be repaired into JSON")

// Repair returns text unchanged when it already is valid JSON. Otherwise it isolates the
// most likely JSON candidate and fixes its structure.
func Repair(input string) (string, error) {
	if json.Valid([]byte(input)) {
		return input, nil
	}

	candidate := ExtractCandidate(input)
	if json.Valid([]byte(candidate)) {
		return candidate, nil
	}

	repaired, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		log.Debug().Err(err).Int("length", len(input)).Msg("json repair failed")
		return "", errors.Wrap(ErrUnrepairable, err.Error())
	}
	if !json.Valid([]byte(repaired)) {
		return "", ErrUnrepairable
	}
	return repaired, nil
}

// ExtractCandidate picks the part of the text that most likely holds the JSON object:
// the first fenced json block, else the span starting at the first opening brace.
func ExtractCandidate(input string) string {
	blocks := ExtractJSONBlocks(input)
	for _, b := range blocks {
		if strings.Contains(b, "{") {
			return strings.TrimSpace(b)
		}
	}

	start := strings.Index(input, "{")
	if start < 0 {
		return strings.TrimSpace(input)
	}
	end := strings.LastIndex(input, "}")
	if end < start {
		// truncated object, let the repairer close it
		return strings.TrimSpace(input[start:])
	}
	return input[start : end+1]
}

// ExtractJSONBlocks returns the contents of fenced code blocks tagged json, json5 or
// left untagged, in document order.
func ExtractJSONBlocks(markdownText string) []string {
	var results []string
	source := []byte(markdownText)
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		cb, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		lang := strings.ToLower(string(cb.Language(source)))
		if lang != "" && lang != "json" && lang != "json5" {
			return ast.WalkSkipChildren, nil
		}
		lines := cb.Lines()
		if lines.Len() == 0 {
			return ast.WalkSkipChildren, nil
		}
		var sb strings.Builder
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			sb.Write(seg.Value(source))
		}
		results = append(results, sb.String())
		return ast.WalkSkipChildren, nil
	})

	return results
}
