package schema

import (
	"encoding/json"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Parse maps already repaired model text onto a step of the requested variant.
//
// The text is validated against the variant's JSON schema first, so a missing field or a
// next_action outside the enum is reported with the name of the field.
func Parse(raw string, v Variant) (ReasoningStep, error) {
	if strings.TrimSpace(raw) == "" {
		return ReasoningStep{}, &MalformedOutputError{Variant: v, Reason: "empty output", Raw: raw}
	}

	s, err := JSONSchema(v)
	if err != nil {
		return ReasoningStep{}, err
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(s),
		gojsonschema.NewStringLoader(raw),
	)
	if err != nil {
		return ReasoningStep{}, &MalformedOutputError{Variant: v, Reason: "not a JSON document: " + err.Error(), Raw: raw}
	}
	if !result.Valid() {
		return ReasoningStep{}, validationError(v, raw, result.Errors())
	}

	switch v {
	case VariantWarmup:
		var w WarmupStep
		if err := json.Unmarshal([]byte(raw), &w); err != nil {
			return ReasoningStep{}, &MalformedOutputError{Variant: v, Reason: err.Error(), Raw: raw}
		}
		return NewWarmupStep(w.Title, w.Reasoning), nil

	case VariantHot:
		var h HotStep
		if err := json.Unmarshal([]byte(raw), &h); err != nil {
			return ReasoningStep{}, &MalformedOutputError{Variant: v, Field: "next_action", Reason: err.Error(), Raw: raw}
		}
		if !h.NextAction.IsValid() {
			return ReasoningStep{}, &MalformedOutputError{Variant: v, Field: "next_action", Reason: "missing next action", Raw: raw}
		}
		return NewHotStep(h.Title, h.Reasoning, h.NextAction), nil

	default:
		return ReasoningStep{}, &MalformedOutputError{Variant: v, Reason: "unknown variant", Raw: raw}
	}
}

func validationError(v Variant, raw string, errs []gojsonschema.ResultError) *MalformedOutputError {
	ret := &MalformedOutputError{Variant: v, Raw: raw}
	reasons := make([]string, 0, len(errs))
	for _, e := range errs {
		reasons = append(reasons, e.String())
		if ret.Field != "" {
			continue
		}
		ret.Field = e.Field()
		if e.Type() == "required" {
			if p, ok := e.Details()["property"].(string); ok {
				ret.Field = p
			}
		}
		if ret.Field == "(root)" {
			ret.Field = ""
		}
	}
	ret.Reason = strings.Join(reasons, "; ")
	return ret
}
