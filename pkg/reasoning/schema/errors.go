package schema

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrMalformedOutput is matched by every MalformedOutputError.
var ErrMalformedOutput = errors.New("malformed model output")

// MalformedOutputError reports model output that could not be mapped onto the step
// schema, even after repair.
type MalformedOutputError struct {
	Variant Variant
	// Field is the offending field, empty when the document as a whole is unusable.
	Field  string
	Reason string
	Raw    string
}

func (e *MalformedOutputError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed %s step: %s", e.Variant, e.Reason)
	}
	return fmt.Sprintf("malformed %s step: field %s: %s", e.Variant, e.Field, e.Reason)
}

func (e *MalformedOutputError) Unwrap() error {
	return ErrMalformedOutput
}
