package upload

import (
	"maps"

	"github.com/code19m/errx"
)

// Outcome is the result of BeforeValidate: either valid, or a set of
// field-level messages to show the user.
type Outcome struct {
	fields map[string]string
}

// Valid returns the ok outcome.
func Valid() Outcome {
	return Outcome{}
}

// Invalid returns an outcome with a single field error.
func Invalid(field, message string) Outcome {
	return Outcome{fields: map[string]string{field: message}}
}

// OK reports whether the upload passed validation.
func (o Outcome) OK() bool {
	return len(o.fields) == 0
}

// Fields returns a copy of the field errors.
func (o Outcome) Fields() map[string]string {
	return maps.Clone(o.fields)
}

// Err converts a failed outcome into a validation error, or nil when ok.
func (o Outcome) Err() error {
	if o.OK() {
		return nil
	}
	return errx.New(
		"Upload validation failed. See fields for details.",
		errx.WithCode(CodeValidationFailed),
		errx.WithType(errx.T_Validation),
		errx.WithFields(errx.M(o.fields)),
	)
}
