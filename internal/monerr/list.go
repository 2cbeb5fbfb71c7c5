package monerr

import (
	"fmt"
	"strings"
)

// FieldError is a problem of a single setting, like "target_url: required".
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// Fields is a set of FieldError that reports as What, usually ErrConfig.
type Fields struct {
	What   error
	Errors []FieldError
}

// Error renders the problems one per line, under the message of What.
func (f Fields) Error() string {
	var sb strings.Builder
	sb.WriteString(f.What.Error())
	sb.WriteString(":")
	for _, e := range f.Errors {
		sb.WriteString("\n  ")
		sb.WriteString(e.Error())
	}
	return sb.String()
}

func (f Fields) Unwrap() error {
	return f.What
}

// Lookup returns the messages for a setting, in the order they were found.
func (f Fields) Lookup(field string) []string {
	var ms []string
	for _, e := range f.Errors {
		if e.Field == field {
			ms = append(ms, e.Message)
		}
	}
	return ms
}

// FieldsBuilder collects problems while validating settings.
type FieldsBuilder struct {
	What   error
	errors []FieldError
}

// Add records a problem of field.
// A multi-line message is joined into one line, so that each problem keeps its own line.
func (b *FieldsBuilder) Add(field, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	b.errors = append(b.errors, FieldError{
		Field:   field,
		Message: strings.Join(strings.Fields(msg), " "),
	})
}

// Build returns Fields, or nil if nothing was added.
func (b *FieldsBuilder) Build() error {
	if len(b.errors) == 0 {
		return nil
	}
	return Fields{What: b.What, Errors: b.errors}
}
