// Package form tracks field values, touched state and validation errors
// for interactive input, such as the strategy editor and login prompt.
package form

import (
	"errors"
	"maps"
	"sort"
	"strings"

	"github.com/newthinker/stratdesk/internal/core"
)

// Form holds values, per-field errors and touched flags. Errors of a field
// are only reported after the field is touched or the whole form validated.
// A Form is not safe for concurrent use.
type Form struct {
	initial map[string]string
	rules   map[string][]Rule

	values  map[string]string
	errors  map[string]string
	touched map[string]bool
}

// New creates a form with initial values and per-field rules.
func New(initial map[string]string, rules map[string][]Rule) *Form {
	f := &Form{
		initial: maps.Clone(initial),
		rules:   rules,
	}
	if f.initial == nil {
		f.initial = map[string]string{}
	}
	if f.rules == nil {
		f.rules = map[string][]Rule{}
	}
	f.Reset()
	return f
}

// SetValue updates a field. A touched field is re-validated immediately.
func (f *Form) SetValue(field, value string) {
	f.values[field] = value
	if f.touched[field] {
		f.validateField(field)
	}
}

// Touch marks a field as visited and validates it.
func (f *Form) Touch(field string) {
	f.touched[field] = true
	f.validateField(field)
}

// Validate checks every field with rules, marks them all touched and
// reports whether the form is valid.
func (f *Form) Validate() bool {
	for field := range f.rules {
		f.touched[field] = true
		f.validateField(field)
	}
	return len(f.errors) == 0
}

// Check validates the form and returns every failing field as one
// ErrValidation, formatted "field: message; field: message".
func (f *Form) Check() error {
	if f.Validate() {
		return nil
	}
	fields := f.ErrorFields()
	msgs := make([]string, len(fields))
	for i, field := range fields {
		msgs[i] = field + ": " + f.errors[field]
	}
	return core.WrapError(core.ErrValidation, errors.New(strings.Join(msgs, "; ")))
}

// IsValid reports whether every field currently passes its rules,
// without touching fields or recording errors.
func (f *Form) IsValid() bool {
	for field := range f.rules {
		if f.check(field) != "" {
			return false
		}
	}
	return true
}

// Reset restores the initial values and clears errors and touched flags.
func (f *Form) Reset() {
	f.values = maps.Clone(f.initial)
	f.errors = map[string]string{}
	f.touched = map[string]bool{}
}

// Value returns one field's value.
func (f *Form) Value(field string) string { return f.values[field] }

// Error returns one field's current error message.
func (f *Form) Error(field string) string { return f.errors[field] }

// Values returns a copy of all values.
func (f *Form) Values() map[string]string { return maps.Clone(f.values) }

// Errors returns a copy of the recorded errors.
func (f *Form) Errors() map[string]string { return maps.Clone(f.errors) }

// Touched returns a copy of the touched flags.
func (f *Form) Touched() map[string]bool { return maps.Clone(f.touched) }

// ErrorFields returns the fields with errors in sorted order.
func (f *Form) ErrorFields() []string {
	fields := make([]string, 0, len(f.errors))
	for field := range f.errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

func (f *Form) validateField(field string) {
	if msg := f.check(field); msg != "" {
		f.errors[field] = msg
	} else {
		delete(f.errors, field)
	}
}

// check returns the first failing rule's message.
func (f *Form) check(field string) string {
	value := f.values[field]
	for _, rule := range f.rules[field] {
		if msg := rule(value, f.values); msg != "" {
			return msg
		}
	}
	return ""
}
