package form

import (
	"regexp"

	"github.com/newthinker/stratdesk/internal/core"
)

// Field names shared by the strategy and login forms.
const (
	FieldName        = "name"
	FieldDescription = "description"
	FieldCode        = "code"
	FieldUsername    = "username"
	FieldPassword    = "password"
)

var printable = regexp.MustCompile(`^[^\x00-\x1f]+$`)

// StrategyRules are the editor rules for a strategy.
func StrategyRules() map[string][]Rule {
	return map[string][]Rule{
		FieldName: {
			Required("Name is required"),
			MaxLength(100, "Name must be at most 100 characters"),
			Matches(printable, "Name must not contain control characters"),
		},
		FieldDescription: {
			MaxLength(1000, "Description must be at most 1000 characters"),
		},
		FieldCode: {
			Required("Code is required"),
		},
	}
}

// NewStrategyForm creates an editor form pre-filled from in.
func NewStrategyForm(in core.StrategyInput) *Form {
	return New(map[string]string{
		FieldName:        in.Name,
		FieldDescription: in.Description,
		FieldCode:        in.Code,
	}, StrategyRules())
}

// StrategyInputOf reads the strategy fields back out of a form.
func StrategyInputOf(f *Form) core.StrategyInput {
	return core.StrategyInput{
		Name:        f.Value(FieldName),
		Description: f.Value(FieldDescription),
		Code:        f.Value(FieldCode),
	}
}

// NewLoginForm creates the login prompt form.
func NewLoginForm(username string) *Form {
	return New(map[string]string{
		FieldUsername: username,
		FieldPassword: "",
	}, map[string][]Rule{
		FieldUsername: {Required("Username is required")},
		FieldPassword: {Required("Password is required")},
	})
}
