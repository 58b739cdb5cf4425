package common

import (
	"fmt"
	"regexp"
)

var EmailRX = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

type ValidationError struct {
	Errors map[string]string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %+v", e.Errors)
}

type Validator struct {
	Errors map[string]string
}

func NewValidator() *Validator {
	return &Validator{Errors: make(map[string]string)}
}

func (v *Validator) Valid() bool {
	return len(v.Errors) == 0
}

func (v *Validator) AddError(field, message string) {
	if _, ok := v.Errors[field]; !ok {
		v.Errors[field] = message
	}
}

func (v *Validator) Check(ok bool, field, message string) {
	if !ok {
		v.AddError(field, message)
	}
}

func (v *Validator) CheckStringLength(s string, min, max int) bool {
	return len(s) >= min && len(s) <= max
}

func (v *Validator) ValidationError() error {
	return ValidationError{Errors: v.Errors}
}

// ValidateEmail adds the shared email rules under the given field name.
func ValidateEmail(v *Validator, field, email string) {
	v.Check(email != "", field, "must be provided")
	v.Check(EmailRX.MatchString(email), field, "must be a valid email address")
}

// ValidateID adds an error when id is not a positive identifier.
func ValidateID(v *Validator, id int, field string) {
	v.Check(id > 0, field, "must be greater than zero")
}
