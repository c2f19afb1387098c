package service

import (
	"unicode"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns the shared request validator with the custom password
// rule registered. `strongpw` is the boundary-level policy: at least one
// upper-case letter, one lower-case letter and one digit.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("strongpw", func(fl validator.FieldLevel) bool {
		var upper, lower, digit bool
		for _, r := range fl.Field().String() {
			switch {
			case unicode.IsUpper(r):
				upper = true
			case unicode.IsLower(r):
				lower = true
			case unicode.IsDigit(r):
				digit = true
			}
		}
		return upper && lower && digit
	})
	return v
}
