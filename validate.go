package eduAuth

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/MrEthical07/eduAuth/password"
)

const (
	nameMinLength = 2
	nameMaxLength = 50
)

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &ValidationError{Field: "name", Reason: "is required"}
	}
	n := utf8.RuneCountInString(name)
	if n < nameMinLength || n > nameMaxLength {
		return "", &ValidationError{
			Field:  "name",
			Reason: "must be between " + strconv.Itoa(nameMinLength) + " and " + strconv.Itoa(nameMaxLength) + " characters",
		}
	}
	return name, nil
}

// validateEmail expects an already normalized address.
func validateEmail(email string) error {
	if email == "" {
		return &ValidationError{Field: "email", Reason: "is required"}
	}
	if !emailPattern.MatchString(email) {
		return &ValidationError{Field: "email", Reason: "must be a valid email address"}
	}
	return nil
}

func (e *Engine) validatePassword(field, pw string) error {
	if pw == "" {
		return &ValidationError{Field: field, Reason: "is required"}
	}
	err := e.passwordHash.CheckLength(pw)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, password.ErrTooShort):
		return &ValidationError{
			Field:  field,
			Reason: "must be at least " + strconv.Itoa(e.passwordHash.MinLength()) + " characters",
		}
	case errors.Is(err, password.ErrTooLong):
		return &ValidationError{Field: field, Reason: "is too long"}
	default:
		return &ValidationError{Field: field, Reason: err.Error()}
	}
}
