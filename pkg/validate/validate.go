// Package validate holds the field validators shared by every form.
// Each validator returns "" when the value is acceptable, otherwise the
// message shown next to the field.
package validate

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const (
	minNameLen        = 3
	maxNameLen        = 50
	minDescriptionLen = 10
	maxDescriptionLen = 500
	minLinkLen        = 40
	maxLinkLen        = 100
	minPasswordLen    = 8
)

var formats = validator.New()

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func length(s string) int {
	return utf8.RuneCountInString(s)
}

func Name(value string) string {
	switch n := length(value); {
	case blank(value):
		return "Name cannot be empty"
	case n < minNameLen:
		return "Name must be at least 3 characters long"
	case n > maxNameLen:
		return "Name must be less than 50 characters"
	}
	return ""
}

func Description(value string) string {
	switch n := length(value); {
	case blank(value):
		return "Description cannot be empty"
	case n < minDescriptionLen:
		return "Description must be at least 10 characters long"
	case n > maxDescriptionLen:
		return "Description must be less than 500 characters"
	}
	return ""
}

// ExternalLink only bounds the length of a group's chat link; it does not
// parse the URL.
func ExternalLink(value string) string {
	if blank(value) {
		return "Please provide a whatsapp link"
	}
	if n := length(value); n < minLinkLen || n > maxLinkLen {
		return "Input a valid link"
	}
	return ""
}

func Title(value string) string {
	if blank(value) {
		return "Title cannot be empty"
	}
	return ""
}

func Email(value string) string {
	if blank(value) {
		return "Email can't be blank"
	}
	if err := formats.Var(strings.TrimSpace(value), "email"); err != nil {
		return "That's not a valid email"
	}
	return ""
}

// Password checks format only. Account policy beyond this is enforced by
// the auth backend.
func Password(value string) string {
	if blank(value) {
		return "Password can't be blank"
	}
	if length(value) < minPasswordLen {
		return "Password needs to consist of at least 8 characters"
	}
	var letter, digit bool
	for _, r := range value {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return "Password needs to contain at least one letter and digit"
	}
	return ""
}

func DisplayName(value string) string {
	if blank(value) {
		return "Name can't be blank"
	}
	return Name(value)
}

func PasswordConfirmation(password, confirm string) string {
	if password != confirm {
		return "Passwords don't match"
	}
	return ""
}

// EventWindow rejects events that end before they start. Zero times are
// treated as unset.
func EventWindow(start, end time.Time) string {
	if start.IsZero() || end.IsZero() {
		return ""
	}
	if end.Before(start) {
		return "End time must be after start time"
	}
	return ""
}
