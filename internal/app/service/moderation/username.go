package moderation

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MinUsernameLen = 2
	MaxUsernameLen = 20
)

var ErrUsernameInvalid = errors.New("invalid username")

type UsernameReason string

const (
	UsernameTooShort  UsernameReason = "too_short"
	UsernameTooLong   UsernameReason = "too_long"
	UsernameTaken     UsernameReason = "taken"
	UsernameReserved  UsernameReason = "reserved"
	UsernameProfanity UsernameReason = "profanity"
)

// UsernameError explains why a username was rejected.
type UsernameError struct {
	Reason UsernameReason
	// Word is the reserved name that matched, for UsernameReserved.
	Word string
}

func (e *UsernameError) Error() string {
	switch e.Reason {
	case UsernameTooShort:
		return fmt.Sprintf("username must be at least %d characters", MinUsernameLen)
	case UsernameTooLong:
		return fmt.Sprintf("username must be at most %d characters", MaxUsernameLen)
	case UsernameTaken:
		return "username is already taken, please choose another"
	case UsernameReserved:
		return fmt.Sprintf("username cannot contain %q", e.Word)
	case UsernameProfanity:
		return "username contains inappropriate content"
	default:
		return ErrUsernameInvalid.Error()
	}
}

func (e *UsernameError) Unwrap() error { return ErrUsernameInvalid }

// ValidateUsername checks a chat username against the participants currently
// active in the match. Checks run in order: length, collision, reserved
// names, profanity.
func ValidateUsername(name string, active []string) error {
	normalized := strings.ToLower(strings.TrimSpace(name))
	n := utf8.RuneCountInString(normalized)
	if n < MinUsernameLen {
		return &UsernameError{Reason: UsernameTooShort}
	}
	if n > MaxUsernameLen {
		return &UsernameError{Reason: UsernameTooLong}
	}
	for _, other := range active {
		if strings.ToLower(strings.TrimSpace(other)) == normalized {
			return &UsernameError{Reason: UsernameTaken}
		}
	}
	for _, reserved := range reservedNames {
		if strings.Contains(normalized, reserved) {
			return &UsernameError{Reason: UsernameReserved, Word: reserved}
		}
	}
	for _, word := range profanity {
		if strings.Contains(normalized, word) {
			return &UsernameError{Reason: UsernameProfanity}
		}
	}
	return nil
}

// ValidateUsernameShape runs the checks that do not depend on other participants.
func ValidateUsernameShape(name string) error {
	return ValidateUsername(name, nil)
}
