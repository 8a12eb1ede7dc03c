package util

import (
	"regexp"
	"strings"

	apperrors "github.com/duochat/chat-server-go/internal/errors"
)

const (
	UsernameMinLen = 3
	UsernameMaxLen = 20
	PasswordMinLen = 4
	PasswordMaxLen = 100
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// NormalizeUsername trims and lowercases without validating format.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidateUsername enforces 3-20 alphanumeric characters and returns the lowercased name.
func ValidateUsername(s string) (string, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", apperrors.MissingRequired("Username")
	}
	if len(trimmed) < UsernameMinLen {
		return "", apperrors.ValidationError("Username must be at least 3 characters")
	}
	if len(trimmed) > UsernameMaxLen {
		return "", apperrors.ValidationError("Username must be at most 20 characters")
	}
	if !usernameRegex.MatchString(trimmed) {
		return "", apperrors.ValidationError("Username must be alphanumeric only")
	}
	return strings.ToLower(trimmed), nil
}

func ValidatePassword(password string) error {
	if password == "" {
		return apperrors.MissingRequired("Password")
	}
	if len(password) < PasswordMinLen {
		return apperrors.ValidationError("Password must be at least 4 characters")
	}
	if len(password) > PasswordMaxLen {
		return apperrors.ValidationError("Password is too long")
	}
	return nil
}
