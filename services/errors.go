package services

import (
	"errors"
	"strings"

	"github.com/pilab-dev/pagepost/internal/linkedin"
)

var (
	ErrMissingCode  = errors.New("Code not provided")
	ErrInvalidState = errors.New("Invalid state")
)

// MissingFieldsError lists required publish fields that were empty.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// AuthorizationDeniedError is returned when LinkedIn redirects back with an
// error instead of a code, e.g. when the member cancels the consent screen.
type AuthorizationDeniedError struct {
	Code        string
	Description string
}

func (e *AuthorizationDeniedError) Error() string {
	if e.Description != "" {
		return ErrMissingCode.Error() + ": " + e.Description
	}
	return ErrMissingCode.Error() + ": " + e.Code
}

// Unwrap lets callers treat a denied authorization as a missing code.
func (e *AuthorizationDeniedError) Unwrap() error {
	return ErrMissingCode
}

// Cancelled reports whether the member backed out of the LinkedIn login or
// consent screen.
func (e *AuthorizationDeniedError) Cancelled() bool {
	return e.Code == linkedin.UserCancelledLogin || e.Code == linkedin.UserCancelledAuthorize
}

// Reason is a short label for logs and the audit trail: "cancelled",
// "scope" when the app asked for scopes it is not approved for, else "denied".
func (e *AuthorizationDeniedError) Reason() string {
	switch {
	case e.Cancelled():
		return "cancelled"
	case e.Code == linkedin.UnauthorizedScopeError:
		return "scope"
	default:
		return "denied"
	}
}
