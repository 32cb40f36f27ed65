package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when no record matches.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned by stores on a uniqueness violation.
	ErrDuplicate = errors.New("duplicate key")
	// ErrInvalidCredential is returned by verifiers for rejected tokens.
	ErrInvalidCredential = errors.New("invalid or expired credential")
)

// AuthErrorKind separates client faults from system faults.
type AuthErrorKind int

const (
	// AuthUnauthorized means the credential is missing or rejected.
	AuthUnauthorized AuthErrorKind = iota + 1
	// AuthInternal means the authority or the store failed.
	AuthInternal
)

func (k AuthErrorKind) String() string {
	switch k {
	case AuthUnauthorized:
		return "unauthorized"
	case AuthInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// AuthError is returned by the identity gate.
// Message is safe to show to clients; Err is for logs only.
type AuthError struct {
	Kind    AuthErrorKind
	Message string
	Err     error
}

// NewUnauthorized creates an AuthError of kind AuthUnauthorized.
func NewUnauthorized(message string, err error) *AuthError {
	return &AuthError{Kind: AuthUnauthorized, Message: message, Err: err}
}

// NewInternal creates an AuthError of kind AuthInternal.
func NewInternal(message string, err error) *AuthError {
	return &AuthError{Kind: AuthInternal, Message: message, Err: err}
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsUnauthorized reports whether err is an AuthError of kind AuthUnauthorized.
func IsUnauthorized(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr) && authErr.Kind == AuthUnauthorized
}
