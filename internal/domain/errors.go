package domain

import (
	"errors"
	"fmt"
)

var (
	ErrTurnLocked        = errors.New("turn is held by the architect")
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrEmptyIntention    = errors.New("witness intention is required")
	ErrEmptyMessage      = errors.New("message text is required")
	ErrCredentialMissing = errors.New("no credential stored")
	ErrCredentialFormat  = errors.New("credential has an unexpected format")
	ErrCredentialRevoked = errors.New("credential rejected by vendor; it has been purged")
)

// TransitionError describes a refused state change.
type TransitionError struct {
	From Status
	Op   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid session transition: %s not allowed from %s", e.Op, e.From)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// TransportErrorKind classifies remote call failures.
type TransportErrorKind string

const (
	TransportAuthInvalid  TransportErrorKind = "AUTH_INVALID"
	TransportAuthMissing  TransportErrorKind = "AUTH_MISSING"
	TransportRateOrServer TransportErrorKind = "RATE_OR_SERVER"
	TransportNetwork      TransportErrorKind = "NETWORK"

	// TransportCredentialStore means the local slot could not be read.
	TransportCredentialStore TransportErrorKind = "CREDENTIAL_STORE"
)

// TransportError is returned by every Transport implementation on failure.
type TransportError struct {
	Kind   TransportErrorKind
	Vendor string
	Status int // HTTP status when known
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s transport error [%s] status %d: %v", e.Vendor, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s transport error [%s]: %v", e.Vendor, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsCredentialFault reports whether err means the stored credential is unusable.
func IsCredentialFault(err error) bool {
	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}
	return te.Kind == TransportAuthInvalid || te.Kind == TransportAuthMissing
}
