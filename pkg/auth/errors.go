package auth

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrNoCredential means the request carried nothing this handler
	// recognizes. Expected during dispatch, never logged as an error.
	ErrNoCredential = errors.New("no credential presented")

	// ErrSchemeNotConfigured means a named scheme has no registered handler.
	ErrSchemeNotConfigured = errors.New("scheme not configured")

	// ErrNotSupported means the scheme exists but lacks the requested
	// capability (a stateless handler asked to sign in, for example).
	ErrNotSupported = errors.New("operation not supported by scheme")
)

// VerificationError means a credential was presented but failed validation:
// bad signature, expired token, unknown key. The dispatcher treats it exactly
// like ErrNoCredential (fall through to the next scheme); the cause is kept
// for diagnostics.
type VerificationError struct {
	Cause error
}

// VerificationFailed wraps cause as a VerificationError.
func VerificationFailed(cause error) *VerificationError {
	return &VerificationError{Cause: cause}
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("credential verification failed: %v", e.Cause)
}

func (e *VerificationError) Unwrap() error { return e.Cause }

// SchemeError is the configuration defect reported when challenge, forbid,
// sign-in, or sign-out resolves to a scheme that is missing or lacks the
// capability. It wraps ErrSchemeNotConfigured or ErrNotSupported.
type SchemeError struct {
	Scheme string
	Op     string
	Err    error
}

func (e *SchemeError) Error() string {
	return fmt.Sprintf("scheme %q: %s: %v", e.Scheme, e.Op, e.Err)
}

func (e *SchemeError) Unwrap() error { return e.Err }
