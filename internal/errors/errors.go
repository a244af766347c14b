// Package errors provides the stable error kinds shared across the
// cysec core (KCP, ESV, KLM) plus the CLI's JSON/exit-code mapping.
package errors

import (
	"errors"
	"fmt"
)

// Core error kinds. These are stable across the core: callers match on
// them with errors.Is, and the CLI maps them to JSON error kinds and
// process exit codes via Kind and ExitCode.
var (
	ErrInvalidParameters    = errors.New("invalid parameters")
	ErrInvalidKey           = errors.New("invalid key")
	ErrNotFound             = errors.New("not found")
	ErrAlreadyExists        = errors.New("already exists")
	ErrConflict             = errors.New("conflict")
	ErrUnauthenticated      = errors.New("unauthenticated")
	ErrWeakPassphrase       = errors.New("weak passphrase")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrMalformed            = errors.New("malformed")
	ErrCompressionFailure   = errors.New("compression failure")
	ErrDecompressionFailure = errors.New("decompression failure")
	ErrTimeout              = errors.New("timeout")
	ErrExpired              = errors.New("expired")
	ErrReplay               = errors.New("replay")
	ErrProvider             = errors.New("provider")
	ErrInternal             = errors.New("internal")
)

// kinds orders every sentinel for Kind's lookup.
var kinds = []struct {
	err  error
	name string
}{
	{ErrInvalidParameters, "InvalidParameters"},
	{ErrInvalidKey, "InvalidKey"},
	{ErrNotFound, "NotFound"},
	{ErrAlreadyExists, "AlreadyExists"},
	{ErrConflict, "Conflict"},
	{ErrUnauthenticated, "Unauthenticated"},
	{ErrWeakPassphrase, "WeakPassphrase"},
	{ErrAuthenticationFailed, "AuthenticationFailed"},
	{ErrMalformed, "Malformed"},
	{ErrCompressionFailure, "CompressionFailure"},
	{ErrDecompressionFailure, "DecompressionFailure"},
	{ErrTimeout, "Timeout"},
	{ErrExpired, "Expired"},
	{ErrReplay, "Replay"},
	{ErrProvider, "Provider"},
	{ErrInternal, "Internal"},
}

// New creates a new error with the given message.
func New(message string) error {
	return errors.New(message)
}

// Wrap wraps an error with additional context while preserving the error chain.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted message while preserving the error chain.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Kind returns the stable kind name for err, or "Internal" if err does not
// wrap one of the sentinels above (err == nil returns "").
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Internal"
}

// ExitCode maps an error to the CLI process exit code: 0 success, 1 usage,
// 2 authentication, 3 not found, 4 crypto failure, 5 storage failure.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch {
	case errors.Is(err, ErrInvalidParameters), errors.Is(err, ErrMalformed):
		return 1
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrWeakPassphrase):
		return 2
	case errors.Is(err, ErrNotFound):
		return 3
	case errors.Is(err, ErrInvalidKey),
		errors.Is(err, ErrAuthenticationFailed),
		errors.Is(err, ErrCompressionFailure),
		errors.Is(err, ErrDecompressionFailure),
		errors.Is(err, ErrExpired),
		errors.Is(err, ErrReplay):
		return 4
	case errors.Is(err, ErrProvider),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrAlreadyExists),
		errors.Is(err, ErrTimeout):
		return 5
	default:
		return 1
	}
}
