package shared

import (
	"errors"
	"fmt"
)

var (
	ErrAuthentication    = errors.New("message authentication failed")
	ErrCancelled         = errors.New("search cancelled")
	ErrAttemptsExhausted = errors.New("attempt ceiling reached")
)

// KeyFormatError is returned when key material can't be used as an AES key.
type KeyFormatError struct {
	Length int
	Err    error
}

func (err KeyFormatError) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("invalid key material: %v", err.Err)
	}
	return fmt.Sprintf("invalid key length; expected: 16, 24 or 32 bytes, given: %d", err.Length)
}

func (err KeyFormatError) Unwrap() error { return err.Err }

type NonceFormatError struct {
	Length int
	Err    error
}

func (err NonceFormatError) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("invalid nonce: %v", err.Err)
	}
	return fmt.Sprintf("invalid nonce length; expected: 12 bytes, given: %d", err.Length)
}

func (err NonceFormatError) Unwrap() error { return err.Err }

type EncodingError struct {
	Format string
	Err    error
}

func (err EncodingError) Error() string {
	return fmt.Sprintf("failed to encode trajectory as %v: %v", err.Format, err.Err)
}

func (err EncodingError) Unwrap() error { return err.Err }

// InvalidChallengeError reports a malformed challenge received from the gate.
type InvalidChallengeError struct {
	Param  string
	Value  string
	Reason string
}

func (err InvalidChallengeError) Error() string {
	return fmt.Sprintf("invalid challenge `%v` (%v): %v", err.Param, err.Value, err.Reason)
}

// CancelledError is returned by a search that was stopped before finding a solution.
// It matches both ErrCancelled and the context error that caused it.
type CancelledError struct {
	Attempts uint64
	Cause    error
}

func (err CancelledError) Error() string {
	return fmt.Sprintf("search cancelled after %d attempts: %v", err.Attempts, err.Cause)
}

func (err CancelledError) Is(target error) bool { return target == ErrCancelled }

func (err CancelledError) Unwrap() error { return err.Cause }
