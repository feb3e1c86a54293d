// Package errs defines the error taxonomy shared across the engine (§7):
// ConfigError, NumericalError, ProtocolViolation, and ResourceError.
//
// Error policy (explicit and strict), carried from the teacher's
// sentinel-error convention (builder/errors.go):
//   - Callers branch on kind with errors.Is against the exported Err*
//     sentinels, never by matching strings.
//   - Construction sites build errors with the Config / Numerical /
//     Protocol / Resource constructors; each matches its sentinel under
//     errors.Is, and Resource keeps the underlying error for errors.Is /
//     errors.As.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an Error into one of the four kinds from §7.
type Kind string

const (
	KindConfig    Kind = "config"
	KindNumerical Kind = "numerical"
	KindProtocol  Kind = "protocol"
	KindResource  Kind = "resource"
)

// Sentinel errors. Use errors.Is(err, ErrConfig) etc. to classify.
var (
	ErrConfig    = errors.New("amrtree: config error")
	ErrNumerical = errors.New("amrtree: numerical error")
	ErrProtocol  = errors.New("amrtree: protocol violation")
	ErrResource  = errors.New("amrtree: resource error")
)

func sentinelFor(k Kind) error {
	switch k {
	case KindConfig:
		return ErrConfig
	case KindNumerical:
		return ErrNumerical
	case KindProtocol:
		return ErrProtocol
	case KindResource:
		return ErrResource
	default:
		return nil
	}
}

// Error is the concrete error type for all four kinds. ProtocolViolation
// instances additionally carry BlockGID/Round per §7.3.
type Error struct {
	Kind     Kind
	Message  string
	BlockGID int // only meaningful when Kind == KindProtocol
	Round    int // only meaningful when Kind == KindProtocol
	Err      error
}

func (e *Error) Error() string {
	if e.Kind == KindProtocol {
		return fmt.Sprintf("%s: block %d round %d: %s", e.Kind, e.BlockGID, e.Round, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports e as matching the sentinel for its Kind, so
// errors.Is(err, errs.ErrConfig) works regardless of message text.
func (e *Error) Is(target error) bool {
	return target == sentinelFor(e.Kind)
}

// Config builds a ConfigError.
func Config(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConfig, Message: fmt.Sprintf(format, args...)}
}

// Numerical builds a NumericalError.
func Numerical(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNumerical, Message: fmt.Sprintf(format, args...)}
}

// Protocol builds a ProtocolViolation with block/round context.
func Protocol(blockGID, round int, format string, args ...interface{}) *Error {
	return &Error{Kind: KindProtocol, BlockGID: blockGID, Round: round, Message: fmt.Sprintf(format, args...)}
}

// Resource wraps a lower-level resource (spill storage) failure.
func Resource(err error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindResource, Message: fmt.Sprintf(format, args...), Err: err}
}
