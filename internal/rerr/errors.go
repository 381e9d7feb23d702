// Package rerr defines the router's closed error taxonomy. Every error that
// crosses a component boundary is one of these kinds, so callers can branch
// on Kind rather than string-matching messages.
package rerr

import (
	"errors"
	"fmt"
)

// Kind identifies which bucket of the taxonomy an error belongs to. See
// spec.md §7 for the propagation contract of each kind.
type Kind string

const (
	// KindConfig covers malformed config files or missing required env;
	// fatal at startup.
	KindConfig Kind = "config"
	// KindRegistry covers a corrupt registry file or disk-full condition;
	// recoverable by falling back to .bak or an empty registry.
	KindRegistry Kind = "registry"
	// KindAdapter covers "no adapter can handle this launch spec".
	KindAdapter Kind = "adapter"
	// KindConnect covers a child process failing to start or handshake
	// timeout; counted as a health error.
	KindConnect Kind = "connect"
	// KindTool covers an adapter reporting a tool execution failure.
	KindTool Kind = "tool"
	// KindCache covers disk-tier I/O failures; always swallowed by callers.
	KindCache Kind = "cache"
	// KindAnalysis covers an LLM returning non-JSON or an HTTP error.
	KindAnalysis Kind = "analysis"
	// KindValidation covers an unknown server id or a missing required
	// tool argument.
	KindValidation Kind = "validation"
)

// Error is the concrete error type for every kind in the taxonomy. Use As
// to recover the Kind and Cause from a wrapped error.
type Error struct {
	Kind    Kind
	Op      string // operation that produced the error, e.g. "execute_tool"
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is makes errors.Is(err, target) match by Kind when target is also an
// *Error; the package-level Is tests an error against a Kind directly.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

func newf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

func wrap(kind Kind, op string, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Config constructs a KindConfig error.
func Config(op string, cause error, format string, args ...interface{}) *Error {
	return wrap(KindConfig, op, cause, format, args...)
}

// Registry constructs a KindRegistry error.
func Registry(op string, cause error, format string, args ...interface{}) *Error {
	return wrap(KindRegistry, op, cause, format, args...)
}

// Adapter constructs a KindAdapter error.
func Adapter(op string, format string, args ...interface{}) *Error {
	return newf(KindAdapter, op, format, args...)
}

// Connect constructs a KindConnect error.
func Connect(op string, cause error, format string, args ...interface{}) *Error {
	return wrap(KindConnect, op, cause, format, args...)
}

// Tool constructs a KindTool error.
func Tool(op string, cause error, format string, args ...interface{}) *Error {
	return wrap(KindTool, op, cause, format, args...)
}

// Cache constructs a KindCache error.
func Cache(op string, cause error, format string, args ...interface{}) *Error {
	return wrap(KindCache, op, cause, format, args...)
}

// Analysis constructs a KindAnalysis error.
func Analysis(op string, cause error, format string, args ...interface{}) *Error {
	return wrap(KindAnalysis, op, cause, format, args...)
}

// Validation constructs a KindValidation error.
func Validation(op string, format string, args ...interface{}) *Error {
	return newf(KindValidation, op, format, args...)
}

// Is reports whether err's Kind matches kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
