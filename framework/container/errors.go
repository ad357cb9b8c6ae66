package container

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode classifies a container failure.
type ErrorCode string

const (
	// CodeNotFound: the identifier is neither bound nor a registered type.
	CodeNotFound ErrorCode = "NOT_FOUND"
	// CodeCircularDependency: a type required itself while being built.
	CodeCircularDependency ErrorCode = "CIRCULAR_DEPENDENCY"
	// CodeContainer: any other resolution failure.
	CodeContainer ErrorCode = "CONTAINER_ERROR"
	// CodeInvalidConfiguration: a registration was rejected.
	CodeInvalidConfiguration ErrorCode = "INVALID_CONFIGURATION"
)

// Error is the single error type returned by the container.
//
//	inst, err := c.Make("mailer")
//	if errors.Is(err, container.ErrNotFound) { ... }
//
//	var cerr *container.Error
//	if errors.As(err, &cerr) {
//	    log.Error("resolve failed", logger.Fields("id", cerr.Identifier, "stack", cerr.Stack))
//	}
type Error struct {
	Code       ErrorCode
	Identifier string
	Message    string
	// Stack is the build stack at the time of failure, outermost first.
	Stack []string
	Cause error

	sentinel bool
}

// Sentinels for errors.Is. They match any *Error with the same Code.
var (
	ErrNotFound             = &Error{Code: CodeNotFound, Message: "not found", sentinel: true}
	ErrCircularDependency   = &Error{Code: CodeCircularDependency, Message: "circular dependency", sentinel: true}
	ErrContainer            = &Error{Code: CodeContainer, Message: "container error", sentinel: true}
	ErrInvalidConfiguration = &Error{Code: CodeInvalidConfiguration, Message: "invalid configuration", sentinel: true}
)

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("container: ")
	b.WriteString(e.Message)
	if len(e.Stack) > 0 {
		fmt.Fprintf(&b, " (build stack: %s)", strings.Join(e.Stack, " -> "))
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches sentinels by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || !t.sentinel {
		return false
	}
	return e.Code == t.Code
}

// CodeOf returns the code of the first *Error in err's chain, or "" when
// there is none.
func CodeOf(err error) ErrorCode {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Code
	}
	return ""
}

func newNotFound(id string, stack []string) *Error {
	return &Error{
		Code:       CodeNotFound,
		Identifier: id,
		Message:    fmt.Sprintf("no binding or type registered for [%s]", id),
		Stack:      stack,
	}
}

func newCircular(id string, stack []string) *Error {
	return &Error{
		Code:       CodeCircularDependency,
		Identifier: id,
		Message:    fmt.Sprintf("circular dependency detected while resolving [%s]", id),
		Stack:      stack,
	}
}

func newContainerError(id string, stack []string, cause error, format string, args ...any) *Error {
	return &Error{
		Code:       CodeContainer,
		Identifier: id,
		Message:    fmt.Sprintf(format, args...),
		Stack:      stack,
		Cause:      cause,
	}
}

func newConfigError(id string, format string, args ...any) *Error {
	return &Error{
		Code:       CodeInvalidConfiguration,
		Identifier: id,
		Message:    fmt.Sprintf(format, args...),
	}
}

// isNotFoundFor reports whether err is a NotFound raised for id itself, as
// opposed to one raised deeper in the graph.
func isNotFoundFor(err error, id string) bool {
	var cerr *Error
	return errors.As(err, &cerr) && cerr.Code == CodeNotFound && cerr.Identifier == id
}

// recovered converts a panic value raised by user code into an error.
func recovered(id string, stack []string, v any) error {
	if err, ok := v.(error); ok {
		var cerr *Error
		if errors.As(err, &cerr) {
			return cerr
		}
		return newContainerError(id, stack, err, "panic while resolving [%s]", id)
	}
	return newContainerError(id, stack, nil, "panic while resolving [%s]: %v", id, v)
}
