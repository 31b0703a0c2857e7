package apperr

import (
	"fmt"
	"runtime"
	"strings"
)

// Error is a code-carrying error with optional structured detail and a
// captured stack trace, used to route failures to the right verdict
// and runner phase without string-matching.
type Error struct {
	Code    Code
	Message string
	Details map[string]interface{}
	Err     error
	Stack   string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code.String()
}

// Unwrap exposes the underlying error for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error carrying the given code and its default message.
func New(code Code) *Error {
	return &Error{Code: code, Message: code.String(), Details: map[string]interface{}{}, Stack: getStack(2)}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Details: map[string]interface{}{}, Stack: getStack(2)}
}

// Wrapf attaches a code and a formatted message to an existing error.
func Wrapf(err error, code Code, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err, Details: map[string]interface{}{}, Stack: getStack(2)}
}

// WithMessage overrides the error's message.
func (e *Error) WithMessage(msg string) *Error {
	e.Message = msg
	return e
}

// WithDetail attaches a single key/value of structured context.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = map[string]interface{}{}
	}
	e.Details[key] = value
	return e
}

// GetCode extracts the Code from any error, defaulting to Internal for
// errors that did not originate from this package.
func GetCode(err error) Code {
	if err == nil {
		return Success
	}
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return Internal
}

// ValidationError builds an InvalidParams error naming the offending field.
func ValidationError(field, reason string) *Error {
	return New(InvalidParams).WithDetail("field", field).WithDetail("reason", reason)
}

func getStack(skip int) string {
	const maxDepth = 10
	var pcs [maxDepth]uintptr
	n := runtime.Callers(skip+1, pcs[:])
	if n == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs[:n])
	var b strings.Builder
	for {
		frame, more := frames.Next()
		if strings.Contains(frame.Function, "runtime.") {
			if !more {
				break
			}
			continue
		}
		fmt.Fprintf(&b, "\n\t%s:%d %s", frame.File, frame.Line, frame.Function)
		if !more {
			break
		}
	}
	return b.String()
}
