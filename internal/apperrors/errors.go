// Package apperrors defines the error taxonomy shared across the TAPD,
// Feishu and email boundaries. Handlers map kinds to HTTP status codes;
// everything below the handlers only wraps and propagates.
package apperrors

import "fmt"

// Kind classifies an error for boundary handling.
type Kind int

const (
	// KindUnknown is any error not produced by this package.
	KindUnknown Kind = iota

	// KindNotFound marks a missing entity or configuration.
	KindNotFound

	// KindValidation marks a rejected input or a disabled feature.
	KindValidation

	// KindUpstreamAPI marks a business-level failure reported by TAPD or
	// Feishu inside an otherwise successful HTTP exchange.
	KindUpstreamAPI

	// KindTransport marks a network-level failure (timeout, DNS, non-2xx).
	KindTransport
)

// Error carries a kind alongside the message and wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound creates a not-found error.
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a validation error.
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// UpstreamAPI creates an upstream business-failure error.
func UpstreamAPI(format string, args ...interface{}) *Error {
	return &Error{Kind: KindUpstreamAPI, Message: fmt.Sprintf(format, args...)}
}

// Transport wraps a network-level failure with context.
func Transport(err error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindTransport, Message: fmt.Sprintf(format, args...), Err: err}
}

// Wrap attaches a cause to a kinded error message.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf reports the kind of err, walking wrapped causes.
func KindOf(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return KindUnknown
}
