package llm

import (
	"errors"
	"fmt"
)

// ErrorKind classifies LLM errors.
type ErrorKind int

const (
	ErrInvalidConfig ErrorKind = iota // bad model id, limits or options; no I/O attempted
	ErrInvalidInput                   // empty prompt or message list; no I/O attempted
	ErrTransport                      // network, auth or service failure during the call
	ErrParse                          // call succeeded but the body had an unexpected shape
)

var errorKindNames = [...]string{
	ErrInvalidConfig: "invalid_config",
	ErrInvalidInput:  "invalid_input",
	ErrTransport:     "transport",
	ErrParse:         "parse",
}

func (k ErrorKind) String() string {
	if int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return fmt.Sprintf("unknown(%d)", k)
}

// Transport error codes, set on Error.Code when Kind is ErrTransport.
const (
	CodeAuthentication = "authentication" // 401/403
	CodeNotFound       = "not_found"      // 404
	CodeInvalidRequest = "invalid_request"
	CodeRateLimit      = "rate_limit" // 429
	CodeServer         = "server"     // 500+
	CodeContextLength  = "context_length"
	CodeContentFilter  = "content_filter"
	CodeCanceled       = "canceled"
	CodeClientInit     = "client_init" // AWS config or credential loading failed
)

// Error is the library's error type.
type Error struct {
	Kind     ErrorKind
	Code     string // transport sub-classification
	Provider string
	Message  string
	Cause    error  // underlying error
	Raw      []byte // raw response body if available
}

func (e *Error) Error() string {
	kind := e.Kind.String()
	if e.Code != "" {
		kind += "/" + e.Code
	}
	if e.Provider != "" {
		return fmt.Sprintf("llm [%s] %s: %s", kind, e.Provider, e.Message)
	}
	return fmt.Sprintf("llm [%s]: %s", kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
