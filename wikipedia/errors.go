package wikipedia

import (
	"errors"
	"fmt"
)

// ErrorKind classifies search errors.
type ErrorKind int

const (
	ErrInvalidConfig ErrorKind = iota // bad limits, language or endpoint
	ErrInvalidInput                   // empty query or unusable input shape; no request made
	ErrTransport                      // network failure or non-2xx status
	ErrParse                          // unexpected body or a MediaWiki error object
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

// Error is the package's error type.
type Error struct {
	Kind       ErrorKind
	StatusCode int    // HTTP status, when the server answered
	Code       string // MediaWiki error code, when present
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	kind := e.Kind.String()
	if e.Code != "" {
		kind += "/" + e.Code
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("wikipedia [%s] http %d: %s", kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("wikipedia [%s]: %s", kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
