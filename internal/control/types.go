// Package control owns the shared browser state: the ordered tab list, the
// active index, and every operation clients run against it. All mutations go
// through the Controller and are serialized by its mutex.
package control

import "fmt"

// Error codes returned to clients. The gateway maps them onto success=false
// frames, the REST layer onto HTTP status codes.
const (
	CodeValidation        = "VALIDATION"
	CodeOutOfRange        = "OUT_OF_RANGE"
	CodeLastPage          = "LAST_PAGE"
	CodePlaceholder       = "PLACEHOLDER"
	CodeDuplicateInFlight = "DUPLICATE_IN_FLIGHT"
	CodeDriverFailure     = "DRIVER_FAILURE"
	CodeNavigationFailure = "NAVIGATION_FAILURE"
)

// CodedError carries a stable code alongside the human readable message.
type CodedError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CodedError) Unwrap() error { return e.Cause }

func newError(code, format string, args ...interface{}) *CodedError {
	return &CodedError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func wrapError(code string, cause error, format string, args ...interface{}) *CodedError {
	return &CodedError{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// ErrCode extracts the code from a CodedError, or DRIVER_FAILURE for any
// other error.
func ErrCode(err error) string {
	if ce, ok := err.(*CodedError); ok {
		return ce.Code
	}
	return CodeDriverFailure
}

// PageInfo describes one tracked tab for listings.
type PageInfo struct {
	Index  int    `json:"index"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	Active bool   `json:"active"`
}

// Mode describes how the controller is backed.
type Mode int

const (
	// ModeLive means a real browser is attached.
	ModeLive Mode = iota
	// ModePlaceholder means launch failed and synthetic frames are served.
	ModePlaceholder
)

func (m Mode) String() string {
	switch m {
	case ModeLive:
		return "live"
	case ModePlaceholder:
		return "placeholder"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Frame is one captured screenshot plus the viewport it was taken at.
type Frame struct {
	Data   []byte
	Width  int
	Height int
}
