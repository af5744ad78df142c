// Package apierr defines the closed set of errors returned by the HackMD client.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Sentinel errors, one per Kind. Every *Error matches exactly one of them
// through errors.Is.
var (
	// ErrValidation indicates bad input detected before any network call,
	// or a 400/422 response.
	ErrValidation = errors.New("validation failed")

	// ErrAuthentication indicates a 401 or 403 response.
	ErrAuthentication = errors.New("authentication failed")

	// ErrNotFound indicates a 404 response.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited indicates a 429 response.
	ErrRateLimited = errors.New("rate limited")

	// ErrServer indicates a server-side failure, possibly after retries.
	ErrServer = errors.New("server error")

	// ErrTransport indicates a connectivity failure, timeout or cancellation.
	ErrTransport = errors.New("transport error")

	// ErrUnexpected indicates anything unclassified, e.g. a malformed success body.
	ErrUnexpected = errors.New("unexpected error")
)

// Kind is the category of an API error.
type Kind int

const (
	// KindUnexpected represents an unclassified failure.
	KindUnexpected Kind = iota
	// KindValidation represents invalid input.
	KindValidation
	// KindAuthentication represents rejected credentials.
	KindAuthentication
	// KindNotFound represents a missing resource.
	KindNotFound
	// KindRateLimited represents a server-imposed request quota.
	KindRateLimited
	// KindServer represents a 5xx response.
	KindServer
	// KindTransport represents connectivity, timeout and cancellation failures.
	KindTransport
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "Validation"
	case KindAuthentication:
		return "Authentication"
	case KindNotFound:
		return "NotFound"
	case KindRateLimited:
		return "RateLimited"
	case KindServer:
		return "Server"
	case KindTransport:
		return "Transport"
	default:
		return "Unexpected"
	}
}

var kindToSentinel = map[Kind]error{
	KindUnexpected:     ErrUnexpected,
	KindValidation:     ErrValidation,
	KindAuthentication: ErrAuthentication,
	KindNotFound:       ErrNotFound,
	KindRateLimited:    ErrRateLimited,
	KindServer:         ErrServer,
	KindTransport:      ErrTransport,
}

// SentinelOf returns the sentinel error for the given Kind.
func SentinelOf(kind Kind) error {
	if sentinel, ok := kindToSentinel[kind]; ok {
		return sentinel
	}
	return ErrUnexpected
}

// RateLimit carries the quota metadata of a 429 response. Every field is
// optional: nil means the server did not send it or it could not be parsed.
type RateLimit struct {
	Limit      *int
	Remaining  *int
	Reset      *time.Time
	RetryAfter *time.Duration
}

func (r *RateLimit) String() string {
	if r == nil {
		return "quota unknown"
	}
	parts := make([]string, 0, 3)
	if r.Remaining != nil || r.Limit != nil {
		parts = append(parts, fmt.Sprintf("%s/%s requests remaining", optInt(r.Remaining), optInt(r.Limit)))
	}
	if r.Reset != nil {
		parts = append(parts, "resets at "+r.Reset.UTC().Format(time.RFC3339))
	}
	if r.RetryAfter != nil {
		parts = append(parts, "retry after "+r.RetryAfter.String())
	}
	if len(parts) == 0 {
		return "quota unknown"
	}
	return strings.Join(parts, ", ")
}

func optInt(v *int) string {
	if v == nil {
		return "?"
	}
	return fmt.Sprintf("%d", *v)
}

// Error is the single error type returned by the client when response
// error wrapping is enabled. Kind selects which of the other fields are
// meaningful.
type Error struct {
	Kind    Kind
	Message string

	// StatusCode and StatusText are zero for failures that never produced
	// a response (validation, transport).
	StatusCode int
	StatusText string
	Body       []byte

	// RateLimit is set for KindRateLimited only.
	RateLimit *RateLimit

	// Attempts is the number of requests sent before giving up.
	Attempts int

	// Timeout reports whether a KindTransport failure was a deadline expiry.
	Timeout bool

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("hackmd: ")
	if e.Message != "" {
		b.WriteString(e.Message)
	} else {
		b.WriteString(SentinelOf(e.Kind).Error())
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (%d %s)", e.StatusCode, e.StatusText)
	}
	if e.Kind == KindRateLimited {
		b.WriteString(": ")
		b.WriteString(e.RateLimit.String())
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's Kind.
func (e *Error) Is(target error) bool {
	return target == SentinelOf(e.Kind)
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a KindValidation error for input rejected before any
// network call.
func Validation(format string, args ...any) *Error {
	return Newf(KindValidation, format, args...)
}

// FromStatus builds an Error for a non-success response. The kind follows
// the status: 400/422 validation, 401/403 authentication, 404 not found,
// 429 rate limited, 5xx server, anything else unexpected.
func FromStatus(status int, body []byte) *Error {
	kind := KindForStatus(status)
	return &Error{
		Kind:       kind,
		Message:    messageFor(kind),
		StatusCode: status,
		StatusText: statusText(status),
		Body:       body,
	}
}

// KindForStatus maps an HTTP status code to an error Kind.
func KindForStatus(status int) Kind {
	switch {
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return KindValidation
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindAuthentication
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500 && status <= 599:
		return KindServer
	default:
		return KindUnexpected
	}
}

func messageFor(kind Kind) string {
	switch kind {
	case KindValidation:
		return "request rejected by HackMD"
	case KindAuthentication:
		return "access token rejected by HackMD"
	case KindNotFound:
		return "resource not found"
	case KindRateLimited:
		return "too many requests"
	case KindServer:
		return "HackMD internal error"
	default:
		return "received an unexpected response from HackMD"
	}
}

func statusText(status int) string {
	if t := http.StatusText(status); t != "" {
		return t
	}
	return "Unknown"
}

// ResponseError is the raw escape hatch returned instead of *Error when
// response error wrapping is disabled. It exposes the final response as-is.
type ResponseError struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Attempts   int
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("hackmd: received an error response (%d %s)", e.StatusCode, statusText(e.StatusCode))
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err. A *ResponseError is classified by its
// status code. Errors from outside the client are KindUnexpected.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnexpected
	}
	if e, ok := As(err); ok {
		return e.Kind
	}
	var re *ResponseError
	if errors.As(err, &re) {
		return KindForStatus(re.StatusCode)
	}
	return KindUnexpected
}

// HasKind reports whether err has the specified kind.
func HasKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return HasKind(err, KindValidation) }

// IsAuthentication reports whether err is an authentication failure.
func IsAuthentication(err error) bool { return HasKind(err, KindAuthentication) }

// IsNotFound reports whether err reports a missing resource.
func IsNotFound(err error) bool { return HasKind(err, KindNotFound) }

// IsRateLimited reports whether err is a rate-limit failure.
func IsRateLimited(err error) bool { return HasKind(err, KindRateLimited) }

// IsServer reports whether err is a server-side failure.
func IsServer(err error) bool { return HasKind(err, KindServer) }

// IsTransport reports whether err is a connectivity, timeout or cancellation failure.
func IsTransport(err error) bool { return HasKind(err, KindTransport) }

// IsTimeout reports whether err is a transport failure caused by a deadline.
func IsTimeout(err error) bool {
	e, ok := As(err)
	return ok && e.Kind == KindTransport && e.Timeout
}

// RateLimitOf returns the quota metadata carried by a rate-limit error.
func RateLimitOf(err error) (*RateLimit, bool) {
	e, ok := As(err)
	if !ok || e.Kind != KindRateLimited {
		return nil, false
	}
	if e.RateLimit == nil {
		return &RateLimit{}, true
	}
	return e.RateLimit, true
}
