package executor

import (
	"net/http"

	"hackmd-go/pkg/apierr"
	"hackmd-go/pkg/retry"
)

// OutcomeKind tags the classified result of one attempt.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeRetryable
	OutcomeRateLimited
	OutcomeFatal
	OutcomeTransport
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeFatal:
		return "fatal"
	case OutcomeTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Outcome is the classification of a single attempt. It never leaves the
// executor.
type Outcome struct {
	Kind   OutcomeKind
	Status int
	Header http.Header
	Body   []byte

	// RateLimit is set for OutcomeRateLimited.
	RateLimit *apierr.RateLimit

	// Err is the transport failure for OutcomeTransport, or the decode
	// failure for an OutcomeFatal on a success status.
	Err error
	// Transient marks an OutcomeTransport as connectivity/timeout.
	Transient bool
	// Timeout marks an OutcomeTransport caused by a deadline.
	Timeout bool
}

// Class maps the outcome onto the retry policy's vocabulary.
func (o Outcome) Class() retry.Class {
	switch o.Kind {
	case OutcomeSuccess:
		return retry.ClassSuccess
	case OutcomeRetryable:
		return retry.ClassTransient
	case OutcomeRateLimited:
		return retry.ClassRateLimited
	case OutcomeTransport:
		if o.Transient {
			return retry.ClassTransient
		}
		return retry.ClassPermanent
	default:
		return retry.ClassPermanent
	}
}
