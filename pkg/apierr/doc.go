// Package apierr contains the error types surfaced by the HackMD client.
//
// # Error Kinds
//
// Every failed call returns exactly one error. With response wrapping
// enabled (the default) it is an *Error whose Kind is one of:
//
//   - KindValidation: bad input rejected before the request, or 400/422
//   - KindAuthentication: 401/403
//   - KindNotFound: 404
//   - KindRateLimited: 429, carries RateLimit metadata
//   - KindServer: 5xx, after retries for 500/502/503/504
//   - KindTransport: connectivity failure, timeout or cancellation
//   - KindUnexpected: anything else, e.g. a malformed success body
//
// # Classification
//
// Switch on KindOf for exhaustive handling:
//
//	switch apierr.KindOf(err) {
//	case apierr.KindRateLimited:
//	    rl, _ := apierr.RateLimitOf(err)
//	    // back off using rl.RetryAfter or rl.Reset
//	case apierr.KindNotFound:
//	    // ...
//	}
//
// Or use the sentinels with errors.Is:
//
//	if errors.Is(err, apierr.ErrNotFound) {
//	    // ...
//	}
//
// # Raw Responses
//
// With wrapping disabled, non-success responses surface as *ResponseError
// holding the final status, headers and body unchanged. Transport and
// validation failures are still reported as *Error.
package apierr
