// Package executor runs HackMD API requests to completion.
//
// Every endpoint method of the client funnels through Executor.Execute,
// which for one call:
//
//   - resolves the request path against the base URL and merges headers
//     (defaults, then request headers, then per-call headers, then the
//     bearer token);
//   - sends it through a Transport under a per-attempt timeout;
//   - classifies the response with Classify;
//   - retries transient failures as the retry.Policy allows, waiting
//     between attempts with a cancellable sleep;
//   - maps the final outcome onto the apierr error set, or decodes the
//     success body into the caller's value.
//
// A 429 response is returned immediately with its quota metadata and never
// retried. Cancelling the caller's context stops the call at the next
// suspension point, including mid-backoff.
package executor
