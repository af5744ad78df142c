// Package hackmd is a client for the HackMD v1 REST API.
//
// Every call is authenticated with a bearer token, bounded by a per-attempt
// timeout and retried on presumed-transient failures (500, 502, 503, 504,
// connection errors, timeouts) with exponential backoff. Rate-limited
// responses (429) are returned immediately with the server's quota
// metadata. Failures are *apierr.Error values:
//
//	note, err := client.GetNote(ctx, "abc123")
//	switch {
//	case apierr.IsNotFound(err):
//		// ...
//	case apierr.IsRateLimited(err):
//		rl, _ := apierr.RateLimitOf(err)
//		fmt.Println("quota:", rl)
//	}
package hackmd
