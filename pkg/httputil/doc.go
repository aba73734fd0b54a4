// Package httputil retries transient HTTP failures.
//
// A request function marks an error worth retrying with [Retryable], or
// with [RetryableAfter] when the server named a wait in Retry-After.
// [Retry] runs the function until it succeeds, returns an unmarked error
// or runs out of attempts:
//
//	err := httputil.Retry(ctx, 3, time.Second, func() error {
//	    resp, err := client.Do(req)
//	    if err != nil {
//	        return httputil.Retryable(err)
//	    }
//	    ...
//	})
package httputil
