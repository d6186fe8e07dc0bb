// Package ratelimit provides per-backend token bucket admission control.
//
// # Overview
//
// Every backend owns an independent TokenBucket created lazily on first use
// and kept for the lifetime of the process. The Limiter maps backend ids to
// buckets without any global lock, so contention on one backend never stalls
// another.
//
//	limiter := ratelimit.NewLimiter(ratelimit.Config{Capacity: 60, RefillRate: 1})
//	limiter.Configure("openai-primary", ratelimit.Config{Capacity: 100, RefillRate: 10})
//	if limiter.TryAcquire("openai-primary", 1) {
//	    // dispatch
//	} else {
//	    // denied immediately, try the next backend
//	}
//
// # Caller Dimension
//
// TryAcquireFor nests a second bucket keyed by "backend/caller". It is off
// unless a caller Config is supplied with WithCallerLimit.
//
// # Refunds
//
// Tokens are never refunded. A request that consumed a token and then failed
// still counted against the backend's quota.
package ratelimit
