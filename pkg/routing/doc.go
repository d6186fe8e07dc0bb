// Package routing executes the priority fallback chain for a request.
//
// For each eligible backend, in priority order, the router:
//
//  1. asks the backend's token bucket for a token (denied: "rate_limited")
//  2. asks the backend's circuit breaker for admission (denied: "circuit_open")
//  3. dispatches through the backend adapter under the backend's timeout
//
// A success ends the chain. A transient failure (timeout, connection error,
// 5xx) is charged to the breaker and the chain moves on; an upstream 429 moves
// on without charging the breaker. An auth or invalid-request failure stops the
// chain, since no other backend can fix the request. Each backend is attempted
// at most once per request and dispatch is strictly sequential.
//
// Every call to Route produces exactly one audit event carrying the ordered
// attempt trail and the final status returned to the caller.
//
// Denials never sleep or queue: a rate-limited or circuit-open candidate costs
// the request only the time to check the bucket and breaker.
package routing
