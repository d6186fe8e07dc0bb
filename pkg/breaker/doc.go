// Package breaker implements per-backend circuit breakers.
//
// # States
//
//	Closed   --(failures in window >= threshold)-->  Open
//	Open     --(cooldown elapsed, next Allow)----->  HalfOpen (one probe admitted)
//	HalfOpen --(probe succeeds)------------------->  Closed (failures cleared, cooldown reset)
//	HalfOpen --(probe fails)---------------------->  Open (cooldown doubled, capped)
//	HalfOpen --(probe released without verdict)--->  Open (cooldown unchanged, probe slot free)
//
// Only transient failures (timeout, connection failure, upstream 5xx) are
// counted. Terminal failures say nothing about the backend's health.
//
// # Concurrency
//
// Each Breaker owns a mutex; a Set maps backend ids to breakers without a
// global lock. The Open to HalfOpen transition happens inside Allow under the
// breaker's lock, so no caller observes a stale Open state after the cooldown
// and exactly one caller wins the probe slot.
package breaker
