// Package backends defines the contract between the gateway and the upstream
// services it routes to.
//
// An Adapter translates the gateway's normalized Request into one upstream's
// native format and back into a Response. The router depends only on the
// Adapter interface and on the error taxonomy in this package, never on a
// concrete upstream type.
//
// # Error Taxonomy
//
// Adapters report failures with the typed errors in errors.go. Classify maps
// any error to a Kind:
//
//   - Transient (KindTimeout, KindConnection, KindServerError): counted by the
//     circuit breaker; the router falls back to the next backend.
//   - KindRateLimited: the upstream refused with 429; the router falls back but
//     the breaker is not charged.
//   - Terminal (KindAuth, KindInvalidRequest): the fault travels with the
//     request; the router stops and surfaces the error.
package backends
