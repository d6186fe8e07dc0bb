// Package health provides liveness, readiness and version endpoints for the
// Switchboard gateway.
//
// Liveness answers 200 whenever the process is serving. Readiness runs every
// registered check concurrently, each under its own timeout, and answers 503
// with per-check detail when any fails.
//
// # Checks
//
//   - BackendsCheck: at least one enabled backend with a closed or half-open circuit
//   - AuditStorageCheck: the audit store answers a one-row query
//   - PingCheck: a connection-backed store (the Redis cache) answers PING
//
// # Usage
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("backends", health.BackendsCheck(reg))
//	checker.RegisterCheck("audit_storage", health.AuditStorageCheck(storage))
//
//	r.Get("/healthz", checker.LivenessHandler())
//	r.Get("/readyz", checker.ReadinessHandler())
//	r.Get("/version", health.VersionHandler(version, commit, buildTime))
package health
