// Package server exposes a gateway over HTTP.
//
// # Endpoints
//
//	GET  /healthz                 liveness
//	GET  /readyz                  readiness (503 when no backend is routable)
//	GET  /version                 build information
//	GET  /status[?probe=true]     per-backend breaker, bucket and health
//	POST /backends/{id}/enable    enable a backend at runtime
//	POST /backends/{id}/disable   disable a backend at runtime
//	POST /v1/route                route a request envelope
//	GET  /metrics                 Prometheus exposition (when configured)
//
// # Route errors
//
// Failed routes answer with an error body whose code is the audited final
// status:
//
//	{
//	    "error": {
//	        "message": "all backends exhausted for request r-1: primary: server_error, fallback: circuit_open",
//	        "type": "service_unavailable",
//	        "code": "exhausted",
//	        "request_id": "r-1",
//	        "attempts": {"primary": "server_error", "fallback": "circuit_open"}
//	    }
//	}
//
// Exhausted maps to 503, a terminal auth rejection to 502, a terminal or local
// invalid request to 400, no candidates to 404, an expired deadline to 504 and
// a caller that went away to 499.
//
// The X-Request-ID header, when present, becomes the request id of an
// envelope that carries none.
package server
