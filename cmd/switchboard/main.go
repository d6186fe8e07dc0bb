// Switchboard is a multi-upstream LLM gateway.
//
// It routes request envelopes across a prioritized set of backends with a
// circuit breaker and a token bucket in front of each, falls back on
// transient failures, and writes an audit event for every routed request.
//
// Usage:
//
//	# Start the gateway
//	switchboard run --config config.yaml
//
//	# Inspect a running gateway
//	switchboard status --addr http://127.0.0.1:8080 --probe
//
//	# Take a backend out of rotation
//	switchboard backends disable openai-primary
//
//	# Query the audit store
//	switchboard audit query --status exhausted --since 24h
//
//	# Check a configuration file
//	switchboard validate --config config.yaml
package main

import "os"

func main() {
	os.Exit(Execute())
}
