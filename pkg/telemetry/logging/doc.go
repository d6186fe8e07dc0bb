// Package logging configures log/slog for the gateway.
//
// # Overview
//
// Components log through slog.Default().With("component", ...). Setup builds
// the process-wide handler from telemetry.logging and installs it as the
// default, so no component needs a logger passed in.
//
// The handler chain is:
//
//   - ContextHandler: adds request_id and caller stored with WithRequestID
//     and WithCaller, and the trace_id and span_id of the active span
//   - Redactor: scrubs credentials from attribute values and blanks
//     attributes with secret-looking keys (api_key, authorization, *_token)
//   - slog JSON or text handler
//
// # Usage
//
//	if _, err := logging.Setup(cfg.Telemetry.Logging, os.Stderr); err != nil {
//	    return err
//	}
//
//	ctx = logging.WithRequestID(ctx, req.RequestID)
//	slog.Default().InfoContext(ctx, "request accepted")  // carries request_id
package logging
