// Package export writes audit events as JSON, JSON Lines or CSV for
// operators, archives and external analysis.
//
// JSONExporter produces a single array and suits archives. The CSV and JSON
// Lines exporters can also stream from a channel, which the audit export
// command uses to page through large stores without holding every event.
package export
