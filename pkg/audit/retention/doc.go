// Package retention enforces how long audit events are kept.
//
// A Pruner deletes events older than RetentionDays and, when MaxRecords is
// set, the oldest events beyond that count. Events can be archived to a JSON
// file before deletion. A Scheduler runs the pruner on a cron schedule.
package retention
