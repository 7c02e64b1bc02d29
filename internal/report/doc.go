// Package report turns workflow results into human-readable reports and
// delivers them to sinks.
//
// [Build] is pure formatting. Sinks decide where a report goes: a terminal
// ([WriterSink]), the log ([LogSink]), an S3-compatible bucket
// ([ArchiveSink]) or a per-node JSON-lines [Journal]. Progress events are
// delivered while a run is in flight through the [Observer] interface.
package report
