// Package metrics defines the best-effort metrics sink consumed by the engines.
//
// Engines publish counters, gauges and summary observations through Sink and
// always wrap the configured sink with Safe, so a failing backend can never
// break a queue mutation or a scheduling run. MemorySink backs tests and
// diagnostics; LogSink writes updates as debug log records.
package metrics
