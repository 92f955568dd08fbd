// Package calendar describes the calendar events schedkit reads and creates.
//
// Event storage itself (optimistic locking, recurrence expansion, access
// control) lives outside this module; the engines only depend on the Source
// and Creator interfaces. MemoryStore implements both for development and
// tests.
package calendar
