// Package gpustats implements the in-memory GPU driver loading statistics
// store.
//
// The store aggregates driver loading events into two tables: global
// success/failure counters per driver version code, and per-app loading
// time samples per (app package, version code) pair. The app table is
// bounded; once it is full, events that would create a new entry are
// dropped while existing entries keep accumulating.
//
// All operations take a single exclusive lock and complete without
// blocking, so the store can be shared freely between the ingest server,
// the diagnostics dump endpoint and the periodic stats reporter.
package gpustats
