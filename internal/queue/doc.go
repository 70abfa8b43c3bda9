// Package queue persists localization jobs in SQLite and exposes helpers
// for driving their lifecycle.
//
// The Store manages database connections, schema migrations, stats
// queries, heartbeat-based claiming, stale-worker recovery, and the
// status transitions of the job state machine. Status and progress are
// always written in a single record update so readers never observe one
// without the other, and progress only moves forward through the stage
// bands defined in progress.go.
//
// Treat this package as the single source of truth for job semantics;
// when adding statuses or columns, add a migration under migrations/.
package queue
