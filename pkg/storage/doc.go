// Package storage persists job snapshots.
//
// GormStorage keeps one row per job plus its sessions and its append-only
// event log, and works with SQLite and PostgreSQL. A save carries the job's
// version and is rejected when an equal or newer version is already stored.
package storage
