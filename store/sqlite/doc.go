// Package sqlite provides a SQLite-backed checkpoint store for agent workflow
// sessions, suited to single-binary deployments that want durability without
// an external database.
package sqlite
