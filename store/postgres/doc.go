// Package postgres provides a PostgreSQL-backed checkpoint store for agent
// workflow sessions. The store talks to the database through the DBPool
// interface so tests can substitute pgxmock for a live pool.
package postgres
