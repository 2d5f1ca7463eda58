// Package redis provides a Redis-backed checkpoint store for agent workflow
// sessions. Checkpoints are stored as JSON values and indexed per session in
// a list, so listing preserves save order. An optional TTL expires both the
// checkpoints and the session index.
package redis
