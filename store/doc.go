// Package store defines session-keyed checkpoint persistence for agent
// workflows. A workflow configured with a store saves its state after every
// node, so an interrupted session can be inspected or resumed later.
//
// Backends live in subpackages: memory (in-process), redis, sqlite and
// postgres.
package store
