// Package log provides the logging abstraction used across bedrockgraph.
//
// The graph engine and the agents client log through the Logger interface so
// callers can plug in their own backend. A stderr DefaultLogger, a NoOpLogger
// and a kataras/golog backed GologLogger ship with the package, plus a
// package-level default used when no logger is configured explicitly.
package log
