// Package graph implements the state graph engine agent workflows run on.
//
// A StateGraph holds named nodes that transform a shared state value. Static
// edges route unconditionally; conditional edges pick the next node from the
// state at runtime, which is how agent/tool loops terminate (route to END
// when the agent returns a final answer). Compile validates the graph and
// returns a Runnable; Invoke executes nodes sequentially, honoring context
// cancellation, an optional retry config with exponential backoff, and an
// optional per-step checkpoint store.
package graph
