package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/smallnest/bedrockgraph/log"
	"github.com/smallnest/bedrockgraph/store"
)

// END is a special constant used to represent the end node in the graph.
const END = "END"

var (
	// ErrEntryPointNotSet is returned when the entry point of the graph is not set.
	ErrEntryPointNotSet = errors.New("entry point not set")

	// ErrNodeNotFound is returned when a node is not found in the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNoOutgoingEdge is returned when no outgoing edge is found for a node.
	ErrNoOutgoingEdge = errors.New("no outgoing edge found for node")

	// ErrAmbiguousEdge is returned when a node has several static outgoing
	// edges. Routing between multiple targets must use a conditional edge.
	ErrAmbiguousEdge = errors.New("multiple outgoing edges found for node")
)

// Node represents a node in the graph.
type Node[S any] struct {
	// Name is the unique identifier for the node.
	Name string

	// Description describes the functionality of the node.
	Description string

	// Function takes the current state and returns the updated state.
	Function func(ctx context.Context, state S) (S, error)
}

// Edge represents a static edge in the graph.
type Edge struct {
	From string
	To   string
}

// StateGraph is a state-based graph. Nodes transform a shared state value and
// edges, static or conditional, decide which node runs next. Execution is
// strictly sequential: one node at a time, from the entry point to END.
type StateGraph[S any] struct {
	nodes            map[string]Node[S]
	edges            []Edge
	conditionalEdges map[string]func(ctx context.Context, state S) string
	entryPoint       string
	retryConfig      *RetryConfig
}

// NewStateGraph creates a new empty StateGraph.
func NewStateGraph[S any]() *StateGraph[S] {
	return &StateGraph[S]{
		nodes:            make(map[string]Node[S]),
		conditionalEdges: make(map[string]func(ctx context.Context, state S) string),
	}
}

// AddNode adds a new node to the state graph with the given name, description and function
func (g *StateGraph[S]) AddNode(name, description string, fn func(ctx context.Context, state S) (S, error)) {
	g.nodes[name] = Node[S]{
		Name:        name,
		Description: description,
		Function:    fn,
	}
}

// AddEdge adds a static edge between the "from" and "to" nodes
func (g *StateGraph[S]) AddEdge(from, to string) {
	g.edges = append(g.edges, Edge{From: from, To: to})
}

// AddConditionalEdge adds an edge whose target node is determined at runtime
func (g *StateGraph[S]) AddConditionalEdge(from string, condition func(ctx context.Context, state S) string) {
	g.conditionalEdges[from] = condition
}

// SetEntryPoint sets the entry point node name for the state graph
func (g *StateGraph[S]) SetEntryPoint(name string) {
	g.entryPoint = name
}

// SetRetryConfig sets the retry behavior applied to every node
func (g *StateGraph[S]) SetRetryConfig(config *RetryConfig) {
	g.retryConfig = config
}

// Compile validates the graph and returns a Runnable
func (g *StateGraph[S]) Compile() (*Runnable[S], error) {
	if g.entryPoint == "" {
		return nil, ErrEntryPointNotSet
	}
	if _, ok := g.nodes[g.entryPoint]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, g.entryPoint)
	}

	return &Runnable[S]{
		graph:  g,
		logger: log.GetDefaultLogger(),
	}, nil
}

// Runnable is a compiled state graph that can be invoked
type Runnable[S any] struct {
	graph       *StateGraph[S]
	logger      log.Logger
	checkpoints store.Store
	sessionID   string
}

// WithLogger returns a Runnable that logs through the given logger
func (r *Runnable[S]) WithLogger(logger log.Logger) *Runnable[S] {
	clone := *r
	clone.logger = logger
	return &clone
}

// WithCheckpointStore returns a Runnable that saves the state to the store
// after every node, keyed by the given session ID.
func (r *Runnable[S]) WithCheckpointStore(st store.Store, sessionID string) *Runnable[S] {
	clone := *r
	clone.checkpoints = st
	clone.sessionID = sessionID
	return &clone
}

// Invoke executes the compiled state graph with the given input state.
// It runs nodes one at a time from the entry point until a static or
// conditional edge routes to END.
func (r *Runnable[S]) Invoke(ctx context.Context, initialState S) (S, error) {
	state := initialState
	current := r.graph.entryPoint
	version := 0

	for current != END {
		if err := ctx.Err(); err != nil {
			return state, err
		}

		node, ok := r.graph.nodes[current]
		if !ok {
			return state, fmt.Errorf("%w: %s", ErrNodeNotFound, current)
		}

		r.logger.Debug("running node %s", current)

		var err error
		state, err = r.executeWithRetry(ctx, node, state)
		if err != nil {
			return state, fmt.Errorf("error in node %s: %w", current, err)
		}

		version++
		if err := r.saveCheckpoint(ctx, current, state, version); err != nil {
			return state, err
		}

		next, err := r.nextNode(ctx, current, state)
		if err != nil {
			return state, err
		}
		current = next
	}

	return state, nil
}

func (r *Runnable[S]) saveCheckpoint(ctx context.Context, nodeName string, state S, version int) error {
	if r.checkpoints == nil {
		return nil
	}

	cp := &store.Checkpoint{
		ID:        uuid.NewString(),
		SessionID: r.sessionID,
		NodeName:  nodeName,
		State:     state,
		Timestamp: time.Now(),
		Version:   version,
	}
	if err := r.checkpoints.Save(ctx, cp); err != nil {
		return fmt.Errorf("save checkpoint after node %s: %w", nodeName, err)
	}
	return nil
}

func (r *Runnable[S]) nextNode(ctx context.Context, current string, state S) (string, error) {
	if condition, ok := r.graph.conditionalEdges[current]; ok {
		next := condition(ctx, state)
		if next == "" {
			return "", fmt.Errorf("conditional edge returned empty next node from %s", current)
		}
		return next, nil
	}

	next := ""
	for _, edge := range r.graph.edges {
		if edge.From != current {
			continue
		}
		if next != "" {
			return "", fmt.Errorf("%w: %s", ErrAmbiguousEdge, current)
		}
		next = edge.To
	}
	if next == "" {
		return "", fmt.Errorf("%w: %s", ErrNoOutgoingEdge, current)
	}
	return next, nil
}
