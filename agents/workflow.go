package agents

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/smallnest/bedrockgraph/graph"
)

// Routing labels returned by RouteOutcome.
const (
	RouteContinue = "continue"
	RouteEnd      = "end"
)

// WorkflowState is the state flowing through the agent workflow graph.
type WorkflowState struct {
	// Input is the user's query, sent on the first agent turn.
	Input string

	// SessionID pins all turns of this workflow to one agent session.
	SessionID string

	// Outcome is the latest agent outcome.
	Outcome *Outcome

	// Steps accumulates executed actions and their observations.
	Steps []Step

	// pendingResults carries tool outputs to the next agent turn.
	pendingResults []ToolResult
	pendingID      string
	iterations     int
}

// RouteOutcome classifies an outcome for the workflow's conditional edge: a
// finish ends the graph, pending actions continue to the tools node, and
// anything unrecognized also continues so the agent gets another turn.
func RouteOutcome(outcome *Outcome) string {
	if outcome.IsFinish() {
		return RouteEnd
	}
	return RouteContinue
}

// WorkflowOption configures NewAgentWorkflow.
type WorkflowOption func(*workflowConfig)

type workflowConfig struct {
	maxIterations int
}

// WithWorkflowMaxIterations caps agent turns in one workflow run. The
// default is 10.
func WithWorkflowMaxIterations(n int) WorkflowOption {
	return func(c *workflowConfig) {
		c.maxIterations = n
	}
}

// NewAgentWorkflow builds the agent workflow as a compiled two-node state
// graph: the "agent" node invokes the Bedrock agent, a conditional edge
// routes finishes to END and pending actions to the "tools" node, and the
// tools node loops back to the agent with its results.
func NewAgentWorkflow(invoker AgentInvoker, tools []Tool, opts ...WorkflowOption) (*graph.Runnable[WorkflowState], error) {
	config := workflowConfig{maxIterations: 10}
	for _, opt := range opts {
		opt(&config)
	}

	registry := newToolRegistry(tools)

	workflow := graph.NewStateGraph[WorkflowState]()

	workflow.AddNode("agent", "invokes the Bedrock agent", func(ctx context.Context, state WorkflowState) (WorkflowState, error) {
		if state.SessionID == "" {
			state.SessionID = uuid.NewString()
		}
		if state.iterations >= config.maxIterations {
			return state, fmt.Errorf("%w (cap %d)", ErrMaxIterations, config.maxIterations)
		}
		state.iterations++

		invokeOpts := []InvokeOption{WithSessionID(state.SessionID)}
		input := state.Input
		if len(state.pendingResults) > 0 {
			input = ""
			invokeOpts = append(invokeOpts, WithInvocationResults(state.pendingID, state.pendingResults))
			state.pendingResults = nil
			state.pendingID = ""
		}

		outcome, err := invoker.Invoke(ctx, input, invokeOpts...)
		if err != nil {
			return state, err
		}
		state.Outcome = outcome
		return state, nil
	})

	workflow.AddNode("tools", "executes the requested tools", func(ctx context.Context, state WorkflowState) (WorkflowState, error) {
		for _, action := range state.Outcome.Actions {
			tool, err := registry.lookup(action)
			if err != nil {
				return state, err
			}
			observation, err := tool.Function(ctx, action.Parameters)
			if err != nil {
				return state, fmt.Errorf("tool %s::%s: %w", action.ActionGroup, action.Function, err)
			}
			state.Steps = append(state.Steps, Step{Action: action, Observation: observation})
			state.pendingResults = append(state.pendingResults, ToolResult{
				ActionGroup: action.ActionGroup,
				Function:    action.Function,
				Output:      observation,
			})
			state.pendingID = action.InvocationID
		}
		return state, nil
	})

	workflow.SetEntryPoint("agent")

	workflow.AddConditionalEdge("agent", func(_ context.Context, state WorkflowState) string {
		if RouteOutcome(state.Outcome) == RouteEnd {
			return graph.END
		}
		return "tools"
	})

	workflow.AddEdge("tools", "agent")

	return workflow.Compile()
}
