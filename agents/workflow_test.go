package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memorystore "github.com/smallnest/bedrockgraph/store/memory"
)

func TestRouteOutcome(t *testing.T) {
	t.Parallel()

	finish := finishOutcome("done")
	assert.Equal(t, RouteEnd, RouteOutcome(finish))

	pending := actionOutcome("inv-1", AgentAction{Function: "getWeather"})
	assert.Equal(t, RouteContinue, RouteOutcome(pending))

	// Neither actions nor finish gives the agent another turn
	assert.Equal(t, RouteContinue, RouteOutcome(&Outcome{}))
	assert.Equal(t, RouteContinue, RouteOutcome(nil))
}

func TestAgentWorkflow_FinishWithoutTools(t *testing.T) {
	t.Parallel()

	invoker := &scriptedInvoker{outcomes: []*Outcome{finishOutcome("It is raining in Seattle.")}}
	workflow, err := NewAgentWorkflow(invoker, nil)
	require.NoError(t, err)

	state, err := workflow.Invoke(context.Background(), WorkflowState{Input: "weather in Seattle?"})
	require.NoError(t, err)
	require.True(t, state.Outcome.IsFinish())
	assert.Equal(t, "It is raining in Seattle.", state.Outcome.Finish.Output)
	assert.Empty(t, state.Steps)
}

func TestAgentWorkflow_ToolLoop(t *testing.T) {
	t.Parallel()

	invoker := &scriptedInvoker{outcomes: []*Outcome{
		actionOutcome("inv-1", AgentAction{
			ActionGroup: DefaultActionGroupName,
			Function:    "getWeather",
			Parameters:  map[string]string{"input": "Seattle"},
		}),
		finishOutcome("It is raining."),
	}}
	workflow, err := NewAgentWorkflow(invoker, []Tool{echoTool("getWeather")})
	require.NoError(t, err)

	state, err := workflow.Invoke(context.Background(), WorkflowState{Input: "weather?"})
	require.NoError(t, err)
	require.True(t, state.Outcome.IsFinish())
	assert.Equal(t, "It is raining.", state.Outcome.Finish.Output)

	require.Len(t, state.Steps, 1)
	assert.Equal(t, "getWeather(Seattle)", state.Steps[0].Observation)

	// Both agent turns ran on one session; the second carried the tool result
	require.Len(t, invoker.calls, 2)
	assert.Equal(t, "weather?", invoker.calls[0].input)
	assert.Empty(t, invoker.calls[1].input)
	assert.Equal(t, invoker.calls[0].config.sessionID, invoker.calls[1].config.sessionID)
	assert.Equal(t, "inv-1", invoker.calls[1].config.invocationID)
	require.Len(t, invoker.calls[1].config.results, 1)
	assert.Equal(t, "getWeather(Seattle)", invoker.calls[1].config.results[0].Output)
}

func TestAgentWorkflow_IterationCap(t *testing.T) {
	t.Parallel()

	outcomes := make([]*Outcome, 0, 8)
	for i := 0; i < 8; i++ {
		outcomes = append(outcomes, actionOutcome("inv-1", AgentAction{
			ActionGroup: DefaultActionGroupName,
			Function:    "getWeather",
		}))
	}
	invoker := &scriptedInvoker{outcomes: outcomes}
	workflow, err := NewAgentWorkflow(invoker, []Tool{echoTool("getWeather")}, WithWorkflowMaxIterations(2))
	require.NoError(t, err)

	_, err = workflow.Invoke(context.Background(), WorkflowState{Input: "q"})
	assert.ErrorIs(t, err, ErrMaxIterations)
}

func TestAgentWorkflow_UnknownTool(t *testing.T) {
	t.Parallel()

	invoker := &scriptedInvoker{outcomes: []*Outcome{
		actionOutcome("inv-1", AgentAction{ActionGroup: "Other", Function: "missing"}),
	}}
	workflow, err := NewAgentWorkflow(invoker, []Tool{echoTool("getWeather")})
	require.NoError(t, err)

	_, err = workflow.Invoke(context.Background(), WorkflowState{Input: "q"})
	assert.ErrorContains(t, err, "missing")
}

func TestAgentWorkflow_Checkpoints(t *testing.T) {
	t.Parallel()

	invoker := &scriptedInvoker{outcomes: []*Outcome{
		actionOutcome("inv-1", AgentAction{
			ActionGroup: DefaultActionGroupName,
			Function:    "getWeather",
			Parameters:  map[string]string{"input": "Seattle"},
		}),
		finishOutcome("It is raining."),
	}}
	workflow, err := NewAgentWorkflow(invoker, []Tool{echoTool("getWeather")})
	require.NoError(t, err)

	st := memorystore.New()
	_, err = workflow.WithCheckpointStore(st, "session-1").Invoke(context.Background(), WorkflowState{Input: "weather?"})
	require.NoError(t, err)

	checkpoints, err := st.List(context.Background(), "session-1")
	require.NoError(t, err)
	require.Len(t, checkpoints, 3)
	assert.Equal(t, "agent", checkpoints[0].NodeName)
	assert.Equal(t, "tools", checkpoints[1].NodeName)
	assert.Equal(t, "agent", checkpoints[2].NodeName)
}
