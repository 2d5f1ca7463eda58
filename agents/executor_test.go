package agents

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedInvoker returns pre-scripted outcomes in order and records every
// invocation with its resolved options.
type scriptedInvoker struct {
	outcomes []*Outcome
	errs     []error
	calls    []recordedCall
}

type recordedCall struct {
	input  string
	config invokeConfig
}

func (s *scriptedInvoker) Invoke(_ context.Context, inputText string, opts ...InvokeOption) (*Outcome, error) {
	config := invokeConfig{}
	for _, opt := range opts {
		opt(&config)
	}
	s.calls = append(s.calls, recordedCall{input: inputText, config: config})

	i := len(s.calls) - 1
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return s.outcomes[i], nil
}

func finishOutcome(output string) *Outcome {
	return &Outcome{Finish: &AgentFinish{Output: output}}
}

func actionOutcome(invocationID string, actions ...AgentAction) *Outcome {
	for i := range actions {
		actions[i].InvocationID = invocationID
	}
	return &Outcome{Actions: actions}
}

func echoTool(name string) Tool {
	return Tool{
		Name: name,
		Function: func(_ context.Context, params map[string]string) (string, error) {
			return fmt.Sprintf("%s(%s)", name, params["input"]), nil
		},
	}
}

func TestExecutorRun_ImmediateFinish(t *testing.T) {
	t.Parallel()

	invoker := &scriptedInvoker{outcomes: []*Outcome{finishOutcome("It is raining in Seattle.")}}
	executor := NewExecutor(invoker, nil)

	finish, steps, err := executor.Run(context.Background(), "what is the weather in Seattle?")
	require.NoError(t, err)
	assert.Equal(t, "It is raining in Seattle.", finish.Output)
	assert.Empty(t, steps)

	require.Len(t, invoker.calls, 1)
	assert.Equal(t, "what is the weather in Seattle?", invoker.calls[0].input)
	assert.NotEmpty(t, invoker.calls[0].config.sessionID)
}

func TestExecutorRun_SingleActionRoundTrip(t *testing.T) {
	t.Parallel()

	invoker := &scriptedInvoker{outcomes: []*Outcome{
		actionOutcome("inv-1", AgentAction{
			ActionGroup: DefaultActionGroupName,
			Function:    "getWeather",
			Parameters:  map[string]string{"input": "Seattle"},
		}),
		finishOutcome("It is raining."),
	}}
	executor := NewExecutor(invoker, []Tool{echoTool("getWeather")})

	finish, steps, err := executor.Run(context.Background(), "weather?")
	require.NoError(t, err)
	assert.Equal(t, "It is raining.", finish.Output)

	require.Len(t, steps, 1)
	assert.Equal(t, "getWeather", steps[0].Action.Function)
	assert.Equal(t, "getWeather(Seattle)", steps[0].Observation)

	// Second turn feeds the tool result back on the same session
	require.Len(t, invoker.calls, 2)
	first, second := invoker.calls[0], invoker.calls[1]
	assert.Empty(t, second.input)
	assert.Equal(t, first.config.sessionID, second.config.sessionID)
	assert.Equal(t, "inv-1", second.config.invocationID)
	require.Len(t, second.config.results, 1)
	assert.Equal(t, "getWeather(Seattle)", second.config.results[0].Output)
}

func TestExecutorRun_MultipleActions(t *testing.T) {
	t.Parallel()

	invoker := &scriptedInvoker{outcomes: []*Outcome{
		actionOutcome("inv-9",
			AgentAction{ActionGroup: "AssetDetail", Function: "getAssetValue", Parameters: map[string]string{"asset_holder_id": "AVC-1234"}},
			AgentAction{ActionGroup: "AssetDetail", Function: "getMortgageRate", Parameters: map[string]string{"asset_holder_id": "AVC-1234"}},
		),
		finishOutcome("The mortgage rate for AVC-1234 is 8.87%"),
	}}

	tools := []Tool{
		{
			Name: "AssetDetail::getAssetValue",
			Function: func(_ context.Context, params map[string]string) (string, error) {
				return "The total asset value for " + params["asset_holder_id"] + " is 100K", nil
			},
		},
		{
			Name: "AssetDetail::getMortgageRate",
			Function: func(_ context.Context, params map[string]string) (string, error) {
				return "The mortgage rate for " + params["asset_holder_id"] + " is 8.87%", nil
			},
		},
	}
	executor := NewExecutor(invoker, tools)

	finish, steps, err := executor.Run(context.Background(), "mortgage rate for AVC-1234?")
	require.NoError(t, err)
	assert.Contains(t, finish.Output, "8.87%")

	require.Len(t, steps, 2)
	assert.Equal(t, "getAssetValue", steps[0].Action.Function)
	assert.Equal(t, "getMortgageRate", steps[1].Action.Function)

	results := invoker.calls[1].config.results
	require.Len(t, results, 2)
	assert.Contains(t, results[0].Output, "100K")
	assert.Contains(t, results[1].Output, "8.87%")
}

func TestExecutorRun_UnknownTool(t *testing.T) {
	t.Parallel()

	invoker := &scriptedInvoker{outcomes: []*Outcome{
		actionOutcome("inv-1", AgentAction{ActionGroup: "Other", Function: "missing"}),
	}}
	executor := NewExecutor(invoker, []Tool{echoTool("getWeather")})

	_, _, err := executor.Run(context.Background(), "q")
	assert.ErrorContains(t, err, "missing")
}

func TestExecutorRun_ToolError(t *testing.T) {
	t.Parallel()

	boom := errors.New("backend unavailable")
	invoker := &scriptedInvoker{outcomes: []*Outcome{
		actionOutcome("inv-1", AgentAction{ActionGroup: DefaultActionGroupName, Function: "getWeather"}),
	}}
	tools := []Tool{{
		Name: "getWeather",
		Function: func(context.Context, map[string]string) (string, error) {
			return "", boom
		},
	}}
	executor := NewExecutor(invoker, tools)

	_, _, err := executor.Run(context.Background(), "q")
	assert.ErrorIs(t, err, boom)
}

func TestExecutorRun_MaxIterations(t *testing.T) {
	t.Parallel()

	// The agent never finishes
	outcomes := make([]*Outcome, 0, 8)
	for i := 0; i < 8; i++ {
		outcomes = append(outcomes, actionOutcome("inv-1", AgentAction{
			ActionGroup: DefaultActionGroupName,
			Function:    "getWeather",
		}))
	}
	invoker := &scriptedInvoker{outcomes: outcomes}
	executor := NewExecutor(invoker, []Tool{echoTool("getWeather")}, WithMaxIterations(3))

	_, steps, err := executor.Run(context.Background(), "q")
	assert.ErrorIs(t, err, ErrMaxIterations)
	assert.Len(t, steps, 3)
}
