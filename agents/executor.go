package agents

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/smallnest/bedrockgraph/log"
)

// ErrMaxIterations is returned when the agent keeps requesting tools past the
// executor's iteration cap.
var ErrMaxIterations = errors.New("max iterations reached without a final answer")

// AgentInvoker is the part of Runnable the executor and workflow need.
type AgentInvoker interface {
	Invoke(ctx context.Context, inputText string, opts ...InvokeOption) (*Outcome, error)
}

// Step records one executed action and the tool output it produced.
type Step struct {
	Action      AgentAction
	Observation string
}

// Executor drives an agent to a final answer: invoke, run the requested
// tools, send their results back on the same session, repeat.
type Executor struct {
	invoker       AgentInvoker
	tools         toolRegistry
	maxIterations int
	logger        log.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithMaxIterations caps how many times the executor re-invokes the agent
// with tool results. The default is 10.
func WithMaxIterations(n int) ExecutorOption {
	return func(e *Executor) {
		e.maxIterations = n
	}
}

// WithExecutorLogger sets the logger.
func WithExecutorLogger(logger log.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// NewExecutor creates an executor dispatching to the given tools.
func NewExecutor(invoker AgentInvoker, tools []Tool, opts ...ExecutorOption) *Executor {
	e := &Executor{
		invoker:       invoker,
		tools:         newToolRegistry(tools),
		maxIterations: 10,
		logger:        log.GetDefaultLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run sends the input to the agent and loops until it produces a final
// answer. It returns the finish, the executed steps in order, and an error if
// a tool fails, a requested tool is unknown, or the iteration cap is hit.
func (e *Executor) Run(ctx context.Context, input string, opts ...InvokeOption) (*AgentFinish, []Step, error) {
	sessionID := uuid.NewString()
	invokeOpts := append([]InvokeOption{WithSessionID(sessionID)}, opts...)

	outcome, err := e.invoker.Invoke(ctx, input, invokeOpts...)
	if err != nil {
		return nil, nil, err
	}

	var steps []Step
	for iteration := 0; iteration < e.maxIterations; iteration++ {
		if outcome.IsFinish() {
			return outcome.Finish, steps, nil
		}

		newSteps, results, invocationID, err := e.executeActions(ctx, outcome.Actions)
		if err != nil {
			return nil, steps, err
		}
		steps = append(steps, newSteps...)

		outcome, err = e.invoker.Invoke(ctx, "",
			WithSessionID(sessionID),
			WithInvocationResults(invocationID, results),
		)
		if err != nil {
			return nil, steps, err
		}
	}

	if outcome.IsFinish() {
		return outcome.Finish, steps, nil
	}
	return nil, steps, fmt.Errorf("%w (cap %d)", ErrMaxIterations, e.maxIterations)
}

// executeActions runs every pending action. All actions of one return-control
// payload share an invocation ID, and their results go back together.
func (e *Executor) executeActions(ctx context.Context, actions []AgentAction) ([]Step, []ToolResult, string, error) {
	var steps []Step
	var results []ToolResult
	var invocationID string

	for _, action := range actions {
		tool, err := e.tools.lookup(action)
		if err != nil {
			return steps, nil, "", err
		}

		e.logger.Debug("executing tool %s::%s", action.ActionGroup, action.Function)

		observation, err := tool.Function(ctx, action.Parameters)
		if err != nil {
			return steps, nil, "", fmt.Errorf("tool %s::%s: %w", action.ActionGroup, action.Function, err)
		}

		steps = append(steps, Step{Action: action, Observation: observation})
		results = append(results, ToolResult{
			ActionGroup: action.ActionGroup,
			Function:    action.Function,
			Output:      observation,
		})
		invocationID = action.InvocationID
	}

	return steps, results, invocationID, nil
}
