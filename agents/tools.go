package agents

import (
	"context"
	"fmt"
	"strings"

	lctools "github.com/tmc/langchaingo/tools"
)

// DefaultActionGroupName is used for tools whose name has no explicit
// "Group::Function" prefix.
const DefaultActionGroupName = "ToolActionGroup"

// Parameter describes one input of a tool, mirroring the function schema the
// agent service expects. Type is one of "string", "number", "integer",
// "boolean" or "array".
type Parameter struct {
	Type        string
	Description string
	Required    bool
}

// Tool is a function the agent may ask the caller to run. Name may follow
// the "Group::Function" convention to place the function in a named action
// group; bare names go into DefaultActionGroupName.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]Parameter

	// Function executes the tool. Arguments arrive as the string values the
	// agent supplied for the declared parameters.
	Function func(ctx context.Context, args map[string]string) (string, error)
}

// ActionGroup returns the action group the tool belongs to.
func (t Tool) ActionGroup() string {
	group, _ := SplitToolName(t.Name)
	return group
}

// FunctionName returns the bare function name without the group prefix.
func (t Tool) FunctionName() string {
	_, function := SplitToolName(t.Name)
	return function
}

// SplitToolName splits a "Group::Function" tool name into its action group
// and function name. Names without the separator fall into
// DefaultActionGroupName.
func SplitToolName(name string) (group, function string) {
	if before, after, found := strings.Cut(name, "::"); found && before != "" {
		return before, after
	}
	return DefaultActionGroupName, name
}

// FromLangChainTool adapts a langchaingo tool. The agent sees a single
// required "input" parameter which is passed verbatim to the tool's Call.
func FromLangChainTool(t lctools.Tool) Tool {
	return Tool{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: map[string]Parameter{
			"input": {
				Type:        "string",
				Description: "The input query for the tool",
				Required:    true,
			},
		},
		Function: func(ctx context.Context, args map[string]string) (string, error) {
			return t.Call(ctx, args["input"])
		},
	}
}

// toolRegistry indexes tools for dispatch, both by their qualified
// "Group::Function" name and by bare function name.
type toolRegistry map[string]Tool

func newToolRegistry(tools []Tool) toolRegistry {
	registry := make(toolRegistry, len(tools)*2)
	for _, t := range tools {
		registry[t.ActionGroup()+"::"+t.FunctionName()] = t
		registry[t.FunctionName()] = t
	}
	return registry
}

// lookup resolves the tool for an action, preferring the fully qualified name.
func (r toolRegistry) lookup(action AgentAction) (Tool, error) {
	if t, ok := r[action.ActionGroup+"::"+action.Function]; ok {
		return t, nil
	}
	if t, ok := r[action.Function]; ok {
		return t, nil
	}
	return Tool{}, fmt.Errorf("no tool registered for action %s::%s", action.ActionGroup, action.Function)
}
