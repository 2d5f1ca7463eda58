package agents

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
)

// ErrEmptyReturnControl is returned when the agent hands control back without
// a single function invocation input.
var ErrEmptyReturnControl = errors.New("return control payload carries no function invocation inputs")

// AgentAction is one pending tool call the agent handed back through return
// control. The caller runs the matching tool and sends the result back on the
// same session with the originating invocation ID.
type AgentAction struct {
	ActionGroup  string
	Function     string
	Parameters   map[string]string
	InvocationID string
	SessionID    string
}

// AgentFinish is the agent's final answer for a turn.
type AgentFinish struct {
	Output    string
	SessionID string
}

// Outcome is the decoded result of one agent invocation: either a list of
// pending actions or a finish, never both.
type Outcome struct {
	Actions []AgentAction
	Finish  *AgentFinish

	// TraceLog holds the trace events emitted during the invocation,
	// serialized to JSON, in arrival order.
	TraceLog []string
}

// IsFinish reports whether the outcome is a final answer.
func (o *Outcome) IsFinish() bool {
	return o != nil && o.Finish != nil
}

// decodeResponseStream folds the invoke event stream into an Outcome.
// Completion chunks concatenate; a return control payload wins over any
// completion text; unknown event members are ignored.
func decodeResponseStream(sessionID string, events []types.ResponseStream) (*Outcome, error) {
	var completion strings.Builder
	var actions []AgentAction
	var traceLog []string
	sawReturnControl := false

	for _, event := range events {
		switch ev := event.(type) {
		case *types.ResponseStreamMemberChunk:
			completion.Write(ev.Value.Bytes)

		case *types.ResponseStreamMemberReturnControl:
			sawReturnControl = true
			invocationID := aws.ToString(ev.Value.InvocationId)
			for _, input := range ev.Value.InvocationInputs {
				fn, ok := input.(*types.InvocationInputMemberMemberFunctionInvocationInput)
				if !ok {
					continue
				}
				actions = append(actions, AgentAction{
					ActionGroup:  aws.ToString(fn.Value.ActionGroup),
					Function:     aws.ToString(fn.Value.Function),
					Parameters:   decodeParameters(fn.Value.Parameters),
					InvocationID: invocationID,
					SessionID:    sessionID,
				})
			}

		case *types.ResponseStreamMemberTrace:
			if data, err := json.Marshal(ev.Value); err == nil {
				traceLog = append(traceLog, string(data))
			}

		default:
			// Future event members are not an error
		}
	}

	if sawReturnControl {
		if len(actions) == 0 {
			return nil, ErrEmptyReturnControl
		}
		return &Outcome{Actions: actions, TraceLog: traceLog}, nil
	}

	return &Outcome{
		Finish: &AgentFinish{
			Output:    completion.String(),
			SessionID: sessionID,
		},
		TraceLog: traceLog,
	}, nil
}

func decodeParameters(params []types.FunctionParameter) map[string]string {
	decoded := make(map[string]string, len(params))
	for _, p := range params {
		decoded[aws.ToString(p.Name)] = aws.ToString(p.Value)
	}
	return decoded
}
