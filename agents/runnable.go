package agents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	agenttypes "github.com/aws/aws-sdk-go-v2/service/bedrockagent/types"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	runtimetypes "github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
	"github.com/google/uuid"

	"github.com/smallnest/bedrockgraph/log"
)

// TestAliasID is the service-provided alias that always points at the DRAFT
// version of an agent. The runnable invokes through it, so no alias lifecycle
// is needed.
const TestAliasID = "TSTALIASID"

// ErrAgentCreateFailed is returned when the service reports the agent in a
// FAILED state during creation or preparation.
var ErrAgentCreateFailed = errors.New("agent entered FAILED state")

// AgentNotPreparedError is returned when the agent did not reach the expected
// status before the wait gave up.
type AgentNotPreparedError struct {
	AgentID string
	Status  agenttypes.AgentStatus
}

func (e *AgentNotPreparedError) Error() string {
	return fmt.Sprintf("agent %s not prepared, status %s", e.AgentID, e.Status)
}

// ControlPlaneClient is the subset of the Bedrock Agent control plane API the
// runnable needs.
type ControlPlaneClient interface {
	CreateAgent(ctx context.Context, params *bedrockagent.CreateAgentInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.CreateAgentOutput, error)
	GetAgent(ctx context.Context, params *bedrockagent.GetAgentInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.GetAgentOutput, error)
	CreateAgentActionGroup(ctx context.Context, params *bedrockagent.CreateAgentActionGroupInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.CreateAgentActionGroupOutput, error)
	PrepareAgent(ctx context.Context, params *bedrockagent.PrepareAgentInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.PrepareAgentOutput, error)
	DeleteAgent(ctx context.Context, params *bedrockagent.DeleteAgentInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.DeleteAgentOutput, error)
}

// RuntimeClient is the subset of the Bedrock Agent runtime API the runnable
// needs.
type RuntimeClient interface {
	InvokeAgent(ctx context.Context, params *bedrockagentruntime.InvokeAgentInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.InvokeAgentOutput, error)
	GetAgentMemory(ctx context.Context, params *bedrockagentruntime.GetAgentMemoryInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.GetAgentMemoryOutput, error)
	DeleteAgentMemory(ctx context.Context, params *bedrockagentruntime.DeleteAgentMemoryInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.DeleteAgentMemoryOutput, error)
}

// Options configures CreateAgent.
type Options struct {
	// Name of the agent resource.
	Name string

	// ResourceRoleARN is the execution role the agent assumes, usually from
	// RoleProvisioner.CreateAgentRole.
	ResourceRoleARN string

	// FoundationModel used for inference, e.g.
	// "anthropic.claude-3-sonnet-20240229-v1:0".
	FoundationModel string

	// Instructions tell the agent what it does.
	Instructions string

	// Tools the agent may call back through return control.
	Tools []Tool

	// EnableMemory turns on cross-session summary memory.
	EnableMemory bool

	// MemoryStorageDays bounds how long summaries are kept. Zero means the
	// service default.
	MemoryStorageDays int32

	// IdleSessionTTL ends idle sessions after this duration. Zero means the
	// service default.
	IdleSessionTTL time.Duration

	// EnableUserInput lets the agent ask the user clarifying questions via
	// the AMAZON.UserInput built-in action group.
	EnableUserInput bool

	// EnableTrace includes trace parts in invocation responses.
	EnableTrace bool

	// Logger overrides the package default logger.
	Logger log.Logger

	// ControlPlane and Runtime override the AWS clients. Used in tests.
	ControlPlane ControlPlaneClient
	Runtime      RuntimeClient

	// PollInterval and PrepareTimeout bound the status polling during
	// creation. Zero values use the defaults (2s, 3m).
	PollInterval   time.Duration
	PrepareTimeout time.Duration
}

func (o *Options) validate() error {
	if o.Name == "" {
		return errors.New("agent name is required")
	}
	if o.ResourceRoleARN == "" {
		return errors.New("resource role ARN is required")
	}
	if o.FoundationModel == "" {
		return errors.New("foundation model is required")
	}
	if o.Instructions == "" {
		return errors.New("instructions are required")
	}
	return nil
}

// Runnable wraps one Bedrock agent for invocation.
type Runnable struct {
	agentID     string
	aliasID     string
	control     ControlPlaneClient
	runtime     RuntimeClient
	enableTrace bool
	logger      log.Logger
}

// AgentID returns the wrapped agent's ID.
func (r *Runnable) AgentID() string {
	return r.agentID
}

// NewRunnable binds an already existing agent. The agent must be PREPARED
// and reachable through TestAliasID (or the alias set with WithAliasID).
func NewRunnable(cfg aws.Config, agentID string, opts ...RunnableOption) *Runnable {
	r := &Runnable{
		agentID: agentID,
		aliasID: TestAliasID,
		control: bedrockagent.NewFromConfig(cfg),
		runtime: bedrockagentruntime.NewFromConfig(cfg),
		logger:  log.GetDefaultLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunnableOption configures a Runnable built with NewRunnable.
type RunnableOption func(*Runnable)

// WithAliasID targets a specific agent alias instead of TestAliasID.
func WithAliasID(aliasID string) RunnableOption {
	return func(r *Runnable) {
		r.aliasID = aliasID
	}
}

// WithTrace enables trace parts in invocation responses.
func WithTrace() RunnableOption {
	return func(r *Runnable) {
		r.enableTrace = true
	}
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) RunnableOption {
	return func(r *Runnable) {
		r.logger = logger
	}
}

// CreateAgent registers a new agent with the service, registers its tools as
// return-control action groups, prepares it, and waits until it is ready to
// invoke.
func CreateAgent(ctx context.Context, cfg aws.Config, opts Options) (*Runnable, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	control := opts.ControlPlane
	if control == nil {
		control = bedrockagent.NewFromConfig(cfg)
	}
	runtime := opts.Runtime
	if runtime == nil {
		runtime = bedrockagentruntime.NewFromConfig(cfg)
	}

	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	prepareTimeout := opts.PrepareTimeout
	if prepareTimeout <= 0 {
		prepareTimeout = 3 * time.Minute
	}

	input := &bedrockagent.CreateAgentInput{
		AgentName:            aws.String(opts.Name),
		AgentResourceRoleArn: aws.String(opts.ResourceRoleARN),
		FoundationModel:      aws.String(opts.FoundationModel),
		Instruction:          aws.String(opts.Instructions),
		ClientToken:          aws.String(uuid.NewString()),
	}
	if opts.IdleSessionTTL > 0 {
		input.IdleSessionTTLInSeconds = aws.Int32(int32(opts.IdleSessionTTL / time.Second))
	}
	if opts.EnableMemory {
		memoryConfig := &agenttypes.MemoryConfiguration{
			EnabledMemoryTypes: []agenttypes.MemoryType{agenttypes.MemoryTypeSessionSummary},
		}
		if opts.MemoryStorageDays > 0 {
			memoryConfig.StorageDays = aws.Int32(opts.MemoryStorageDays)
		}
		input.MemoryConfiguration = memoryConfig
	}

	created, err := control.CreateAgent(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("create agent %s: %w", opts.Name, err)
	}

	agentID := aws.ToString(created.Agent.AgentId)
	logger.Info("created agent %s (%s)", opts.Name, agentID)

	r := &Runnable{
		agentID:     agentID,
		aliasID:     TestAliasID,
		control:     control,
		runtime:     runtime,
		enableTrace: opts.EnableTrace,
		logger:      logger,
	}

	// The agent must leave CREATING before action groups can be attached
	if err := r.waitForStatus(ctx, agenttypes.AgentStatusNotPrepared, pollInterval, prepareTimeout); err != nil {
		return nil, err
	}

	if err := r.registerActionGroups(ctx, opts); err != nil {
		return nil, err
	}

	if _, err := control.PrepareAgent(ctx, &bedrockagent.PrepareAgentInput{AgentId: aws.String(agentID)}); err != nil {
		return nil, fmt.Errorf("prepare agent %s: %w", agentID, err)
	}

	if err := r.waitForStatus(ctx, agenttypes.AgentStatusPrepared, pollInterval, prepareTimeout); err != nil {
		return nil, err
	}

	logger.Info("agent %s prepared", agentID)
	return r, nil
}

// registerActionGroups creates one return-control action group per tool
// group, plus the built-in user input group when enabled.
func (r *Runnable) registerActionGroups(ctx context.Context, opts Options) error {
	groups := make(map[string][]agenttypes.Function)
	var groupOrder []string
	for _, tool := range opts.Tools {
		group := tool.ActionGroup()
		if _, seen := groups[group]; !seen {
			groupOrder = append(groupOrder, group)
		}
		groups[group] = append(groups[group], toServiceFunction(tool))
	}

	for _, group := range groupOrder {
		_, err := r.control.CreateAgentActionGroup(ctx, &bedrockagent.CreateAgentActionGroupInput{
			AgentId:         aws.String(r.agentID),
			AgentVersion:    aws.String("DRAFT"),
			ActionGroupName: aws.String(group),
			ActionGroupExecutor: &agenttypes.ActionGroupExecutorMemberCustomControl{
				Value: agenttypes.CustomControlMethodReturnControl,
			},
			FunctionSchema: &agenttypes.FunctionSchemaMemberFunctions{
				Value: groups[group],
			},
		})
		if err != nil {
			return fmt.Errorf("create action group %s: %w", group, err)
		}
		r.logger.Debug("registered action group %s with %d functions", group, len(groups[group]))
	}

	if opts.EnableUserInput {
		_, err := r.control.CreateAgentActionGroup(ctx, &bedrockagent.CreateAgentActionGroupInput{
			AgentId:                    aws.String(r.agentID),
			AgentVersion:               aws.String("DRAFT"),
			ActionGroupName:            aws.String("UserInputAction"),
			ParentActionGroupSignature: agenttypes.ActionGroupSignatureAmazonUserinput,
		})
		if err != nil {
			return fmt.Errorf("create user input action group: %w", err)
		}
	}

	return nil
}

func toServiceFunction(tool Tool) agenttypes.Function {
	fn := agenttypes.Function{
		Name: aws.String(tool.FunctionName()),
	}
	if tool.Description != "" {
		fn.Description = aws.String(tool.Description)
	}
	if len(tool.Parameters) > 0 {
		fn.Parameters = make(map[string]agenttypes.ParameterDetail, len(tool.Parameters))
		for name, param := range tool.Parameters {
			detail := agenttypes.ParameterDetail{
				Type:     agenttypes.Type(param.Type),
				Required: aws.Bool(param.Required),
			}
			if param.Description != "" {
				detail.Description = aws.String(param.Description)
			}
			fn.Parameters[name] = detail
		}
	}
	return fn
}

// waitForStatus polls the agent until it reaches the wanted status. FAILED is
// terminal; running out of time returns AgentNotPreparedError.
func (r *Runnable) waitForStatus(ctx context.Context, want agenttypes.AgentStatus, interval, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	lastStatus := agenttypes.AgentStatus("")

	for {
		got, err := r.control.GetAgent(ctx, &bedrockagent.GetAgentInput{AgentId: aws.String(r.agentID)})
		if err != nil {
			return fmt.Errorf("get agent %s: %w", r.agentID, err)
		}

		lastStatus = got.Agent.AgentStatus
		if lastStatus == want {
			return nil
		}
		if lastStatus == agenttypes.AgentStatusFailed {
			return fmt.Errorf("%w: agent %s", ErrAgentCreateFailed, r.agentID)
		}

		if time.Now().After(deadline) {
			return &AgentNotPreparedError{AgentID: r.agentID, Status: lastStatus}
		}

		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// InvokeOption configures one invocation.
type InvokeOption func(*invokeConfig)

type invokeConfig struct {
	sessionID         string
	memoryID          string
	endSession        bool
	invocationID      string
	results           []ToolResult
	sessionAttributes map[string]string
}

// ToolResult carries a tool's output back to the agent for a pending action.
type ToolResult struct {
	ActionGroup string
	Function    string
	Output      string
}

// WithSessionID pins the invocation to a session. Without it every Invoke
// starts a fresh session.
func WithSessionID(sessionID string) InvokeOption {
	return func(c *invokeConfig) {
		c.sessionID = sessionID
	}
}

// WithMemoryID associates the session with a cross-session memory.
func WithMemoryID(memoryID string) InvokeOption {
	return func(c *invokeConfig) {
		c.memoryID = memoryID
	}
}

// WithEndSession marks this as the session's last turn, which triggers
// summary generation for memory-enabled agents.
func WithEndSession() InvokeOption {
	return func(c *invokeConfig) {
		c.endSession = true
	}
}

// WithInvocationResults sends tool outputs back for the return-control
// invocation that requested them.
func WithInvocationResults(invocationID string, results []ToolResult) InvokeOption {
	return func(c *invokeConfig) {
		c.invocationID = invocationID
		c.results = results
	}
}

// WithSessionAttributes sets attributes kept for the whole session.
func WithSessionAttributes(attributes map[string]string) InvokeOption {
	return func(c *invokeConfig) {
		c.sessionAttributes = attributes
	}
}

// Invoke sends one turn to the agent and decodes the streamed response into
// an Outcome: either pending tool actions or a final answer.
func (r *Runnable) Invoke(ctx context.Context, inputText string, opts ...InvokeOption) (*Outcome, error) {
	config := invokeConfig{}
	for _, opt := range opts {
		opt(&config)
	}
	if config.sessionID == "" {
		config.sessionID = uuid.NewString()
	}

	input := &bedrockagentruntime.InvokeAgentInput{
		AgentId:      aws.String(r.agentID),
		AgentAliasId: aws.String(r.aliasID),
		SessionId:    aws.String(config.sessionID),
		InputText:    aws.String(inputText),
		EnableTrace:  aws.Bool(r.enableTrace),
	}
	if config.endSession {
		input.EndSession = aws.Bool(true)
	}
	if config.memoryID != "" {
		input.MemoryId = aws.String(config.memoryID)
	}

	sessionState := &runtimetypes.SessionState{}
	hasSessionState := false
	if len(config.results) > 0 {
		sessionState.InvocationId = aws.String(config.invocationID)
		for _, result := range config.results {
			sessionState.ReturnControlInvocationResults = append(sessionState.ReturnControlInvocationResults,
				&runtimetypes.InvocationResultMemberMemberFunctionResult{
					Value: runtimetypes.FunctionResult{
						ActionGroup: aws.String(result.ActionGroup),
						Function:    aws.String(result.Function),
						ResponseBody: map[string]runtimetypes.ContentBody{
							"TEXT": {Body: aws.String(result.Output)},
						},
					},
				})
		}
		hasSessionState = true
	}
	if len(config.sessionAttributes) > 0 {
		sessionState.SessionAttributes = config.sessionAttributes
		hasSessionState = true
	}
	if hasSessionState {
		input.SessionState = sessionState
	}

	r.logger.Debug("invoking agent %s on session %s", r.agentID, config.sessionID)

	out, err := r.runtime.InvokeAgent(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("invoke agent %s: %w", r.agentID, err)
	}

	stream := out.GetStream()
	defer stream.Close()

	var events []runtimetypes.ResponseStream
	for event := range stream.Events() {
		events = append(events, event)
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("read agent %s response stream: %w", r.agentID, err)
	}

	return decodeResponseStream(config.sessionID, events)
}

// DeleteAgent removes the agent from the service, skipping the in-use check
// so aliases and action groups go with it.
func (r *Runnable) DeleteAgent(ctx context.Context) error {
	_, err := r.control.DeleteAgent(ctx, &bedrockagent.DeleteAgentInput{
		AgentId:                aws.String(r.agentID),
		SkipResourceInUseCheck: true,
	})
	if err != nil {
		return fmt.Errorf("delete agent %s: %w", r.agentID, err)
	}
	r.logger.Info("deleted agent %s", r.agentID)
	return nil
}
