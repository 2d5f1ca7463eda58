// Package agents binds AWS Bedrock Agents into Go programs and graph
// workflows.
//
// A Runnable wraps one cloud-hosted agent: CreateAgent registers the agent
// and its tools (as a return-control action group), prepares it and waits
// until it is ready; Invoke sends one turn on a session and decodes the
// response event stream into either pending tool actions or a final answer;
// DeleteAgent tears the agent down. RoleProvisioner creates the scoped IAM
// role an agent needs before it can call its foundation model.
//
// On top of the Runnable, Executor runs the invoke/dispatch/return loop to a
// final answer, and NewAgentWorkflow exposes the same loop as a two-node
// conditional state graph.
package agents
