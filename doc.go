// Bedrockgraph - AWS Bedrock Agents for LangGraph-style workflows in Go
//
// Bedrockgraph binds cloud-hosted Bedrock Agents into graph-based agent
// workflows. It provisions the IAM role an agent needs, registers the agent
// and its tools with the Bedrock Agents service, decodes invocation event
// streams into actions and final answers, and loops tool results back through
// return control, either directly via an executor or as nodes of a
// conditional state graph.
//
// # Quick Start
//
// Install the package:
//
//	go get github.com/smallnest/bedrockgraph
//
// Basic example:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//
//		"github.com/aws/aws-sdk-go-v2/config"
//		"github.com/smallnest/bedrockgraph/agents"
//	)
//
//	func main() {
//		ctx := context.Background()
//		cfg, _ := config.LoadDefaultConfig(ctx, config.WithRegion("us-west-2"))
//
//		weather := agents.Tool{
//			Name:        "getWeather",
//			Description: "Get the weather of a location",
//			Parameters: map[string]agents.Parameter{
//				"location": {Type: "string", Description: "location of the place"},
//			},
//			Function: func(ctx context.Context, args map[string]string) (string, error) {
//				return "It is raining in " + args["location"], nil
//			},
//		}
//
//		provisioner := agents.NewRoleProvisioner(cfg)
//		roleARN, _ := provisioner.CreateAgentRole(ctx, "anthropic.claude-3-sonnet-20240229-v1:0")
//
//		runnable, _ := agents.CreateAgent(ctx, cfg, agents.Options{
//			Name:            "weather_agent",
//			ResourceRoleARN: roleARN,
//			FoundationModel: "anthropic.claude-3-sonnet-20240229-v1:0",
//			Instructions:    "You are an agent who helps with getting weather for a given location",
//			Tools:           []agents.Tool{weather},
//		})
//		defer runnable.DeleteAgent(ctx)
//
//		executor := agents.NewExecutor(runnable, []agents.Tool{weather})
//		finish, _, _ := executor.Run(ctx, "what is the weather in Seattle?")
//		fmt.Println(finish.Output)
//	}
//
// # Packages
//
//   - agents: Bedrock agent lifecycle, IAM role provisioning, outcome
//     decoding, executor loop, and the prebuilt agent/tools workflow
//   - graph: the state graph engine the workflow runs on
//   - store: session checkpoint persistence (memory, redis, sqlite, postgres)
//   - log: logging abstraction used across the module
package bedrockgraph
