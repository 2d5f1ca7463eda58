package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/google/uuid"

	"github.com/smallnest/bedrockgraph/log"
)

// IAMClient is the subset of the IAM API the provisioner needs.
type IAMClient interface {
	CreateRole(ctx context.Context, params *iam.CreateRoleInput, optFns ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	PutRolePolicy(ctx context.Context, params *iam.PutRolePolicyInput, optFns ...func(*iam.Options)) (*iam.PutRolePolicyOutput, error)
	ListRolePolicies(ctx context.Context, params *iam.ListRolePoliciesInput, optFns ...func(*iam.Options)) (*iam.ListRolePoliciesOutput, error)
	DeleteRolePolicy(ctx context.Context, params *iam.DeleteRolePolicyInput, optFns ...func(*iam.Options)) (*iam.DeleteRolePolicyOutput, error)
	DeleteRole(ctx context.Context, params *iam.DeleteRoleInput, optFns ...func(*iam.Options)) (*iam.DeleteRoleOutput, error)
}

// STSClient is the subset of the STS API the provisioner needs.
type STSClient interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// RoleProvisioner creates and deletes the execution role a Bedrock agent
// assumes. The role trusts the Bedrock service for agents in the caller's
// account and region only, and grants InvokeModel on a single foundation
// model.
type RoleProvisioner struct {
	iam             IAMClient
	sts             STSClient
	region          string
	logger          log.Logger
	propagationWait time.Duration
}

// RoleOption configures a RoleProvisioner.
type RoleOption func(*RoleProvisioner)

// WithRoleLogger sets the logger.
func WithRoleLogger(logger log.Logger) RoleOption {
	return func(p *RoleProvisioner) {
		p.logger = logger
	}
}

// WithPropagationWait overrides the pause after role creation that gives IAM
// time to propagate before the role ARN is handed to the agent service.
func WithPropagationWait(d time.Duration) RoleOption {
	return func(p *RoleProvisioner) {
		p.propagationWait = d
	}
}

// WithRoleClients overrides the IAM and STS clients. Used in tests.
func WithRoleClients(iamClient IAMClient, stsClient STSClient) RoleOption {
	return func(p *RoleProvisioner) {
		p.iam = iamClient
		p.sts = stsClient
	}
}

// NewRoleProvisioner creates a provisioner bound to the config's region.
func NewRoleProvisioner(cfg aws.Config, opts ...RoleOption) *RoleProvisioner {
	p := &RoleProvisioner{
		iam:             iam.NewFromConfig(cfg),
		sts:             sts.NewFromConfig(cfg),
		region:          cfg.Region,
		logger:          log.GetDefaultLogger(),
		propagationWait: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Sid       string                       `json:"Sid,omitempty"`
	Effect    string                       `json:"Effect"`
	Principal map[string]string            `json:"Principal,omitempty"`
	Action    string                       `json:"Action"`
	Resource  []string                     `json:"Resource,omitempty"`
	Condition map[string]map[string]string `json:"Condition,omitempty"`
}

// trustPolicyDocument lets the Bedrock service assume the role, but only on
// behalf of agents in this account and region. The agent does not exist yet
// at role-creation time, so the source ARN stays a wildcard over agent IDs.
func trustPolicyDocument(region, accountID string) (string, error) {
	doc := policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{
			{
				Effect:    "Allow",
				Principal: map[string]string{"Service": "bedrock.amazonaws.com"},
				Action:    "sts:AssumeRole",
				Condition: map[string]map[string]string{
					"ArnLike": {
						"aws:SourceArn": fmt.Sprintf("arn:aws:bedrock:%s:%s:agent/*", region, accountID),
					},
				},
			},
		},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal trust policy: %w", err)
	}
	return string(data), nil
}

// modelPolicyDocument grants InvokeModel on exactly one foundation model.
func modelPolicyDocument(region, foundationModel string) (string, error) {
	doc := policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{
			{
				Sid:    "AmazonBedrockAgentBedrockFoundationModelStatement",
				Effect: "Allow",
				Action: "bedrock:InvokeModel",
				Resource: []string{
					fmt.Sprintf("arn:aws:bedrock:%s::foundation-model/%s", region, foundationModel),
				},
			},
		},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal model policy: %w", err)
	}
	return string(data), nil
}

// CreateAgentRole creates the execution role for an agent that will use the
// given foundation model and returns the role ARN.
func (p *RoleProvisioner) CreateAgentRole(ctx context.Context, foundationModel string) (string, error) {
	identity, err := p.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("get caller identity: %w", err)
	}

	trustPolicy, err := trustPolicyDocument(p.region, aws.ToString(identity.Account))
	if err != nil {
		return "", err
	}
	modelPolicy, err := modelPolicyDocument(p.region, foundationModel)
	if err != nil {
		return "", err
	}

	roleName := fmt.Sprintf("bedrock_agent_%s", uuid.New())
	created, err := p.iam.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(roleName),
		AssumeRolePolicyDocument: aws.String(trustPolicy),
		Description:              aws.String("Role for Bedrock Agent"),
	})
	if err != nil {
		return "", fmt.Errorf("create role %s: %w", roleName, err)
	}

	policyName := fmt.Sprintf("AmazonBedrockAgentBedrockFoundationModelPolicy_%s", uuid.New())
	_, err = p.iam.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
		RoleName:       aws.String(roleName),
		PolicyName:     aws.String(policyName),
		PolicyDocument: aws.String(modelPolicy),
	})
	if err != nil {
		return "", fmt.Errorf("put role policy on %s: %w", roleName, err)
	}

	p.logger.Info("created agent role %s", roleName)

	// Give IAM a moment to propagate before the ARN is used
	if p.propagationWait > 0 {
		select {
		case <-time.After(p.propagationWait):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	return aws.ToString(created.Role.Arn), nil
}

// DeleteAgentRole removes the role's inline policies and then the role
// itself.
func (p *RoleProvisioner) DeleteAgentRole(ctx context.Context, roleARN string) error {
	parts := strings.Split(roleARN, "/")
	roleName := parts[len(parts)-1]

	policies, err := p.iam.ListRolePolicies(ctx, &iam.ListRolePoliciesInput{
		RoleName: aws.String(roleName),
	})
	if err != nil {
		return fmt.Errorf("list role policies for %s: %w", roleName, err)
	}

	for _, policyName := range policies.PolicyNames {
		_, err := p.iam.DeleteRolePolicy(ctx, &iam.DeleteRolePolicyInput{
			RoleName:   aws.String(roleName),
			PolicyName: aws.String(policyName),
		})
		if err != nil {
			return fmt.Errorf("delete role policy %s: %w", policyName, err)
		}
	}

	if _, err := p.iam.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: aws.String(roleName)}); err != nil {
		return fmt.Errorf("delete role %s: %w", roleName, err)
	}

	p.logger.Info("deleted agent role %s", roleName)
	return nil
}
