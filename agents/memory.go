package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	runtimetypes "github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
)

// MemorySummary is one cross-session conversation summary kept by the
// service for a memory ID.
type MemorySummary struct {
	MemoryID  string
	SessionID string
	Text      string
	ExpiresAt time.Time
}

// GetMemory fetches the session summaries stored for a memory ID. An empty
// result means the service has not produced a summary yet.
func (r *Runnable) GetMemory(ctx context.Context, memoryID string) ([]MemorySummary, error) {
	var summaries []MemorySummary
	var nextToken *string

	for {
		out, err := r.runtime.GetAgentMemory(ctx, &bedrockagentruntime.GetAgentMemoryInput{
			AgentId:      aws.String(r.agentID),
			AgentAliasId: aws.String(r.aliasID),
			MemoryId:     aws.String(memoryID),
			MemoryType:   runtimetypes.MemoryTypeSessionSummary,
			NextToken:    nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("get agent memory %s: %w", memoryID, err)
		}

		for _, content := range out.MemoryContents {
			summary, ok := content.(*runtimetypes.MemoryMemberSessionSummary)
			if !ok {
				continue
			}
			s := MemorySummary{
				MemoryID:  aws.ToString(summary.Value.MemoryId),
				SessionID: aws.ToString(summary.Value.SessionId),
				Text:      aws.ToString(summary.Value.SummaryText),
			}
			if summary.Value.SessionExpiryTime != nil {
				s.ExpiresAt = *summary.Value.SessionExpiryTime
			}
			summaries = append(summaries, s)
		}

		if out.NextToken == nil {
			return summaries, nil
		}
		nextToken = out.NextToken
	}
}

// DeleteMemory removes all summaries stored for a memory ID.
func (r *Runnable) DeleteMemory(ctx context.Context, memoryID string) error {
	_, err := r.runtime.DeleteAgentMemory(ctx, &bedrockagentruntime.DeleteAgentMemoryInput{
		AgentId:      aws.String(r.agentID),
		AgentAliasId: aws.String(r.aliasID),
		MemoryId:     aws.String(memoryID),
	})
	if err != nil {
		return fmt.Errorf("delete agent memory %s: %w", memoryID, err)
	}
	return nil
}

// MemoryWaitConfig bounds WaitForMemorySummary.
type MemoryWaitConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	BackoffFactor   float64
	Timeout         time.Duration
}

// DefaultMemoryWaitConfig polls every 5s, backing off to 30s, for up to 3m.
func DefaultMemoryWaitConfig() MemoryWaitConfig {
	return MemoryWaitConfig{
		InitialInterval: 5 * time.Second,
		MaxInterval:     30 * time.Second,
		BackoffFactor:   1.5,
		Timeout:         3 * time.Minute,
	}
}

// WaitForMemorySummary polls until the service has produced at least one
// summary for the memory ID. Summary generation is asynchronous after a
// session ends, so callers need a bounded wait rather than a raw poll loop.
// The wait honors ctx and gives up after the configured timeout.
func (r *Runnable) WaitForMemorySummary(ctx context.Context, memoryID string, config MemoryWaitConfig) ([]MemorySummary, error) {
	if config.InitialInterval <= 0 || config.Timeout <= 0 {
		config = DefaultMemoryWaitConfig()
	}

	ctx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()

	interval := config.InitialInterval
	for {
		summaries, err := r.GetMemory(ctx, memoryID)
		if err != nil {
			return nil, err
		}
		if len(summaries) > 0 {
			return summaries, nil
		}

		r.logger.Debug("no memory summary for %s yet, retrying in %v", memoryID, interval)

		select {
		case <-time.After(interval):
			next := time.Duration(float64(interval) * config.BackoffFactor)
			if config.MaxInterval > 0 {
				next = min(next, config.MaxInterval)
			}
			interval = next
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for memory summary %s: %w", memoryID, ctx.Err())
		}
	}
}
