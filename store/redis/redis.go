package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smallnest/bedrockgraph/store"
)

// Store implements store.Store on Redis. Session membership is kept in a
// list so List returns checkpoints in save order.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ store.Store = (*Store)(nil)

// Options configuration for the Redis connection
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // Key prefix, default "bedrockgraph:"
	TTL      time.Duration // Expiration for checkpoints, default 0 (no expiration)
}

// New creates a new Redis checkpoint store
func New(opts Options) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "bedrockgraph:"
	}

	return &Store{
		client: client,
		prefix: prefix,
		ttl:    opts.TTL,
	}
}

// Close closes the underlying client
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) checkpointKey(id string) string {
	return fmt.Sprintf("%scheckpoint:%s", s.prefix, id)
}

func (s *Store) sessionKey(id string) string {
	return fmt.Sprintf("%ssession:%s:checkpoints", s.prefix, id)
}

// Save stores a checkpoint
func (s *Store) Save(ctx context.Context, checkpoint *store.Checkpoint) error {
	data, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	key := s.checkpointKey(checkpoint.ID)

	pipe := s.client.Pipeline()
	pipe.Set(ctx, key, data, s.ttl)

	if checkpoint.SessionID != "" {
		sessKey := s.sessionKey(checkpoint.SessionID)
		pipe.RPush(ctx, sessKey, checkpoint.ID)
		if s.ttl > 0 {
			pipe.Expire(ctx, sessKey, s.ttl)
		}
	}

	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save checkpoint to redis: %w", err)
	}

	return nil
}

// Load retrieves a checkpoint by ID
func (s *Store) Load(ctx context.Context, checkpointID string) (*store.Checkpoint, error) {
	data, err := s.client.Get(ctx, s.checkpointKey(checkpointID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("checkpoint not found: %s", checkpointID)
		}
		return nil, fmt.Errorf("load checkpoint from redis: %w", err)
	}

	var checkpoint store.Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}

	return &checkpoint, nil
}

// List returns all checkpoints for a session, in save order
func (s *Store) List(ctx context.Context, sessionID string) ([]*store.Checkpoint, error) {
	ids, err := s.client.LRange(ctx, s.sessionKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list checkpoints for session %s: %w", sessionID, err)
	}

	checkpoints := make([]*store.Checkpoint, 0, len(ids))
	for _, id := range ids {
		cp, err := s.Load(ctx, id)
		if err != nil {
			// Entry may have expired independently of the session index
			continue
		}
		checkpoints = append(checkpoints, cp)
	}

	return checkpoints, nil
}

// Delete removes a checkpoint and its session index entry
func (s *Store) Delete(ctx context.Context, checkpointID string) error {
	cp, err := s.Load(ctx, checkpointID)
	if err == nil && cp.SessionID != "" {
		s.client.LRem(ctx, s.sessionKey(cp.SessionID), 0, checkpointID)
	}

	if err := s.client.Del(ctx, s.checkpointKey(checkpointID)).Err(); err != nil {
		return fmt.Errorf("delete checkpoint from redis: %w", err)
	}
	return nil
}

// Clear removes all checkpoints for a session
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	sessKey := s.sessionKey(sessionID)
	ids, err := s.client.LRange(ctx, sessKey, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("list checkpoints for session %s: %w", sessionID, err)
	}

	pipe := s.client.Pipeline()
	for _, id := range ids {
		pipe.Del(ctx, s.checkpointKey(id))
	}
	pipe.Del(ctx, sessKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("clear session %s: %w", sessionID, err)
	}
	return nil
}
