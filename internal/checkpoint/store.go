// Package checkpoint implements the Checkpoint Store Client: durable,
// namespaced persistence of plan execution progress backed by Redis.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/optiinfra/iacengine/internal/engine"
)

const (
	checkpointKeyPrefix = "checkpoint:"
	latestKeyPrefix     = "checkpoint:latest:"

	// checkpointTTL bounds how long a stale plan's checkpoints survive
	// without being refreshed or explicitly deleted.
	checkpointTTL = 7 * 24 * time.Hour
)

// Store persists Checkpoints in Redis, namespaced by plan id.
type Store struct {
	redis *redis.Client
	ctx   context.Context
}

// NewStore creates a Checkpoint Store Client over an existing Redis client.
func NewStore(redisClient *redis.Client) *Store {
	return &Store{
		redis: redisClient,
		ctx:   context.Background(),
	}
}

// SaveCheckpoint persists a checkpoint and advances the plan's latest
// pointer. It never panics: Redis failures are returned to the caller, who
// per the executor's error-handling policy treats a failed checkpoint write
// as a non-fatal, logged condition.
func (s *Store) SaveCheckpoint(cp *engine.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	key := checkpointKey(cp.OperationID, cp.StepOrdinal)
	if err := s.redis.Set(s.ctx, key, data, checkpointTTL).Err(); err != nil {
		return fmt.Errorf("failed to store checkpoint in redis: %w", err)
	}

	if err := s.redis.Set(s.ctx, latestKey(cp.OperationID), key, checkpointTTL).Err(); err != nil {
		return fmt.Errorf("failed to update latest checkpoint pointer: %w", err)
	}

	return nil
}

// GetLatestCheckpoint returns the most recently saved checkpoint for a plan,
// or nil with no error if the plan has never been checkpointed.
func (s *Store) GetLatestCheckpoint(planID string) (*engine.Checkpoint, error) {
	ptr, err := s.redis.Get(s.ctx, latestKey(planID)).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read latest checkpoint pointer: %w", err)
	}

	data, err := s.redis.Get(s.ctx, ptr).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint from redis: %w", err)
	}

	var cp engine.Checkpoint
	if err := json.Unmarshal([]byte(data), &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

// ListCheckpoints returns every checkpoint saved for a plan, ordered by
// step ordinal ascending.
func (s *Store) ListCheckpoints(planID string) ([]*engine.Checkpoint, error) {
	pattern := checkpointKeyPrefix + planID + ":*"
	keys, err := s.redis.Keys(s.ctx, pattern).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to scan checkpoint keys: %w", err)
	}

	checkpoints := make([]*engine.Checkpoint, 0, len(keys))
	for _, key := range keys {
		data, err := s.redis.Get(s.ctx, key).Result()
		if err == redis.Nil {
			continue
		} else if err != nil {
			return nil, fmt.Errorf("failed to read checkpoint %s: %w", key, err)
		}
		var cp engine.Checkpoint
		if err := json.Unmarshal([]byte(data), &cp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal checkpoint %s: %w", key, err)
		}
		checkpoints = append(checkpoints, &cp)
	}

	sort.Slice(checkpoints, func(i, j int) bool {
		return checkpoints[i].StepOrdinal < checkpoints[j].StepOrdinal
	})
	return checkpoints, nil
}

// DeleteCheckpoints removes every checkpoint for a plan, including its
// latest pointer. Used once a plan reaches a terminal state.
func (s *Store) DeleteCheckpoints(planID string) error {
	pattern := checkpointKeyPrefix + planID + ":*"
	keys, err := s.redis.Keys(s.ctx, pattern).Result()
	if err != nil {
		return fmt.Errorf("failed to scan checkpoint keys: %w", err)
	}
	keys = append(keys, latestKey(planID))

	if len(keys) == 0 {
		return nil
	}
	if err := s.redis.Del(s.ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete checkpoints: %w", err)
	}
	return nil
}

func checkpointKey(planID string, stepOrdinal int) string {
	return fmt.Sprintf("%s%s:%d", checkpointKeyPrefix, planID, stepOrdinal)
}

func latestKey(planID string) string {
	return latestKeyPrefix + planID
}
