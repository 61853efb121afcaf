package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/grantthrive/pulse/model"
)

// redisKeyPrefix namespaces progress records in a shared Redis instance.
const redisKeyPrefix = "progress:"

// RedisProgressStore is a Redis-backed ProgressStore. Each record is stored
// as a JSON value under "progress:{applicationId}"; optimistic locking is
// enforced with a WATCH transaction on the record key.
type RedisProgressStore struct {
	client redis.UniversalClient
}

// NewRedisProgressStore creates a new Redis-backed progress store.
func NewRedisProgressStore(client redis.UniversalClient) *RedisProgressStore {
	return &RedisProgressStore{client: client}
}

func redisKey(applicationID string) string {
	return redisKeyPrefix + applicationID
}

// Create persists a new progress record.
func (s *RedisProgressStore) Create(ctx context.Context, record model.ProgressRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal progress record: %w", err)
	}

	ok, err := s.client.SetNX(ctx, redisKey(record.ApplicationID), raw, 0).Result()
	if err != nil {
		return fmt.Errorf("redis setnx %q: %w", record.ApplicationID, err)
	}
	if !ok {
		return model.NewAlreadyInitializedError(record.ApplicationID)
	}
	return nil
}

// Get retrieves the progress record for an application.
func (s *RedisProgressStore) Get(ctx context.Context, applicationID string) (model.ProgressRecord, error) {
	raw, err := s.client.Get(ctx, redisKey(applicationID)).Bytes()
	if err == redis.Nil {
		return model.ProgressRecord{}, model.NewNotFoundError(
			fmt.Sprintf("progress for application %q not found", applicationID),
		)
	}
	if err != nil {
		return model.ProgressRecord{}, fmt.Errorf("redis get %q: %w", applicationID, err)
	}

	var record model.ProgressRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return model.ProgressRecord{}, fmt.Errorf("unmarshal progress record %q: %w", applicationID, err)
	}
	return record, nil
}

// Update persists an updated record with optimistic locking.
func (s *RedisProgressStore) Update(ctx context.Context, record model.ProgressRecord) error {
	key := redisKey(record.ApplicationID)

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return model.NewNotFoundError(
				fmt.Sprintf("progress for application %q not found", record.ApplicationID),
			)
		}
		if err != nil {
			return fmt.Errorf("redis get %q: %w", record.ApplicationID, err)
		}

		var existing model.ProgressRecord
		if err := json.Unmarshal(raw, &existing); err != nil {
			return fmt.Errorf("unmarshal progress record %q: %w", record.ApplicationID, err)
		}
		if existing.Version != record.Version {
			return model.NewConflictError(
				fmt.Sprintf("progress for application %q version conflict (expected %d, got %d)",
					record.ApplicationID, record.Version, existing.Version),
			)
		}

		updated := record
		updated.Version++
		updated.UpdatedAt = time.Now().UTC()
		out, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("marshal progress record: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txn, key)
	if err == redis.TxFailedErr {
		return model.NewConflictError(
			fmt.Sprintf("progress for application %q was modified concurrently", record.ApplicationID),
		)
	}
	return err
}

// Delete removes the progress record for an application.
func (s *RedisProgressStore) Delete(ctx context.Context, applicationID string) error {
	n, err := s.client.Del(ctx, redisKey(applicationID)).Result()
	if err != nil {
		return fmt.Errorf("redis del %q: %w", applicationID, err)
	}
	if n == 0 {
		return model.NewNotFoundError(
			fmt.Sprintf("progress for application %q not found", applicationID),
		)
	}
	return nil
}

// HealthCheck verifies Redis connectivity.
func (s *RedisProgressStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
