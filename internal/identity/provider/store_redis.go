// Copyright (c) 2026 CBT Companion. All rights reserved.
// Author: zied.benboubaker@gmail.com

package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ziedbenboubaker/cbt-app/internal/platform/apperr"
)

// RedisCodeRepository implements CodeRepository using Redis with a key prefix.
//
// The same implementation backs both the verification-code and reset-code
// stores; only the prefix (and the TTL supplied by the service) differ.
type RedisCodeRepository struct {
	client *redis.Client
	prefix string
}

// NewCodeRepository creates a Redis-backed CodeRepository under the given prefix.
func NewCodeRepository(client *redis.Client, prefix string) *RedisCodeRepository {
	return &RedisCodeRepository{client: client, prefix: prefix}
}

/*
Set stores a code hash with its associated accountID and TTL.

Parameters:
  - ctx: context.Context
  - codeHash: string
  - accountID: string
  - ttl: time.Duration

Returns:
  - error: Execution errors
*/
func (repository *RedisCodeRepository) Set(ctx context.Context, codeHash, accountID string, ttl time.Duration) error {

	key := repository.prefix + codeHash

	if err := repository.client.Set(ctx, key, accountID, ttl).Err(); err != nil {
		return fmt.Errorf("redis_code_set_failed: %w", err)
	}

	return nil
}

/*
Get retrieves the accountID for a given code hash.

Description: Returns apperr.CodeInvalidOrExpired if the code is absent or
expired — the caller cannot distinguish the two, which is intentional.

Parameters:
  - ctx: context.Context
  - codeHash: string

Returns:
  - string: AccountID
  - error: apperr.CodeInvalidOrExpired or connectivity errors
*/
func (repository *RedisCodeRepository) Get(ctx context.Context, codeHash string) (string, error) {

	key := repository.prefix + codeHash

	accountID, err := repository.client.Get(ctx, key).Result()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperr.CodeInvalidOrExpired("The code is invalid or has expired")
		}
		return "", fmt.Errorf("redis_code_get_failed: %w", err)
	}

	return accountID, nil
}

/*
Delete removes the code hash from Redis.

Parameters:
  - ctx: context.Context
  - codeHash: string

Returns:
  - error: Deletion failures
*/
func (repository *RedisCodeRepository) Delete(ctx context.Context, codeHash string) error {

	key := repository.prefix + codeHash

	if err := repository.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis_code_delete_failed: %w", err)
	}

	return nil
}
