// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"copyforge/internal/apperr"
)

const (
	lockKeyPrefix = "batch_lock:"

	// DefaultLockTTL bounds how long a crashed batch can block its shop.
	DefaultLockTTL = 30 * time.Minute
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// BatchLock serialises batches per shop across processes.
type BatchLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewBatchLock creates a BatchLock; ttl 0 selects DefaultLockTTL.
func NewBatchLock(client *redis.Client, ttl time.Duration) *BatchLock {
	if ttl == 0 {
		ttl = DefaultLockTTL
	}
	return &BatchLock{client: client, ttl: ttl}
}

// Acquire takes the shop's batch lock. It fails with Conflict when
// another batch holds it. The returned release func is safe to call once
// the lock has expired or been taken over.
func (l *BatchLock) Acquire(ctx context.Context, shopID uuid.UUID) (release func(), err error) {
	key := lockKeyPrefix + shopID.String()
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire batch lock: %w", err)
	}
	if !ok {
		return nil, apperr.Errorf(apperr.Conflict, "cache.Acquire", "a batch is already running for shop %s", shopID)
	}

	return func() {
		// Release with a fresh context: the batch's own may be cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		releaseScript.Run(ctx, l.client, []string{key}, token)
	}, nil
}
