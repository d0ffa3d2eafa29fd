// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"copyforge/internal/apperr"
)

const (
	stateKeyPrefix = "oauth_state:"

	// DefaultStateTTL is how long a merchant has to finish the install.
	DefaultStateTTL = 10 * time.Minute
)

// OAuthState is what the install flow remembers between redirecting the
// merchant and receiving the callback.
type OAuthState struct {
	ShopID  uuid.UUID `json:"shop_id"`
	OwnerID uuid.UUID `json:"owner_id"`
	Domain  string    `json:"domain"`
}

// StateStore keeps OAuth state nonces in Valkey. Each nonce can be taken
// once.
type StateStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStateStore creates a StateStore; ttl 0 selects DefaultStateTTL.
func NewStateStore(client *redis.Client, ttl time.Duration) *StateStore {
	if ttl == 0 {
		ttl = DefaultStateTTL
	}
	return &StateStore{client: client, ttl: ttl}
}

// Put records st under nonce.
func (s *StateStore) Put(ctx context.Context, nonce string, st OAuthState) error {
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal oauth state: %w", err)
	}
	if err := s.client.Set(ctx, stateKeyPrefix+nonce, b, s.ttl).Err(); err != nil {
		return fmt.Errorf("store oauth state: %w", err)
	}
	return nil
}

// Take returns and deletes the state for nonce. Unknown, expired and
// already used nonces are Unauthorized.
func (s *StateStore) Take(ctx context.Context, nonce string) (*OAuthState, error) {
	b, err := s.client.GetDel(ctx, stateKeyPrefix+nonce).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperr.Errorf(apperr.Unauthorized, "cache.Take", "unknown or expired oauth state")
	}
	if err != nil {
		return nil, fmt.Errorf("take oauth state: %w", err)
	}

	var st OAuthState
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("decode oauth state: %w", err)
	}
	return &st, nil
}
