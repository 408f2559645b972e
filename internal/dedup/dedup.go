// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package dedup provides message deduplication and reminder cooldowns
// using Redis SETNX with TTL. Dedup prevents the same inbound message
// from inserting a second Mail record when a tick overlaps a retry;
// cooldowns stop a stale mail from re-notifying on every scheduler pass.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL is how long we remember a seen message ID. The UNSEEN
	// flag is consumed on fetch, so 24h comfortably covers retry windows.
	DefaultTTL = 24 * time.Hour

	seenPrefix     = "mailwatch:seen:"
	notifiedPrefix = "mailwatch:notified:"
)

// Filter tracks which message IDs have already been ingested.
type Filter struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewFilter creates a dedup filter backed by Redis.
func NewFilter(rdb *redis.Client) *Filter {
	return &Filter{
		rdb: rdb,
		ttl: DefaultTTL,
	}
}

// IsNew returns true if the message ID has NOT been seen before.
// If true, the ID is marked as seen atomically (SETNX).
func (f *Filter) IsNew(ctx context.Context, messageID string) (bool, error) {
	key := seenPrefix + messageID

	set, err := f.rdb.SetNX(ctx, key, 1, f.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup SETNX: %w", err)
	}

	return set, nil
}

// Ping checks the Redis connection.
func (f *Filter) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return f.rdb.Ping(ctx).Err()
}

// Cooldown rate-limits reminders per mail record.
type Cooldown struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewCooldown creates a cooldown gate with the given window.
func NewCooldown(rdb *redis.Client, ttl time.Duration) *Cooldown {
	return &Cooldown{
		rdb: rdb,
		ttl: ttl,
	}
}

// Allow returns true if no reminder has been sent for this mail within
// the cooldown window. It does not open a window: a failed send must
// leave the record eligible for the next pass, so callers Mark only
// after the reminder actually went out.
func (c *Cooldown) Allow(ctx context.Context, mailID int64) (bool, error) {
	key := fmt.Sprintf("%s%d", notifiedPrefix, mailID)

	n, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("cooldown EXISTS: %w", err)
	}

	return n == 0, nil
}

// Mark opens the cooldown window for a mail after a successful reminder.
func (c *Cooldown) Mark(ctx context.Context, mailID int64) error {
	key := fmt.Sprintf("%s%d", notifiedPrefix, mailID)

	if err := c.rdb.SetNX(ctx, key, 1, c.ttl).Err(); err != nil {
		return fmt.Errorf("cooldown SETNX: %w", err)
	}
	return nil
}
