// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package sqlite3x

import (
	"fmt"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// Strategy is the sharding strategy a PartitionConfig selects a shard with.
type Strategy string

const (
	StrategyHash       Strategy = "Hash"
	StrategyRange      Strategy = "Range"
	StrategyRoundRobin Strategy = "RoundRobin"
)

// selector resolves a partition key to a shard alias. It holds the
// round-robin cursor since that strategy, uniquely, carries state across
// calls.
type selector struct {
	roundRobin atomic.Uint64
}

func newSelector() *selector {
	return &selector{}
}

// Select returns the `shard_<n>` alias for partitionKey under the given
// strategy and shard count. Hash and the Range non-numeric fallback use a
// 64-bit deterministic hash so that repeated calls with the same key and
// shard count always land on the same shard (see property P1).
func (s *selector) Select(strategy Strategy, key string, shardCount int) (string, error) {
	if shardCount <= 0 {
		return "", ErrShardNotFound("no shards configured")
	}

	var idx uint64
	switch strategy {
	case StrategyHash:
		idx = xxhash.Sum64String(key) % uint64(shardCount)
	case StrategyRange:
		if n, ok := parseInt64(key); ok {
			idx = uint64(absInt64(n)) % uint64(shardCount)
		} else {
			idx = xxhash.Sum64String(key) % uint64(shardCount)
		}
	case StrategyRoundRobin:
		idx = s.roundRobin.Add(1) - 1
		idx %= uint64(shardCount)
	default:
		return "", ErrQuery("unknown partition strategy %q", strategy)
	}

	return shardAlias(int(idx)), nil
}

func shardAlias(index int) string {
	return fmt.Sprintf("shard_%d", index)
}

func absInt64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
