// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package sqlite3x

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectorHashIsDeterministic(t *testing.T) {
	s := newSelector()

	first, err := s.Select(StrategyHash, "customer-123", 8)
	require.NoError(t, err)
	second, err := s.Select(StrategyHash, "customer-123", 8)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSelectorRangeUsesNumericValueWhenParseable(t *testing.T) {
	s := newSelector()

	alias, err := s.Select(StrategyRange, "10", 4)
	require.NoError(t, err)
	assert.Equal(t, "shard_2", alias)
}

func TestSelectorRangeFallsBackToHashForNonNumeric(t *testing.T) {
	s := newSelector()

	alias1, err := s.Select(StrategyRange, "not-a-number", 4)
	require.NoError(t, err)
	alias2, err := s.Select(StrategyRange, "not-a-number", 4)
	require.NoError(t, err)
	assert.Equal(t, alias1, alias2)
}

func TestSelectorRoundRobinCyclesThroughShards(t *testing.T) {
	s := newSelector()

	seen := make(map[string]bool)
	for i := 0; i < 4; i++ {
		alias, err := s.Select(StrategyRoundRobin, "ignored", 4)
		require.NoError(t, err)
		seen[alias] = true
	}
	assert.Len(t, seen, 4)

	fifth, err := s.Select(StrategyRoundRobin, "ignored", 4)
	require.NoError(t, err)
	assert.True(t, seen[fifth])
}

func TestSelectorRejectsZeroShards(t *testing.T) {
	s := newSelector()
	_, err := s.Select(StrategyHash, "x", 0)
	require.Error(t, err)
}
