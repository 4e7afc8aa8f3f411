// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package jsonvalue

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDriverValueConvertsBoolToInt64(t *testing.T) {
	v, err := ToDriverValue(true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	v, err = ToDriverValue(false)
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)
}

func TestToDriverValueKeepsWholeFloatsAsFloat64(t *testing.T) {
	v, err := ToDriverValue(float64(42))
	require.NoError(t, err)
	assert.Equal(t, float64(42), v)
}

func TestToDriverValueKeepsFractionalFloats(t *testing.T) {
	v, err := ToDriverValue(3.5)
	require.NoError(t, err)
	assert.Equal(t, 3.5, v)
}

func TestToDriverValueEncodesCompoundValuesAsJSONText(t *testing.T) {
	v, err := ToDriverValue([]any{"a", float64(1)})
	require.NoError(t, err)
	assert.Equal(t, `["a",1]`, v)
}

func TestToDriverValueRejectsUnsupportedType(t *testing.T) {
	_, err := ToDriverValue(struct{}{})
	require.Error(t, err)
}

func TestToDriverValuesConvertsInOrder(t *testing.T) {
	out, err := ToDriverValues([]any{true, float64(2), "x"})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), float64(2), "x"}, out)
}

func TestFromCellRendersBlobPlaceholder(t *testing.T) {
	got := FromCell([]byte{1, 2, 3})
	assert.Equal(t, "<BLOB 3 bytes>", got)
}

func TestFromCellCollapsesNonFiniteFloatsToNil(t *testing.T) {
	assert.Nil(t, FromCell(math.NaN()))
	assert.Nil(t, FromCell(math.Inf(1)))
	assert.Equal(t, 1.5, FromCell(1.5))
}

func TestFromCellPassesThroughOtherTypes(t *testing.T) {
	assert.Equal(t, "hello", FromCell("hello"))
	assert.Nil(t, FromCell(nil))
}
