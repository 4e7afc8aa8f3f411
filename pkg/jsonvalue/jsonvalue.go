// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package jsonvalue converts between loosely-typed JSON-like values and the
// driver values SQLite accepts/returns, so every layer of the router shares
// one conversion table instead of each re-deriving it.
package jsonvalue

import (
	"encoding/json"
	"fmt"
	"math"
)

// ToDriverValue converts a decoded JSON value (nil, bool, float64, string,
// []any, map[string]any — the shapes encoding/json.Unmarshal produces into
// `any`) into a value database/sql knows how to bind. The JSON token's own
// lexical kind decides the binding: a float64 (always a JSON number literal
// that came through as a float) binds as REAL regardless of whether its
// fractional part happens to be zero — int-vs-float is a property of the
// source literal, not of the decoded magnitude.
func ToDriverValue(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case bool:
		if t {
			return int64(1), nil
		}
		return int64(0), nil
	case float64:
		return t, nil
	case int, int64:
		return t, nil
	case string:
		return t, nil
	case []any, map[string]any:
		return encodeCompound(t)
	default:
		return nil, fmt.Errorf("jsonvalue: unsupported parameter type %T", v)
	}
}

// ToDriverValues converts a slice of decoded JSON values in order.
func ToDriverValues(values []any) ([]any, error) {
	out := make([]any, len(values))
	for i, v := range values {
		dv, err := ToDriverValue(v)
		if err != nil {
			return nil, err
		}
		out[i] = dv
	}
	return out, nil
}

// FromCell converts a cell read back from database/sql (typically
// int64/float64/string/[]byte/nil) into a JSON-friendly value. NaN/Inf reals
// collapse to nil since JSON has no representation for them, and BLOBs are
// rendered as a human-readable placeholder rather than raw bytes.
func FromCell(cell any) any {
	switch t := cell.(type) {
	case nil:
		return nil
	case []byte:
		return fmt.Sprintf("<BLOB %d bytes>", len(t))
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		return t
	case float32:
		f := float64(t)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return f
	default:
		return t
	}
}

func encodeCompound(v any) (any, error) {
	// Arrays/objects are stored as their JSON text, matching the behaviour of
	// serializing a nested structure down to a single TEXT column.
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("jsonvalue: encode compound value: %w", err)
	}
	return string(b), nil
}
