// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package sqlite3x implements a partitioned SQLite router: a single physical
// connection fronting logically sharded databases attached via ATTACH DATABASE.
package sqlite3x

import (
	"errors"
	"fmt"
)

// Kind tags the category of a router error, mirroring the variant set the
// router's error boundary has always returned across its command surface.
type Kind int

const (
	KindConnection Kind = iota
	KindQuery
	KindTransaction
	KindSchema
	KindFFI
	KindInvalidHandle
	KindTypeConversion
	KindIO
	KindUTF8
	KindPartitionKeyNotFound
	KindInvalidSQL
	KindShardNotFound
	KindShardingPolicyViolation
	KindGlobalUniquenessViolation
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "Connection error"
	case KindQuery:
		return "Query error"
	case KindTransaction:
		return "Transaction error"
	case KindSchema:
		return "Schema error"
	case KindFFI:
		return "FFI error"
	case KindInvalidHandle:
		return "Invalid handle"
	case KindTypeConversion:
		return "Type conversion error"
	case KindIO:
		return "IO error"
	case KindUTF8:
		return "UTF-8 error"
	case KindPartitionKeyNotFound:
		return "Partition key not found"
	case KindInvalidSQL:
		return "Invalid SQL"
	case KindShardNotFound:
		return "Shard not found"
	case KindShardingPolicyViolation:
		return "Sharding policy violation"
	case KindGlobalUniquenessViolation:
		return "Global uniqueness violation"
	case KindNotFound:
		return "Not found"
	default:
		return "Unknown error"
	}
}

// Error is the router's boundary error type. It always carries a Kind so
// callers can branch on error category without string matching.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newErr(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...)}
}

func wrapErr(k Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: k, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func ErrConnection(format string, args ...any) error    { return newErr(KindConnection, format, args...) }
func ErrQuery(format string, args ...any) error         { return newErr(KindQuery, format, args...) }
func ErrTransaction(format string, args ...any) error   { return newErr(KindTransaction, format, args...) }
func ErrSchema(format string, args ...any) error        { return newErr(KindSchema, format, args...) }
func ErrFFI(format string, args ...any) error           { return newErr(KindFFI, format, args...) }
func ErrInvalidHandle(format string, args ...any) error { return newErr(KindInvalidHandle, format, args...) }
func ErrTypeConversion(format string, args ...any) error {
	return newErr(KindTypeConversion, format, args...)
}
func ErrPartitionKeyNotFound(format string, args ...any) error {
	return newErr(KindPartitionKeyNotFound, format, args...)
}
func ErrInvalidSQL(format string, args ...any) error { return newErr(KindInvalidSQL, format, args...) }
func ErrShardNotFound(format string, args ...any) error {
	return newErr(KindShardNotFound, format, args...)
}
func ErrShardingPolicyViolation(format string, args ...any) error {
	return newErr(KindShardingPolicyViolation, format, args...)
}
func ErrGlobalUniquenessViolation(format string, args ...any) error {
	return newErr(KindGlobalUniquenessViolation, format, args...)
}
func ErrNotFound(format string, args ...any) error { return newErr(KindNotFound, format, args...) }

// WrapIO and WrapUTF8 preserve the cause, matching the original's #[from]
// conversions for io::Error and Utf8Error.
func WrapIO(cause error) error   { return wrapErr(KindIO, cause, "%v", cause) }
func WrapUTF8(cause error) error { return wrapErr(KindUTF8, cause, "%v", cause) }

// KindOf reports the Kind of err if it (or something it wraps) is *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
