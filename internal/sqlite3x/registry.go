// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package sqlite3x

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// NewConnectionID generates a random connection id for registry bookkeeping.
func NewConnectionID() string { return uuid.NewString() }

// NewTransactionID generates a random transaction id for registry bookkeeping.
func NewTransactionID() string { return uuid.NewString() }

// ConnectionInfo is the metadata record the registry tracks per open
// connection, independent of the live DatabaseHandle it fronts.
type ConnectionInfo struct {
	ID          string
	Path        string
	Name        string
	IsConnected bool
	CreatedAt   time.Time
}

// TransactionInfo records a transaction's owning connection and start time.
type TransactionInfo struct {
	ID           string
	ConnectionID string
	StartedAt    time.Time
}

// QueryStats accumulates per-connection timing and cache-hit counters.
type QueryStats struct {
	TotalQueries   int64
	TotalTimeMS    float64
	AvgQueryTimeMS float64
	MaxQueryTimeMS float64
	MinQueryTimeMS float64
	CacheHits      int64
	CacheMisses    int64
	CacheHitRate   float64
}

// Registry is the process-wide, thread-safe table of open connections,
// their live handles, in-flight transactions and query statistics. It is
// constructed once by the process entrypoint and threaded through
// explicitly rather than exposed as a package-level singleton.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]ConnectionInfo
	handles     map[string]*DatabaseHandle
	stats       map[string]*QueryStats

	txMu         sync.RWMutex
	transactions map[string]TransactionInfo
}

func NewRegistry() *Registry {
	return &Registry{
		connections:  make(map[string]ConnectionInfo),
		handles:      make(map[string]*DatabaseHandle),
		stats:        make(map[string]*QueryStats),
		transactions: make(map[string]TransactionInfo),
	}
}

// AddConnection registers a new connection and its handle. Duplicate ids
// are rejected.
func (r *Registry) AddConnection(info ConnectionInfo, handle *DatabaseHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connections[info.ID]; exists {
		return ErrQuery("connection already exists: %s", info.ID)
	}
	r.connections[info.ID] = info
	r.handles[info.ID] = handle
	r.stats[info.ID] = &QueryStats{}
	return nil
}

// RemoveConnection closes out a connection's bookkeeping: its handle
// (callers close the handle itself separately), its stats, and any
// transactions still attributed to it.
func (r *Registry) RemoveConnection(connectionID string) error {
	r.mu.Lock()
	if _, exists := r.connections[connectionID]; !exists {
		r.mu.Unlock()
		return ErrNotFound("connection not found: %s", connectionID)
	}
	delete(r.connections, connectionID)
	delete(r.handles, connectionID)
	delete(r.stats, connectionID)
	r.mu.Unlock()

	r.txMu.Lock()
	for id, tx := range r.transactions {
		if tx.ConnectionID == connectionID {
			delete(r.transactions, id)
		}
	}
	r.txMu.Unlock()
	return nil
}

// GetDBHandle returns the live handle for connectionID, if registered.
func (r *Registry) GetDBHandle(connectionID string) (*DatabaseHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[connectionID]
	return h, ok
}

// HasConnection reports whether connectionID is currently registered.
func (r *Registry) HasConnection(connectionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.connections[connectionID]
	return ok
}

// GetConnections returns every registered connection's metadata.
func (r *Registry) GetConnections() []ConnectionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ConnectionInfo, 0, len(r.connections))
	for _, c := range r.connections {
		out = append(out, c)
	}
	return out
}

// GetConnection returns connectionID's metadata, if registered.
func (r *Registry) GetConnection(connectionID string) (ConnectionInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.connections[connectionID]
	return c, ok
}

// AddTransaction records a new in-flight transaction. The owning connection
// must already be registered, and transaction ids must be unique.
func (r *Registry) AddTransaction(connectionID, transactionID string, startedAt time.Time) error {
	if !r.HasConnection(connectionID) {
		return ErrNotFound("connection not found: %s", connectionID)
	}

	r.txMu.Lock()
	defer r.txMu.Unlock()
	if _, exists := r.transactions[transactionID]; exists {
		return ErrQuery("transaction already exists: %s", transactionID)
	}
	r.transactions[transactionID] = TransactionInfo{ID: transactionID, ConnectionID: connectionID, StartedAt: startedAt}
	return nil
}

// RemoveTransaction clears a transaction's bookkeeping once it commits or
// rolls back.
func (r *Registry) RemoveTransaction(transactionID string) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()
	if _, exists := r.transactions[transactionID]; !exists {
		return ErrNotFound("transaction not found: %s", transactionID)
	}
	delete(r.transactions, transactionID)
	return nil
}

// GetTransaction returns transactionID's bookkeeping record, if live.
func (r *Registry) GetTransaction(transactionID string) (TransactionInfo, bool) {
	r.txMu.RLock()
	defer r.txMu.RUnlock()
	tx, ok := r.transactions[transactionID]
	return tx, ok
}

// GetTransactions returns every transaction currently attributed to
// connectionID.
func (r *Registry) GetTransactions(connectionID string) []TransactionInfo {
	r.txMu.RLock()
	defer r.txMu.RUnlock()
	var out []TransactionInfo
	for _, tx := range r.transactions {
		if tx.ConnectionID == connectionID {
			out = append(out, tx)
		}
	}
	return out
}

// GetQueryStats returns a copy of connectionID's accumulated query
// statistics, or the zero value if it has none recorded yet.
func (r *Registry) GetQueryStats(connectionID string) QueryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.stats[connectionID]; ok {
		return *s
	}
	return QueryStats{}
}

// RecordQuery folds one query's execution time and cache-hit outcome into
// connectionID's running statistics. min_query_time_ms starts effectively
// unset (zero) and is adopted by the first recorded sample, exactly as the
// original tracker does, so a single very fast first query doesn't get
// clobbered by the zero-value sentinel on every later comparison.
func (r *Registry) RecordQuery(connectionID string, executionTimeMS float64, cacheHit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.stats[connectionID]
	if !ok {
		return
	}

	s.TotalQueries++
	s.TotalTimeMS += executionTimeMS
	if cacheHit {
		s.CacheHits++
	} else {
		s.CacheMisses++
	}
	if executionTimeMS > s.MaxQueryTimeMS {
		s.MaxQueryTimeMS = executionTimeMS
	}
	if s.MinQueryTimeMS == 0.0 || executionTimeMS < s.MinQueryTimeMS {
		s.MinQueryTimeMS = executionTimeMS
	}
	s.AvgQueryTimeMS = s.TotalTimeMS / float64(s.TotalQueries)
	if total := s.CacheHits + s.CacheMisses; total > 0 {
		s.CacheHitRate = float64(s.CacheHits) / float64(total) * 100.0
	} else {
		s.CacheHitRate = 0.0
	}
}

// ResetQueryStats zeroes connectionID's accumulated statistics.
func (r *Registry) ResetQueryStats(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stats[connectionID]; ok {
		r.stats[connectionID] = &QueryStats{}
	}
}
