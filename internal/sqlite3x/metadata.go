// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package sqlite3x

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"
)

const metadataVersion = 1

// PartitionMetadata is the versioned sidecar persisted alongside the main
// database file, recording the sharding configuration it was opened with.
type PartitionMetadata struct {
	Version   uint32          `json:"version"`
	Config    PartitionConfig `json:"config"`
	CreatedAt int64           `json:"created_at"`
	UpdatedAt int64           `json:"updated_at"`
}

// NewPartitionMetadata stamps both created_at and updated_at to now.
func NewPartitionMetadata(config PartitionConfig, now time.Time) PartitionMetadata {
	ts := now.Unix()
	return PartitionMetadata{Version: metadataVersion, Config: config, CreatedAt: ts, UpdatedAt: ts}
}

// Save writes the metadata to path as pretty-printed JSON.
func (m PartitionMetadata) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return ErrQuery("failed to serialize metadata: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return WrapIO(err)
	}
	return nil
}

// LoadPartitionMetadata reads and validates metadata from path, rejecting
// any version newer than this build understands.
func LoadPartitionMetadata(path string) (PartitionMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Stack-captured via pkg/errors: a corrupt or missing sidecar is
		// rare enough in practice that the extra context is worth keeping.
		return PartitionMetadata{}, WrapIO(errors.Wrapf(err, "read metadata file %s", path))
	}

	var m PartitionMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return PartitionMetadata{}, ErrQuery("failed to parse metadata: %v", errors.WithStack(err))
	}
	if m.Version > metadataVersion {
		return PartitionMetadata{}, ErrQuery("unsupported metadata version: %d", m.Version)
	}
	return m, nil
}

// DefaultMetadataPath derives the conventional sidecar path for a main
// database file.
func DefaultMetadataPath(mainDBPath string) string {
	return mainDBPath + ".partition_metadata.json"
}
