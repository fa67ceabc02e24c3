// Package store provides the key-value storage interface and its backends.
package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rcliao/tai/internal/model"
)

// ErrNotFound is returned when no live record exists for a namespace/key.
var ErrNotFound = errors.New("record not found")

// PutParams holds parameters for storing a value.
type PutParams struct {
	NS        string
	Key       string
	Value     json.RawMessage
	Encrypted bool
}

// GetParams holds parameters for retrieving a value.
type GetParams struct {
	NS      string
	Key     string
	Version int // 0 means latest
}

// RmParams holds parameters for deleting a value.
type RmParams struct {
	NS   string
	Key  string
	Hard bool
}

// NamespaceStats holds per-namespace counts.
type NamespaceStats struct {
	NS   string `json:"ns"`
	Keys int    `json:"keys"`
}

// Store defines the key-value storage interface.
type Store interface {
	// Put stores a new version of a value. Returns the created record.
	Put(ctx context.Context, p PutParams) (*model.Record, error)

	// Get retrieves the latest (or a specific) version of a value.
	Get(ctx context.Context, p GetParams) (*model.Record, error)

	// Keys lists the live keys in a namespace.
	Keys(ctx context.Context, ns string) ([]string, error)

	// Rm soft-deletes (or hard-deletes) a key.
	Rm(ctx context.Context, p RmParams) error

	// ListNamespaces returns every namespace holding at least one live key.
	ListNamespaces(ctx context.Context) ([]NamespaceStats, error)

	// Close closes the store.
	Close() error
}

// Versioned is implemented by backends that keep every saved version.
type Versioned interface {
	History(ctx context.Context, ns, key string) ([]model.Record, error)
}
