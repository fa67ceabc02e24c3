// Package model defines the core memory data types.
package model

import (
	"encoding/json"
	"time"
)

// Tier selects which memory file an entry lives in.
type Tier string

const (
	// TierGlobal is the durable, cross-session fact store.
	TierGlobal Tier = "global"
	// TierRestricted is the per-day session transcript.
	TierRestricted Tier = "restricted"
)

// ValidTiers are the allowed memory tiers.
var ValidTiers = map[Tier]bool{
	TierGlobal:     true,
	TierRestricted: true,
}

// Layouts used for entry timestamps and restricted-memory keys.
const (
	TimestampLayout = "2006-01-02 15:04:05"
	DayLayout       = "2006-01-02"
)

// Entry is one memory item. Global entries carry Memory; restricted entries
// carry User and Tai. Timestamp is the identity of an entry within a list.
type Entry struct {
	Timestamp string `json:"timestamp"`
	Memory    string `json:"Memory,omitempty"`
	User      string `json:"User,omitempty"`
	Tai       string `json:"Tai,omitempty"`
}

// Record is a single stored value in the key-value store.
type Record struct {
	ID         string          `json:"id"`
	NS         string          `json:"ns"`
	Key        string          `json:"key"`
	Value      json.RawMessage `json:"value"`
	Encrypted  bool            `json:"encrypted,omitempty"`
	Version    int             `json:"version"`
	Supersedes string          `json:"supersedes,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	DeletedAt  *time.Time      `json:"deleted_at,omitempty"`
}
