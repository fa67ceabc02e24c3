// Package memory loads, merges, and formats the two conversation-memory
// tiers: durable global memory and the per-day restricted transcript.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rcliao/tai/internal/model"
	"github.com/rcliao/tai/internal/store"
)

// Storage keys and namespaces.
const (
	Namespace         = "taiMem"
	GlobalKey         = "global_memory"
	RestrictedPrefix  = "restricted_memory_"
	TemplateNamespace = "memplate"
	TemplateKey       = "memplate"
)

// Placeholders returned by Format for an empty list.
const (
	NoGlobalMemory     = "No past interactions found."
	NoRestrictedMemory = "No previous discussion in this conversation."
)

// SeedEntry is written to a restricted key that does not exist yet.
var SeedEntry = model.Entry{
	Timestamp: "2025-03-03 12:16:13",
	Memory:    "Template memory, text goes here.",
}

// KV is the subset of the data system the manager needs.
type KV interface {
	Keys(ctx context.Context, ns string) ([]string, error)
	LoadData(ctx context.Context, key, ns string, encrypted bool) (json.RawMessage, error)
	SaveData(ctx context.Context, key string, value any, ns string, encrypted bool) error
}

// Manager reads and writes memory tiers through a KV.
type Manager struct {
	kv        KV
	encrypted bool
	now       func() time.Time
	log       *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithEncryption seals memory values at rest.
func WithEncryption(on bool) Option {
	return func(m *Manager) { m.encrypted = on }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// NewManager creates a manager over kv.
func NewManager(kv KV, opts ...Option) *Manager {
	m := &Manager{kv: kv, now: time.Now, log: zap.NewNop()}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Now returns the manager's current time.
func (m *Manager) Now() time.Time {
	return m.now()
}

// Key resolves the storage key for tier on the given day.
func Key(tier model.Tier, day time.Time) string {
	if tier == model.TierGlobal {
		return GlobalKey
	}
	return RestrictedPrefix + day.Format(model.DayLayout)
}

// Load returns the entries stored for tier. A missing restricted key is
// seeded with SeedEntry; a missing global key and malformed stored JSON
// both yield an empty list.
func (m *Manager) Load(ctx context.Context, tier model.Tier, day time.Time) ([]model.Entry, error) {
	if !model.ValidTiers[tier] {
		return nil, fmt.Errorf("invalid memory tier %q", tier)
	}
	key := Key(tier, day)

	if tier == model.TierRestricted {
		keys, err := m.kv.Keys(ctx, Namespace)
		if err != nil {
			return nil, fmt.Errorf("list memory keys: %w", err)
		}
		if !contains(keys, key) {
			seed := []model.Entry{SeedEntry}
			if err := m.kv.SaveData(ctx, key, seed, Namespace, m.encrypted); err != nil {
				return nil, fmt.Errorf("seed %s: %w", key, err)
			}
			m.log.Debug("seeded restricted memory", zap.String("key", key))
			return seed, nil
		}
	}

	raw, err := m.kv.LoadData(ctx, key, Namespace, m.encrypted)
	if errors.Is(err, store.ErrNotFound) {
		return []model.Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}

	entries, err := ParseEntries(raw)
	if err != nil {
		m.log.Warn("discarding malformed memory", zap.String("key", key), zap.Error(err))
		return []model.Entry{}, nil
	}
	return entries, nil
}

// Save merges candidates into the persisted list for tier and writes the
// result back. It returns the merged list.
func (m *Manager) Save(ctx context.Context, tier model.Tier, day time.Time, candidates []model.Entry) ([]model.Entry, error) {
	existing, err := m.Load(ctx, tier, day)
	if err != nil {
		return nil, err
	}
	merged := Merge(existing, candidates)

	key := Key(tier, day)
	if err := m.kv.SaveData(ctx, key, merged, Namespace, m.encrypted); err != nil {
		return nil, fmt.Errorf("save %s: %w", key, err)
	}
	m.log.Debug("saved memory",
		zap.String("key", key),
		zap.Int("existing", len(existing)),
		zap.Int("added", len(merged)-len(existing)))
	return merged, nil
}

// Replace writes entries as the whole persisted list for tier, dropping
// anything stored before. It is how a rewritten global document, including
// forgotten entries, reaches the store. Duplicate timestamps keep the first.
func (m *Manager) Replace(ctx context.Context, tier model.Tier, day time.Time, entries []model.Entry) ([]model.Entry, error) {
	if !model.ValidTiers[tier] {
		return nil, fmt.Errorf("invalid memory tier %q", tier)
	}
	list := Merge(nil, entries)
	key := Key(tier, day)
	if err := m.kv.SaveData(ctx, key, list, Namespace, m.encrypted); err != nil {
		return nil, fmt.Errorf("replace %s: %w", key, err)
	}
	m.log.Debug("replaced memory", zap.String("key", key), zap.Int("entries", len(list)))
	return list, nil
}

// Template returns the memory template document.
func (m *Manager) Template(ctx context.Context) (string, error) {
	raw, err := m.kv.LoadData(ctx, TemplateKey, TemplateNamespace, false)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load template: %w", err)
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s, nil
	}
	return string(raw), nil
}

// SetTemplate stores the memory template document.
func (m *Manager) SetTemplate(ctx context.Context, template string) error {
	return m.kv.SaveData(ctx, TemplateKey, template, TemplateNamespace, false)
}

// Merge appends the candidates whose timestamp is not already present.
// Existing entries are never modified or removed.
func Merge(existing, candidates []model.Entry) []model.Entry {
	seen := make(map[string]bool, len(existing)+len(candidates))
	merged := make([]model.Entry, 0, len(existing)+len(candidates))
	for _, e := range existing {
		seen[e.Timestamp] = true
		merged = append(merged, e)
	}
	for _, c := range candidates {
		if seen[c.Timestamp] {
			continue
		}
		seen[c.Timestamp] = true
		merged = append(merged, c)
	}
	return merged
}

// ParseEntries decodes a JSON list of entries. A JSON string holding such a
// list is unwrapped first.
func ParseEntries(raw []byte) ([]model.Entry, error) {
	var entries []model.Entry
	err := json.Unmarshal(raw, &entries)
	if err == nil {
		if entries == nil {
			entries = []model.Entry{}
		}
		return entries, nil
	}

	var inner string
	if json.Unmarshal(raw, &inner) == nil {
		return ParseEntries([]byte(strings.TrimSpace(inner)))
	}
	return nil, err
}

// Encode serializes entries the way they are kept in session buffers.
func Encode(entries []model.Entry) string {
	if entries == nil {
		entries = []model.Entry{}
	}
	b, _ := json.Marshal(entries)
	return string(b)
}

func contains(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
