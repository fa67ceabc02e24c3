package store

import (
	"context"
	"os"
)

// Stats holds store statistics.
type Stats struct {
	Driver     string           `json:"driver"`
	Location   string           `json:"location"`
	SizeBytes  int64            `json:"size_bytes,omitempty"`
	TotalKeys  int              `json:"total_keys"`
	Namespaces []NamespaceStats `json:"namespaces"`
}

// CollectStats returns statistics for s. location is the db path or URL;
// its size is reported when it names a local file.
func CollectStats(ctx context.Context, s Store, driver, location string) (*Stats, error) {
	st := &Stats{Driver: driver, Location: location}

	if info, err := os.Stat(location); err == nil {
		st.SizeBytes = info.Size()
	}

	namespaces, err := s.ListNamespaces(ctx)
	if err != nil {
		return st, err
	}
	st.Namespaces = namespaces
	for _, ns := range namespaces {
		st.TotalKeys += ns.Keys
	}
	return st, nil
}
