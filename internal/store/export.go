package store

import (
	"bytes"
	"context"
	"errors"

	"github.com/rcliao/tai/internal/model"
)

// Export returns the latest record of every live key, optionally filtered by
// namespace. Sealed values are exported as stored.
func Export(ctx context.Context, s Store, ns string) ([]model.Record, error) {
	var namespaces []string
	if ns != "" {
		namespaces = []string{ns}
	} else {
		stats, err := s.ListNamespaces(ctx)
		if err != nil {
			return nil, err
		}
		for _, st := range stats {
			namespaces = append(namespaces, st.NS)
		}
	}

	records := []model.Record{}
	for _, n := range namespaces {
		keys, err := s.Keys(ctx, n)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			rec, err := s.Get(ctx, GetParams{NS: n, Key: k})
			if err != nil {
				return nil, err
			}
			records = append(records, *rec)
		}
	}
	return records, nil
}

// Import stores records from an export. Records whose value already matches
// the latest stored version are skipped.
func Import(ctx context.Context, s Store, records []model.Record) (int, error) {
	imported := 0
	for _, r := range records {
		cur, err := s.Get(ctx, GetParams{NS: r.NS, Key: r.Key})
		switch {
		case err == nil && cur.Encrypted == r.Encrypted && bytes.Equal(cur.Value, r.Value):
			continue
		case err != nil && !errors.Is(err, ErrNotFound):
			return imported, err
		}
		_, err = s.Put(ctx, PutParams{
			NS:        r.NS,
			Key:       r.Key,
			Value:     r.Value,
			Encrypted: r.Encrypted,
		})
		if err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}
