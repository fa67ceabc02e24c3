package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rcliao/tai/internal/model"
)

const schema = `
	CREATE TABLE IF NOT EXISTS records (
		id          TEXT PRIMARY KEY,
		ns          TEXT NOT NULL,
		key         TEXT NOT NULL,
		value       TEXT NOT NULL,
		encrypted   INTEGER NOT NULL DEFAULT 0,
		version     INTEGER NOT NULL DEFAULT 1,
		supersedes  TEXT,
		created_at  TEXT NOT NULL,
		deleted_at  TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_records_ns_key ON records(ns, key);
	CREATE INDEX IF NOT EXISTS idx_records_deleted ON records(deleted_at);
`

const recordColumns = `id, ns, key, value, encrypted, version, supersedes, created_at, deleted_at`

// sqlStore is the database/sql implementation shared by the SQLite and
// Postgres backends. Queries are written with ? placeholders and rebound
// for drivers that use $n.
type sqlStore struct {
	db     *sql.DB
	dollar bool
}

func (s *sqlStore) q(query string) string {
	if !s.dollar {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func newID() string {
	return ulid.Make().String()
}

func (s *sqlStore) Put(ctx context.Context, p PutParams) (*model.Record, error) {
	if p.NS == "" || p.Key == "" {
		return nil, fmt.Errorf("put: namespace and key are required")
	}
	now := time.Now().UTC()
	id := newID()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Check for existing latest version
	var prevID string
	var prevVersion int
	err = tx.QueryRowContext(ctx, s.q(
		`SELECT id, version FROM records
		 WHERE ns = ? AND key = ? AND deleted_at IS NULL
		 ORDER BY version DESC LIMIT 1`), p.NS, p.Key).Scan(&prevID, &prevVersion)

	version := 1
	var supersedes *string
	if err == nil {
		version = prevVersion + 1
		supersedes = &prevID
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lookup latest: %w", err)
	}

	_, err = tx.ExecContext(ctx, s.q(
		`INSERT INTO records (id, ns, key, value, encrypted, version, supersedes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		id, p.NS, p.Key, string(p.Value), boolInt(p.Encrypted), version, supersedes,
		now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("insert record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	rec := &model.Record{
		ID:        id,
		NS:        p.NS,
		Key:       p.Key,
		Value:     p.Value,
		Encrypted: p.Encrypted,
		Version:   version,
		CreatedAt: now,
	}
	if supersedes != nil {
		rec.Supersedes = *supersedes
	}
	return rec, nil
}

func (s *sqlStore) Get(ctx context.Context, p GetParams) (*model.Record, error) {
	var row *sql.Row
	if p.Version > 0 {
		row = s.db.QueryRowContext(ctx, s.q(
			`SELECT `+recordColumns+` FROM records
			 WHERE ns = ? AND key = ? AND version = ? AND deleted_at IS NULL LIMIT 1`),
			p.NS, p.Key, p.Version)
	} else {
		row = s.db.QueryRowContext(ctx, s.q(
			`SELECT `+recordColumns+` FROM records
			 WHERE ns = ? AND key = ? AND deleted_at IS NULL
			 ORDER BY version DESC LIMIT 1`),
			p.NS, p.Key)
	}

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, p.NS, p.Key)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// History returns every live version of a key, newest first.
func (s *sqlStore) History(ctx context.Context, ns, key string) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx, s.q(
		`SELECT `+recordColumns+` FROM records
		 WHERE ns = ? AND key = ? AND deleted_at IS NULL
		 ORDER BY version DESC`), ns, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, ns, key)
	}
	return records, nil
}

func (s *sqlStore) Keys(ctx context.Context, ns string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.q(
		`SELECT DISTINCT key FROM records
		 WHERE ns = ? AND deleted_at IS NULL ORDER BY key`), ns)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *sqlStore) Rm(ctx context.Context, p RmParams) error {
	var res sql.Result
	var err error
	if p.Hard {
		res, err = s.db.ExecContext(ctx, s.q(`DELETE FROM records WHERE ns = ? AND key = ?`), p.NS, p.Key)
	} else {
		now := time.Now().UTC().Format(time.RFC3339Nano)
		res, err = s.db.ExecContext(ctx, s.q(
			`UPDATE records SET deleted_at = ? WHERE ns = ? AND key = ? AND deleted_at IS NULL`),
			now, p.NS, p.Key)
	}
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, p.NS, p.Key)
	}
	return nil
}

func (s *sqlStore) ListNamespaces(ctx context.Context) ([]NamespaceStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ns, COUNT(DISTINCT key) FROM records
		 WHERE deleted_at IS NULL GROUP BY ns ORDER BY ns`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []NamespaceStats
	for rows.Next() {
		var ns NamespaceStats
		if err := rows.Scan(&ns.NS, &ns.Keys); err != nil {
			return nil, err
		}
		out = append(out, ns)
	}
	return out, rows.Err()
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (model.Record, error) {
	var r model.Record
	var value, createdAt string
	var encrypted int
	var supersedes, deletedAt sql.NullString

	err := row.Scan(&r.ID, &r.NS, &r.Key, &value, &encrypted, &r.Version,
		&supersedes, &createdAt, &deletedAt)
	if err != nil {
		return r, err
	}

	r.Value = []byte(value)
	r.Encrypted = encrypted != 0
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if supersedes.Valid {
		r.Supersedes = supersedes.String
	}
	if deletedAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, deletedAt.String)
		r.DeletedAt = &t
	}
	return r, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
