package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/rcliao/tai/internal/model"
)

// DefaultRedisPrefix namespaces every key this store writes.
const DefaultRedisPrefix = "tai"

// RedisStore implements Store on Redis. Each key is a hash holding the
// latest version only; Redis keeps no history.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to redisURL (redis://host:port/db).
func NewRedisStore(ctx context.Context, redisURL, prefix string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisStoreFromClient(client, prefix), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) recordKey(ns, key string) string {
	return r.prefix + ":rec:" + ns + ":" + key
}

func (r *RedisStore) keysKey(ns string) string {
	return r.prefix + ":keys:" + ns
}

func (r *RedisStore) nsKey() string {
	return r.prefix + ":namespaces"
}

func (r *RedisStore) Put(ctx context.Context, p PutParams) (*model.Record, error) {
	if p.NS == "" || p.Key == "" {
		return nil, fmt.Errorf("put: namespace and key are required")
	}
	now := time.Now().UTC()
	id := newID()
	rk := r.recordKey(p.NS, p.Key)

	prevID, err := r.client.HGet(ctx, rk, "id").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("lookup latest: %w", err)
	}

	var version *redis.IntCmd
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		version = pipe.HIncrBy(ctx, rk, "version", 1)
		pipe.HSet(ctx, rk, map[string]interface{}{
			"id":         id,
			"value":      string(p.Value),
			"encrypted":  boolInt(p.Encrypted),
			"supersedes": prevID,
			"created_at": now.Format(time.RFC3339Nano),
		})
		pipe.SAdd(ctx, r.keysKey(p.NS), p.Key)
		pipe.SAdd(ctx, r.nsKey(), p.NS)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("put record: %w", err)
	}

	return &model.Record{
		ID:         id,
		NS:         p.NS,
		Key:        p.Key,
		Value:      p.Value,
		Encrypted:  p.Encrypted,
		Version:    int(version.Val()),
		Supersedes: prevID,
		CreatedAt:  now,
	}, nil
}

func (r *RedisStore) Get(ctx context.Context, p GetParams) (*model.Record, error) {
	fields, err := r.client.HGetAll(ctx, r.recordKey(p.NS, p.Key)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, p.NS, p.Key)
	}

	rec := model.Record{
		ID:         fields["id"],
		NS:         p.NS,
		Key:        p.Key,
		Value:      []byte(fields["value"]),
		Encrypted:  fields["encrypted"] == "1",
		Supersedes: fields["supersedes"],
	}
	rec.Version, _ = strconv.Atoi(fields["version"])
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["created_at"])

	if p.Version > 0 && p.Version != rec.Version {
		return nil, fmt.Errorf("%w: %s/%s version %d", ErrNotFound, p.NS, p.Key, p.Version)
	}
	return &rec, nil
}

func (r *RedisStore) Keys(ctx context.Context, ns string) ([]string, error) {
	keys, err := r.client.SMembers(ctx, r.keysKey(ns)).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// Rm deletes the key. Redis keeps no tombstones, so Hard is implied.
func (r *RedisStore) Rm(ctx context.Context, p RmParams) error {
	n, err := r.client.Del(ctx, r.recordKey(p.NS, p.Key)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, p.NS, p.Key)
	}
	if err := r.client.SRem(ctx, r.keysKey(p.NS), p.Key).Err(); err != nil {
		return err
	}
	left, err := r.client.SCard(ctx, r.keysKey(p.NS)).Result()
	if err != nil {
		return err
	}
	if left == 0 {
		return r.client.SRem(ctx, r.nsKey(), p.NS).Err()
	}
	return nil
}

func (r *RedisStore) ListNamespaces(ctx context.Context) ([]NamespaceStats, error) {
	namespaces, err := r.client.SMembers(ctx, r.nsKey()).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(namespaces)

	out := make([]NamespaceStats, 0, len(namespaces))
	for _, ns := range namespaces {
		n, err := r.client.SCard(ctx, r.keysKey(ns)).Result()
		if err != nil {
			return nil, err
		}
		out = append(out, NamespaceStats{NS: ns, Keys: int(n)})
	}
	return out, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
