package store

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/rcliao/tai/internal/store"

// KV is the data-system view of a Store: JSON values addressed by key and
// namespace, with optional encryption at rest.
type KV struct {
	store  Store
	cipher *Cipher
	tracer trace.Tracer
}

// NewKV wraps s. cipher may be nil when encryption is never requested.
func NewKV(s Store, cipher *Cipher) *KV {
	return &KV{store: s, cipher: cipher, tracer: otel.Tracer(tracerName)}
}

// Store returns the underlying backend.
func (k *KV) Store() Store {
	return k.store
}

// Keys lists the live keys in ns.
func (k *KV) Keys(ctx context.Context, ns string) ([]string, error) {
	ctx, span := k.tracer.Start(ctx, "kv.keys", trace.WithAttributes(attribute.String("ns", ns)))
	defer span.End()

	keys, err := k.store.Keys(ctx, ns)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return keys, err
}

// LoadData returns the JSON value stored at ns/key. Sealed records are
// opened regardless of the encrypted flag; the flag only governs writes.
func (k *KV) LoadData(ctx context.Context, key, ns string, encrypted bool) (json.RawMessage, error) {
	ctx, span := k.tracer.Start(ctx, "kv.load", trace.WithAttributes(
		attribute.String("ns", ns),
		attribute.String("key", key),
		attribute.Bool("encrypted", encrypted),
	))
	defer span.End()

	rec, err := k.store.Get(ctx, GetParams{NS: ns, Key: key})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !rec.Encrypted {
		return rec.Value, nil
	}
	return k.open(rec.Value)
}

// SaveData marshals value and stores it as a new version of ns/key.
func (k *KV) SaveData(ctx context.Context, key string, value any, ns string, encrypted bool) error {
	ctx, span := k.tracer.Start(ctx, "kv.save", trace.WithAttributes(
		attribute.String("ns", ns),
		attribute.String("key", key),
		attribute.Bool("encrypted", encrypted),
	))
	defer span.End()

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", ns, key, err)
	}
	if encrypted {
		if raw, err = k.seal(raw); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}
	if _, err := k.store.Put(ctx, PutParams{NS: ns, Key: key, Value: raw, Encrypted: encrypted}); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// All loads every value in ns, keyed by key.
func (k *KV) All(ctx context.Context, ns string, encrypted bool) (map[string]json.RawMessage, error) {
	keys, err := k.Keys(ctx, ns)
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(keys))
	for _, key := range keys {
		v, err := k.LoadData(ctx, key, ns, encrypted)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

// sealed values are stored as a JSON string holding base64 ciphertext so
// every backend keeps valid JSON in its value column.
func (k *KV) seal(plain []byte) (json.RawMessage, error) {
	if k.cipher == nil {
		return nil, ErrNoCipher
	}
	box, err := k.cipher.Seal(plain)
	if err != nil {
		return nil, err
	}
	return json.Marshal(base64.StdEncoding.EncodeToString(box))
}

func (k *KV) open(value json.RawMessage) (json.RawMessage, error) {
	if k.cipher == nil {
		return nil, ErrNoCipher
	}
	var encoded string
	if err := json.Unmarshal(value, &encoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	box, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return k.cipher.Open(box)
}
