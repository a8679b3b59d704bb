// Package storage provides the durable key-value substrate the stores persist to.
// Values are opaque byte strings; callers own their encoding.
package storage

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by Get when the key holds no value
var ErrNotFound = errors.New("storage: key not found")

// KV is a durable string-keyed byte store. Implementations must be safe
// for concurrent use.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes keys; missing keys are ignored
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// namespaced prefixes every key with a fixed namespace
type namespaced struct {
	kv     KV
	prefix string
}

// Namespaced returns a view of kv where every key is stored as
// "<part>:<part>:...:<key>". Closing the view does not close kv.
func Namespaced(kv KV, parts ...string) KV {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	if len(nonEmpty) == 0 {
		return kv
	}
	return &namespaced{kv: kv, prefix: strings.Join(nonEmpty, ":") + ":"}
}

func (n *namespaced) Get(ctx context.Context, key string) ([]byte, error) {
	return n.kv.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key string, value []byte) error {
	return n.kv.Set(ctx, n.prefix+key, value)
}

func (n *namespaced) Delete(ctx context.Context, keys ...string) error {
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = n.prefix + k
	}
	return n.kv.Delete(ctx, full...)
}

func (n *namespaced) Close() error {
	return nil
}
