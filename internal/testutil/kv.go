package testutil

import (
	"context"
	"sync"

	"blogify/internal/storage"
)

// FailingKV fails every call with Err (storage.ErrUnavailable by default),
// like a browser context without localStorage.
type FailingKV struct {
	Err error
}

func (f *FailingKV) err() error {
	if f.Err != nil {
		return f.Err
	}
	return storage.ErrUnavailable
}

func (f *FailingKV) Get(context.Context, string) ([]byte, bool, error) { return nil, false, f.err() }
func (f *FailingKV) Set(context.Context, string, []byte) error         { return f.err() }
func (f *FailingKV) Delete(context.Context, string) error              { return f.err() }
func (f *FailingKV) Close() error                                      { return nil }

// CountingKV wraps a KV and counts Set calls per key.
type CountingKV struct {
	storage.KV
	mu   sync.Mutex
	sets map[string]int
}

func NewCountingKV(kv storage.KV) *CountingKV {
	return &CountingKV{KV: kv, sets: make(map[string]int)}
}

func (c *CountingKV) Set(ctx context.Context, key string, value []byte) error {
	c.mu.Lock()
	c.sets[key]++
	c.mu.Unlock()
	return c.KV.Set(ctx, key, value)
}

func (c *CountingKV) Sets(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets[key]
}
