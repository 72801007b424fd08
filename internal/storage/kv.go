// Package storage хранит коллекции блога целиком, как один JSON-блоб под фиксированным ключом.
package storage

import (
	"context"
	"errors"
)

const (
	PostsKey = "posts"
	UsersKey = "users"
)

var (
	ErrUnavailable   = errors.New("storage: unavailable")
	ErrQuotaExceeded = errors.New("storage: quota exceeded")
)

// KV: постоянное хранилище «ключ → блоб».
type KV interface {
	// Get возвращает значение и признак наличия ключа.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
