package storage

import (
	"context"
	"errors"
	"time"
)

type Storage interface {
	Save(fileName, contentType string, buf []byte) (string, error)
}

// Cache keeps processed documents around so the same upload with the same
// settings is compressed only once.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, buf []byte, ttl time.Duration) error
}

// ErrCacheMiss is returned by Cache.Get when nothing is stored for a key.
var ErrCacheMiss = errors.New("cache miss")

// NoCache never stores anything.
type NoCache struct{}

func (NoCache) Get(context.Context, string) ([]byte, error) {
	return nil, ErrCacheMiss
}

func (NoCache) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}
