package seen

import (
	"context"
	"fmt"
	"strings"
)

// Gate is a persistent set of deduplication keys. Implementations are safe
// for concurrent use.
type Gate interface {
	Exists(ctx context.Context, key string) (bool, error)
	Insert(ctx context.Context, key string) error
	Count(ctx context.Context) (int, error)
	Close() error
}

const (
	BackendFile   = "file"
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Options selects and locates a Gate backend.
type Options struct {
	Backend  string
	Path     string
	RedisURL string
	// RedisPrefix namespaces keys in a shared redis database.
	RedisPrefix string
}

func Open(ctx context.Context, opts Options) (Gate, error) {
	var (
		gate Gate
		err  error
	)
	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendFile:
		gate, err = OpenFile(opts.Path)
	case BackendBadger:
		gate, err = OpenBadger(opts.Path)
	case BackendSQLite:
		gate, err = OpenSQLite(ctx, opts.Path)
	case BackendRedis:
		gate, err = OpenRedis(ctx, opts.RedisURL, opts.RedisPrefix)
	default:
		return nil, fmt.Errorf("unknown dedup backend: %s", opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	return gate, nil
}

// Contains runs the existence check off the caller's goroutine and gives up
// when ctx is done.
func Contains(ctx context.Context, g Gate, key string) (bool, error) {
	type result struct {
		ok  bool
		err error
	}
	done := make(chan result, 1)
	go func() {
		ok, err := g.Exists(ctx, key)
		done <- result{ok: ok, err: err}
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case res := <-done:
		return res.ok, res.err
	}
}
