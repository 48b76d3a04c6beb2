package favorites

import (
	"context"
	"fmt"
	"time"
)

// Backend names accepted by OpenBackend.
const (
	BackendMemory    = "memory"
	BackendFile      = "file"
	BackendSQLite    = "sqlite"
	BackendMemcached = "memcached"
	BackendRedis     = "redis"
)

// Options selects and configures a persistence backend.
type Options struct {
	Backend string
	Record  string

	FilePath   string
	SQLitePath string

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Backend is an opened Persister plus its health check and shutdown hooks.
// Ping and Close are never nil.
type Backend struct {
	Persister
	Name  string
	Ping  func(ctx context.Context) error
	Close func() error
}

// OpenBackend constructs the Persister named by opts.Backend.
func OpenBackend(opts Options) (*Backend, error) {
	noPing := func(context.Context) error { return nil }
	noClose := func() error { return nil }

	switch opts.Backend {
	case BackendMemory, "":
		return &Backend{Persister: NewMemoryPersister(), Name: BackendMemory, Ping: noPing, Close: noClose}, nil
	case BackendFile:
		p, err := NewFilePersister(opts.FilePath, opts.Record)
		if err != nil {
			return nil, err
		}
		return &Backend{Persister: p, Name: BackendFile, Ping: noPing, Close: noClose}, nil
	case BackendSQLite:
		p, err := NewSQLitePersister(opts.SQLitePath, opts.Record)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Persister: p,
			Name:      BackendSQLite,
			Ping:      func(ctx context.Context) error { return p.db.PingContext(ctx) },
			Close:     p.Close,
		}, nil
	case BackendMemcached:
		p := NewMemcachedPersister(opts.MemcachedAddrs, opts.Record, opts.MemcachedTimeout, opts.MemcachedMaxIdleConns)
		return &Backend{
			Persister: p,
			Name:      BackendMemcached,
			Ping:      func(context.Context) error { return p.Ping() },
			Close:     p.Close,
		}, nil
	case BackendRedis:
		p := NewRedisPersister(opts.RedisAddr, opts.RedisPassword, opts.RedisDB, opts.Record)
		return &Backend{Persister: p, Name: BackendRedis, Ping: p.Ping, Close: p.Close}, nil
	default:
		return nil, fmt.Errorf("favorites: unknown backend %q", opts.Backend)
	}
}
