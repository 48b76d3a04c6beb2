package favorites

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

const keyPrefix = "favorites:"

// MemcachedPersister stores the list as JSON under favorites:<record>.
// Items are written without expiration; eviction under memory pressure is the
// operator's concern.
type MemcachedPersister struct {
	client *memcache.Client
	record string
}

// NewMemcachedPersister creates a MemcachedPersister. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and maxIdleConns
// configure the client; both use package defaults if zero.
func NewMemcachedPersister(addrs, record string, timeout time.Duration, maxIdleConns int) *MemcachedPersister {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	if record == "" {
		record = DefaultRecord
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedPersister{client: client, record: record}
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

func (p *MemcachedPersister) key() string {
	return keyPrefix + p.record
}

// Load implements Persister.Load. A cache miss is an empty list.
func (p *MemcachedPersister) Load(ctx context.Context) ([]models.City, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	item, err := p.client.Get(p.key())
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	var cities []models.City
	if err := json.Unmarshal(item.Value, &cities); err != nil {
		return nil, err
	}
	return cities, nil
}

// Save implements Persister.Save.
func (p *MemcachedPersister) Save(ctx context.Context, cities []models.City) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	raw, err := json.Marshal(cities)
	if err != nil {
		return err
	}
	return p.client.Set(&memcache.Item{
		Key:   p.key(),
		Value: raw,
	})
}

// Ping checks if memcached is reachable. Used for health checks.
func (p *MemcachedPersister) Ping() error {
	return p.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (p *MemcachedPersister) Close() error {
	return p.client.Close()
}
