package favorites

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// RedisPersister stores the list as JSON under favorites:<record>, without TTL.
type RedisPersister struct {
	client *redis.Client
	record string
}

// NewRedisPersister connects to addr (host:port) using db and password.
func NewRedisPersister(addr, password string, db int, record string) *RedisPersister {
	if record == "" {
		record = DefaultRecord
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisPersister{client: client, record: record}
}

func (p *RedisPersister) key() string {
	return keyPrefix + p.record
}

func (p *RedisPersister) Load(ctx context.Context) ([]models.City, error) {
	raw, err := p.client.Get(ctx, p.key()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("favorites: redis get: %w", err)
	}
	var cities []models.City
	if err := json.Unmarshal(raw, &cities); err != nil {
		return nil, fmt.Errorf("favorites: decode redis value: %w", err)
	}
	return cities, nil
}

func (p *RedisPersister) Save(ctx context.Context, cities []models.City) error {
	raw, err := json.Marshal(cities)
	if err != nil {
		return fmt.Errorf("favorites: encode: %w", err)
	}
	if err := p.client.Set(ctx, p.key(), raw, 0).Err(); err != nil {
		return fmt.Errorf("favorites: redis set: %w", err)
	}
	return nil
}

// Ping checks if redis is reachable. Used for health checks.
func (p *RedisPersister) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close closes the redis client.
func (p *RedisPersister) Close() error {
	return p.client.Close()
}
