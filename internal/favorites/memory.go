package favorites

import (
	"context"
	"sync"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// MemoryPersister keeps the list in process memory. Not durable; used for
// ephemeral runs and tests.
type MemoryPersister struct {
	mu     sync.Mutex
	cities []models.City
	saves  int
}

func NewMemoryPersister(initial ...models.City) *MemoryPersister {
	return &MemoryPersister{cities: cloneCities(initial)}
}

func (m *MemoryPersister) Load(ctx context.Context) ([]models.City, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneCities(m.cities), nil
}

func (m *MemoryPersister) Save(ctx context.Context, cities []models.City) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cities = cloneCities(cities)
	m.saves++
	return nil
}

// Saves returns how many times Save succeeded.
func (m *MemoryPersister) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
