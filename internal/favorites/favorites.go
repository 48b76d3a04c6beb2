// Package favorites keeps the user's ordered set of saved cities and persists
// every mutation through a pluggable Persister.
package favorites

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
)

// DefaultRecord names the durable record holding the favorites list.
const DefaultRecord = "favorite-cities"

// ErrEmptyName is returned when a city without a name is added.
var ErrEmptyName = errors.New("favorites: city name is required")

// Persister stores the whole ordered favorites list under one record.
// Load returns an empty list, not an error, when nothing was saved yet.
type Persister interface {
	Load(ctx context.Context) ([]models.City, error)
	Save(ctx context.Context, cities []models.City) error
}

// Op identifies the mutation carried by a Change.
type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
)

// Change is delivered to subscribers after a mutation has been persisted.
type Change struct {
	Op        Op
	City      models.City
	Favorites []models.City
}

// Service is the single writer of the favorites set.
type Service struct {
	persister Persister
	logger    *zap.Logger

	mu        sync.Mutex
	favorites []models.City

	subsMu  sync.Mutex
	subs    map[int]func(Change)
	nextSub int
}

// NewService loads the persisted set, or starts empty if none exists.
func NewService(ctx context.Context, persister Persister, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	loaded, err := persister.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("favorites: load: %w", err)
	}
	s := &Service{
		persister: persister,
		logger:    logger,
		favorites: dedupe(loaded),
		subs:      make(map[int]func(Change)),
	}
	observability.FavoritesCount.Set(float64(len(s.favorites)))
	logger.Info("favorites loaded", zap.Int("count", len(s.favorites)))
	return s, nil
}

// Add appends city unless a city with the same name is already present.
// It reports whether the set changed.
func (s *Service) Add(ctx context.Context, city models.City) (bool, error) {
	if city.Name == "" {
		return false, ErrEmptyName
	}
	s.mu.Lock()
	if indexOf(s.favorites, city.Name) >= 0 {
		s.mu.Unlock()
		return false, nil
	}
	next := append(cloneCities(s.favorites), city)
	if err := s.commit(ctx, next); err != nil {
		s.mu.Unlock()
		return false, err
	}
	snapshot := cloneCities(s.favorites)
	s.mu.Unlock()

	observability.FavoritesMutationsTotal.WithLabelValues(string(OpAdd)).Inc()
	s.logger.Info("favorite added", zap.String("city", city.Name))
	s.notify(Change{Op: OpAdd, City: city, Favorites: snapshot})
	return true, nil
}

// Remove drops every entry named name. It reports whether the set changed.
func (s *Service) Remove(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	next := make([]models.City, 0, len(s.favorites))
	var removed models.City
	for _, c := range s.favorites {
		if c.Name == name {
			removed = c
			continue
		}
		next = append(next, c)
	}
	if len(next) == len(s.favorites) {
		s.mu.Unlock()
		return false, nil
	}
	if err := s.commit(ctx, next); err != nil {
		s.mu.Unlock()
		return false, err
	}
	snapshot := cloneCities(s.favorites)
	s.mu.Unlock()

	observability.FavoritesMutationsTotal.WithLabelValues(string(OpRemove)).Inc()
	s.logger.Info("favorite removed", zap.String("city", name))
	s.notify(Change{Op: OpRemove, City: removed, Favorites: snapshot})
	return true, nil
}

// Toggle removes city if present, otherwise adds it. It returns whether the
// city is a favorite afterwards.
func (s *Service) Toggle(ctx context.Context, city models.City) (bool, error) {
	if s.Contains(city.Name) {
		_, err := s.Remove(ctx, city.Name)
		return false, err
	}
	if _, err := s.Add(ctx, city); err != nil {
		return false, err
	}
	return true, nil
}

// Contains reports whether a city named name is in the set.
func (s *Service) Contains(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return indexOf(s.favorites, name) >= 0
}

// Lookup returns the saved city named name.
func (s *Service) Lookup(name string) (models.City, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexOf(s.favorites, name); i >= 0 {
		return s.favorites[i], true
	}
	return models.City{}, false
}

// List returns a copy of the set in insertion order.
func (s *Service) List() []models.City {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneCities(s.favorites)
}

// Subscribe registers fn for change notifications and returns a function that
// unregisters it. fn runs synchronously on the mutating goroutine.
func (s *Service) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
		})
	}
}

// commit persists next and swaps it in. The in-memory set is untouched when
// the save fails. Callers hold s.mu.
func (s *Service) commit(ctx context.Context, next []models.City) error {
	if err := s.persister.Save(ctx, next); err != nil {
		s.logger.Error("favorites save failed", zap.Error(err))
		return fmt.Errorf("favorites: save: %w", err)
	}
	s.favorites = next
	observability.FavoritesCount.Set(float64(len(next)))
	return nil
}

func (s *Service) notify(c Change) {
	s.subsMu.Lock()
	fns := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}

func indexOf(cities []models.City, name string) int {
	for i, c := range cities {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func cloneCities(cities []models.City) []models.City {
	out := make([]models.City, len(cities))
	copy(out, cities)
	return out
}

// dedupe keeps the first occurrence of each name; persisted records written by
// older versions may carry duplicates.
func dedupe(cities []models.City) []models.City {
	out := make([]models.City, 0, len(cities))
	for _, c := range cities {
		if c.Name == "" || indexOf(out, c.Name) >= 0 {
			continue
		}
		out = append(out, c)
	}
	return out
}
