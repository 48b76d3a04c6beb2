package favorites

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// FilePersister stores records in a JSON document mapping record name to the
// ordered city list. Writes replace the file atomically.
type FilePersister struct {
	path   string
	record string
}

func NewFilePersister(path, record string) (*FilePersister, error) {
	if path == "" {
		return nil, errors.New("favorites: file path is required")
	}
	if record == "" {
		record = DefaultRecord
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("favorites: create directory: %w", err)
	}
	return &FilePersister{path: path, record: record}, nil
}

func (f *FilePersister) Load(ctx context.Context) ([]models.City, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := f.read()
	if err != nil {
		return nil, err
	}
	return doc[f.record], nil
}

func (f *FilePersister) Save(ctx context.Context, cities []models.City) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := f.read()
	if err != nil {
		return err
	}
	doc[f.record] = cloneCities(cities)

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("favorites: encode: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".favorites-*.json")
	if err != nil {
		return fmt.Errorf("favorites: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("favorites: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("favorites: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("favorites: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("favorites: replace %s: %w", f.path, err)
	}
	return nil
}

func (f *FilePersister) read() (map[string][]models.City, error) {
	doc := make(map[string][]models.City)
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		return nil, fmt.Errorf("favorites: read %s: %w", f.path, err)
	}
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("favorites: parse %s: %w", f.path, err)
	}
	return doc, nil
}
