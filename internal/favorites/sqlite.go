package favorites

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

const createFavoritesSQL = `
CREATE TABLE IF NOT EXISTS favorites (
	record TEXT NOT NULL,
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	latitude REAL NOT NULL,
	longitude REAL NOT NULL,
	PRIMARY KEY (record, name)
);
`

// SQLitePersister stores one row per favorite, ordered by position.
type SQLitePersister struct {
	db     *sql.DB
	record string
}

// NewSQLitePersister opens the database at dbPath and creates the table if needed.
func NewSQLitePersister(dbPath, record string) (*SQLitePersister, error) {
	if record == "" {
		record = DefaultRecord
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("favorites: open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("favorites: set WAL mode: %w", err)
	}
	if _, err := db.Exec(createFavoritesSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("favorites: create tables: %w", err)
	}
	return &SQLitePersister{db: db, record: record}, nil
}

func (p *SQLitePersister) Load(ctx context.Context) ([]models.City, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT name, latitude, longitude FROM favorites WHERE record = ? ORDER BY position`, p.record)
	if err != nil {
		return nil, fmt.Errorf("favorites: query: %w", err)
	}
	defer rows.Close()

	var out []models.City
	for rows.Next() {
		var c models.City
		if err := rows.Scan(&c.Name, &c.Coordinates.Latitude, &c.Coordinates.Longitude); err != nil {
			return nil, fmt.Errorf("favorites: scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("favorites: rows: %w", err)
	}
	return out, nil
}

// Save replaces the record's rows in one transaction.
func (p *SQLitePersister) Save(ctx context.Context, cities []models.City) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("favorites: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM favorites WHERE record = ?`, p.record); err != nil {
		return fmt.Errorf("favorites: clear record: %w", err)
	}
	for i, c := range cities {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO favorites (record, position, name, latitude, longitude) VALUES (?, ?, ?, ?, ?)`,
			p.record, i, c.Name, c.Coordinates.Latitude, c.Coordinates.Longitude,
		); err != nil {
			return fmt.Errorf("favorites: insert %s: %w", c.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("favorites: commit: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (p *SQLitePersister) Close() error {
	return p.db.Close()
}
