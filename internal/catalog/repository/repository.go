package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/firstcodebyte/artvista-canvas-commerce/internal/catalog"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "modernc.org/sqlite"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// one connection, so ":memory:" is the same database for every query
	db.SetMaxOpenConns(1)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (r *Repository) ListArtworks(ctx context.Context) ([]*catalog.Artwork, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, artist_name, price, discount, image_url, sold
		FROM artworks
		ORDER BY CAST(id AS INTEGER)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query artworks: %w", err)
	}
	defer rows.Close()

	var artworks []*catalog.Artwork
	for rows.Next() {
		a, err := scanArtwork(rows)
		if err != nil {
			return nil, err
		}
		artworks = append(artworks, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return artworks, nil
}

func (r *Repository) GetArtwork(ctx context.Context, id string) (*catalog.Artwork, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, title, artist_name, price, discount, image_url, sold
		FROM artworks
		WHERE id = ?
	`, id)

	a, err := scanArtwork(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.ErrArtworkNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArtwork(s scanner) (*catalog.Artwork, error) {
	var (
		a        catalog.Artwork
		discount sql.NullInt64
	)
	if err := s.Scan(&a.ID, &a.Title, &a.Artist, &a.Price, &discount, &a.Image, &a.Sold); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan artwork: %w", err)
	}
	if discount.Valid {
		d := discount.Int64
		a.Discount = &d
	}
	return &a, nil
}
