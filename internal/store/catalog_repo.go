package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kapitalops/intakebot/internal/domain"
	"github.com/kapitalops/intakebot/pkg/database"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// CatalogRepository holds the admin-editable enumerations of valid
// categorical values. Listing follows the canonical order: seed entries
// first in seed order, later additions appended in insertion order. The
// order is materialized in the position column so it survives reload even
// though the backing store itself is unordered.
type CatalogRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *database.DB, logger *zap.Logger) *CatalogRepository {
	return &CatalogRepository{
		db:     db,
		logger: logger,
	}
}

// List returns all entries of a kind in canonical order
func (r *CatalogRepository) List(ctx context.Context, kind domain.CatalogKind) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT name FROM catalog_entries WHERE kind = ? ORDER BY position", kind.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog entries: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Add appends a new entry after all existing ones. A duplicate name within
// the kind returns domain.ErrAlreadyExists.
func (r *CatalogRepository) Add(ctx context.Context, kind domain.CatalogKind, name string) error {
	err := r.db.WithTransaction(func(tx *sql.Tx) error {
		var next int
		if err := tx.QueryRow(
			"SELECT COALESCE(MAX(position), 0) + 1 FROM catalog_entries WHERE kind = ?",
			kind.String()).Scan(&next); err != nil {
			return fmt.Errorf("failed to compute position: %w", err)
		}
		_, err := tx.Exec(
			"INSERT INTO catalog_entries (kind, name, position) VALUES (?, ?, ?)",
			kind.String(), name, next)
		return err
	})
	if isUniqueViolation(err) {
		return fmt.Errorf("catalog %s %q: %w", kind, name, domain.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to add catalog entry: %w", err)
	}
	return nil
}

// Remove deletes an entry. Positions of the remaining entries are left
// untouched so the canonical order is preserved.
func (r *CatalogRepository) Remove(ctx context.Context, kind domain.CatalogKind, name string) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM catalog_entries WHERE kind = ? AND name = ?", kind.String(), name)
	if err != nil {
		return fmt.Errorf("failed to remove catalog entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("catalog %s %q: %w", kind, name, domain.ErrNotFound)
	}
	return nil
}

// Rename changes an entry name in place, keeping its position. A collision
// with an existing name returns domain.ErrAlreadyExists.
func (r *CatalogRepository) Rename(ctx context.Context, kind domain.CatalogKind, oldName, newName string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE catalog_entries SET name = ? WHERE kind = ? AND name = ?",
		newName, kind.String(), oldName)
	if isUniqueViolation(err) {
		return fmt.Errorf("catalog %s %q: %w", kind, newName, domain.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to rename catalog entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("catalog %s %q: %w", kind, oldName, domain.ErrNotFound)
	}
	return nil
}

// Reseed replaces all entries of a kind with its fixed seed list.
func (r *CatalogRepository) Reseed(ctx context.Context, kind domain.CatalogKind) error {
	seed := SeedFor(kind)
	err := r.db.WithTransaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM catalog_entries WHERE kind = ?", kind.String()); err != nil {
			return err
		}
		for i, name := range seed {
			if _, err := tx.Exec(
				"INSERT INTO catalog_entries (kind, name, position) VALUES (?, ?, ?)",
				kind.String(), name, i+1); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to reseed catalog %s: %w", kind, err)
	}
	r.logger.Info("Catalog reseeded",
		zap.String("kind", kind.String()),
		zap.Int("entries", len(seed)))
	return nil
}

// SeedIfEmpty loads the fixed seed list for every kind that has no rows yet.
// Called once at bootstrap; a populated kind is left as the admins shaped it.
func (r *CatalogRepository) SeedIfEmpty(ctx context.Context) error {
	for _, kind := range []domain.CatalogKind{
		domain.CatalogObjects,
		domain.CatalogExpenseTypes,
		domain.CatalogPayMethods,
		domain.CatalogCategories,
	} {
		var count int
		if err := r.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM catalog_entries WHERE kind = ?", kind.String()).Scan(&count); err != nil {
			return fmt.Errorf("failed to count catalog %s: %w", kind, err)
		}
		if count > 0 {
			continue
		}
		if err := r.Reseed(ctx, kind); err != nil {
			return err
		}
	}
	return nil
}

// isUniqueViolation reports whether err is a sqlite unique constraint failure
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
