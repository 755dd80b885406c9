package store

import (
	"context"
	"errors"
	"testing"

	"github.com/kapitalops/intakebot/internal/domain"
	"github.com/kapitalops/intakebot/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewInMemory(zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	migrator := database.NewMigrator(db, zap.NewNop())
	require.NoError(t, migrator.Run(Migrations()))
	return db
}

func TestCatalogCanonicalOrder(t *testing.T) {
	db := newTestDB(t)
	repo := NewCatalogRepository(db, zap.NewNop())
	ctx := context.Background()

	// Seed A, B, C out of physical order, then add D through the repo.
	for i, name := range []string{"C", "A", "B"} {
		pos := map[string]int{"A": 1, "B": 2, "C": 3}[name]
		_, err := db.Exec(
			"INSERT INTO catalog_entries (kind, name, position) VALUES (?, ?, ?)",
			domain.CatalogObjects.String(), name, pos)
		require.NoError(t, err, "insert %d", i)
	}
	require.NoError(t, repo.Add(ctx, domain.CatalogObjects, "D"))

	names, err := repo.List(ctx, domain.CatalogObjects)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C", "D"}, names)
}

func TestCatalogDuplicateAdd(t *testing.T) {
	db := newTestDB(t)
	repo := NewCatalogRepository(db, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, domain.CatalogPayMethods, "Bank"))
	err := repo.Add(ctx, domain.CatalogPayMethods, "Bank")
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	// The same name under a different kind is not a collision.
	assert.NoError(t, repo.Add(ctx, domain.CatalogObjects, "Bank"))
}

func TestCatalogRenameKeepsPosition(t *testing.T) {
	db := newTestDB(t)
	repo := NewCatalogRepository(db, zap.NewNop())
	ctx := context.Background()

	for _, name := range []string{"first", "second", "third"} {
		require.NoError(t, repo.Add(ctx, domain.CatalogCategories, name))
	}
	require.NoError(t, repo.Rename(ctx, domain.CatalogCategories, "second", "renamed"))

	names, err := repo.List(ctx, domain.CatalogCategories)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "renamed", "third"}, names)

	err = repo.Rename(ctx, domain.CatalogCategories, "third", "first")
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	err = repo.Rename(ctx, domain.CatalogCategories, "missing", "anything")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCatalogRemove(t *testing.T) {
	db := newTestDB(t)
	repo := NewCatalogRepository(db, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, domain.CatalogExpenseTypes, "fuel"))
	require.NoError(t, repo.Remove(ctx, domain.CatalogExpenseTypes, "fuel"))

	err := repo.Remove(ctx, domain.CatalogExpenseTypes, "fuel")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCatalogReseed(t *testing.T) {
	db := newTestDB(t)
	repo := NewCatalogRepository(db, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, domain.CatalogPayMethods, "Crypto"))
	require.NoError(t, repo.Reseed(ctx, domain.CatalogPayMethods))

	names, err := repo.List(ctx, domain.CatalogPayMethods)
	require.NoError(t, err)
	assert.Equal(t, SeedFor(domain.CatalogPayMethods), names)
}

func TestSeedIfEmptyLeavesShapedKinds(t *testing.T) {
	db := newTestDB(t)
	repo := NewCatalogRepository(db, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, domain.CatalogPayMethods, "OnlyOne"))
	require.NoError(t, repo.SeedIfEmpty(ctx))

	names, err := repo.List(ctx, domain.CatalogPayMethods)
	require.NoError(t, err)
	assert.Equal(t, []string{"OnlyOne"}, names)

	objects, err := repo.List(ctx, domain.CatalogObjects)
	require.NoError(t, err)
	assert.Equal(t, SeedFor(domain.CatalogObjects), objects)
}

func TestActorLifecycle(t *testing.T) {
	db := newTestDB(t)
	repo := NewActorRepository(db, zap.NewNop())
	ctx := context.Background()

	status, err := repo.GetStatus(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnregistered, status)

	require.NoError(t, repo.Register(ctx, 42, "Alisher", "+998901112233"))
	status, err = repo.GetStatus(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, status)

	// Redelivered registration does not clobber the row.
	require.NoError(t, repo.Register(ctx, 42, "someone else", ""))
	actor, err := repo.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "Alisher", actor.Name)

	require.NoError(t, repo.SetStatus(ctx, 42, domain.StatusApproved))
	approved, err := repo.ListByStatus(ctx, domain.StatusApproved)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, int64(42), approved[0].ID)

	err = repo.SetStatus(ctx, 99, domain.StatusDenied)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAdminSet(t *testing.T) {
	db := newTestDB(t)
	repo := NewAdminRepository(db, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Seed(ctx, []int64{1, 2}))
	// Seeding again is idempotent.
	require.NoError(t, repo.Seed(ctx, []int64{1, 2}))

	ok, err := repo.IsAdmin(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.IsAdmin(ctx, 3)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Add(ctx, 3, "New Admin", 1))
	err = repo.Add(ctx, 3, "New Admin", 2)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	err = repo.Remove(ctx, 3, 3)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	require.NoError(t, repo.Remove(ctx, 3, 1))
	err = repo.Remove(ctx, 3, 1)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	admins, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, admins, 2)
}
