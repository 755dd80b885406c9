package store

import (
	"context"
	"fmt"
	"time"

	"github.com/kapitalops/intakebot/internal/domain"
	"github.com/kapitalops/intakebot/pkg/database"
	"go.uber.org/zap"
)

// AdminRepository handles the dynamic admin set. The set is seeded once at
// bootstrap from configuration; every later read and write goes through
// this repository, never a side list.
type AdminRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewAdminRepository creates a new admin repository
func NewAdminRepository(db *database.DB, logger *zap.Logger) *AdminRepository {
	return &AdminRepository{
		db:     db,
		logger: logger,
	}
}

// IsAdmin reports whether the actor currently holds admin rights
func (r *AdminRepository) IsAdmin(ctx context.Context, actorID int64) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM admins WHERE actor_id = ?", actorID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check admin: %w", err)
	}
	return count > 0, nil
}

// Add grants admin rights. A duplicate grant returns domain.ErrAlreadyExists.
func (r *AdminRepository) Add(ctx context.Context, actorID int64, name string, grantedBy int64) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO admins (actor_id, name, granted_by, granted_at) VALUES (?, ?, ?, ?)",
		actorID, name, grantedBy, time.Now().UTC())
	if isUniqueViolation(err) {
		return fmt.Errorf("admin %d: %w", actorID, domain.ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to add admin: %w", err)
	}
	r.logger.Info("Admin granted",
		zap.Int64("actor_id", actorID),
		zap.Int64("granted_by", grantedBy))
	return nil
}

// Remove revokes admin rights. An admin cannot revoke itself.
func (r *AdminRepository) Remove(ctx context.Context, actorID, removedBy int64) error {
	if actorID == removedBy {
		return fmt.Errorf("admin cannot revoke itself: %w", domain.ErrPermissionDenied)
	}
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM admins WHERE actor_id = ?", actorID)
	if err != nil {
		return fmt.Errorf("failed to remove admin: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("admin %d: %w", actorID, domain.ErrNotFound)
	}
	r.logger.Info("Admin revoked",
		zap.Int64("actor_id", actorID),
		zap.Int64("removed_by", removedBy))
	return nil
}

// List returns all admins in grant order
func (r *AdminRepository) List(ctx context.Context) ([]*domain.Admin, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT actor_id, name, granted_by, granted_at FROM admins ORDER BY granted_at")
	if err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	defer rows.Close()

	var admins []*domain.Admin
	for rows.Next() {
		admin := &domain.Admin{}
		if err := rows.Scan(&admin.ActorID, &admin.Name, &admin.GrantedBy, &admin.GrantedAt); err != nil {
			return nil, err
		}
		admins = append(admins, admin)
	}
	return admins, rows.Err()
}

// Seed inserts the fixed admin ids from configuration, skipping ones
// already present. granted_by 0 marks a bootstrap grant.
func (r *AdminRepository) Seed(ctx context.Context, actorIDs []int64) error {
	for _, id := range actorIDs {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO admins (actor_id, name, granted_by, granted_at)
			VALUES (?, '', 0, ?)
			ON CONFLICT (actor_id) DO NOTHING
		`, id, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to seed admin %d: %w", id, err)
		}
	}
	return nil
}
