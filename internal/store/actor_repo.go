package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kapitalops/intakebot/internal/domain"
	"github.com/kapitalops/intakebot/pkg/database"
	"go.uber.org/zap"
)

// ActorRepository handles actor registry database operations
type ActorRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewActorRepository creates a new actor repository
func NewActorRepository(db *database.DB, logger *zap.Logger) *ActorRepository {
	return &ActorRepository{
		db:     db,
		logger: logger,
	}
}

// GetStatus returns the actor's status. An actor with no row is
// unregistered, never an error.
func (r *ActorRepository) GetStatus(ctx context.Context, actorID int64) (domain.ActorStatus, error) {
	var status string
	err := r.db.QueryRowContext(ctx,
		"SELECT status FROM actors WHERE id = ?", actorID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StatusUnregistered, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get actor status: %w", err)
	}
	return domain.ActorStatus(status), nil
}

// Get returns the actor row, or domain.ErrNotFound.
func (r *ActorRepository) Get(ctx context.Context, actorID int64) (*domain.Actor, error) {
	actor := &domain.Actor{}
	var status string
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, phone, status, registered_at FROM actors WHERE id = ?",
		actorID).Scan(&actor.ID, &actor.Name, &actor.Phone, &status, &actor.RegisteredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("actor %d: %w", actorID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get actor: %w", err)
	}
	actor.Status = domain.ActorStatus(status)
	return actor, nil
}

// GetName returns the actor's display name, empty when unknown.
func (r *ActorRepository) GetName(ctx context.Context, actorID int64) (string, error) {
	var name string
	err := r.db.QueryRowContext(ctx,
		"SELECT name FROM actors WHERE id = ?", actorID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get actor name: %w", err)
	}
	return name, nil
}

// Register creates the actor row in pending status. Re-registering an
// existing actor is a no-op, matching at-least-once channel delivery.
func (r *ActorRepository) Register(ctx context.Context, actorID int64, name, phone string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO actors (id, name, phone, status, registered_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`, actorID, name, phone, domain.StatusPending.String(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to register actor: %w", err)
	}
	r.logger.Info("Actor registered",
		zap.Int64("actor_id", actorID),
		zap.String("name", name))
	return nil
}

// SetStatus transitions the actor to a new status
func (r *ActorRepository) SetStatus(ctx context.Context, actorID int64, status domain.ActorStatus) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE actors SET status = ? WHERE id = ?", status.String(), actorID)
	if err != nil {
		return fmt.Errorf("failed to set actor status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("actor %d: %w", actorID, domain.ErrNotFound)
	}
	return nil
}

// ListByStatus returns every actor in the given status, oldest first
func (r *ActorRepository) ListByStatus(ctx context.Context, status domain.ActorStatus) ([]*domain.Actor, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, phone, status, registered_at
		FROM actors WHERE status = ? ORDER BY registered_at
	`, status.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list actors: %w", err)
	}
	defer rows.Close()

	var actors []*domain.Actor
	for rows.Next() {
		actor := &domain.Actor{}
		var st string
		if err := rows.Scan(&actor.ID, &actor.Name, &actor.Phone, &st, &actor.RegisteredAt); err != nil {
			return nil, err
		}
		actor.Status = domain.ActorStatus(st)
		actors = append(actors, actor)
	}
	return actors, rows.Err()
}
