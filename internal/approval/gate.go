// Package approval implements the generic two-party decision broker used
// for both actor onboarding and high-value transaction sign-off. A request
// is opened, fanned out to every current admin, and resolved exactly once:
// the first decision wins and every later decision is a no-op.
package approval

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kapitalops/intakebot/internal/channel"
	"github.com/kapitalops/intakebot/internal/domain"
	"github.com/kapitalops/intakebot/internal/intent"
	"go.uber.org/zap"
)

// RequestKind distinguishes what a pending approval decides
type RequestKind string

const (
	KindOnboarding  RequestKind = "onboarding"
	KindTransaction RequestKind = "transaction"
)

// Request is one pending approval: the frozen payload awaiting a decision
type Request struct {
	Key         string
	Kind        RequestKind
	RequesterID int64

	// Draft is the frozen transaction for KindTransaction requests
	Draft *domain.DraftTransaction

	CreatedAt time.Time

	// refs are the fan-out cards, kept so they can be rewritten with the
	// outcome once the request resolves. Guarded by the gate mutex: the
	// request is visible to Resolve while fan-out is still appending.
	refs []channel.MessageRef
}

// Status is the outcome class of a resolve call
type Status string

const (
	// Resolved means this caller's decision won
	Resolved Status = "resolved"

	// AlreadyResolved means another decision won earlier, the key is
	// unknown, or the request expired. Callers render it as a no-op.
	AlreadyResolved Status = "already_resolved"
)

// Outcome is the result of a resolve call
type Outcome struct {
	Status   Status
	Request  *Request
	Accepted bool
}

// RoleStore is the slice of the role store the gate needs. Admin
// membership is re-checked on every resolve, never cached from fan-out.
type RoleStore interface {
	IsAdmin(ctx context.Context, actorID int64) (bool, error)
	List(ctx context.Context) ([]*domain.Admin, error)
}

// Gate is the pending-request broker
type Gate struct {
	mu      sync.Mutex
	pending map[string]*Request

	roles     RoleStore
	messenger channel.Messenger
	ttl       time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewGate creates an approval gate. Requests unresolved for longer than
// ttl expire and fail closed.
func NewGate(roles RoleStore, messenger channel.Messenger, ttl time.Duration, logger *zap.Logger) *Gate {
	return &Gate{
		pending:   make(map[string]*Request),
		roles:     roles,
		messenger: messenger,
		ttl:       ttl,
		now:       time.Now,
		logger:    logger,
	}
}

// SetClock replaces the time source, used by tests
func (g *Gate) SetClock(now func() time.Time) {
	g.now = now
}

// Open registers the request and fans a decision card out to every current
// admin. One unreachable admin does not block delivery to the rest; if no
// admin was reachable at all the request stays pending and
// domain.ErrNoReachableAdmin is returned for the requester path.
func (g *Gate) Open(ctx context.Context, req *Request, text string) (string, error) {
	req.Key = uuid.NewString()
	req.CreatedAt = g.now()

	g.mu.Lock()
	g.sweepExpiredLocked()
	g.pending[req.Key] = req
	g.mu.Unlock()

	admins, err := g.roles.List(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list admins for fan-out: %w", err)
	}

	kb := channel.NewKeyboard(2,
		channel.Button{Label: "✅ Yes", Token: intent.Decision(req.Key, true).Encode()},
		channel.Button{Label: "❌ No", Token: intent.Decision(req.Key, false).Encode()},
	)

	// Independent sends: a blocked channel to one admin must not delay or
	// abort the others. refs is appended under the gate mutex because the
	// request is already resolvable while these sends run.
	var wg sync.WaitGroup
	reached := 0
	for _, admin := range admins {
		wg.Add(1)
		go func(adminID int64) {
			defer wg.Done()
			ref, err := g.messenger.SendText(ctx, adminID, text, kb)
			if err != nil {
				g.logger.Warn("Approval fan-out failed for admin",
					zap.String("key", req.Key),
					zap.Int64("admin_id", adminID),
					zap.Error(err))
				return
			}
			g.mu.Lock()
			reached++
			req.refs = append(req.refs, ref)
			g.mu.Unlock()
		}(admin.ActorID)
	}
	wg.Wait()

	g.logger.Info("Approval opened",
		zap.String("key", req.Key),
		zap.String("kind", string(req.Kind)),
		zap.Int64("requester_id", req.RequesterID),
		zap.Int("admins_reached", reached),
		zap.Int("admins_total", len(admins)))

	if reached == 0 {
		return req.Key, fmt.Errorf("approval %s: %w", req.Key, domain.ErrNoReachableAdmin)
	}
	return req.Key, nil
}

// Resolve applies an admin decision. The first caller for a key wins with
// Resolved; every later caller gets AlreadyResolved. Admin membership is
// checked at call time.
func (g *Gate) Resolve(ctx context.Context, key string, accept bool, actingAdminID int64) (*Outcome, error) {
	isAdmin, err := g.roles.IsAdmin(ctx, actingAdminID)
	if err != nil {
		return nil, fmt.Errorf("failed to check admin: %w", err)
	}
	if !isAdmin {
		return nil, fmt.Errorf("actor %d resolving approval: %w", actingAdminID, domain.ErrPermissionDenied)
	}

	g.mu.Lock()
	req, ok := g.pending[key]
	if ok && g.now().Sub(req.CreatedAt) > g.ttl {
		// Expired requests fail closed: no decision is ever derived from
		// silence, stale buttons become no-ops.
		delete(g.pending, key)
		ok = false
	}
	var refs []channel.MessageRef
	if ok {
		delete(g.pending, key)
		// Snapshot under the lock: fan-out may still be appending.
		refs = append(refs, req.refs...)
	}
	g.mu.Unlock()

	if !ok {
		return &Outcome{Status: AlreadyResolved}, nil
	}

	g.logger.Info("Approval resolved",
		zap.String("key", key),
		zap.Bool("accepted", accept),
		zap.Int64("admin_id", actingAdminID))

	// Best effort: replace every fan-out card with the outcome so the
	// other admins see the decision instead of stale buttons.
	resolution := "❌ Declined."
	if accept {
		resolution = "✅ Approved."
	}
	for _, ref := range refs {
		if err := g.messenger.EditMessage(ctx, ref, resolution, nil); err != nil {
			g.logger.Debug("Failed to update decision card",
				zap.String("key", key),
				zap.Error(err))
		}
	}

	return &Outcome{Status: Resolved, Request: req, Accepted: accept}, nil
}

// PendingCount returns the number of open requests
func (g *Gate) PendingCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

// SweepExpired drops expired requests, returning how many were removed
func (g *Gate) SweepExpired() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	before := len(g.pending)
	g.sweepExpiredLocked()
	return before - len(g.pending)
}

func (g *Gate) sweepExpiredLocked() {
	now := g.now()
	for key, req := range g.pending {
		if now.Sub(req.CreatedAt) > g.ttl {
			g.logger.Info("Approval expired", zap.String("key", key))
			delete(g.pending, key)
		}
	}
}
