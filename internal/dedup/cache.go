// Package dedup guards the boundary to the external ledger: semantically
// identical submissions within a short window collapse to a single write,
// so double confirmation taps, channel redelivery and approval
// re-processing never produce duplicate ledger rows.
package dedup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kapitalops/intakebot/internal/domain"
	"go.uber.org/zap"
)

// Sink is the external ledger boundary the cache protects
type Sink interface {
	Append(ctx context.Context, draft *domain.DraftTransaction) error
}

// Outcome is the result class of a commit attempt
type Outcome string

const (
	// Committed means the sink accepted the write
	Committed Outcome = "committed"

	// Suppressed means an identical accepted commit is inside the
	// suppression window; the sink was not touched
	Suppressed Outcome = "suppressed"
)

// Cache is the idempotent-commit layer in front of the ledger sink
type Cache struct {
	mu      sync.Mutex
	entries map[string]time.Time

	sink        Sink
	suppression time.Duration
	retention   time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

// NewCache creates a dedup cache. suppression bounds how close two
// identical commits may land; retention bounds how long any fingerprint
// is remembered.
func NewCache(sink Sink, suppression, retention time.Duration, logger *zap.Logger) *Cache {
	return &Cache{
		entries:     make(map[string]time.Time),
		sink:        sink,
		suppression: suppression,
		retention:   retention,
		now:         time.Now,
		logger:      logger,
	}
}

// SetClock replaces the time source, used by tests
func (c *Cache) SetClock(now func() time.Time) {
	c.now = now
}

// TryCommit forwards the draft to the ledger sink unless an identical
// accepted commit happened inside the suppression window. The fingerprint
// is recorded only after the sink accepts the write, so a failed write
// never suppresses a legitimate retry. The whole attempt is serialized
// through one mutex; submission volume is tiny, so holding it across the
// sink call keeps insert-with-eviction trivially atomic.
func (c *Cache) TryCommit(ctx context.Context, draft *domain.DraftTransaction) (Outcome, error) {
	fp := Fingerprint(draft)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if accepted, ok := c.entries[fp]; ok && now.Sub(accepted) < c.suppression {
		c.logger.Info("Duplicate submission suppressed",
			zap.Int64("actor_id", draft.ActorID),
			zap.String("fingerprint", fp[:12]))
		return Suppressed, nil
	}

	// O(n) sweep; expected cardinality is a handful of in-flight
	// submissions.
	for key, accepted := range c.entries {
		if now.Sub(accepted) > c.retention {
			delete(c.entries, key)
		}
	}

	if err := c.sink.Append(ctx, draft); err != nil {
		c.logger.Error("Ledger sink rejected write",
			zap.Int64("actor_id", draft.ActorID),
			zap.Error(err))
		return "", fmt.Errorf("%w: %v", domain.ErrSinkUnavailable, err)
	}

	c.entries[fp] = now
	return Committed, nil
}

// Len returns the number of live fingerprints
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
