package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kapitalops/intakebot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSink struct {
	appended int
	fail     bool
}

func (f *fakeSink) Append(context.Context, *domain.DraftTransaction) error {
	if f.fail {
		return errors.New("spreadsheet unreachable")
	}
	f.appended++
	return nil
}

func sampleDraft() *domain.DraftTransaction {
	return &domain.DraftTransaction{
		ActorID:       7,
		Kind:          domain.KindOutflow,
		ObjectName:    "Main Site",
		ExpenseType:   "Fuel",
		Currency:      domain.CurrencyLocal,
		Amount:        250000,
		PaymentMethod: "Cash",
		Comment:       "contract 17",
	}
}

func TestFingerprintDeterministic(t *testing.T) {
	a, b := sampleDraft(), sampleDraft()
	// Presentation-only fields do not change identity.
	b.PaymentMethod = "Bank"
	b.CreatedAt = time.Now()
	assert.Equal(t, Fingerprint(a), Fingerprint(b))

	c := sampleDraft()
	c.Amount = 250001
	assert.NotEqual(t, Fingerprint(a), Fingerprint(c))

	d := sampleDraft()
	d.ActorID = 8
	assert.NotEqual(t, Fingerprint(a), Fingerprint(d), "same record from another actor is distinct")
}

func TestSuppressionWindow(t *testing.T) {
	sink := &fakeSink{}
	cache := NewCache(sink, 30*time.Second, 300*time.Second, zap.NewNop())
	now := time.Now()
	cache.SetClock(func() time.Time { return now })
	ctx := context.Background()

	out, err := cache.TryCommit(ctx, sampleDraft())
	require.NoError(t, err)
	assert.Equal(t, Committed, out)
	assert.Equal(t, 1, sink.appended)

	// Double tap 5 seconds later.
	now = now.Add(5 * time.Second)
	out, err = cache.TryCommit(ctx, sampleDraft())
	require.NoError(t, err)
	assert.Equal(t, Suppressed, out)
	assert.Equal(t, 1, sink.appended)

	// Past the retention window the same record commits again.
	now = now.Add(301 * time.Second)
	out, err = cache.TryCommit(ctx, sampleDraft())
	require.NoError(t, err)
	assert.Equal(t, Committed, out)
	assert.Equal(t, 2, sink.appended)
}

func TestSinkFailureLeavesNoFingerprint(t *testing.T) {
	sink := &fakeSink{fail: true}
	cache := NewCache(sink, 30*time.Second, 300*time.Second, zap.NewNop())
	ctx := context.Background()

	_, err := cache.TryCommit(ctx, sampleDraft())
	assert.ErrorIs(t, err, domain.ErrSinkUnavailable)
	assert.Equal(t, 0, cache.Len())

	// Immediate identical retry succeeds once the sink recovers.
	sink.fail = false
	out, err := cache.TryCommit(ctx, sampleDraft())
	require.NoError(t, err)
	assert.Equal(t, Committed, out)
	assert.Equal(t, 1, sink.appended)
}

func TestRetentionEviction(t *testing.T) {
	sink := &fakeSink{}
	cache := NewCache(sink, 30*time.Second, 300*time.Second, zap.NewNop())
	now := time.Now()
	cache.SetClock(func() time.Time { return now })
	ctx := context.Background()

	first := sampleDraft()
	_, err := cache.TryCommit(ctx, first)
	require.NoError(t, err)

	now = now.Add(301 * time.Second)
	second := sampleDraft()
	second.Amount = 999
	_, err = cache.TryCommit(ctx, second)
	require.NoError(t, err)

	// The stale entry was swept before inserting the new one.
	assert.Equal(t, 1, cache.Len())
}
