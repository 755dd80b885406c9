package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kapitalops/intakebot/internal/domain"
	"github.com/kapitalops/intakebot/internal/intent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubCatalog struct{}

func (stubCatalog) List(_ context.Context, kind domain.CatalogKind) ([]string, error) {
	switch kind {
	case domain.CatalogObjects:
		return []string{"Main Site", "Warehouse"}, nil
	case domain.CatalogExpenseTypes:
		return []string{"Fuel", "Materials"}, nil
	case domain.CatalogPayMethods:
		return []string{"Cash", "Bank"}, nil
	}
	return nil, nil
}

func newTestManager() *Manager {
	return NewManager(stubCatalog{}, 30*time.Second, zap.NewNop())
}

func btn(t *testing.T, m *Manager, actorID int64, eventID string, in intent.Intent) (*Result, error) {
	t.Helper()
	return m.Advance(context.Background(), actorID, Input{EventID: eventID, Intent: &in})
}

func text(t *testing.T, m *Manager, actorID int64, eventID, body string) (*Result, error) {
	t.Helper()
	return m.Advance(context.Background(), actorID, Input{EventID: eventID, Text: body})
}

// runForm drives a full local-currency outflow to Terminal
func runForm(t *testing.T, m *Manager, actorID int64, prefix string) *domain.DraftTransaction {
	t.Helper()
	steps := []struct {
		id     string
		intent *intent.Intent
		text   string
	}{
		{"kind", ptr(intent.PickKind(domain.KindOutflow)), ""},
		{"object", ptr(intent.PickObject("Main Site")), ""},
		{"expense", ptr(intent.PickExpense("Fuel")), ""},
		{"currency", ptr(intent.PickCurrency(domain.CurrencyLocal)), ""},
		{"amount", nil, "250000"},
		{"payment", ptr(intent.PickPayment("Cash")), ""},
		{"comment", nil, "contract 17"},
		{"confirm", ptr(intent.Confirm(true)), ""},
	}
	var last *Result
	for _, step := range steps {
		res, err := m.Advance(context.Background(), actorID, Input{
			EventID: prefix + step.id,
			Intent:  step.intent,
			Text:    step.text,
		})
		require.NoError(t, err, "step %s", step.id)
		last = res
	}
	require.NotNil(t, last.Draft)
	return last.Draft
}

func ptr(i intent.Intent) *intent.Intent { return &i }

func TestFormCompletenessLocal(t *testing.T) {
	m := newTestManager()
	draft := runForm(t, m, 7, "a-")

	assert.True(t, draft.Complete())
	assert.Equal(t, domain.KindOutflow, draft.Kind)
	assert.Equal(t, domain.CurrencyLocal, draft.Currency)
	assert.Equal(t, 250000.0, draft.Amount)
	assert.Zero(t, draft.ExchangeRate, "local branch must not carry a rate")
	assert.Equal(t, "contract 17", draft.Comment)
	assert.Equal(t, int64(7), draft.ActorID)

	// Session restarts immediately at AwaitKind.
	assert.Equal(t, StepAwaitKind, m.session(7).Step())
}

func TestFormCompletenessForeign(t *testing.T) {
	m := newTestManager()
	actorID := int64(8)

	inputs := []Input{
		{EventID: "1", Intent: ptr(intent.PickKind(domain.KindOutflow))},
		{EventID: "2", Intent: ptr(intent.PickObject("Warehouse"))},
		{EventID: "3", Intent: ptr(intent.PickExpense("Materials"))},
		{EventID: "4", Intent: ptr(intent.PickCurrency(domain.CurrencyForeign))},
		{EventID: "5", Text: "100"},
		{EventID: "6", Text: "13000"},
		{EventID: "7", Intent: ptr(intent.PickPayment("Bank"))},
		{EventID: "8", Intent: ptr(intent.SkipComment())},
		{EventID: "9", Intent: ptr(intent.Confirm(true))},
	}
	var last *Result
	for _, in := range inputs {
		res, err := m.Advance(context.Background(), actorID, in)
		require.NoError(t, err)
		last = res
	}

	require.NotNil(t, last.Draft)
	assert.True(t, last.Draft.Complete())
	assert.Equal(t, 13000.0, last.Draft.ExchangeRate)
	assert.Equal(t, domain.CommentNone, last.Draft.Comment)
	assert.Equal(t, 1300000.0, last.Draft.LocalValue())
}

func TestInvalidAmountDoesNotAdvance(t *testing.T) {
	m := newTestManager()
	actorID := int64(9)

	_, err := btn(t, m, actorID, "1", intent.PickKind(domain.KindInflow))
	require.NoError(t, err)
	_, err = btn(t, m, actorID, "2", intent.PickObject("Main Site"))
	require.NoError(t, err)
	_, err = btn(t, m, actorID, "3", intent.PickExpense("Fuel"))
	require.NoError(t, err)
	_, err = btn(t, m, actorID, "4", intent.PickCurrency(domain.CurrencyLocal))
	require.NoError(t, err)

	for _, bad := range []string{"abc", "-5", "0", "", "12..3"} {
		res, err := text(t, m, actorID, "bad-"+bad, bad)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "input %q", bad)
		require.NotNil(t, res.Prompt, "invalid input must re-prompt")
		assert.Equal(t, StepAwaitAmount, m.session(actorID).Step())
		assert.Zero(t, m.session(actorID).draft.Amount)
	}

	res, err := text(t, m, actorID, "good", "1500,50")
	require.NoError(t, err)
	require.NotNil(t, res.Prompt)
	assert.Equal(t, 1500.5, m.session(actorID).draft.Amount)
}

func TestReplayedEventIsIgnored(t *testing.T) {
	m := newTestManager()
	actorID := int64(10)

	res, err := btn(t, m, actorID, "evt-1", intent.PickKind(domain.KindOutflow))
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	require.Equal(t, StepAwaitObject, m.session(actorID).Step())

	// Transport redelivery of the same event id.
	res, err = btn(t, m, actorID, "evt-1", intent.PickKind(domain.KindOutflow))
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Nil(t, res.Prompt)
	assert.Equal(t, StepAwaitObject, m.session(actorID).Step())
	assert.Equal(t, domain.KindOutflow, m.session(actorID).draft.Kind)
}

func TestReplayGuardExpires(t *testing.T) {
	m := newTestManager()
	now := time.Now()
	m.SetClock(func() time.Time { return now })
	actorID := int64(11)

	_, err := btn(t, m, actorID, "evt-1", intent.PickKind(domain.KindOutflow))
	require.NoError(t, err)

	// Past the TTL the id may be reused; the step no longer accepts the
	// stale intent, so it re-prompts rather than double-advancing.
	now = now.Add(time.Minute)
	res, err := btn(t, m, actorID, "evt-1", intent.PickKind(domain.KindOutflow))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.False(t, res.Replayed)
}

func TestCancelResetsDraft(t *testing.T) {
	m := newTestManager()
	actorID := int64(12)

	_, err := btn(t, m, actorID, "1", intent.PickKind(domain.KindOutflow))
	require.NoError(t, err)
	_, err = btn(t, m, actorID, "2", intent.PickObject("Main Site"))
	require.NoError(t, err)

	res, err := btn(t, m, actorID, "3", intent.Cancel())
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Equal(t, StepAwaitKind, m.session(actorID).Step())
	assert.Empty(t, m.session(actorID).draft.ObjectName)
}

func TestDeclineAtConfirmDiscards(t *testing.T) {
	m := newTestManager()
	actorID := int64(13)

	inputs := []Input{
		{EventID: "1", Intent: ptr(intent.PickKind(domain.KindOutflow))},
		{EventID: "2", Intent: ptr(intent.PickObject("Main Site"))},
		{EventID: "3", Intent: ptr(intent.PickExpense("Fuel"))},
		{EventID: "4", Intent: ptr(intent.PickCurrency(domain.CurrencyLocal))},
		{EventID: "5", Text: "100"},
		{EventID: "6", Intent: ptr(intent.PickPayment("Cash"))},
		{EventID: "7", Intent: ptr(intent.SkipComment())},
	}
	for _, in := range inputs {
		_, err := m.Advance(context.Background(), actorID, in)
		require.NoError(t, err)
	}

	res, err := btn(t, m, actorID, "8", intent.Confirm(false))
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Nil(t, res.Draft)
	assert.Equal(t, StepAwaitKind, m.session(actorID).Step())
}

func TestStalePickReprompts(t *testing.T) {
	m := newTestManager()
	actorID := int64(14)

	_, err := btn(t, m, actorID, "1", intent.PickKind(domain.KindOutflow))
	require.NoError(t, err)

	// Button for an object an admin removed in the meantime.
	res, err := btn(t, m, actorID, "2", intent.PickObject("Demolished Site"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	require.NotNil(t, res.Prompt)
	assert.Equal(t, StepAwaitObject, m.session(actorID).Step())
}

func TestSweepIdle(t *testing.T) {
	m := newTestManager()
	now := time.Now()
	m.SetClock(func() time.Time { return now })

	_, err := btn(t, m, 20, "1", intent.PickKind(domain.KindOutflow))
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = btn(t, m, 21, "1", intent.PickKind(domain.KindOutflow))
	require.NoError(t, err)

	removed := m.SweepIdle(time.Hour)
	assert.Equal(t, 1, removed)
}

func TestSweepIdleConcurrentWithAdvance(t *testing.T) {
	m := newTestManager()

	// Sweeps run on their own goroutine while the event path keeps the
	// session busy; an active session must never be reaped mid-flight.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			m.SweepIdle(time.Hour)
		}
	}()
	for i := 0; i < 50; i++ {
		_, _ = text(t, m, 9, fmt.Sprintf("evt-%d", i), "not a button")
		m.Reset(9)
	}
	<-done

	assert.Equal(t, 0, m.SweepIdle(time.Hour), "an active session must survive the sweeps")
	draft := runForm(t, m, 9, "after-sweep-")
	assert.Equal(t, float64(250000), draft.Amount)
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{100, "100"},
		{100.5, "100.5"},
		{12000000, "12000000"},
		{0.25, "0.25"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatNumber(tt.in))
	}
}
