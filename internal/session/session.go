package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kapitalops/intakebot/internal/domain"
	"github.com/kapitalops/intakebot/internal/intent"
	"go.uber.org/zap"
)

// CatalogLister is the slice of the catalog store the form needs
type CatalogLister interface {
	List(ctx context.Context, kind domain.CatalogKind) ([]string, error)
}

// Input is one inbound form event, already routed to this actor's session.
// Intent is the decoded button payload, nil for plain text.
type Input struct {
	EventID string
	Text    string
	Intent  *intent.Intent
}

// Result is the outcome of advancing a session
type Result struct {
	// Prompt is the next message to render, nil when nothing should be sent
	Prompt *Prompt

	// Draft is set when the form reached Terminal with a complete record
	Draft *domain.DraftTransaction

	// Cancelled is set when the actor abandoned the flow
	Cancelled bool

	// Replayed is set when the event id was already consumed; the caller
	// must render nothing
	Replayed bool
}

// Session is the per-actor form state: current step, accumulating draft,
// activity marker and the consumed-event set backing the replay guard.
// mu orders the event path against the idle sweeper, which runs on its own
// goroutine and reads lastActivity while an advance may be in flight.
type Session struct {
	mu           sync.Mutex
	actorID      int64
	machine      *Machine
	draft        domain.DraftTransaction
	lastActivity time.Time
	seen         map[string]time.Time
}

// Step returns the session's current form step
func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Step()
}

// Manager owns all live sessions, exactly one per actor. The orchestrator
// serializes events per actor, so a session is never advanced concurrently;
// the manager's lock guards the session map and each session's own lock
// orders its event path against the idle sweeper.
type Manager struct {
	mu       sync.Mutex
	sessions map[int64]*Session

	table     transitionTable
	catalog   CatalogLister
	logger    *zap.Logger
	now       func() time.Time
	replayTTL time.Duration
}

// NewManager creates a session manager
func NewManager(catalog CatalogLister, replayTTL time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		sessions:  make(map[int64]*Session),
		table:     formTable(),
		catalog:   catalog,
		logger:    logger,
		now:       time.Now,
		replayTTL: replayTTL,
	}
}

// SetClock replaces the time source, used by tests
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

func (m *Manager) session(actorID int64) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[actorID]
	if !ok {
		s = &Session{
			actorID: actorID,
			machine: newMachine(m.table),
			draft:   domain.DraftTransaction{ActorID: actorID},
			seen:    make(map[string]time.Time),
		}
		m.sessions[actorID] = s
	}
	return s
}

// StartFlow resets the actor's session and returns the opening prompt.
// Starting a new top-level flow always replaces the previous one.
func (m *Manager) StartFlow(ctx context.Context, actorID int64) (*Prompt, error) {
	s := m.session(actorID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machine.Reset()
	s.draft = domain.DraftTransaction{ActorID: actorID}
	s.lastActivity = m.now()
	return m.promptFor(ctx, StepAwaitKind, &s.draft)
}

// Reset discards the actor's in-progress draft without producing a prompt
func (m *Manager) Reset(actorID int64) {
	s := m.session(actorID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machine.Reset()
	s.draft = domain.DraftTransaction{ActorID: actorID}
	s.lastActivity = m.now()
}

// SweepIdle drops sessions with no activity for longer than maxIdle. Each
// session's lock is taken for the activity read, so an advance in flight
// refreshes lastActivity before the session can be judged idle.
func (m *Manager) SweepIdle(maxIdle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxIdle)
	removed := 0
	for id, s := range m.sessions {
		s.mu.Lock()
		idle := s.lastActivity.Before(cutoff)
		s.mu.Unlock()
		if idle {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// consumed applies the replay guard: a previously seen event id returns
// true, a fresh one is recorded. Stale entries are swept opportunistically
// with the same TTL discipline as the dedup cache.
func (s *Session) consumed(eventID string, now time.Time, ttl time.Duration) bool {
	if eventID == "" {
		return false
	}
	for id, seenAt := range s.seen {
		if now.Sub(seenAt) > ttl {
			delete(s.seen, id)
		}
	}
	if _, ok := s.seen[eventID]; ok {
		return true
	}
	s.seen[eventID] = now
	return false
}

// Advance feeds one event into the actor's session. On invalid input the
// draft is untouched and the returned Result re-prompts the current step,
// alongside a domain.ErrInvalidInput error.
func (m *Manager) Advance(ctx context.Context, actorID int64, in Input) (*Result, error) {
	s := m.session(actorID)
	s.mu.Lock()
	defer s.mu.Unlock()
	now := m.now()

	if s.consumed(in.EventID, now, m.replayTTL) {
		m.logger.Debug("Replayed event ignored",
			zap.Int64("actor_id", actorID),
			zap.String("event_id", in.EventID))
		return &Result{Replayed: true}, nil
	}
	s.lastActivity = now

	if in.Intent != nil && in.Intent.Type == intent.TypeCancel {
		return m.cancel(ctx, s)
	}

	step := s.machine.Step()
	switch step {
	case StepAwaitKind:
		return m.advanceKind(ctx, s, in)
	case StepAwaitObject:
		return m.advancePick(ctx, s, in, intent.TypePickObject, domain.CatalogObjects, TriggerPickObject)
	case StepAwaitExpenseType:
		return m.advancePick(ctx, s, in, intent.TypePickExpense, domain.CatalogExpenseTypes, TriggerPickExpense)
	case StepAwaitCurrency:
		return m.advanceCurrency(ctx, s, in)
	case StepAwaitAmount:
		return m.advanceAmount(ctx, s, in)
	case StepAwaitExchangeRate:
		return m.advanceRate(ctx, s, in)
	case StepAwaitPaymentMethod:
		return m.advancePick(ctx, s, in, intent.TypePickPayment, domain.CatalogPayMethods, TriggerPickPayment)
	case StepAwaitComment:
		return m.advanceComment(ctx, s, in)
	case StepAwaitConfirm:
		return m.advanceConfirm(ctx, s, in)
	}
	return m.reject(ctx, s, "unexpected step %s", step)
}

func (m *Manager) cancel(ctx context.Context, s *Session) (*Result, error) {
	if err := s.machine.Fire(TriggerCancel); err != nil {
		return nil, err
	}
	s.draft = domain.DraftTransaction{ActorID: s.actorID}
	prompt, err := m.promptFor(ctx, StepAwaitKind, &s.draft)
	if err != nil {
		return nil, err
	}
	return &Result{Prompt: prompt, Cancelled: true}, nil
}

// reject re-prompts the current step without mutating the draft
func (m *Manager) reject(ctx context.Context, s *Session, format string, args ...interface{}) (*Result, error) {
	prompt, perr := m.promptFor(ctx, s.machine.Step(), &s.draft)
	if perr != nil {
		return nil, perr
	}
	return &Result{Prompt: prompt},
		fmt.Errorf(format+": %w", append(args, domain.ErrInvalidInput)...)
}

func (m *Manager) advanceKind(ctx context.Context, s *Session, in Input) (*Result, error) {
	if in.Intent == nil || in.Intent.Type != intent.TypePickKind {
		return m.reject(ctx, s, "expected kind selection")
	}
	kind := domain.Kind(in.Intent.Value)
	if kind != domain.KindInflow && kind != domain.KindOutflow {
		return m.reject(ctx, s, "unknown kind %q", in.Intent.Value)
	}
	if err := s.machine.Fire(TriggerPickKind); err != nil {
		return nil, err
	}
	s.draft.Kind = kind
	return m.promptResult(ctx, s)
}

// advancePick handles the three catalog-backed selection steps. The picked
// value is validated against the live catalog so a stale button for a
// removed entry re-prompts instead of storing a dead name.
func (m *Manager) advancePick(ctx context.Context, s *Session, in Input, want intent.Type, kind domain.CatalogKind, trigger Trigger) (*Result, error) {
	if in.Intent == nil || in.Intent.Type != want {
		return m.reject(ctx, s, "expected %s selection", kind)
	}
	names, err := m.catalog.List(ctx, kind)
	if err != nil {
		return nil, err
	}
	found := false
	for _, name := range names {
		if name == in.Intent.Value {
			found = true
			break
		}
	}
	if !found {
		return m.reject(ctx, s, "%s %q no longer exists", kind, in.Intent.Value)
	}
	if err := s.machine.Fire(trigger); err != nil {
		return nil, err
	}
	switch kind {
	case domain.CatalogObjects:
		s.draft.ObjectName = in.Intent.Value
	case domain.CatalogExpenseTypes:
		s.draft.ExpenseType = in.Intent.Value
	case domain.CatalogPayMethods:
		s.draft.PaymentMethod = in.Intent.Value
	}
	return m.promptResult(ctx, s)
}

func (m *Manager) advanceCurrency(ctx context.Context, s *Session, in Input) (*Result, error) {
	if in.Intent == nil || in.Intent.Type != intent.TypePickCurrency {
		return m.reject(ctx, s, "expected currency selection")
	}
	currency := domain.Currency(in.Intent.Value)
	if currency != domain.CurrencyLocal && currency != domain.CurrencyForeign {
		return m.reject(ctx, s, "unknown currency %q", in.Intent.Value)
	}
	if err := s.machine.Fire(TriggerPickCurrency); err != nil {
		return nil, err
	}
	s.draft.Currency = currency
	return m.promptResult(ctx, s)
}

func (m *Manager) advanceAmount(ctx context.Context, s *Session, in Input) (*Result, error) {
	amount, ok := parseDecimal(in.Text)
	if !ok {
		return m.reject(ctx, s, "amount %q", in.Text)
	}
	trigger := TriggerAmountLocal
	if s.draft.Currency == domain.CurrencyForeign {
		trigger = TriggerAmountForeign
	}
	if err := s.machine.Fire(trigger); err != nil {
		return nil, err
	}
	s.draft.Amount = amount
	return m.promptResult(ctx, s)
}

func (m *Manager) advanceRate(ctx context.Context, s *Session, in Input) (*Result, error) {
	rate, ok := parseDecimal(in.Text)
	if !ok {
		return m.reject(ctx, s, "exchange rate %q", in.Text)
	}
	if err := s.machine.Fire(TriggerEnterRate); err != nil {
		return nil, err
	}
	s.draft.ExchangeRate = rate
	return m.promptResult(ctx, s)
}

func (m *Manager) advanceComment(ctx context.Context, s *Session, in Input) (*Result, error) {
	comment := strings.TrimSpace(in.Text)
	if in.Intent != nil && in.Intent.Type == intent.TypeSkipComment {
		comment = domain.CommentNone
	}
	if comment == "" {
		return m.reject(ctx, s, "empty comment")
	}
	if err := s.machine.Fire(TriggerEnterComment); err != nil {
		return nil, err
	}
	s.draft.Comment = comment
	s.draft.CreatedAt = m.now()
	return m.promptResult(ctx, s)
}

func (m *Manager) advanceConfirm(ctx context.Context, s *Session, in Input) (*Result, error) {
	if in.Intent == nil || in.Intent.Type != intent.TypeConfirm {
		return m.reject(ctx, s, "expected confirmation")
	}
	if !in.Intent.Accept {
		if err := s.machine.Fire(TriggerDecline); err != nil {
			return nil, err
		}
		s.draft = domain.DraftTransaction{ActorID: s.actorID}
		prompt, err := m.promptFor(ctx, StepAwaitKind, &s.draft)
		if err != nil {
			return nil, err
		}
		return &Result{Prompt: prompt, Cancelled: true}, nil
	}

	if err := s.machine.Fire(TriggerConfirm); err != nil {
		return nil, err
	}
	s.draft.CreatedAt = m.now()
	done := s.draft

	// Terminal hands the draft off and the session immediately restarts at
	// AwaitKind; the actor may begin another transaction right away.
	s.machine.Reset()
	s.draft = domain.DraftTransaction{ActorID: s.actorID}

	prompt, err := m.promptFor(ctx, StepAwaitKind, &s.draft)
	if err != nil {
		return nil, err
	}
	return &Result{Prompt: prompt, Draft: &done}, nil
}

func (m *Manager) promptResult(ctx context.Context, s *Session) (*Result, error) {
	prompt, err := m.promptFor(ctx, s.machine.Step(), &s.draft)
	if err != nil {
		return nil, err
	}
	return &Result{Prompt: prompt}, nil
}

// parseDecimal accepts a positive decimal number, tolerating a comma as
// the decimal separator.
func parseDecimal(text string) (float64, bool) {
	text = strings.TrimSpace(strings.ReplaceAll(text, ",", "."))
	if text == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
