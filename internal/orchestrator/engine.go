// Package orchestrator routes inbound channel events to the registration
// flow, the transaction form, the approval gate and the admin command
// surface. Events for one actor are strictly serialized; different actors
// proceed concurrently.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kapitalops/intakebot/internal/approval"
	"github.com/kapitalops/intakebot/internal/channel"
	"github.com/kapitalops/intakebot/internal/dedup"
	"github.com/kapitalops/intakebot/internal/domain"
	"github.com/kapitalops/intakebot/internal/intent"
	"github.com/kapitalops/intakebot/internal/session"
	"github.com/kapitalops/intakebot/internal/store"
)

// TabLister is the slice of the ledger the admin surface needs
type TabLister interface {
	ListTabs(ctx context.Context) ([]string, error)
}

// Deps collects the engine's collaborators
type Deps struct {
	Actors    *store.ActorRepository
	Admins    *store.AdminRepository
	Catalog   *store.CatalogRepository
	Sessions  *session.Manager
	Gate      *approval.Gate
	Cache     *dedup.Cache
	Tabs      TabLister
	Messenger channel.Messenger
	Logger    *zap.Logger
}

// Engine is the event router
type Engine struct {
	actors    *store.ActorRepository
	admins    *store.AdminRepository
	catalog   *store.CatalogRepository
	sessions  *session.Manager
	gate      *approval.Gate
	cache     *dedup.Cache
	tabs      TabLister
	messenger channel.Messenger
	threshold float64
	logger    *zap.Logger

	// mu guards the lock table and all scratch maps below; the scratch
	// maps are touched from every actor's goroutine
	mu         sync.Mutex
	actorLocks map[int64]*sync.Mutex

	// registration scratch state, keyed by actor
	pendingNames map[int64]string
	askedName    map[int64]bool

	// one-shot admin text inputs (add/rename value capture)
	adminInputs map[int64]*adminInput

	// drafts held back after a ledger outage, retried with /retry
	heldDrafts map[int64]*domain.DraftTransaction

	// last keyboard-bearing prompt per actor, stripped when superseded
	promptRefs map[int64]channel.MessageRef
}

// NewEngine creates the orchestrator. Outflows whose local-equivalent value
// reaches threshold are routed through the approval gate.
func NewEngine(deps Deps, threshold float64) *Engine {
	return &Engine{
		actors:       deps.Actors,
		admins:       deps.Admins,
		catalog:      deps.Catalog,
		sessions:     deps.Sessions,
		gate:         deps.Gate,
		cache:        deps.Cache,
		tabs:         deps.Tabs,
		messenger:    deps.Messenger,
		threshold:    threshold,
		logger:       deps.Logger,
		actorLocks:   make(map[int64]*sync.Mutex),
		pendingNames: make(map[int64]string),
		askedName:    make(map[int64]bool),
		adminInputs:  make(map[int64]*adminInput),
		heldDrafts:   make(map[int64]*domain.DraftTransaction),
		promptRefs:   make(map[int64]channel.MessageRef),
	}
}

func (e *Engine) actorLock(actorID int64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.actorLocks[actorID]
	if !ok {
		l = &sync.Mutex{}
		e.actorLocks[actorID] = l
	}
	return l
}

func (e *Engine) regState(actorID int64) (asked bool, name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.askedName[actorID], e.pendingNames[actorID]
}

func (e *Engine) setAskedName(actorID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.askedName[actorID] = true
}

func (e *Engine) setPendingName(actorID int64, name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pendingNames[actorID] = name
}

func (e *Engine) clearRegistration(actorID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.pendingNames, actorID)
	delete(e.askedName, actorID)
}

func (e *Engine) holdDraft(actorID int64, draft *domain.DraftTransaction) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.heldDrafts[actorID] = draft
}

func (e *Engine) heldDraft(actorID int64) (*domain.DraftTransaction, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, ok := e.heldDrafts[actorID]
	return d, ok
}

func (e *Engine) dropHeldDraft(actorID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.heldDrafts, actorID)
}

func (e *Engine) setAdminInput(actorID int64, in *adminInput) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.adminInputs[actorID] = in
}

// takeAdminInput consumes the actor's pending one-shot input, if any
func (e *Engine) takeAdminInput(actorID int64) (*adminInput, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	in, ok := e.adminInputs[actorID]
	if ok {
		delete(e.adminInputs, actorID)
	}
	return in, ok
}

// Dispatch processes one inbound event. Events for the same actor never
// overlap.
func (e *Engine) Dispatch(ctx context.Context, ev channel.Event) error {
	l := e.actorLock(ev.Actor())
	l.Lock()
	defer l.Unlock()

	var it *intent.Intent
	if press, ok := ev.(channel.ButtonPress); ok {
		decoded, err := intent.Decode(press.Token)
		if err != nil {
			e.logger.Warn("Dropping undecodable button payload",
				zap.Int64("actor_id", ev.Actor()),
				zap.Error(err))
			return nil
		}
		it = decoded
	}

	// Decision and admin buttons are routed before form state: they may
	// arrive while the admin is in the middle of their own form.
	if it != nil {
		switch it.Type {
		case intent.TypeDecision:
			return e.handleDecision(ctx, ev.Actor(), it)
		case intent.TypeCatalogRemove, intent.TypeCatalogRename,
			intent.TypeSetActorStatus, intent.TypeRevokeAdmin:
			return e.handleAdminIntent(ctx, ev.Actor(), it)
		}
	}

	status, err := e.actors.GetStatus(ctx, ev.Actor())
	if err != nil {
		return fmt.Errorf("failed to resolve actor status: %w", err)
	}

	switch status {
	case domain.StatusUnregistered:
		return e.register(ctx, ev)
	case domain.StatusPending:
		e.send(ctx, ev.Actor(), "Your registration is still being reviewed.", nil)
		return nil
	case domain.StatusDenied:
		e.send(ctx, ev.Actor(), "Access denied.", nil)
		return nil
	}

	if msg, ok := ev.(channel.TextMessage); ok {
		if isCommand(msg.Text) {
			return e.handleCommand(ctx, ev.Actor(), msg.Text)
		}
		if in, ok := e.takeAdminInput(ev.Actor()); ok {
			return e.applyAdminInput(ctx, ev.Actor(), in, msg.Text)
		}
	}

	return e.advanceForm(ctx, ev, it)
}

// register walks an unknown actor through name capture, phone capture and
// the onboarding approval.
func (e *Engine) register(ctx context.Context, ev channel.Event) error {
	actorID := ev.Actor()

	switch msg := ev.(type) {
	case channel.ContactShared:
		_, name := e.regState(actorID)
		if name == "" {
			e.setAskedName(actorID)
			e.send(ctx, actorID, "Welcome! Please send your full name first.", nil)
			return nil
		}
		if err := e.actors.Register(ctx, actorID, name, msg.PhoneNumber); err != nil {
			return fmt.Errorf("failed to register actor: %w", err)
		}
		e.clearRegistration(actorID)

		text := fmt.Sprintf("New registration: %s (%s, id %d). Approve access?",
			name, msg.PhoneNumber, actorID)
		_, err := e.gate.Open(ctx, &approval.Request{
			Kind:        approval.KindOnboarding,
			RequesterID: actorID,
		}, text)
		if err != nil && errors.Is(err, domain.ErrNoReachableAdmin) {
			e.logger.Warn("Onboarding opened with no reachable admin",
				zap.Int64("actor_id", actorID))
		} else if err != nil {
			return err
		}
		e.send(ctx, actorID, "Thanks! Your registration was sent for review.", nil)
		return nil

	case channel.TextMessage:
		asked, name := e.regState(actorID)
		if !asked {
			e.setAskedName(actorID)
			e.send(ctx, actorID, "Welcome! Please send your full name.", nil)
			return nil
		}
		if name == "" {
			e.setPendingName(actorID, msg.Text)
			e.send(ctx, actorID, "Now share your phone number to finish registration.", nil)
			return nil
		}
		e.send(ctx, actorID, "Please share your phone number to finish registration.", nil)
		return nil
	}

	e.send(ctx, actorID, "Please send your full name to register.", nil)
	return nil
}

// advanceForm feeds the event into the actor's form session and deals with
// a completed draft.
func (e *Engine) advanceForm(ctx context.Context, ev channel.Event, it *intent.Intent) error {
	in := session.Input{EventID: ev.ID(), Intent: it}
	if msg, ok := ev.(channel.TextMessage); ok {
		in.Text = msg.Text
	}

	res, err := e.sessions.Advance(ctx, ev.Actor(), in)
	if err != nil && !errors.Is(err, domain.ErrInvalidInput) {
		return err
	}
	if res.Replayed {
		return nil
	}
	if err != nil {
		e.logger.Debug("Form input rejected",
			zap.Int64("actor_id", ev.Actor()),
			zap.Error(err))
	}

	if res.Draft != nil {
		return e.routeDraft(ctx, ev.Actor(), res.Draft)
	}
	if res.Prompt != nil {
		e.send(ctx, ev.Actor(), res.Prompt.Text, res.Prompt.Keyboard)
	}
	return nil
}

// routeDraft applies the value gate to a completed draft: high-value
// outflows are frozen behind the approval gate, everything else commits
// directly.
func (e *Engine) routeDraft(ctx context.Context, actorID int64, draft *domain.DraftTransaction) error {
	if draft.Kind == domain.KindOutflow && draft.LocalValue() >= e.threshold {
		name, err := e.actors.GetName(ctx, actorID)
		if err != nil {
			return err
		}
		text := fmt.Sprintf("Approval needed from %s:\n%s", name, session.Summary(draft))
		_, err = e.gate.Open(ctx, &approval.Request{
			Kind:        approval.KindTransaction,
			RequesterID: actorID,
			Draft:       draft,
		}, text)
		if err != nil && errors.Is(err, domain.ErrNoReachableAdmin) {
			e.send(ctx, actorID, "No admin is reachable right now; your request stays queued.", nil)
			return nil
		}
		if err != nil {
			return err
		}
		e.send(ctx, actorID, "This amount needs admin approval. You will be notified.", nil)
		return nil
	}
	return e.commit(ctx, actorID, draft)
}

// commit pushes the draft through the dedup cache into the ledger and
// reports the outcome back to the actor.
func (e *Engine) commit(ctx context.Context, actorID int64, draft *domain.DraftTransaction) error {
	outcome, err := e.cache.TryCommit(ctx, draft)
	if err != nil {
		if errors.Is(err, domain.ErrSinkUnavailable) {
			e.holdDraft(actorID, draft)
			e.send(ctx, actorID, "The ledger is unavailable right now. Send /retry to try again.", nil)
			return nil
		}
		return err
	}

	switch outcome {
	case dedup.Suppressed:
		e.send(ctx, actorID, "An identical record was just saved; this one was ignored.", nil)
	case dedup.Committed:
		e.dropHeldDraft(actorID)
		e.send(ctx, actorID, "✅ Saved.", nil)
		e.notifyAdminsOfCommit(ctx, actorID, draft)
	}
	return nil
}

// notifyAdminsOfCommit sends a best-effort recap of a saved record to every
// admin, same fan-out discipline as the approval gate.
func (e *Engine) notifyAdminsOfCommit(ctx context.Context, actorID int64, draft *domain.DraftTransaction) {
	name, err := e.actors.GetName(ctx, actorID)
	if err != nil {
		e.logger.Warn("Failed to resolve actor name for notification", zap.Error(err))
		return
	}
	admins, err := e.admins.List(ctx)
	if err != nil {
		e.logger.Warn("Failed to list admins for notification", zap.Error(err))
		return
	}
	text := fmt.Sprintf("New record from %s:\n%s", name, session.Summary(draft))

	var wg sync.WaitGroup
	for _, admin := range admins {
		if admin.ActorID == actorID {
			continue
		}
		wg.Add(1)
		go func(adminID int64) {
			defer wg.Done()
			if _, err := e.messenger.SendText(ctx, adminID, text, nil); err != nil {
				e.logger.Warn("Commit notification failed",
					zap.Int64("admin_id", adminID),
					zap.Error(err))
			}
		}(admin.ActorID)
	}
	wg.Wait()
}

// handleDecision applies an admin's approve/deny button press
func (e *Engine) handleDecision(ctx context.Context, adminID int64, it *intent.Intent) error {
	outcome, err := e.gate.Resolve(ctx, it.ApprovalKey, it.Accept, adminID)
	if err != nil {
		if errors.Is(err, domain.ErrPermissionDenied) {
			e.send(ctx, adminID, "Only admins can decide this.", nil)
			return nil
		}
		return err
	}
	if outcome.Status == approval.AlreadyResolved {
		e.send(ctx, adminID, "Already handled.", nil)
		return nil
	}

	req := outcome.Request
	switch req.Kind {
	case approval.KindOnboarding:
		status := domain.StatusDenied
		reply := "Your registration was declined."
		if outcome.Accepted {
			status = domain.StatusApproved
			reply = "You are approved! Send /start to begin."
		}
		if err := e.actors.SetStatus(ctx, req.RequesterID, status); err != nil {
			return fmt.Errorf("failed to set actor status: %w", err)
		}
		e.send(ctx, req.RequesterID, reply, nil)
		e.send(ctx, adminID, "Decision recorded.", nil)
		return nil

	case approval.KindTransaction:
		if !outcome.Accepted {
			e.send(ctx, req.RequesterID, "Your transaction was declined by an admin.", nil)
			e.send(ctx, adminID, "Decision recorded.", nil)
			return nil
		}
		if err := e.commit(ctx, req.RequesterID, req.Draft); err != nil {
			return err
		}
		e.send(ctx, req.RequesterID, "Your transaction was approved.", nil)
		e.send(ctx, adminID, "Decision recorded.", nil)
		return nil
	}
	return nil
}

// send delivers best-effort; the channel being down for one actor must not
// fail the whole dispatch. A new keyboard supersedes the actor's previous
// prompt, whose buttons get stripped so only one live keyboard remains.
func (e *Engine) send(ctx context.Context, actorID int64, text string, kb *channel.Keyboard) {
	ref, err := e.messenger.SendText(ctx, actorID, text, kb)
	if err != nil {
		e.logger.Warn("Failed to send message",
			zap.Int64("actor_id", actorID),
			zap.Error(err))
		return
	}
	if kb == nil {
		return
	}
	prev := e.swapPromptRef(actorID, ref)
	if prev == "" {
		return
	}
	if err := e.messenger.EditKeyboard(ctx, prev, nil); err != nil {
		e.logger.Debug("Failed to strip superseded keyboard",
			zap.Int64("actor_id", actorID),
			zap.Error(err))
	}
}

// swapPromptRef records the actor's newest keyboard message and returns the
// one it replaces, if any.
func (e *Engine) swapPromptRef(actorID int64, ref channel.MessageRef) channel.MessageRef {
	e.mu.Lock()
	defer e.mu.Unlock()
	prev := e.promptRefs[actorID]
	e.promptRefs[actorID] = ref
	return prev
}
