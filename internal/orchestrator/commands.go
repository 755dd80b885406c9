package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kapitalops/intakebot/internal/channel"
	"github.com/kapitalops/intakebot/internal/domain"
	"github.com/kapitalops/intakebot/internal/intent"
)

// adminInput is a one-shot pending text capture for an admin command that
// needs a free-form value (catalog add or rename target name).
type adminInput struct {
	op     string // "add" or "rename"
	kind   domain.CatalogKind
	target string // old name for renames
}

func isCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "/")
}

// catalogCommandKinds maps command suffixes onto catalog kinds
var catalogCommandKinds = map[string]domain.CatalogKind{
	"object":   domain.CatalogObjects,
	"expense":  domain.CatalogExpenseTypes,
	"payment":  domain.CatalogPayMethods,
	"category": domain.CatalogCategories,
}

// handleCommand routes a slash command. /start and /cancel work for any
// approved actor; everything else requires admin rights. A command always
// resets the sender's form first.
func (e *Engine) handleCommand(ctx context.Context, actorID int64, text string) error {
	fields := strings.Fields(strings.TrimSpace(text))
	cmd := fields[0]
	args := fields[1:]

	e.sessions.Reset(actorID)
	e.takeAdminInput(actorID)

	switch cmd {
	case "/start", "/cancel":
		prompt, err := e.sessions.StartFlow(ctx, actorID)
		if err != nil {
			return err
		}
		e.send(ctx, actorID, prompt.Text, prompt.Keyboard)
		return nil

	case "/retry":
		draft, ok := e.heldDraft(actorID)
		if !ok {
			e.send(ctx, actorID, "Nothing to retry.", nil)
			return nil
		}
		return e.commit(ctx, actorID, draft)
	}

	isAdmin, err := e.admins.IsAdmin(ctx, actorID)
	if err != nil {
		return fmt.Errorf("failed to check admin: %w", err)
	}
	if !isAdmin {
		e.send(ctx, actorID, "Unknown command. Send /start to begin.", nil)
		return nil
	}

	if op, kind, ok := parseCatalogCommand(cmd); ok {
		return e.handleCatalogCommand(ctx, actorID, op, kind)
	}

	switch cmd {
	case "/admins":
		return e.listAdmins(ctx, actorID)
	case "/grant_admin":
		return e.grantAdmin(ctx, actorID, args)
	case "/revoke_admin":
		return e.revokeAdminMenu(ctx, actorID)
	case "/userslist":
		return e.listActors(ctx, actorID, domain.StatusApproved, "Approved users")
	case "/block_user":
		return e.actorStatusMenu(ctx, actorID, domain.StatusApproved, domain.StatusDenied, "Pick a user to block:")
	case "/approve_user":
		return e.actorStatusMenu(ctx, actorID, domain.StatusPending, domain.StatusApproved, "Pick a user to approve:")
	case "/check_sheets":
		return e.checkSheets(ctx, actorID)
	case "/reseed_catalog":
		return e.reseedCatalog(ctx, actorID)
	}

	e.send(ctx, actorID, "Unknown command.", nil)
	return nil
}

// parseCatalogCommand recognizes /add_object, /del_expense, /rename_payment
// and friends.
func parseCatalogCommand(cmd string) (op string, kind domain.CatalogKind, ok bool) {
	for _, op := range []string{"add", "del", "rename"} {
		for suffix, kind := range catalogCommandKinds {
			if cmd == "/"+op+"_"+suffix {
				return op, kind, true
			}
		}
	}
	return "", "", false
}

func (e *Engine) handleCatalogCommand(ctx context.Context, actorID int64, op string, kind domain.CatalogKind) error {
	switch op {
	case "add":
		e.setAdminInput(actorID, &adminInput{op: "add", kind: kind})
		e.send(ctx, actorID, fmt.Sprintf("Send the new %s name:", kind), nil)
		return nil

	case "del":
		kb, err := e.catalogMenu(ctx, kind, func(name string) intent.Intent {
			return intent.CatalogRemove(kind, name)
		})
		if err != nil {
			return err
		}
		e.send(ctx, actorID, "Pick the entry to remove:", kb)
		return nil

	case "rename":
		kb, err := e.catalogMenu(ctx, kind, func(name string) intent.Intent {
			return intent.CatalogRename(kind, name)
		})
		if err != nil {
			return err
		}
		e.send(ctx, actorID, "Pick the entry to rename:", kb)
		return nil
	}
	return nil
}

func (e *Engine) catalogMenu(ctx context.Context, kind domain.CatalogKind, mk func(string) intent.Intent) (*channel.Keyboard, error) {
	names, err := e.catalog.List(ctx, kind)
	if err != nil {
		return nil, err
	}
	buttons := make([]channel.Button, 0, len(names))
	for _, name := range names {
		buttons = append(buttons, channel.Button{Label: name, Token: mk(name).Encode()})
	}
	return channel.NewKeyboard(2, buttons...), nil
}

// applyAdminInput finishes an add or rename with the captured value
func (e *Engine) applyAdminInput(ctx context.Context, actorID int64, in *adminInput, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		e.send(ctx, actorID, "Empty name, command cancelled.", nil)
		return nil
	}

	switch in.op {
	case "add":
		err := e.catalog.Add(ctx, in.kind, value)
		if errors.Is(err, domain.ErrAlreadyExists) {
			e.send(ctx, actorID, fmt.Sprintf("%q already exists.", value), nil)
			return nil
		}
		if err != nil {
			return err
		}
		e.send(ctx, actorID, fmt.Sprintf("Added %q.", value), nil)
		return nil

	case "rename":
		err := e.catalog.Rename(ctx, in.kind, in.target, value)
		switch {
		case errors.Is(err, domain.ErrAlreadyExists):
			e.send(ctx, actorID, fmt.Sprintf("%q already exists.", value), nil)
			return nil
		case errors.Is(err, domain.ErrNotFound):
			e.send(ctx, actorID, fmt.Sprintf("%q no longer exists.", in.target), nil)
			return nil
		case err != nil:
			return err
		}
		e.send(ctx, actorID, fmt.Sprintf("Renamed %q to %q.", in.target, value), nil)
		return nil
	}
	return nil
}

// handleAdminIntent applies an admin button press: catalog edits, actor
// status changes, admin revocation. Membership is checked at press time.
func (e *Engine) handleAdminIntent(ctx context.Context, actorID int64, it *intent.Intent) error {
	isAdmin, err := e.admins.IsAdmin(ctx, actorID)
	if err != nil {
		return fmt.Errorf("failed to check admin: %w", err)
	}
	if !isAdmin {
		e.send(ctx, actorID, "Only admins can do that.", nil)
		return nil
	}

	switch it.Type {
	case intent.TypeCatalogRemove:
		err := e.catalog.Remove(ctx, it.CatalogKind, it.Value)
		if errors.Is(err, domain.ErrNotFound) {
			e.send(ctx, actorID, fmt.Sprintf("%q was already removed.", it.Value), nil)
			return nil
		}
		if err != nil {
			return err
		}
		e.send(ctx, actorID, fmt.Sprintf("Removed %q.", it.Value), nil)
		return nil

	case intent.TypeCatalogRename:
		e.setAdminInput(actorID, &adminInput{op: "rename", kind: it.CatalogKind, target: it.Value})
		e.send(ctx, actorID, fmt.Sprintf("Send the new name for %q:", it.Value), nil)
		return nil

	case intent.TypeSetActorStatus:
		status := domain.ActorStatus(it.Value)
		if err := e.actors.SetStatus(ctx, it.ActorID, status); err != nil {
			return err
		}
		e.logger.Info("Actor status changed by admin",
			zap.Int64("actor_id", it.ActorID),
			zap.String("status", it.Value),
			zap.Int64("admin_id", actorID))
		switch status {
		case domain.StatusApproved:
			e.send(ctx, it.ActorID, "You are approved! Send /start to begin.", nil)
		case domain.StatusDenied:
			e.send(ctx, it.ActorID, "Your access was revoked.", nil)
		}
		e.send(ctx, actorID, "Done.", nil)
		return nil

	case intent.TypeRevokeAdmin:
		err := e.admins.Remove(ctx, it.ActorID, actorID)
		switch {
		case errors.Is(err, domain.ErrPermissionDenied):
			e.send(ctx, actorID, "You cannot revoke yourself.", nil)
			return nil
		case errors.Is(err, domain.ErrNotFound):
			e.send(ctx, actorID, "Not an admin anymore.", nil)
			return nil
		case err != nil:
			return err
		}
		e.send(ctx, actorID, "Admin rights revoked.", nil)
		return nil
	}
	return nil
}

func (e *Engine) listAdmins(ctx context.Context, actorID int64) error {
	admins, err := e.admins.List(ctx)
	if err != nil {
		return err
	}
	if len(admins) == 0 {
		e.send(ctx, actorID, "No admins configured.", nil)
		return nil
	}
	var b strings.Builder
	b.WriteString("Admins:\n")
	for _, a := range admins {
		fmt.Fprintf(&b, "• %s (id %d)\n", a.Name, a.ActorID)
	}
	e.send(ctx, actorID, b.String(), nil)
	return nil
}

func (e *Engine) grantAdmin(ctx context.Context, actorID int64, args []string) error {
	if len(args) != 1 {
		e.send(ctx, actorID, "Usage: /grant_admin <user id>", nil)
		return nil
	}
	targetID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		e.send(ctx, actorID, "Usage: /grant_admin <user id>", nil)
		return nil
	}

	name, err := e.actors.GetName(ctx, targetID)
	if err != nil {
		return err
	}
	if name == "" {
		e.send(ctx, actorID, "Unknown user id.", nil)
		return nil
	}

	err = e.admins.Add(ctx, targetID, name, actorID)
	if errors.Is(err, domain.ErrAlreadyExists) {
		e.send(ctx, actorID, fmt.Sprintf("%s is already an admin.", name), nil)
		return nil
	}
	if err != nil {
		return err
	}
	e.send(ctx, actorID, fmt.Sprintf("%s is now an admin.", name), nil)
	e.send(ctx, targetID, "You were granted admin rights.", nil)
	return nil
}

func (e *Engine) revokeAdminMenu(ctx context.Context, actorID int64) error {
	admins, err := e.admins.List(ctx)
	if err != nil {
		return err
	}
	buttons := make([]channel.Button, 0, len(admins))
	for _, a := range admins {
		if a.ActorID == actorID {
			continue
		}
		buttons = append(buttons, channel.Button{
			Label: fmt.Sprintf("%s (%d)", a.Name, a.ActorID),
			Token: intent.RevokeAdmin(a.ActorID).Encode(),
		})
	}
	if len(buttons) == 0 {
		e.send(ctx, actorID, "No other admins to revoke.", nil)
		return nil
	}
	e.send(ctx, actorID, "Pick an admin to revoke:", channel.NewKeyboard(1, buttons...))
	return nil
}

func (e *Engine) listActors(ctx context.Context, actorID int64, status domain.ActorStatus, title string) error {
	actors, err := e.actors.ListByStatus(ctx, status)
	if err != nil {
		return err
	}
	if len(actors) == 0 {
		e.send(ctx, actorID, "Nobody here yet.", nil)
		return nil
	}
	var b strings.Builder
	b.WriteString(title + ":\n")
	for _, a := range actors {
		fmt.Fprintf(&b, "• %s, %s (id %d)\n", a.Name, a.Phone, a.ID)
	}
	e.send(ctx, actorID, b.String(), nil)
	return nil
}

// actorStatusMenu shows a button list of actors currently in `from`, each
// button moving its actor to `to`.
func (e *Engine) actorStatusMenu(ctx context.Context, actorID int64, from, to domain.ActorStatus, title string) error {
	actors, err := e.actors.ListByStatus(ctx, from)
	if err != nil {
		return err
	}
	buttons := make([]channel.Button, 0, len(actors))
	for _, a := range actors {
		if a.ID == actorID {
			continue
		}
		buttons = append(buttons, channel.Button{
			Label: fmt.Sprintf("%s (%d)", a.Name, a.ID),
			Token: intent.SetActorStatus(a.ID, to).Encode(),
		})
	}
	if len(buttons) == 0 {
		e.send(ctx, actorID, "Nobody here yet.", nil)
		return nil
	}
	e.send(ctx, actorID, title, channel.NewKeyboard(1, buttons...))
	return nil
}

func (e *Engine) checkSheets(ctx context.Context, actorID int64) error {
	tabs, err := e.tabs.ListTabs(ctx)
	if err != nil {
		e.send(ctx, actorID, "Ledger is unreachable.", nil)
		return nil
	}
	e.send(ctx, actorID, "Ledger tabs: "+strings.Join(tabs, ", "), nil)
	return nil
}

func (e *Engine) reseedCatalog(ctx context.Context, actorID int64) error {
	for _, kind := range []domain.CatalogKind{
		domain.CatalogObjects,
		domain.CatalogExpenseTypes,
		domain.CatalogPayMethods,
		domain.CatalogCategories,
	} {
		if err := e.catalog.Reseed(ctx, kind); err != nil {
			return fmt.Errorf("failed to reseed %s: %w", kind, err)
		}
	}
	e.send(ctx, actorID, "Catalogs restored to the default set.", nil)
	return nil
}
