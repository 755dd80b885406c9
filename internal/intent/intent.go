// Package intent defines the structured payload carried inside channel
// button callbacks. Payloads are versioned JSON, decoded into a closed set
// of intent types, so routing never depends on matching raw string prefixes.
package intent

import (
	"encoding/json"
	"fmt"

	"github.com/kapitalops/intakebot/internal/domain"
)

// Version is the current payload schema version. Buttons from older
// messages decode only if their version matches.
const Version = 1

// Type discriminates the intent union
type Type string

const (
	// Form flow
	TypePickKind     Type = "pick_kind"
	TypePickObject   Type = "pick_object"
	TypePickExpense  Type = "pick_expense"
	TypePickCurrency Type = "pick_currency"
	TypePickPayment  Type = "pick_payment"
	TypeSkipComment  Type = "skip_comment"
	TypeConfirm      Type = "confirm"
	TypeCancel       Type = "cancel"

	// Approval gate
	TypeDecision Type = "decision"

	// Admin surface
	TypeCatalogRemove  Type = "catalog_remove"
	TypeCatalogRename  Type = "catalog_rename"
	TypeSetActorStatus Type = "set_actor_status"
	TypeRevokeAdmin    Type = "revoke_admin"
)

var validTypes = map[Type]bool{
	TypePickKind:       true,
	TypePickObject:     true,
	TypePickExpense:    true,
	TypePickCurrency:   true,
	TypePickPayment:    true,
	TypeSkipComment:    true,
	TypeConfirm:        true,
	TypeCancel:         true,
	TypeDecision:       true,
	TypeCatalogRemove:  true,
	TypeCatalogRename:  true,
	TypeSetActorStatus: true,
	TypeRevokeAdmin:    true,
}

// Intent is one decoded button payload. Only the fields relevant to its
// Type are populated.
type Intent struct {
	V           int                `json:"v"`
	Type        Type               `json:"t"`
	Value       string             `json:"val,omitempty"`
	CatalogKind domain.CatalogKind `json:"ck,omitempty"`
	ApprovalKey string             `json:"key,omitempty"`
	Accept      bool               `json:"ok,omitempty"`
	ActorID     int64              `json:"actor,omitempty"`
}

// Encode serializes the intent for use as a button callback value
func (i Intent) Encode() string {
	i.V = Version
	b, _ := json.Marshal(i)
	return string(b)
}

// Decode parses a callback payload. Malformed, unknown or wrong-version
// payloads return domain.ErrInvalidInput.
func Decode(payload string) (*Intent, error) {
	var i Intent
	if err := json.Unmarshal([]byte(payload), &i); err != nil {
		return nil, fmt.Errorf("malformed intent payload: %w", domain.ErrInvalidInput)
	}
	if i.V != Version {
		return nil, fmt.Errorf("intent version %d: %w", i.V, domain.ErrInvalidInput)
	}
	if !validTypes[i.Type] {
		return nil, fmt.Errorf("unknown intent type %q: %w", i.Type, domain.ErrInvalidInput)
	}
	return &i, nil
}

// PickKind builds a form kind selection intent
func PickKind(kind domain.Kind) Intent {
	return Intent{Type: TypePickKind, Value: kind.String()}
}

// PickObject builds an object selection intent
func PickObject(name string) Intent {
	return Intent{Type: TypePickObject, Value: name}
}

// PickExpense builds an expense type selection intent
func PickExpense(name string) Intent {
	return Intent{Type: TypePickExpense, Value: name}
}

// PickCurrency builds a currency selection intent
func PickCurrency(c domain.Currency) Intent {
	return Intent{Type: TypePickCurrency, Value: c.String()}
}

// PickPayment builds a payment method selection intent
func PickPayment(name string) Intent {
	return Intent{Type: TypePickPayment, Value: name}
}

// SkipComment builds the comment skip intent
func SkipComment() Intent {
	return Intent{Type: TypeSkipComment}
}

// Confirm builds a final confirmation intent
func Confirm(accept bool) Intent {
	return Intent{Type: TypeConfirm, Accept: accept}
}

// Cancel builds the flow cancel intent
func Cancel() Intent {
	return Intent{Type: TypeCancel}
}

// Decision builds an approval decision intent
func Decision(key string, accept bool) Intent {
	return Intent{Type: TypeDecision, ApprovalKey: key, Accept: accept}
}

// CatalogRemove builds a catalog removal intent
func CatalogRemove(kind domain.CatalogKind, name string) Intent {
	return Intent{Type: TypeCatalogRemove, CatalogKind: kind, Value: name}
}

// CatalogRename builds a catalog rename target selection intent
func CatalogRename(kind domain.CatalogKind, name string) Intent {
	return Intent{Type: TypeCatalogRename, CatalogKind: kind, Value: name}
}

// SetActorStatus builds a block/unblock intent
func SetActorStatus(actorID int64, status domain.ActorStatus) Intent {
	return Intent{Type: TypeSetActorStatus, ActorID: actorID, Value: status.String()}
}

// RevokeAdmin builds an admin revocation intent
func RevokeAdmin(actorID int64) Intent {
	return Intent{Type: TypeRevokeAdmin, ActorID: actorID}
}
