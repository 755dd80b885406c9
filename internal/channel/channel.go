// Package channel defines the transport-neutral contract between the
// orchestrator and the messaging platform: the inbound event union and the
// outbound messenger operations. The Lark adapter in internal/lark is the
// production implementation.
package channel

import "context"

// Event is one inbound channel delivery. EventID is unique per delivery
// and feeds the session replay guard.
type Event interface {
	Actor() int64
	ID() string
}

// TextMessage is a plain text message from an actor
type TextMessage struct {
	ActorID int64
	Text    string
	EventID string
}

func (e TextMessage) Actor() int64 { return e.ActorID }
func (e TextMessage) ID() string   { return e.EventID }

// ButtonPress is a tap on an inline button. Token carries the encoded
// intent payload.
type ButtonPress struct {
	ActorID int64
	Token   string
	EventID string
}

func (e ButtonPress) Actor() int64 { return e.ActorID }
func (e ButtonPress) ID() string   { return e.EventID }

// ContactShared is an actor sharing their phone number during registration
type ContactShared struct {
	ActorID     int64
	PhoneNumber string
	EventID     string
}

func (e ContactShared) Actor() int64 { return e.ActorID }
func (e ContactShared) ID() string   { return e.EventID }

// Button is one inline keyboard button
type Button struct {
	Label string
	Token string // encoded intent payload
}

// Keyboard is a set of inline buttons laid out in rows
type Keyboard struct {
	Rows [][]Button
}

// NewKeyboard lays out buttons into rows of the given width
func NewKeyboard(rowWidth int, buttons ...Button) *Keyboard {
	if rowWidth < 1 {
		rowWidth = 1
	}
	kb := &Keyboard{}
	for len(buttons) > 0 {
		n := rowWidth
		if n > len(buttons) {
			n = len(buttons)
		}
		kb.Rows = append(kb.Rows, buttons[:n])
		buttons = buttons[n:]
	}
	return kb
}

// MessageRef identifies a previously sent message for later edits
type MessageRef string

// Messenger is the outbound side of the channel
type Messenger interface {
	// SendText delivers a text message, with an optional inline keyboard
	SendText(ctx context.Context, actorID int64, text string, kb *Keyboard) (MessageRef, error)

	// EditMessage replaces the text and keyboard of a sent message
	EditMessage(ctx context.Context, ref MessageRef, text string, kb *Keyboard) error

	// EditKeyboard replaces only the keyboard; nil removes it
	EditKeyboard(ctx context.Context, ref MessageRef, kb *Keyboard) error
}
