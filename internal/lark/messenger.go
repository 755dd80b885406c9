package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	larkIm "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/kapitalops/intakebot/internal/channel"
)

// Messenger delivers prompts to actors as interactive cards. Every message
// goes out as a card, even plain text, so the text and keyboard of any sent
// message can be patched later.
type Messenger struct {
	client *Client
	logger *zap.Logger

	mu    sync.Mutex
	texts map[channel.MessageRef]string
}

// NewMessenger creates a card messenger on top of the Lark client
func NewMessenger(client *Client, logger *zap.Logger) *Messenger {
	return &Messenger{
		client: client,
		logger: logger,
		texts:  make(map[channel.MessageRef]string),
	}
}

// card is the interactive-card wire format
type card struct {
	Config   cardConfig    `json:"config"`
	Elements []cardElement `json:"elements"`
}

type cardConfig struct {
	WideScreenMode bool `json:"wide_screen_mode"`
}

type cardElement struct {
	Tag     string       `json:"tag"`
	Text    *cardText    `json:"text,omitempty"`
	Actions []cardAction `json:"actions,omitempty"`
}

type cardText struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

type cardAction struct {
	Tag   string            `json:"tag"`
	Text  cardText          `json:"text"`
	Type  string            `json:"type"`
	Value map[string]string `json:"value"`
}

// buildCard renders text plus an optional keyboard as card JSON. Button
// tokens ride in the action value and come back on card.action.trigger.
func buildCard(text string, kb *channel.Keyboard) (string, error) {
	c := card{
		Config: cardConfig{WideScreenMode: true},
	}
	if text != "" {
		c.Elements = append(c.Elements, cardElement{
			Tag:  "div",
			Text: &cardText{Tag: "lark_md", Content: text},
		})
	}
	if kb != nil {
		for _, row := range kb.Rows {
			el := cardElement{Tag: "action"}
			for _, b := range row {
				el.Actions = append(el.Actions, cardAction{
					Tag:   "button",
					Text:  cardText{Tag: "plain_text", Content: b.Label},
					Type:  "default",
					Value: map[string]string{"token": b.Token},
				})
			}
			c.Elements = append(c.Elements, el)
		}
	}
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to build card: %w", err)
	}
	return string(data), nil
}

// SendText sends a card to the actor and remembers its text for later
// keyboard-only edits
func (m *Messenger) SendText(ctx context.Context, actorID int64, text string, kb *channel.Keyboard) (channel.MessageRef, error) {
	content, err := buildCard(text, kb)
	if err != nil {
		return "", err
	}

	req := larkIm.NewCreateMessageReqBuilder().
		ReceiveIdType("user_id").
		Body(larkIm.NewCreateMessageReqBodyBuilder().
			ReceiveId(strconv.FormatInt(actorID, 10)).
			MsgType("interactive").
			Content(content).
			Build()).
		Build()

	resp, err := m.client.client.Im.Message.Create(ctx, req)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.Int64("actor_id", actorID),
			zap.Error(err))
		return "", fmt.Errorf("failed to send message: %w", err)
	}
	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.Int64("actor_id", actorID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return "", fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}

	ref := channel.MessageRef(messageID)
	m.remember(ref, text, kb != nil)

	m.logger.Debug("Message sent",
		zap.String("message_id", messageID),
		zap.Int64("actor_id", actorID))

	return ref, nil
}

// EditMessage replaces the text and keyboard of a sent card
func (m *Messenger) EditMessage(ctx context.Context, ref channel.MessageRef, text string, kb *channel.Keyboard) error {
	if err := m.patch(ctx, ref, text, kb); err != nil {
		return err
	}
	m.remember(ref, text, kb != nil)
	return nil
}

// EditKeyboard replaces only the keyboard of a sent card; nil removes it
func (m *Messenger) EditKeyboard(ctx context.Context, ref channel.MessageRef, kb *channel.Keyboard) error {
	m.mu.Lock()
	text := m.texts[ref]
	m.mu.Unlock()
	if err := m.patch(ctx, ref, text, kb); err != nil {
		return err
	}
	if kb == nil {
		m.forget(ref)
	}
	return nil
}

// remember caches the text of a keyboard-bearing card so a later
// keyboard-only edit can re-render it. A card without buttons is final and
// never patched again, so its entry is dropped instead.
func (m *Messenger) remember(ref channel.MessageRef, text string, hasKeyboard bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hasKeyboard {
		m.texts[ref] = text
		return
	}
	delete(m.texts, ref)
}

func (m *Messenger) forget(ref channel.MessageRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.texts, ref)
}

func (m *Messenger) patch(ctx context.Context, ref channel.MessageRef, text string, kb *channel.Keyboard) error {
	content, err := buildCard(text, kb)
	if err != nil {
		return err
	}

	req := larkIm.NewPatchMessageReqBuilder().
		MessageId(string(ref)).
		Body(larkIm.NewPatchMessageReqBodyBuilder().
			Content(content).
			Build()).
		Build()

	resp, err := m.client.client.Im.Message.Patch(ctx, req)
	if err != nil {
		m.logger.Error("Failed to patch message",
			zap.String("message_id", string(ref)),
			zap.Error(err))
		return fmt.Errorf("failed to patch message: %w", err)
	}
	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("message_id", string(ref)),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}
	return nil
}
