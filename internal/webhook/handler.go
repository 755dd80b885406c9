package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kapitalops/intakebot/internal/channel"
)

// Dispatcher consumes parsed channel events
type Dispatcher interface {
	Dispatch(ctx context.Context, ev channel.Event) error
}

// Handler handles webhook requests
type Handler struct {
	verifier   *Verifier
	dispatcher Dispatcher
	logger     *zap.Logger
}

// NewHandler creates a new webhook handler
func NewHandler(verifier *Verifier, dispatcher Dispatcher, logger *zap.Logger) *Handler {
	return &Handler{
		verifier:   verifier,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Envelope is the outer Lark event payload
type Envelope struct {
	Schema string          `json:"schema"`
	Header EventHeader     `json:"header"`
	Event  json.RawMessage `json:"event"`
}

// EventHeader contains event metadata
type EventHeader struct {
	EventID    string `json:"event_id"`
	EventType  string `json:"event_type"`
	CreateTime string `json:"create_time"`
	Token      string `json:"token"`
	AppID      string `json:"app_id"`
	TenantKey  string `json:"tenant_key"`
}

type messageEvent struct {
	Sender struct {
		SenderID struct {
			UserID string `json:"user_id"`
		} `json:"sender_id"`
	} `json:"sender"`
	Message struct {
		MessageType string `json:"message_type"`
		Content     string `json:"content"`
	} `json:"message"`
}

type cardActionEvent struct {
	Operator struct {
		UserID string `json:"user_id"`
	} `json:"operator"`
	Action struct {
		Value map[string]string `json:"value"`
	} `json:"action"`
}

// Handle processes incoming webhook requests
func (h *Handler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Error("Failed to read request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	timestamp := c.GetHeader("X-Lark-Request-Timestamp")
	nonce := c.GetHeader("X-Lark-Request-Nonce")
	signature := c.GetHeader("X-Lark-Signature")

	// With an encrypt key configured Lark wraps the whole payload, the
	// challenge included. The signature still covers the raw body.
	plain := body
	var encrypted struct {
		Encrypt string `json:"encrypt"`
	}
	if err := json.Unmarshal(body, &encrypted); err == nil && encrypted.Encrypt != "" {
		decrypted, err := h.verifier.DecryptData(encrypted.Encrypt)
		if err != nil {
			h.logger.Error("Failed to decrypt event payload", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to decrypt payload"})
			return
		}
		plain = []byte(decrypted)
	}

	// Challenge request during endpoint registration
	var challengeCheck struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(plain, &challengeCheck); err == nil && challengeCheck.Type == "url_verification" {
		challenge, err := h.verifier.VerifyChallenge(plain)
		if err != nil {
			h.logger.Error("Challenge verification failed", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "Challenge verification failed"})
			return
		}

		h.logger.Info("Challenge verified successfully")
		c.JSON(http.StatusOK, gin.H{"challenge": challenge})
		return
	}

	if !h.verifier.VerifySignature(timestamp, nonce, signature, string(body)) {
		h.logger.Warn("Invalid webhook signature",
			zap.String("timestamp", timestamp),
			zap.String("nonce", nonce))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	var envelope Envelope
	if err := json.Unmarshal(plain, &envelope); err != nil {
		h.logger.Error("Failed to parse event", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse event"})
		return
	}

	if !h.verifier.ValidateEventType(envelope.Header.EventType) {
		h.logger.Debug("Ignoring event type", zap.String("event_type", envelope.Header.EventType))
		c.JSON(http.StatusOK, gin.H{"message": "Event type not supported"})
		return
	}

	ev, err := h.parseEvent(&envelope)
	if err != nil {
		h.logger.Warn("Failed to parse channel event",
			zap.String("event_id", envelope.Header.EventID),
			zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"message": "Event ignored"})
		return
	}

	h.logger.Info("Received channel event",
		zap.String("event_id", envelope.Header.EventID),
		zap.String("event_type", envelope.Header.EventType),
		zap.Int64("actor_id", ev.Actor()))

	// Process asynchronously to respond quickly to Lark
	go h.processEvent(ev)

	c.JSON(http.StatusOK, gin.H{"message": "Event received"})
}

// parseEvent maps a verified envelope onto the channel event union
func (h *Handler) parseEvent(envelope *Envelope) (channel.Event, error) {
	switch envelope.Header.EventType {
	case "im.message.receive_v1":
		var msg messageEvent
		if err := json.Unmarshal(envelope.Event, &msg); err != nil {
			return nil, err
		}
		actorID, err := strconv.ParseInt(msg.Sender.SenderID.UserID, 10, 64)
		if err != nil {
			return nil, err
		}

		switch msg.Message.MessageType {
		case "contact":
			var content struct {
				PhoneNumber string `json:"phone_number"`
			}
			if err := json.Unmarshal([]byte(msg.Message.Content), &content); err != nil {
				return nil, err
			}
			return channel.ContactShared{
				ActorID:     actorID,
				PhoneNumber: content.PhoneNumber,
				EventID:     envelope.Header.EventID,
			}, nil
		default:
			var content struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal([]byte(msg.Message.Content), &content); err != nil {
				return nil, err
			}
			return channel.TextMessage{
				ActorID: actorID,
				Text:    content.Text,
				EventID: envelope.Header.EventID,
			}, nil
		}

	case "card.action.trigger":
		var action cardActionEvent
		if err := json.Unmarshal(envelope.Event, &action); err != nil {
			return nil, err
		}
		actorID, err := strconv.ParseInt(action.Operator.UserID, 10, 64)
		if err != nil {
			return nil, err
		}
		return channel.ButtonPress{
			ActorID: actorID,
			Token:   action.Action.Value["token"],
			EventID: envelope.Header.EventID,
		}, nil
	}

	return nil, fmt.Errorf("unsupported event type: %s", envelope.Header.EventType)
}

// processEvent dispatches the event to the orchestrator
func (h *Handler) processEvent(ev channel.Event) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Panic in event processing", zap.Any("panic", r))
		}
	}()

	ctx := context.Background()
	if err := h.dispatcher.Dispatch(ctx, ev); err != nil {
		h.logger.Error("Failed to dispatch event",
			zap.String("event_id", ev.ID()),
			zap.Int64("actor_id", ev.Actor()),
			zap.Error(err))
	}
}
