package services

import (
	"context"
	"time"

	"github.com/saem16/professional-networking-platform-sub001/internal/models"
	apperrors "github.com/saem16/professional-networking-platform-sub001/pkg/errors"
	"github.com/saem16/professional-networking-platform-sub001/pkg/logger"
)

// SendRequest is one message send, regardless of which transport carried it.
type SendRequest struct {
	ConversationID string
	SenderID       string
	Content        string
	Attachments    []models.Attachment
	ReplyToID      *string
}

// Dispatcher is the single path every new message takes:
// validate -> authorize -> persist -> fan out. Both the REST handler and the
// socket event handler call Send; neither re-implements any step, so the two
// entry points cannot drift apart.
type Dispatcher struct {
	conversations *ConversationService
	messages      *MessageService
	presence      *PresenceRegistry
	rooms         *RoomManager
	users         *UserService
	notifier      Notifier
}

func NewDispatcher(conversations *ConversationService, messages *MessageService, presence *PresenceRegistry, rooms *RoomManager, users *UserService, notifier Notifier) *Dispatcher {
	return &Dispatcher{
		conversations: conversations,
		messages:      messages,
		presence:      presence,
		rooms:         rooms,
		users:         users,
		notifier:      notifier,
	}
}

// Send validates, authorizes, persists and fans out one message.
//
// Once the message row exists it is never rolled back: a failed unread-count
// or preview update leaves the conversation under-counted (it self-heals on
// the next read reset), and a failed fan-out is logged, not retried.
func (d *Dispatcher) Send(ctx context.Context, req SendRequest) (*models.Message, error) {
	// Validating
	if req.Content == "" && len(req.Attachments) == 0 {
		return nil, apperrors.Validation("message content or attachments required")
	}

	// Authorizing: membership may have changed between the client's page
	// load and this send.
	isMember, err := d.conversations.IsParticipant(ctx, req.ConversationID, req.SenderID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, apperrors.Forbidden("not allowed")
	}

	// Persisting
	msg, err := d.messages.Append(ctx, req.ConversationID, req.SenderID, req.Content, req.Attachments, req.ReplyToID)
	if err != nil {
		return nil, err
	}

	if err := d.conversations.TouchLastMessage(ctx, req.ConversationID, msg.ID, msg.CreatedAt); err != nil {
		logger.Warn().Err(err).
			Str("conversation_id", req.ConversationID).
			Str("message_id", msg.ID).
			Msg("failed to update conversation preview")
	}
	if err := d.conversations.IncrementUnread(ctx, req.ConversationID, req.SenderID); err != nil {
		logger.Warn().Err(err).
			Str("conversation_id", req.ConversationID).
			Str("message_id", msg.ID).
			Msg("failed to increment unread counters")
	}

	// Fanning out: the conversation room covers other participants and the
	// sender's other devices alike.
	d.rooms.EmitToConversation(req.ConversationID, EventNewMessage, map[string]interface{}{
		"message":        msg,
		"conversationId": req.ConversationID,
	})

	d.notifyOffline(ctx, msg)

	return msg, nil
}

// notifyOffline invokes the notification bridge for every participant who has
// no live connection. An empty room is not a failure; it is exactly the
// condition this side channel exists for.
func (d *Dispatcher) notifyOffline(ctx context.Context, msg *models.Message) {
	participants, err := d.conversations.Participants(ctx, msg.ConversationID)
	if err != nil {
		logger.Warn().Err(err).
			Str("conversation_id", msg.ConversationID).
			Msg("failed to load participants for offline notification")
		return
	}

	sender, err := d.users.LookupSummary(ctx, msg.SenderID)
	if err != nil {
		logger.Warn().Err(err).Str("user_id", msg.SenderID).Msg("failed to resolve sender summary")
	}

	now := time.Now()
	for _, p := range participants {
		if p.UserID == msg.SenderID {
			continue
		}
		if p.Muted(now) {
			continue
		}
		if d.presence.IsOnline(p.UserID) {
			continue
		}
		d.notifier.CreateNotification(ctx, p.UserID, msg.SenderID, models.NotificationTypeMessage, map[string]interface{}{
			"conversationId": msg.ConversationID,
			"messageId":      msg.ID,
			"messageType":    msg.Type,
			"sender":         sender,
		})
	}
}
