package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"github.com/saem16/professional-networking-platform-sub001/internal/models"
	"github.com/saem16/professional-networking-platform-sub001/internal/services"
	apperrors "github.com/saem16/professional-networking-platform-sub001/pkg/errors"
	"github.com/saem16/professional-networking-platform-sub001/pkg/logger"
	"github.com/saem16/professional-networking-platform-sub001/pkg/utils"
)

// typingSweepThreshold caps the throttle map before expired entries are shed.
const typingSweepThreshold = 1024

// typingThrottle caps userTyping fan-out to one event per sender per
// interval. Expired entries are swept once the map grows past the threshold
// so it stays bounded over the process lifetime.
type typingThrottle struct {
	mu       sync.Mutex
	last     map[string]time.Time
	interval time.Duration
}

func newTypingThrottle(interval time.Duration) *typingThrottle {
	return &typingThrottle{last: make(map[string]time.Time), interval: interval}
}

func (t *typingThrottle) allow(userID string) bool {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	if last, ok := t.last[userID]; ok && now.Sub(last) < t.interval {
		return false
	}
	if len(t.last) >= typingSweepThreshold {
		for id, at := range t.last {
			if now.Sub(at) >= t.interval {
				delete(t.last, id)
			}
		}
	}
	t.last[userID] = now
	return true
}

var typingEmits = newTypingThrottle(3 * time.Second)

// NewSocketServer builds the socket.io server with both websocket and
// polling transports and wires every event through the same services the
// REST handlers use.
func NewSocketServer() *socketio.Server {
	server := socketio.NewServer(&engineio.Options{
		Transports: []transport.Transport{
			&websocket.Transport{
				CheckOrigin: func(r *http.Request) bool { return true },
			},
			&polling.Transport{
				CheckOrigin: func(r *http.Request) bool { return true },
			},
		},
	})

	server.OnConnect("/", func(s socketio.Conn) error {
		s.SetContext("")
		url := s.URL()

		token := url.Query().Get("token")
		if token == "" {
			token = url.Query().Get("auth_token")
		}
		if token == "" {
			logger.Warn().Str("socket_id", s.ID()).Msg("socket rejected: no token")
			return fmt.Errorf("authentication required")
		}

		claims, err := utils.ValidateToken(token)
		if err != nil {
			logger.Warn().Str("socket_id", s.ID()).Msg("socket rejected: invalid token")
			return fmt.Errorf("invalid token")
		}

		userID := claims.UserID
		s.SetContext(userID)

		cameOnline := Presence.Register(userID, s)

		s.Join(services.UserRoom(userID))
		s.Join(services.PresenceRoom)

		// Join every conversation the user belongs to, so fan-out reaches
		// this device without a client-side join round trip.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ids, err := Conversations.IDsForUser(ctx, userID)
		if err != nil {
			logger.Error().Err(err).Str("user_id", userID).Msg("failed to load conversation rooms")
		}
		for _, id := range ids {
			s.Join(services.ConversationRoom(id))
		}

		// Only the first device flips the user online.
		if cameOnline {
			Rooms.BroadcastPresence(userID, true)
		}

		s.Emit("onlineUsers", Presence.OnlineUsers())
		logger.Info().Str("socket_id", s.ID()).Str("user_id", userID).Msg("socket connected")
		return nil
	})

	server.OnEvent("/", "join_conversation", func(s socketio.Conn, conversationID string) {
		userID, _ := s.Context().(string)
		if userID == "" || conversationID == "" {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		isMember, err := Conversations.IsParticipant(ctx, conversationID, userID)
		if err != nil || !isMember {
			s.Emit(services.EventError, map[string]interface{}{
				"message": "not allowed",
			})
			return
		}
		s.Join(services.ConversationRoom(conversationID))
	})

	server.OnEvent("/", "send_message", func(s socketio.Conn, data map[string]interface{}) {
		userID, _ := s.Context().(string)
		if userID == "" {
			return
		}

		req := services.SendRequest{SenderID: userID}
		req.ConversationID, _ = data["conversationId"].(string)
		req.Content, _ = data["content"].(string)
		if raw, ok := data["replyToId"].(string); ok && raw != "" {
			req.ReplyToID = &raw
		}
		if raw, ok := data["attachments"].([]interface{}); ok {
			req.Attachments = decodeAttachments(raw)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := Chat.Send(ctx, req); err != nil {
			emitSocketError(s, err)
		}
	})

	server.OnEvent("/", "typing", func(s socketio.Conn, data map[string]interface{}) {
		userID, _ := s.Context().(string)
		conversationID, _ := data["conversationId"].(string)
		if userID == "" || conversationID == "" {
			return
		}

		if !typingEmits.allow(userID) {
			return
		}

		Rooms.EmitToConversation(conversationID, services.EventUserTyping, map[string]interface{}{
			"userId":         userID,
			"conversationId": conversationID,
			"expiresAt":      time.Now().Add(4 * time.Second).Unix(),
		})
	})

	server.OnEvent("/", "mark_read", func(s socketio.Conn, data map[string]interface{}) {
		userID, _ := s.Context().(string)
		messageID, _ := data["messageId"].(string)
		if userID == "" || messageID == "" {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := Messages.MarkRead(ctx, messageID, userID); err != nil {
			emitSocketError(s, err)
		}
	})

	server.OnEvent("/", "get_online_users", func(s socketio.Conn, msg string) {
		s.Emit("onlineUsers", Presence.OnlineUsers())
	})

	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		userID, wentOffline := Presence.Unregister(s.ID())
		if wentOffline && userID != "" {
			Rooms.BroadcastPresence(userID, false)
		}
		logger.Debug().Str("socket_id", s.ID()).Str("reason", reason).Msg("socket closed")
	})

	server.OnError("/", func(s socketio.Conn, e error) {
		logger.Error().Err(e).Msg("socket error")
	})

	go server.Serve()
	return server
}

func emitSocketError(s socketio.Conn, err error) {
	if appErr, ok := apperrors.As(err); ok {
		s.Emit(services.EventError, map[string]interface{}{
			"message": appErr.Message,
		})
		return
	}
	logger.Error().Err(err).Msg("socket event failed")
	s.Emit(services.EventError, map[string]interface{}{
		"message": "internal error",
	})
}

func decodeAttachments(raw []interface{}) []models.Attachment {
	attachments := make([]models.Attachment, 0, len(raw))
	for _, item := range raw {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		var att models.Attachment
		att.Reference, _ = entry["reference"].(string)
		att.OriginalName, _ = entry["originalName"].(string)
		att.MimeType, _ = entry["mimeType"].(string)
		if size, ok := entry["size"].(float64); ok {
			att.Size = int64(size)
		}
		attachments = append(attachments, att)
	}
	return attachments
}

// SocketHandler wraps the socket.io server for gin.
func SocketHandler(server *socketio.Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		server.ServeHTTP(c.Writer, c.Request)
	}
}
