package services

import (
	"github.com/saem16/professional-networking-platform-sub001/pkg/logger"
)

// Socket event names exposed to collaborators.
const (
	EventNewMessage         = "newMessage"
	EventMessageEdited      = "messageEdited"
	EventMessageDeleted     = "messageDeleted"
	EventReactionUpdate     = "reactionUpdate"
	EventNewConversation    = "newConversation"
	EventParticipantsAdded  = "participantsAdded"
	EventParticipantRemoved = "participantRemoved"
	EventParticipantLeft    = "participantLeft"
	EventAddedToGroup       = "addedToGroup"
	EventRemovedFromGroup   = "removedFromGroup"
	EventUserOnline         = "userOnline"
	EventUserOffline        = "userOffline"
	EventUserTyping         = "userTyping"
	EventNotification       = "notification"
	EventError              = "error"
)

// PresenceRoom is the global room every authenticated connection joins for
// online/offline updates.
const PresenceRoom = "presence"

// ConversationRoom names the fan-out channel for one conversation.
func ConversationRoom(conversationID string) string {
	return "conversation_" + conversationID
}

// UserRoom names a user's personal channel, used for out-of-conversation
// events (added to group, removed, new conversation).
func UserRoom(userID string) string {
	return "user_" + userID
}

// RoomBroadcaster is the piece of the socket server the room manager uses.
// *socketio.Server satisfies it. A multi-instance deployment would swap this
// for a distributed backplane; nothing outside this file talks to the server
// directly.
type RoomBroadcaster interface {
	BroadcastToRoom(namespace, room, event string, args ...interface{}) bool
}

// RoomManager keeps each live connection subscribed to exactly the rooms its
// user should see and is the single emit primitive for the rest of the core.
type RoomManager struct {
	server   RoomBroadcaster
	presence *PresenceRegistry
}

func NewRoomManager(server RoomBroadcaster, presence *PresenceRegistry) *RoomManager {
	return &RoomManager{server: server, presence: presence}
}

// Subscribe adds one connection to a room.
func (r *RoomManager) Subscribe(conn Connection, room string) {
	conn.Join(room)
}

// Unsubscribe removes one connection from a room.
func (r *RoomManager) Unsubscribe(conn Connection, room string) {
	conn.Leave(room)
}

// SubscribeUser joins every live connection of a user to a room. Used when
// membership changes server-side while the user is connected.
func (r *RoomManager) SubscribeUser(userID, room string) {
	for _, conn := range r.presence.ConnectionsFor(userID) {
		conn.Join(room)
	}
}

// UnsubscribeUser removes every live connection of a user from a room.
func (r *RoomManager) UnsubscribeUser(userID, room string) {
	for _, conn := range r.presence.ConnectionsFor(userID) {
		conn.Leave(room)
	}
}

// EmitToRoom fans an event out to all current subscribers of a room.
// Reaching zero connections is not an error; an empty room simply means all
// recipients are offline.
func (r *RoomManager) EmitToRoom(room, event string, payload interface{}) {
	if r == nil || r.server == nil {
		return
	}
	r.server.BroadcastToRoom("/", room, event, payload)
}

// EmitToConversation emits to every connection subscribed to a conversation.
func (r *RoomManager) EmitToConversation(conversationID, event string, payload interface{}) {
	r.EmitToRoom(ConversationRoom(conversationID), event, payload)
}

// EmitToUser emits to all of a user's devices via their personal room.
func (r *RoomManager) EmitToUser(userID, event string, payload interface{}) {
	r.EmitToRoom(UserRoom(userID), event, payload)
}

// EmitToUserDirect emits over the registered handles instead of the room, for
// connections that have not joined their personal room yet.
func (r *RoomManager) EmitToUserDirect(userID, event string, payload interface{}) {
	if r == nil || r.presence == nil {
		return
	}
	for _, conn := range r.presence.ConnectionsFor(userID) {
		conn.Emit(event, payload)
	}
}

// BroadcastPresence announces an online/offline transition.
func (r *RoomManager) BroadcastPresence(userID string, online bool) {
	event := EventUserOnline
	if !online {
		event = EventUserOffline
	}
	logger.Debug().Str("user_id", userID).Bool("online", online).Msg("presence transition")
	r.EmitToRoom(PresenceRoom, event, map[string]interface{}{
		"userId":   userID,
		"isOnline": online,
	})
}
