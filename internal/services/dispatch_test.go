package services

import (
	"context"
	"testing"
	"time"

	"github.com/saem16/professional-networking-platform-sub001/internal/models"
	apperrors "github.com/saem16/professional-networking-platform-sub001/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_RejectsEmptyAndNonMember(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	conv := directConv(t, rig, "alice", "bob")
	rig.createUser(t, "mallory")

	_, err := rig.chat.Send(ctx, SendRequest{ConversationID: conv.ID, SenderID: "alice"})
	assert.True(t, apperrors.IsValidation(err))

	_, err = rig.chat.Send(ctx, SendRequest{ConversationID: conv.ID, SenderID: "mallory", Content: "hi"})
	assert.True(t, apperrors.IsForbidden(err))

	// Nothing was persisted or emitted.
	var count int64
	rig.db.Model(&models.Message{}).Count(&count)
	assert.Equal(t, int64(0), count)
	assert.Empty(t, rig.server.eventsFor(ConversationRoom(conv.ID)))
}

func TestSend_PersistsBumpsAndFansOut(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	rig.createUser(t, "alice")
	rig.createUser(t, "bob")
	rig.createUser(t, "carol")

	conv, err := rig.conversations.CreateGroup(ctx, "Team", "", "alice", []string{"bob", "carol"})
	require.NoError(t, err)

	msg, err := rig.chat.Send(ctx, SendRequest{ConversationID: conv.ID, SenderID: "alice", Content: "hello team"})
	require.NoError(t, err)
	assert.Equal(t, "hello team", msg.Content)
	assert.Equal(t, "alice", msg.Sender.ID)

	// Preview and activity follow the message.
	updated, err := rig.conversations.Get(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.LastMessageID)
	assert.Equal(t, msg.ID, *updated.LastMessageID)

	// Everyone but the sender is bumped by exactly one.
	participants, err := rig.conversations.Participants(ctx, conv.ID)
	require.NoError(t, err)
	for _, p := range participants {
		want := 1
		if p.UserID == "alice" {
			want = 0
		}
		assert.Equal(t, want, p.UnreadCount, p.UserID)
	}

	assert.True(t, rig.server.has(ConversationRoom(conv.ID), EventNewMessage))
}

func TestSend_SameOutcomeFromBothTransports(t *testing.T) {
	// The REST handler and the socket event handler both call Send with the
	// same request shape; two consecutive sends must leave identical state
	// regardless of which side issued them.
	rig := newTestRig(t)
	ctx := context.Background()
	conv := directConv(t, rig, "alice", "bob")

	for i := 0; i < 2; i++ {
		_, err := rig.chat.Send(ctx, SendRequest{ConversationID: conv.ID, SenderID: "alice", Content: "ping"})
		require.NoError(t, err)
	}

	var p models.ConversationParticipant
	require.NoError(t, rig.db.First(&p, "conversation_id = ? AND user_id = ?", conv.ID, "bob").Error)
	assert.Equal(t, 2, p.UnreadCount)

	var count int64
	rig.db.Model(&models.Message{}).Where("conversation_id = ?", conv.ID).Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestSend_NotifiesOnlyOfflineUnmuted(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	rig.createUser(t, "alice")
	rig.createUser(t, "bob")
	rig.createUser(t, "carol")
	rig.createUser(t, "dave")

	conv, err := rig.conversations.CreateGroup(ctx, "Team", "", "alice", []string{"bob", "carol", "dave"})
	require.NoError(t, err)

	// bob is online, carol is muted, dave is offline and unmuted.
	rig.presence.Register("bob", newFakeConn("bob-phone"))
	until := time.Now().Add(time.Hour)
	require.NoError(t, rig.conversations.Mute(ctx, conv.ID, "carol", &until))

	_, err = rig.chat.Send(ctx, SendRequest{ConversationID: conv.ID, SenderID: "alice", Content: "hello"})
	require.NoError(t, err)

	assert.Equal(t, []string{"dave"}, rig.notifier.recipients())
	require.Len(t, rig.notifier.calls, 1)
	call := rig.notifier.calls[0]
	assert.Equal(t, "alice", call.ActorID)
	assert.Equal(t, models.NotificationTypeMessage, call.Type)
	assert.Equal(t, conv.ID, call.Payload["conversationId"])
}

func TestSend_ReplyThreading(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	conv := directConv(t, rig, "alice", "bob")

	original, err := rig.chat.Send(ctx, SendRequest{ConversationID: conv.ID, SenderID: "alice", Content: "question"})
	require.NoError(t, err)

	reply, err := rig.chat.Send(ctx, SendRequest{
		ConversationID: conv.ID,
		SenderID:       "bob",
		Content:        "answer",
		ReplyToID:      &original.ID,
	})
	require.NoError(t, err)

	page, err := rig.messages.ListForConversation(ctx, conv.ID, 1, 10, nil)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, reply.ID, page[0].ID)
	require.NotNil(t, page[0].ReplyTo)
	assert.Equal(t, original.ID, page[0].ReplyTo.ID)
}
