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

func directConv(t *testing.T, rig *testRig, a, b string) *models.Conversation {
	t.Helper()
	rig.createUser(t, a)
	rig.createUser(t, b)
	conv, _, err := rig.conversations.FindOrCreateDirect(context.Background(), a, b)
	require.NoError(t, err)
	return conv
}

func TestAppend_Validation(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	conv := directConv(t, rig, "alice", "bob")

	_, err := rig.messages.Append(ctx, conv.ID, "alice", "   ", nil, nil)
	assert.True(t, apperrors.IsValidation(err))

	// Attachments alone are enough.
	msg, err := rig.messages.Append(ctx, conv.ID, "alice", "", []models.Attachment{
		{Reference: "https://cdn.example.com/chat/a.png", OriginalName: "a.png", Size: 1024, MimeType: "image/png"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.MessageTypeImage, msg.Type)

	attachments := msg.GetAttachments()
	require.Len(t, attachments, 1)
	assert.Equal(t, "a.png", attachments[0].OriginalName)
}

func TestAppend_ReplyTargets(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	conv := directConv(t, rig, "alice", "bob")
	other := directConv(t, rig, "alice", "carol")

	original, err := rig.messages.Append(ctx, conv.ID, "alice", "first", nil, nil)
	require.NoError(t, err)

	reply, err := rig.messages.Append(ctx, conv.ID, "bob", "reply", nil, &original.ID)
	require.NoError(t, err)
	require.NotNil(t, reply.ReplyToID)
	assert.Equal(t, original.ID, *reply.ReplyToID)

	ghost := "missing"
	_, err = rig.messages.Append(ctx, conv.ID, "bob", "reply", nil, &ghost)
	assert.True(t, apperrors.IsNotFound(err))

	// Reply target must live in the same conversation.
	_, err = rig.messages.Append(ctx, other.ID, "alice", "reply", nil, &original.ID)
	assert.True(t, apperrors.IsValidation(err))
}

func TestListForConversation_NewestFirstWithCursor(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	conv := directConv(t, rig, "alice", "bob")

	base := time.Now().Add(-time.Hour)
	for i, content := range []string{"one", "two", "three"} {
		msg, err := rig.messages.Append(ctx, conv.ID, "alice", content, nil, nil)
		require.NoError(t, err)
		rig.db.Model(&models.Message{}).Where("id = ?", msg.ID).
			Update("created_at", base.Add(time.Duration(i)*time.Minute))
	}

	page, err := rig.messages.ListForConversation(ctx, conv.ID, 1, 2, nil)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "three", page[0].Content)
	assert.Equal(t, "two", page[1].Content)

	cursor := page[1].CreatedAt
	older, err := rig.messages.ListForConversation(ctx, conv.ID, 1, 2, &cursor)
	require.NoError(t, err)
	require.Len(t, older, 1)
	assert.Equal(t, "one", older[0].Content)
}

func TestMarkRead_Idempotent(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	conv := directConv(t, rig, "alice", "bob")

	msg, err := rig.messages.Append(ctx, conv.ID, "alice", "hello", nil, nil)
	require.NoError(t, err)

	require.NoError(t, rig.messages.MarkRead(ctx, msg.ID, "bob"))
	require.NoError(t, rig.messages.MarkRead(ctx, msg.ID, "bob"))

	var count int64
	rig.db.Model(&models.MessageRead{}).Where("message_id = ?", msg.ID).Count(&count)
	assert.Equal(t, int64(1), count)

	err = rig.messages.MarkRead(ctx, "missing", "bob")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestMarkRead_NonParticipant(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	conv := directConv(t, rig, "alice", "bob")
	rig.createUser(t, "mallory")

	msg, err := rig.messages.Append(ctx, conv.ID, "alice", "hello", nil, nil)
	require.NoError(t, err)

	err = rig.messages.MarkRead(ctx, msg.ID, "mallory")
	assert.True(t, apperrors.IsForbidden(err))
}

func TestSoftDelete_RedactsAndKeepsRow(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	conv := directConv(t, rig, "alice", "bob")

	msg, err := rig.messages.Append(ctx, conv.ID, "alice", "secret", []models.Attachment{
		{Reference: "https://cdn.example.com/chat/doc.pdf", OriginalName: "doc.pdf", Size: 2048, MimeType: "application/pdf"},
	}, nil)
	require.NoError(t, err)

	// Only the sender may delete.
	_, err = rig.messages.SoftDelete(ctx, msg.ID, "bob")
	assert.True(t, apperrors.IsForbidden(err))

	deleted, err := rig.messages.SoftDelete(ctx, msg.ID, "alice")
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	assert.Equal(t, models.DeletedContentPlaceholder, deleted.Content)

	// Still listable, already redacted, attachments gone.
	page, err := rig.messages.ListForConversation(ctx, conv.ID, 1, 10, nil)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.True(t, page[0].IsDeleted)
	assert.Equal(t, models.DeletedContentPlaceholder, page[0].Content)
	assert.Empty(t, page[0].GetAttachments())

	// Double delete is a no-op.
	again, err := rig.messages.SoftDelete(ctx, msg.ID, "alice")
	require.NoError(t, err)
	assert.True(t, again.IsDeleted)

	assert.True(t, rig.server.has(ConversationRoom(conv.ID), EventMessageDeleted))
}

func TestEdit(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	conv := directConv(t, rig, "alice", "bob")

	msg, err := rig.messages.Append(ctx, conv.ID, "alice", "tpyo", nil, nil)
	require.NoError(t, err)

	_, err = rig.messages.Edit(ctx, msg.ID, "bob", "fixed")
	assert.True(t, apperrors.IsForbidden(err))

	_, err = rig.messages.Edit(ctx, msg.ID, "alice", "   ")
	assert.True(t, apperrors.IsValidation(err))

	edited, err := rig.messages.Edit(ctx, msg.ID, "alice", "typo")
	require.NoError(t, err)
	assert.Equal(t, "typo", edited.Content)
	assert.NotNil(t, edited.EditedAt)
	assert.True(t, rig.server.has(ConversationRoom(conv.ID), EventMessageEdited))

	// Deleted messages are frozen.
	_, err = rig.messages.SoftDelete(ctx, msg.ID, "alice")
	require.NoError(t, err)
	_, err = rig.messages.Edit(ctx, msg.ID, "alice", "resurrect")
	assert.True(t, apperrors.IsValidation(err))
}

func TestToggleReaction_Involution(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	conv := directConv(t, rig, "alice", "bob")

	msg, err := rig.messages.Append(ctx, conv.ID, "alice", "hello", nil, nil)
	require.NoError(t, err)

	outcome, reactions, err := rig.messages.ToggleReaction(ctx, msg.ID, "bob", "👍")
	require.NoError(t, err)
	assert.Equal(t, ReactionAdded, outcome)
	require.Len(t, reactions, 1)

	// Same user, different emoji coexists.
	_, reactions, err = rig.messages.ToggleReaction(ctx, msg.ID, "bob", "🎉")
	require.NoError(t, err)
	assert.Len(t, reactions, 2)

	// Toggling again removes only that pair.
	outcome, reactions, err = rig.messages.ToggleReaction(ctx, msg.ID, "bob", "👍")
	require.NoError(t, err)
	assert.Equal(t, ReactionRemoved, outcome)
	require.Len(t, reactions, 1)
	assert.Equal(t, "🎉", reactions[0].Emoji)

	assert.True(t, rig.server.has(ConversationRoom(conv.ID), EventReactionUpdate))
}

func TestToggleReaction_NonParticipant(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	conv := directConv(t, rig, "alice", "bob")
	rig.createUser(t, "mallory")

	msg, err := rig.messages.Append(ctx, conv.ID, "alice", "hello", nil, nil)
	require.NoError(t, err)

	_, _, err = rig.messages.ToggleReaction(ctx, msg.ID, "mallory", "👍")
	assert.True(t, apperrors.IsForbidden(err))
}
