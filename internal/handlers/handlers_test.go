package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/saem16/professional-networking-platform-sub001/internal/database"
	"github.com/saem16/professional-networking-platform-sub001/internal/models"
	"github.com/saem16/professional-networking-platform-sub001/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SetupTestDB wires the handler package to services over an in-memory SQLite
// DB. The room manager runs without a socket server; emits become no-ops.
func SetupTestDB(t *testing.T) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Conversation{},
		&models.ConversationParticipant{},
		&models.Message{},
		&models.MessageRead{},
		&models.MessageReaction{},
		&models.Notification{},
	))
	database.DB = db

	presence := services.NewPresenceRegistry()
	rooms := services.NewRoomManager(nil, presence)
	users := services.NewUserService(db)
	conversations := services.NewConversationService(db, rooms)
	messages := services.NewMessageService(db, rooms)
	notifications := services.NewNotificationService(db, rooms, nil, "notifications")

	Init(Deps{
		Conversations: conversations,
		Messages:      messages,
		Presence:      presence,
		Rooms:         rooms,
		Users:         users,
		Notifications: notifications,
		Chat:          services.NewDispatcher(conversations, messages, presence, rooms, users, notifications),
	})
}

func testCtx() context.Context { return context.Background() }

func createTestUser(t *testing.T, id string) {
	t.Helper()
	user := models.User{ID: id, Name: id, Username: id, Email: id + "@example.com"}
	require.NoError(t, database.DB.FirstOrCreate(&user, "id = ?", id).Error)
}

func jsonRequest(t *testing.T, method, target string, body interface{}) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	c.Request, _ = http.NewRequest(method, target, &buf)
	c.Request.Header.Set("Content-Type", "application/json")
	return w, c
}

func TestCreateDirectConversationHandler(t *testing.T) {
	SetupTestDB(t)
	createTestUser(t, "alice")
	createTestUser(t, "bob")

	w, c := jsonRequest(t, "POST", "/api/chat/conversations/direct", gin.H{"userId": "bob"})
	c.Set("userId", "alice")
	CreateDirectConversation(c)
	assert.Equal(t, http.StatusCreated, w.Code)

	var first struct {
		Conversation models.Conversation `json:"conversation"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))

	// Second call from the other side finds the same thread.
	w, c = jsonRequest(t, "POST", "/api/chat/conversations/direct", gin.H{"userId": "alice"})
	c.Set("userId", "bob")
	CreateDirectConversation(c)
	assert.Equal(t, http.StatusOK, w.Code)

	var second struct {
		Conversation models.Conversation `json:"conversation"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.Equal(t, first.Conversation.ID, second.Conversation.ID)
}

func TestCreateDirectConversationHandler_Self(t *testing.T) {
	SetupTestDB(t)
	createTestUser(t, "alice")

	w, c := jsonRequest(t, "POST", "/api/chat/conversations/direct", gin.H{"userId": "alice"})
	c.Set("userId", "alice")
	CreateDirectConversation(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendAndListMessagesHandler(t *testing.T) {
	SetupTestDB(t)
	createTestUser(t, "alice")
	createTestUser(t, "bob")
	createTestUser(t, "mallory")

	conv, _, err := Conversations.FindOrCreateDirect(testCtx(), "alice", "bob")
	require.NoError(t, err)

	w, c := jsonRequest(t, "POST", "/api/chat/conversations/"+conv.ID+"/messages", gin.H{"content": "hello"})
	c.Set("userId", "alice")
	c.Params = gin.Params{{Key: "id", Value: conv.ID}}
	SendMessage(c)
	assert.Equal(t, http.StatusCreated, w.Code)

	// Outsiders get a 403, not a hint about the conversation.
	w, c = jsonRequest(t, "POST", "/api/chat/conversations/"+conv.ID+"/messages", gin.H{"content": "hi"})
	c.Set("userId", "mallory")
	c.Params = gin.Params{{Key: "id", Value: conv.ID}}
	SendMessage(c)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, c = jsonRequest(t, "GET", "/api/chat/conversations/"+conv.ID+"/messages", nil)
	c.Set("userId", "bob")
	c.Params = gin.Params{{Key: "id", Value: conv.ID}}
	ListMessages(c)
	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Messages []models.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response.Messages, 1)
	assert.Equal(t, "hello", response.Messages[0].Content)

	w, c = jsonRequest(t, "GET", "/api/chat/conversations/"+conv.ID+"/messages", nil)
	c.Set("userId", "mallory")
	c.Params = gin.Params{{Key: "id", Value: conv.ID}}
	ListMessages(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestListMessagesHandler_BadCursor(t *testing.T) {
	SetupTestDB(t)
	createTestUser(t, "alice")
	createTestUser(t, "bob")

	conv, _, err := Conversations.FindOrCreateDirect(testCtx(), "alice", "bob")
	require.NoError(t, err)

	w, c := jsonRequest(t, "GET", "/api/chat/conversations/"+conv.ID+"/messages?before=yesterday", nil)
	c.Set("userId", "alice")
	c.Params = gin.Params{{Key: "id", Value: conv.ID}}
	c.Request.URL.RawQuery = "before=yesterday"
	ListMessages(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMarkConversationReadHandler(t *testing.T) {
	SetupTestDB(t)
	createTestUser(t, "alice")
	createTestUser(t, "bob")

	conv, _, err := Conversations.FindOrCreateDirect(testCtx(), "alice", "bob")
	require.NoError(t, err)

	_, err = Chat.Send(testCtx(), services.SendRequest{ConversationID: conv.ID, SenderID: "alice", Content: "ping"})
	require.NoError(t, err)

	w, c := jsonRequest(t, "POST", "/api/chat/conversations/"+conv.ID+"/read", nil)
	c.Set("userId", "bob")
	c.Params = gin.Params{{Key: "id", Value: conv.ID}}
	MarkConversationRead(c)
	assert.Equal(t, http.StatusOK, w.Code)

	var p models.ConversationParticipant
	require.NoError(t, database.DB.First(&p, "conversation_id = ? AND user_id = ?", conv.ID, "bob").Error)
	assert.Equal(t, 0, p.UnreadCount)
}

func TestEditMessageHandler(t *testing.T) {
	SetupTestDB(t)
	createTestUser(t, "alice")
	createTestUser(t, "bob")

	conv, _, err := Conversations.FindOrCreateDirect(testCtx(), "alice", "bob")
	require.NoError(t, err)
	msg, err := Chat.Send(testCtx(), services.SendRequest{ConversationID: conv.ID, SenderID: "alice", Content: "tpyo"})
	require.NoError(t, err)

	w, c := jsonRequest(t, "PUT", "/api/chat/messages/"+msg.ID, gin.H{"content": "typo"})
	c.Set("userId", "bob")
	c.Params = gin.Params{{Key: "id", Value: msg.ID}}
	EditMessage(c)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, c = jsonRequest(t, "PUT", "/api/chat/messages/"+msg.ID, gin.H{"content": "typo"})
	c.Set("userId", "alice")
	c.Params = gin.Params{{Key: "id", Value: msg.ID}}
	EditMessage(c)
	assert.Equal(t, http.StatusOK, w.Code)
}
