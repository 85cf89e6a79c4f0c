package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/saem16/professional-networking-platform-sub001/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB opens a fresh in-memory SQLite database per test so tests never
// see each other's rows.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

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
	return db
}

// recordedEmit is one BroadcastToRoom call captured by the fake server.
type recordedEmit struct {
	Room    string
	Event   string
	Payload interface{}
}

// fakeBroadcaster records room emits instead of talking to a socket server.
type fakeBroadcaster struct {
	mu    sync.Mutex
	emits []recordedEmit
}

func (f *fakeBroadcaster) BroadcastToRoom(namespace, room, event string, args ...interface{}) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	var payload interface{}
	if len(args) > 0 {
		payload = args[0]
	}
	f.emits = append(f.emits, recordedEmit{Room: room, Event: event, Payload: payload})
	return true
}

func (f *fakeBroadcaster) eventsFor(room string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var events []string
	for _, e := range f.emits {
		if e.Room == room {
			events = append(events, e.Event)
		}
	}
	return events
}

func (f *fakeBroadcaster) has(room, event string) bool {
	for _, e := range f.eventsFor(room) {
		if e == event {
			return true
		}
	}
	return false
}

// fakeConn satisfies Connection without a real socket.
type fakeConn struct {
	id string

	mu    sync.Mutex
	rooms map[string]bool
	sent  []recordedEmit
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id, rooms: make(map[string]bool)}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Join(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[room] = true
}

func (c *fakeConn) Leave(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, room)
}

func (c *fakeConn) Emit(event string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var payload interface{}
	if len(args) > 0 {
		payload = args[0]
	}
	c.sent = append(c.sent, recordedEmit{Event: event, Payload: payload})
}

func (c *fakeConn) inRoom(room string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rooms[room]
}

// recordedNotification is one bridge invocation captured by the fake notifier.
type recordedNotification struct {
	RecipientID string
	ActorID     string
	Type        models.NotificationType
	Payload     map[string]interface{}
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []recordedNotification
}

func (f *fakeNotifier) CreateNotification(ctx context.Context, recipientID, actorID string, ntype models.NotificationType, payload map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, recordedNotification{
		RecipientID: recipientID,
		ActorID:     actorID,
		Type:        ntype,
		Payload:     payload,
	})
}

func (f *fakeNotifier) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		ids = append(ids, c.RecipientID)
	}
	return ids
}

// testRig wires the full service graph over fakes.
type testRig struct {
	db            *gorm.DB
	server        *fakeBroadcaster
	presence      *PresenceRegistry
	rooms         *RoomManager
	users         *UserService
	conversations *ConversationService
	messages      *MessageService
	notifier      *fakeNotifier
	chat          *Dispatcher
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()

	db := newTestDB(t)
	server := &fakeBroadcaster{}
	presence := NewPresenceRegistry()
	rooms := NewRoomManager(server, presence)
	users := NewUserService(db)
	conversations := NewConversationService(db, rooms)
	messages := NewMessageService(db, rooms)
	notifier := &fakeNotifier{}

	return &testRig{
		db:            db,
		server:        server,
		presence:      presence,
		rooms:         rooms,
		users:         users,
		conversations: conversations,
		messages:      messages,
		notifier:      notifier,
		chat:          NewDispatcher(conversations, messages, presence, rooms, users, notifier),
	}
}

func (r *testRig) createUser(t *testing.T, id string) models.User {
	t.Helper()
	user := models.User{
		ID:       id,
		Name:     id,
		Username: id,
		Email:    id + "@example.com",
	}
	require.NoError(t, r.db.FirstOrCreate(&user, "id = ?", id).Error)
	return user
}
