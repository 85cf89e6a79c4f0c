package services

import (
	"sync"
)

// Connection is the slice of a live socket the chat core needs: an identity,
// room membership control and a direct emit channel. *socketio.Conn
// satisfies it.
type Connection interface {
	ID() string
	Join(room string)
	Leave(room string)
	Emit(event string, args ...interface{})
}

// PresenceRegistry tracks which users currently hold live connections.
// A user may be connected from several devices at once, so the registry maps
// user id to a set of connection handles and only reports a user offline
// when the last one goes away.
//
// Entirely process-local: rebuilt from scratch on restart, no durability.
type PresenceRegistry struct {
	mu sync.RWMutex

	// userID -> connID -> handle
	byUser map[string]map[string]Connection
	// connID -> userID
	byConn map[string]string
}

func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{
		byUser: make(map[string]map[string]Connection),
		byConn: make(map[string]string),
	}
}

// Register binds a connection handle to a user. Returns true when this is the
// user's first live connection (an offline -> online transition).
func (p *PresenceRegistry) Register(userID string, conn Connection) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	conns, ok := p.byUser[userID]
	if !ok {
		conns = make(map[string]Connection)
		p.byUser[userID] = conns
	}
	first := len(conns) == 0
	conns[conn.ID()] = conn
	p.byConn[conn.ID()] = userID
	return first
}

// Unregister removes a connection. Returns the owning user id and true when
// that was the user's last connection (an online -> offline transition).
func (p *PresenceRegistry) Unregister(connID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	userID, ok := p.byConn[connID]
	if !ok {
		return "", false
	}
	delete(p.byConn, connID)

	conns := p.byUser[userID]
	delete(conns, connID)
	if len(conns) == 0 {
		delete(p.byUser, userID)
		return userID, true
	}
	return userID, false
}

func (p *PresenceRegistry) IsOnline(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byUser[userID]) > 0
}

// ConnectionsFor returns all live handles for a user, covering fan-out to
// every device rather than just one.
func (p *PresenceRegistry) ConnectionsFor(userID string) []Connection {
	p.mu.RLock()
	defer p.mu.RUnlock()

	conns := make([]Connection, 0, len(p.byUser[userID]))
	for _, c := range p.byUser[userID] {
		conns = append(conns, c)
	}
	return conns
}

// OnlineUsers returns the ids of all users with at least one connection.
func (p *PresenceRegistry) OnlineUsers() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	users := make([]string, 0, len(p.byUser))
	for userID := range p.byUser {
		users = append(users, userID)
	}
	return users
}
