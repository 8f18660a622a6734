package ws

import (
	"context"
	"sync"

	"github.com/DoraeChat/DoraeChat-BE-sub000/logger"
	"github.com/DoraeChat/DoraeChat-BE-sub000/service/presence"
)

// Presence is the slice of the presence service the registry drives.
type Presence interface {
	MarkOnline(ctx context.Context, userID string)
	MarkOffline(ctx context.Context, userID string)
	QueryOnline(ctx context.Context, userID string) presence.Snapshot
}

// Manager owns every live connection and all room membership for this
// process. Rooms are named multicast groups: conversation ids, call ids,
// or a user id acting as that user's personal address. Nothing here is
// shared across processes; the Bridge carries fan-out between nodes.
type Manager struct {
	mu        sync.RWMutex
	conns     map[string]*Client            // connID -> client
	rooms     map[string]map[string]*Client // roomID -> connID -> client
	connRooms map[string]map[string]bool    // reverse index for O(rooms) disconnect
	userConns map[string]map[string]bool    // live connections per bound user

	node   string
	pres   Presence
	bridge Bridge
}

func NewManager(node string, pres Presence) *Manager {
	return &Manager{
		conns:     make(map[string]*Client),
		rooms:     make(map[string]map[string]*Client),
		connRooms: make(map[string]map[string]bool),
		userConns: make(map[string]map[string]bool),
		node:      node,
		pres:      pres,
	}
}

// SetBridge attaches the cross-process fan-out bridge. Call before the
// first connection is accepted; nil leaves the manager in single-node mode.
func (m *Manager) SetBridge(b Bridge) { m.bridge = b }

func (m *Manager) Node() string { return m.node }

// Register adds a fresh, still-unbound connection.
func (m *Manager) Register(c *Client) {
	if c == nil || c.ConnID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[c.ConnID] = c
}

// BindIdentity associates the connection with a user, joins the user's
// personal room and flips presence online. Idempotent: rebinding the same
// user is a no-op, and presence online refreshes the TTL at worst.
func (m *Manager) BindIdentity(ctx context.Context, connID, userID string) {
	if connID == "" || userID == "" {
		return
	}

	m.mu.Lock()
	c, ok := m.conns[connID]
	if !ok {
		m.mu.Unlock()
		return
	}
	if c.UserID != "" && c.UserID != userID {
		// a connection has at most one bound user; rebind moves it
		m.detachUserLocked(c)
	}
	c.UserID = userID
	if m.userConns[userID] == nil {
		m.userConns[userID] = make(map[string]bool)
	}
	m.userConns[userID][connID] = true
	m.joinRoomLocked(c, userID) // personal room
	m.mu.Unlock()

	m.pres.MarkOnline(ctx, userID)
}

// JoinRoom adds the connection to a room. Empty ids and unknown
// connections are silent no-ops so malformed client frames cannot abort
// the dispatch loop.
func (m *Manager) JoinRoom(connID, roomID string) {
	if connID == "" || roomID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[connID]
	if !ok {
		return
	}
	m.joinRoomLocked(c, roomID)
}

// JoinRoomReportFirst joins and reports whether the room was empty before
// the join, in one critical section. Call-relay handlers need the two to
// be atomic: a separate size check then join lets two concurrent joiners
// both observe an empty room and both claim the initiator role.
func (m *Manager) JoinRoomReportFirst(connID, roomID string) bool {
	if connID == "" || roomID == "" {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[connID]
	if !ok {
		return false
	}
	first := len(m.rooms[roomID]) == 0
	m.joinRoomLocked(c, roomID)
	return first
}

func (m *Manager) JoinRooms(connID string, roomIDs []string) {
	for _, r := range roomIDs {
		m.JoinRoom(connID, r)
	}
}

func (m *Manager) LeaveRoom(connID, roomID string) {
	if connID == "" || roomID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveRoomLocked(connID, roomID)
}

// OnDisconnect removes the connection from every room and, when it was the
// user's last live connection, flips presence offline.
func (m *Manager) OnDisconnect(ctx context.Context, connID string) {
	if connID == "" {
		return
	}

	m.mu.Lock()
	c, ok := m.conns[connID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.conns, connID)
	for roomID := range m.connRooms[connID] {
		m.leaveRoomLocked(connID, roomID)
	}
	delete(m.connRooms, connID)

	var lastOfUser bool
	user := c.UserID
	if user != "" {
		m.detachUserLocked(c)
		lastOfUser = len(m.userConns[user]) == 0
	}
	m.mu.Unlock()

	c.close()
	if lastOfUser {
		m.pres.MarkOffline(ctx, user)
	}
}

// Fanout delivers one event to every connection in the room, optionally
// excluding the sender, and mirrors it to other nodes through the bridge.
func (m *Manager) Fanout(roomID, event string, data any, excludeConnID string) {
	if roomID == "" || event == "" {
		return
	}
	frame, err := EncodeFrame(event, data)
	if err != nil {
		logger.Warnf("[ws] encode %s: %v", event, err)
		return
	}
	m.deliverLocal(roomID, frame, excludeConnID)
	if m.bridge != nil {
		if err := m.bridge.PublishRoom(roomID, frame); err != nil {
			logger.Warnf("[ws] bridge publish room=%s: %v", roomID, err)
		}
	}
}

// EmitToUser pushes to the user's personal room (every device).
func (m *Manager) EmitToUser(userID, event string, data any) {
	m.Fanout(userID, event, data, "")
}

// EmitToConversation pushes to the conversation room.
func (m *Manager) EmitToConversation(conversationID, event string, data any) {
	m.Fanout(conversationID, event, data, "")
}

// EmitToAll pushes to every live connection on every node.
func (m *Manager) EmitToAll(event string, data any) {
	frame, err := EncodeFrame(event, data)
	if err != nil {
		logger.Warnf("[ws] encode %s: %v", event, err)
		return
	}
	m.deliverAllLocal(frame)
	if m.bridge != nil {
		if err := m.bridge.PublishAll(frame); err != nil {
			logger.Warnf("[ws] bridge publish all: %v", err)
		}
	}
}

// SendToConn pushes to exactly one local connection.
func (m *Manager) SendToConn(connID, event string, data any) {
	frame, err := EncodeFrame(event, data)
	if err != nil {
		logger.Warnf("[ws] encode %s: %v", event, err)
		return
	}
	m.mu.RLock()
	c, ok := m.conns[connID]
	m.mu.RUnlock()
	if ok {
		enqueue(c, frame)
	}
}

func (m *Manager) RoomSize(roomID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms[roomID])
}

func (m *Manager) InRoom(connID, roomID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connRooms[connID][roomID]
}

// ---- locked helpers ----

func (m *Manager) joinRoomLocked(c *Client, roomID string) {
	if m.rooms[roomID] == nil {
		m.rooms[roomID] = make(map[string]*Client)
	}
	m.rooms[roomID][c.ConnID] = c
	if m.connRooms[c.ConnID] == nil {
		m.connRooms[c.ConnID] = make(map[string]bool)
	}
	m.connRooms[c.ConnID][roomID] = true
}

func (m *Manager) leaveRoomLocked(connID, roomID string) {
	if members, ok := m.rooms[roomID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(m.rooms, roomID)
		}
	}
	if rooms, ok := m.connRooms[connID]; ok {
		delete(rooms, roomID)
	}
}

func (m *Manager) detachUserLocked(c *Client) {
	if set, ok := m.userConns[c.UserID]; ok {
		delete(set, c.ConnID)
		if len(set) == 0 {
			delete(m.userConns, c.UserID)
		}
	}
}
