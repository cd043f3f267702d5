package realtime

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Bus forwards broadcasts to peer nodes. Publish must not block.
type Bus interface {
	Publish(topic string, payload []byte)
}

// Router is the subscription registry for live connections. It tracks connections per session
// and topic memberships, and fans payloads out to every connection subscribed to a topic.
// It is constructed explicitly and handed to the transport layer; there is no package-level instance.
type Router struct {
	mu           sync.RWMutex
	sessions     map[string]*Connection            // sessionID -> connection
	rooms        map[string]map[string]*Connection // topic -> sessionID -> connection
	sessionRooms map[string]map[string]struct{}    // sessionID -> set of topics
	bus          Bus
}

// NewRouter constructs an initialized Router.
func NewRouter() *Router {
	return &Router{
		sessions:     make(map[string]*Connection),
		rooms:        make(map[string]map[string]*Connection),
		sessionRooms: make(map[string]map[string]struct{}),
	}
}

// SetBus enables cross-node forwarding of broadcasts. Call before serving traffic.
func (r *Router) SetBus(bus Bus) {
	r.mu.Lock()
	r.bus = bus
	r.mu.Unlock()
}

// Attach registers a connection and starts its write loop. A user may attach several
// connections at once.
func (r *Router) Attach(conn *Connection) {
	r.mu.Lock()
	r.sessions[conn.ID] = conn
	r.sessionRooms[conn.ID] = make(map[string]struct{})
	r.mu.Unlock()

	conn.Start()
}

// Detach removes a connection and returns the topics it was subscribed to.
func (r *Router) Detach(conn *Connection) []string {
	r.mu.Lock()
	topics := r.detachLocked(conn.ID)
	r.mu.Unlock()
	return topics
}

// Subscribe adds the connection to the topic. It reports false when the connection is not attached.
func (r *Router) Subscribe(topic string, conn *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[conn.ID]; !ok {
		return false
	}

	room := r.rooms[topic]
	if room == nil {
		room = make(map[string]*Connection)
		r.rooms[topic] = room
	}
	room[conn.ID] = conn

	memberships := r.sessionRooms[conn.ID]
	if memberships == nil {
		memberships = make(map[string]struct{})
		r.sessionRooms[conn.ID] = memberships
	}
	memberships[topic] = struct{}{}
	return true
}

// Unsubscribe removes the connection from the topic.
func (r *Router) Unsubscribe(topic string, conn *Connection) {
	r.mu.Lock()
	r.leaveLocked(topic, conn.ID)
	r.mu.Unlock()
}

// Sessions returns the number of attached connections.
func (r *Router) Sessions() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Subscribers returns the number of local connections subscribed to topic.
func (r *Router) Subscribers(topic string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[topic])
}

// Broadcast writes payload to every local subscriber of topic and forwards it to peer
// nodes when a bus is configured. It returns the number of local deliveries.
func (r *Router) Broadcast(topic string, payload []byte) int {
	delivered := r.DeliverLocal(topic, payload)

	r.mu.RLock()
	bus := r.bus
	r.mu.RUnlock()
	if bus != nil {
		bus.Publish(topic, payload)
	}
	return delivered
}

// DeliverLocal writes payload to local subscribers only. Peer-node traffic enters here.
func (r *Router) DeliverLocal(topic string, payload []byte) int {
	r.mu.RLock()
	room := r.rooms[topic]
	if len(room) == 0 {
		r.mu.RUnlock()
		return 0
	}
	targets := make([]*Connection, 0, len(room))
	for _, conn := range room {
		targets = append(targets, conn)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, conn := range targets {
		if err := conn.Send(payload); err == nil {
			delivered++
		}
	}
	return delivered
}

// Close terminates all tracked connections. Memberships stay registered so that each
// connection's owner can still Detach it and learn which topics it had joined.
func (r *Router) Close() {
	r.mu.RLock()
	sessions := make([]*Connection, 0, len(r.sessions))
	for _, conn := range r.sessions {
		sessions = append(sessions, conn)
	}
	r.mu.RUnlock()

	for _, conn := range sessions {
		conn.Close(websocket.CloseGoingAway, "server shutdown")
	}
}

func (r *Router) detachLocked(sessionID string) []string {
	if _, ok := r.sessions[sessionID]; !ok {
		return nil
	}
	delete(r.sessions, sessionID)

	var topics []string
	for topic := range r.sessionRooms[sessionID] {
		topics = append(topics, topic)
		r.leaveLocked(topic, sessionID)
	}
	delete(r.sessionRooms, sessionID)
	return topics
}

func (r *Router) leaveLocked(topic string, sessionID string) {
	if sessionID == "" {
		return
	}
	room := r.rooms[topic]
	if room == nil {
		return
	}
	delete(room, sessionID)
	if len(room) == 0 {
		delete(r.rooms, topic)
	}
	if memberships, ok := r.sessionRooms[sessionID]; ok {
		delete(memberships, topic)
	}
}
