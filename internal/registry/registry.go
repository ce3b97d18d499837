// Package registry tracks live coordination sessions and the room each one is bound to.
package registry

import (
	"fmt"
	"sync"
)

// Conn is the transport handle of a session.
type Conn interface {
	// Send queues data for delivery without blocking.
	Send(data []byte)
	// IsClosed reports whether the transport can no longer deliver.
	IsClosed() bool
}

// Session represents one connected agent.
type Session struct {
	ID     string
	conn   Conn
	roomID string
}

// Conn returns the session's transport handle.
func (s *Session) Conn() Conn {
	return s.conn
}

// Registry manages sessions for the lifetime of the process.
type Registry struct {
	mu       sync.RWMutex
	nextID   uint64
	sessions map[string]*Session
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Register assigns a fresh session id to conn. Ids are never reused.
func (r *Registry) Register(conn Conn) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := fmt.Sprintf("client-%d", r.nextID)
	r.sessions[id] = &Session{ID: id, conn: conn}
	return id
}

// Lookup returns the live session for id.
func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Unregister removes the session and returns the room it was bound to, if any.
// Unknown ids are ignored.
func (r *Registry) Unregister(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return ""
	}
	delete(r.sessions, id)
	return s.roomID
}

// Bind records that the session belongs to roomID.
func (r *Registry) Bind(id, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.roomID = roomID
	}
}

// Unbind clears the session's room binding and returns the previous room.
func (r *Registry) Unbind(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return ""
	}
	roomID := s.roomID
	s.roomID = ""
	return roomID
}

// RoomOf returns the room the session is bound to, or "" when unbound.
func (r *Registry) RoomOf(id string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.sessions[id]; ok {
		return s.roomID
	}
	return ""
}

// Send delivers data to the session if its transport is open.
// It reports whether the data was handed to the transport.
func (r *Registry) Send(id string, data []byte) bool {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok || s.conn == nil || s.conn.IsClosed() {
		return false
	}
	s.conn.Send(data)
	return true
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
