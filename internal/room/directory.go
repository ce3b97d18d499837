package room

import (
	"crypto/rand"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/armada-loadtest/coordinator/internal/model"
	"github.com/armada-loadtest/coordinator/internal/protocol"
)

// Broadcaster delivers an event to a membership snapshot.
type Broadcaster interface {
	Broadcast(members []string, t protocol.MessageType, payload interface{})
}

// Directory owns the set of active rooms.
type Directory struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	broadcaster Broadcaster
	now         func() time.Time

	idMu    sync.Mutex
	entropy io.Reader
}

// Option configures a Directory.
type Option func(*Directory)

// WithClock overrides the wall clock used for start and completion timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Directory) {
		d.now = now
	}
}

// NewDirectory creates an empty Directory whose rooms notify through b.
func NewDirectory(b Broadcaster, opts ...Option) *Directory {
	d := &Directory{
		rooms:       make(map[string]*Room),
		broadcaster: b,
		now:         time.Now,
		entropy:     ulid.Monotonic(rand.Reader, 0),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Create allocates a new waiting room hosted by hostID.
func (d *Directory) Create(hostID string) *Room {
	r := &Room{
		id:      uuid.New().String(),
		dir:     d,
		host:    hostID,
		members: []string{hostID},
		status:  model.RoomStatusWaiting,
	}

	d.mu.Lock()
	d.rooms[r.id] = r
	d.mu.Unlock()

	return r
}

// Get returns the room for id, or ErrRoomNotFound.
func (d *Directory) Get(id string) (*Room, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	r, ok := d.rooms[id]
	if !ok {
		return nil, model.ErrRoomNotFound
	}
	return r, nil
}

// List returns every active room ordered by id.
func (d *Directory) List() []*Room {
	d.mu.RLock()
	rooms := make([]*Room, 0, len(d.rooms))
	for _, r := range d.rooms {
		rooms = append(rooms, r)
	}
	d.mu.RUnlock()

	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].id < rooms[j].id
	})
	return rooms
}

// Count returns the number of active rooms.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}

// remove deletes an emptied room. Called with the room's lock held.
func (d *Directory) remove(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.rooms, id)
}

func (d *Directory) newRunID(t time.Time) string {
	d.idMu.Lock()
	defer d.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), d.entropy).String()
}
