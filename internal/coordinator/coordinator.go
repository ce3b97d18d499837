// Package coordinator routes decoded client operations to the room directory
// and the session registry, and replies to the originating session.
package coordinator

import (
	"errors"
	"log"
	"time"

	"github.com/armada-loadtest/coordinator/internal/model"
	"github.com/armada-loadtest/coordinator/internal/protocol"
	"github.com/armada-loadtest/coordinator/internal/registry"
	"github.com/armada-loadtest/coordinator/internal/room"
)

// Archive receives completed runs. Submit must not block.
type Archive interface {
	Submit(run *model.Run) bool
}

// Config holds optional collaborators of a Coordinator.
type Config struct {
	// Clock overrides time.Now for run timestamps.
	Clock func() time.Time
	// Archive receives every completed run. Nil disables archiving.
	Archive Archive
}

// Coordinator is the message router shared by every session.
type Coordinator struct {
	registry *registry.Registry
	rooms    *room.Directory
	archive  Archive
}

// New creates a Coordinator with an empty registry and room directory.
func New(cfg Config) *Coordinator {
	reg := registry.New()

	var opts []room.Option
	if cfg.Clock != nil {
		opts = append(opts, room.WithClock(cfg.Clock))
	}

	return &Coordinator{
		registry: reg,
		rooms:    room.NewDirectory(NewDispatcher(reg), opts...),
		archive:  cfg.Archive,
	}
}

// Connect registers a new session and greets it with its id.
func (c *Coordinator) Connect(conn registry.Conn) string {
	id := c.registry.Register(conn)
	log.Printf("Client %s connected", id)
	c.send(id, protocol.TypeConnected, protocol.Connected{ClientID: id})
	return id
}

// Disconnect runs the departure path for a session whose transport is gone.
func (c *Coordinator) Disconnect(id string) {
	roomID := c.registry.Unregister(id)
	log.Printf("Client %s disconnected", id)
	c.depart(id, roomID)
}

// HandleMessage decodes one inbound envelope and applies it.
// Protocol errors are reported to the sender only and leave all state untouched.
func (c *Coordinator) HandleMessage(id string, data []byte) {
	req, err := protocol.Decode(data)
	if err != nil {
		var perr *protocol.ProtocolError
		if errors.As(err, &perr) {
			log.Printf("Rejected message from %s: %v", id, perr)
			c.send(id, protocol.TypeError, protocol.ErrorPayload{Error: perr.Message})
			return
		}
		c.send(id, protocol.TypeError, protocol.ErrorPayload{Error: protocol.MsgInvalidFormat})
		return
	}

	switch r := req.(type) {
	case protocol.CreateRoom:
		c.createRoom(id)
	case protocol.JoinRoom:
		c.joinRoom(id, r.RoomID)
	case protocol.ConfigureTest:
		c.configureTest(id, r.Config)
	case protocol.StartTest:
		c.startTest(id)
	case protocol.SubmitResults:
		c.submitResults(id, *r.Results)
	case protocol.LeaveRoom:
		c.leaveRoom(id)
	}
}

func (c *Coordinator) createRoom(id string) {
	c.leaveCurrent(id)

	r := c.rooms.Create(id)
	c.registry.Bind(id, r.ID())
	log.Printf("Room %s created by %s", r.ID(), id)

	c.send(id, protocol.TypeCreateRoom.Response(), protocol.CreateRoomReply{
		Success: true,
		RoomID:  r.ID(),
	})
}

func (c *Coordinator) joinRoom(id, roomID string) {
	reply := protocol.TypeJoinRoom.Response()

	r, err := c.rooms.Get(roomID)
	if err != nil {
		c.fail(id, reply, err, "")
		return
	}

	// The old room is left only once the target has accepted the session, so
	// a failed join keeps the session where it was.
	info, err := r.Join(id)
	if err != nil {
		c.fail(id, reply, err, "")
		return
	}
	if current := c.registry.RoomOf(id); current != "" && current != roomID {
		c.leaveCurrent(id)
	}
	c.registry.Bind(id, roomID)
	log.Printf("Client %s joined room %s", id, roomID)

	c.send(id, reply, protocol.JoinRoomReply{
		Success:     true,
		RoomID:      roomID,
		Config:      info.Config,
		Status:      info.Status,
		ClientCount: info.ClientCount,
	})
}

func (c *Coordinator) configureTest(id string, config *model.TestConfig) {
	reply := protocol.TypeConfigureTest.Response()

	r, err := c.currentRoom(id)
	if err != nil {
		c.fail(id, reply, err, "")
		return
	}
	if err := r.Configure(id, config); err != nil {
		c.fail(id, reply, err, "Only the host can configure the test")
		return
	}
	log.Printf("Test configured in room %s", r.ID())

	c.send(id, reply, protocol.Reply{Success: true})
}

func (c *Coordinator) startTest(id string) {
	reply := protocol.TypeStartTest.Response()

	r, err := c.currentRoom(id)
	if err != nil {
		c.fail(id, reply, err, "")
		return
	}
	if err := r.Start(id); err != nil {
		c.fail(id, reply, err, "Only the host can start the test")
		return
	}
	log.Printf("Test started in room %s", r.ID())

	c.send(id, reply, protocol.Reply{Success: true})
}

func (c *Coordinator) submitResults(id string, result model.TestResult) {
	reply := protocol.TypeSubmitResults.Response()

	r, err := c.currentRoom(id)
	if err != nil {
		c.fail(id, reply, err, "")
		return
	}

	completion, err := r.Submit(id, result)
	if err != nil {
		c.fail(id, reply, err, "")
		return
	}
	log.Printf("Results received from %s in room %s", id, r.ID())

	c.send(id, reply, protocol.Reply{Success: true})

	if completion != nil {
		log.Printf("Test completed in room %s (run %s, %d clients)",
			completion.RoomID, completion.RunID, completion.Aggregate.ClientCount)
		if c.archive != nil {
			c.archive.Submit(completion.Run())
		}
	}
}

func (c *Coordinator) leaveRoom(id string) {
	c.leaveCurrent(id)
	c.send(id, protocol.TypeLeaveRoom.Response(), protocol.Reply{Success: true})
}

// leaveCurrent unbinds the session and runs the departure path for its room.
func (c *Coordinator) leaveCurrent(id string) {
	c.depart(id, c.registry.Unbind(id))
}

// depart is the single departure path, shared by leave-room and disconnects.
func (c *Coordinator) depart(id, roomID string) {
	if roomID == "" {
		return
	}

	r, err := c.rooms.Get(roomID)
	if err != nil {
		return
	}

	res := r.Leave(id)
	switch {
	case res.Deleted:
		log.Printf("Room %s deleted (empty)", roomID)
	case res.NewHost != "":
		log.Printf("Client %s left room %s, new host is %s", id, roomID, res.NewHost)
	default:
		log.Printf("Client %s left room %s", id, roomID)
	}
}

func (c *Coordinator) currentRoom(id string) (*room.Room, error) {
	roomID := c.registry.RoomOf(id)
	if roomID == "" {
		return nil, model.ErrNotInRoom
	}
	r, err := c.rooms.Get(roomID)
	if err != nil {
		return nil, model.ErrNotInRoom
	}
	return r, nil
}

// fail sends a precondition failure reply. notHost is the message used for ErrNotHost.
func (c *Coordinator) fail(id string, t protocol.MessageType, err error, notHost string) {
	c.send(id, t, protocol.Reply{Success: false, Error: errorMessage(err, notHost)})
}

func errorMessage(err error, notHost string) string {
	switch {
	case errors.Is(err, model.ErrNotInRoom):
		return "Not in a room"
	case errors.Is(err, model.ErrNotHost):
		return notHost
	case errors.Is(err, model.ErrNotConfigured):
		return "Test not configured"
	case errors.Is(err, model.ErrRoomNotFound):
		return "Room not found"
	case errors.Is(err, model.ErrNoActiveRun):
		return "No test running"
	default:
		return err.Error()
	}
}

func (c *Coordinator) send(id string, t protocol.MessageType, payload interface{}) {
	data, err := protocol.Encode(t, payload)
	if err != nil {
		log.Printf("Failed to encode %s for %s: %v", t, id, err)
		return
	}
	c.registry.Send(id, data)
}

// Rooms returns snapshots of every active room.
func (c *Coordinator) Rooms() []model.RoomSnapshot {
	rooms := c.rooms.List()
	out := make([]model.RoomSnapshot, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Snapshot())
	}
	return out
}

// Room returns a snapshot of one room, or ErrRoomNotFound.
func (c *Coordinator) Room(id string) (model.RoomSnapshot, error) {
	r, err := c.rooms.Get(id)
	if err != nil {
		return model.RoomSnapshot{}, err
	}
	return r.Snapshot(), nil
}

// Stats reports the number of active rooms and connected sessions.
func (c *Coordinator) Stats() (rooms, clients int) {
	return c.rooms.Count(), c.registry.Count()
}
