package coordinator

import (
	"sync"
	"testing"

	"github.com/armada-loadtest/coordinator/internal/model"
	"github.com/armada-loadtest/coordinator/internal/protocol"
)

const concurrentClients = 16

func mustEncode(t *testing.T, typ protocol.MessageType, payload interface{}) []byte {
	t.Helper()
	data, err := protocol.Encode(typ, payload)
	if err != nil {
		t.Fatalf("failed to encode %s: %v", typ, err)
	}
	return data
}

// crowdedRoom connects concurrentClients sessions into one room. The first
// session is the host.
func crowdedRoom(t *testing.T, c *Coordinator) (string, []string, []*fakeConn) {
	t.Helper()
	ids := make([]string, concurrentClients)
	conns := make([]*fakeConn, concurrentClients)
	for i := range ids {
		conns[i] = &fakeConn{}
		ids[i] = c.Connect(conns[i])
	}

	roomID := createRoom(t, c, ids[0], conns[0])
	join := mustEncode(t, protocol.TypeJoinRoom, protocol.JoinRoom{RoomID: roomID})
	for _, id := range ids[1:] {
		c.HandleMessage(id, join)
	}
	return roomID, ids, conns
}

func TestCoordinator_ConcurrentSubmissions(t *testing.T) {
	for iteration := 0; iteration < 20; iteration++ {
		c, archive := setupTestCoordinator()
		roomID, ids, conns := crowdedRoom(t, c)

		send(t, c, ids[0], protocol.TypeConfigureTest, protocol.ConfigureTest{Config: loadConfig()})
		send(t, c, ids[0], protocol.TypeStartTest, nil)

		first := mustEncode(t, protocol.TypeSubmitResults, protocol.SubmitResults{Results: &model.TestResult{
			TotalRequests: 10, SuccessfulRequests: 10, Duration: 500, StatusCodes: map[string]int{"200": 10},
		}})
		second := mustEncode(t, protocol.TypeSubmitResults, protocol.SubmitResults{Results: &model.TestResult{
			TotalRequests: 20, SuccessfulRequests: 20, Duration: 500, StatusCodes: map[string]int{"200": 20},
		}})

		var wg sync.WaitGroup
		for _, id := range ids {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				c.HandleMessage(id, first)
				c.HandleMessage(id, second)
			}(id)
		}
		wg.Wait()

		for i, conn := range conns {
			if n := conn.count(protocol.TypeTestCompleted); n != 1 {
				t.Fatalf("iteration %d: %s received %d test-completed events", iteration, ids[i], n)
			}
			if n := conn.count(protocol.TypeSubmitResults.Response()); n != 2 {
				t.Fatalf("iteration %d: %s received %d submit replies", iteration, ids[i], n)
			}
		}

		archive.mu.Lock()
		archived := len(archive.runs)
		archive.mu.Unlock()
		if archived != 1 {
			t.Fatalf("iteration %d: expected 1 archived run, got %d", iteration, archived)
		}

		snap, err := c.Room(roomID)
		if err != nil {
			t.Fatalf("room disappeared: %v", err)
		}
		if snap.Status != model.RoomStatusCompleted || snap.Submitted != concurrentClients {
			t.Fatalf("iteration %d: unexpected room state %+v", iteration, snap)
		}
	}
}

func TestCoordinator_ConcurrentDepartures(t *testing.T) {
	t.Run("members leave while the host stays", func(t *testing.T) {
		c, _ := setupTestCoordinator()
		roomID, ids, _ := crowdedRoom(t, c)

		leave := mustEncode(t, protocol.TypeLeaveRoom, protocol.LeaveRoom{})
		var wg sync.WaitGroup
		for _, id := range ids[1:] {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				c.HandleMessage(id, leave)
			}(id)
		}
		wg.Wait()

		snap, err := c.Room(roomID)
		if err != nil {
			t.Fatalf("room must survive: %v", err)
		}
		if snap.Host != ids[0] || len(snap.Members) != 1 || snap.Members[0] != ids[0] {
			t.Errorf("expected only the host to remain, got %+v", snap)
		}
	})

	t.Run("everyone disconnects", func(t *testing.T) {
		c, _ := setupTestCoordinator()
		roomID, ids, _ := crowdedRoom(t, c)

		var wg sync.WaitGroup
		for _, id := range ids {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				c.Disconnect(id)
			}(id)
		}
		wg.Wait()

		if _, err := c.Room(roomID); err == nil {
			t.Error("emptied room must be deleted")
		}
		if rooms, clients := c.Stats(); rooms != 0 || clients != 0 {
			t.Errorf("expected no rooms and no clients, got %d rooms and %d clients", rooms, clients)
		}
	})
}
