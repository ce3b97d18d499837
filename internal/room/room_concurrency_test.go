package room

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/armada-loadtest/coordinator/internal/model"
	"github.com/armada-loadtest/coordinator/internal/protocol"
)

const concurrentMembers = 16

func (b *recordingBroadcaster) count(t protocol.MessageType) int {
	n := 0
	for _, got := range b.types() {
		if got == t {
			n++
		}
	}
	return n
}

func (b *recordingBroadcaster) snapshot() []event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]event, len(b.events))
	copy(out, b.events)
	return out
}

// runningRoom returns a running room with concurrentMembers members, host first.
func runningRoom(t *testing.T) (*Room, *recordingBroadcaster, []string) {
	t.Helper()
	b := &recordingBroadcaster{}
	dir := NewDirectory(b, WithClock(fixedClock()))

	ids := []string{"client-0"}
	r := dir.Create(ids[0])
	for i := 1; i < concurrentMembers; i++ {
		id := fmt.Sprintf("client-%d", i)
		if _, err := r.Join(id); err != nil {
			t.Fatalf("Join failed: %v", err)
		}
		ids = append(ids, id)
	}
	if err := r.Configure(ids[0], testConfig()); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if err := r.Start(ids[0]); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return r, b, ids
}

func TestRoom_ConcurrentSubmit(t *testing.T) {
	for iteration := 0; iteration < 50; iteration++ {
		r, b, ids := runningRoom(t)

		var completions int32
		var wg sync.WaitGroup
		for _, id := range ids {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				// Submit, then resubmit with a different value.
				for attempt := 1; attempt <= 2; attempt++ {
					c, err := r.Submit(id, model.TestResult{
						TotalRequests: attempt * 10,
						Duration:      100,
					})
					if err != nil {
						t.Errorf("Submit from %s failed: %v", id, err)
						return
					}
					if c != nil {
						atomic.AddInt32(&completions, 1)
					}
				}
			}(id)
		}
		wg.Wait()

		if n := atomic.LoadInt32(&completions); n != 1 {
			t.Fatalf("iteration %d: expected exactly one completion, got %d", iteration, n)
		}
		if n := b.count(protocol.TypeTestCompleted); n != 1 {
			t.Fatalf("iteration %d: expected one test-completed broadcast, got %d", iteration, n)
		}
		snap := r.Snapshot()
		if snap.Status != model.RoomStatusCompleted || snap.Submitted != concurrentMembers {
			t.Fatalf("iteration %d: unexpected room state %+v", iteration, snap)
		}
	}
}

func TestRoom_ConcurrentJoinLeave(t *testing.T) {
	t.Run("host stays", func(t *testing.T) {
		b := &recordingBroadcaster{}
		dir := NewDirectory(b)
		r := dir.Create("host")

		var wg sync.WaitGroup
		for i := 0; i < concurrentMembers; i++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				for n := 0; n < 20; n++ {
					if _, err := r.Join(id); err != nil {
						t.Errorf("Join from %s failed: %v", id, err)
						return
					}
					r.Leave(id)
				}
			}(fmt.Sprintf("client-%d", i))
		}

		stop := make(chan struct{})
		checked := make(chan struct{})
		go func() {
			defer close(checked)
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := r.Snapshot()
				if !containsMember(snap.Members, snap.Host) {
					t.Errorf("host %s not in members %v", snap.Host, snap.Members)
					return
				}
			}
		}()

		wg.Wait()
		close(stop)
		<-checked

		snap := r.Snapshot()
		if snap.Host != "host" || len(snap.Members) != 1 || snap.Members[0] != "host" {
			t.Errorf("expected only the host to remain, got %+v", snap)
		}
		if _, err := dir.Get(r.ID()); err != nil {
			t.Errorf("room should still exist: %v", err)
		}
	})

	t.Run("everyone leaves", func(t *testing.T) {
		for iteration := 0; iteration < 50; iteration++ {
			b := &recordingBroadcaster{}
			dir := NewDirectory(b)
			r := dir.Create("client-0")
			ids := []string{"client-0"}
			for i := 1; i < concurrentMembers; i++ {
				id := fmt.Sprintf("client-%d", i)
				if _, err := r.Join(id); err != nil {
					t.Fatalf("Join failed: %v", err)
				}
				ids = append(ids, id)
			}

			var deleted int32
			var wg sync.WaitGroup
			for _, id := range ids {
				wg.Add(1)
				go func(id string) {
					defer wg.Done()
					if res := r.Leave(id); res.Deleted {
						atomic.AddInt32(&deleted, 1)
					}
				}(id)
			}
			wg.Wait()

			if n := atomic.LoadInt32(&deleted); n != 1 {
				t.Fatalf("iteration %d: expected the room to be deleted once, got %d", iteration, n)
			}
			if _, err := dir.Get(r.ID()); !errors.Is(err, model.ErrRoomNotFound) {
				t.Fatalf("iteration %d: emptied room still in directory: %v", iteration, err)
			}
			if dir.Count() != 0 {
				t.Fatalf("iteration %d: expected no rooms, got %d", iteration, dir.Count())
			}
			if _, err := r.Join("late"); !errors.Is(err, model.ErrRoomNotFound) {
				t.Fatalf("iteration %d: join after deletion should fail, got %v", iteration, err)
			}

			// Every host change names a member of the snapshot it was sent to.
			for _, e := range b.snapshot() {
				if e.typ != protocol.TypeHostChanged {
					continue
				}
				hc := e.payload.(protocol.HostChanged)
				if !containsMember(e.members, hc.NewHost) {
					t.Fatalf("iteration %d: new host %s not in members %v", iteration, hc.NewHost, e.members)
				}
			}
		}
	})
}

func containsMember(members []string, id string) bool {
	for _, m := range members {
		if m == id {
			return true
		}
	}
	return false
}
