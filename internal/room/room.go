package room

import (
	"sync"

	"github.com/armada-loadtest/coordinator/internal/aggregate"
	"github.com/armada-loadtest/coordinator/internal/model"
	"github.com/armada-loadtest/coordinator/internal/protocol"
)

// Room is one coordinated test group.
type Room struct {
	id  string
	dir *Directory

	mu      sync.Mutex
	host    string
	members []string
	config  *model.TestConfig
	status  model.RoomStatus
	run     *RunRecord
	closed  bool
}

// ID returns the room identifier.
func (r *Room) ID() string {
	return r.id
}

// JoinInfo is what a late joiner needs to resynchronize.
type JoinInfo struct {
	Config      *model.TestConfig
	Status      model.RoomStatus
	ClientCount int
}

// Join appends the session to the member list and broadcasts the new count.
// A session joining twice appears twice.
func (r *Room) Join(sessionID string) (JoinInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return JoinInfo{}, model.ErrRoomNotFound
	}

	r.members = append(r.members, sessionID)
	r.broadcastLocked(protocol.TypeClientJoined, protocol.MembershipChanged{
		ClientID:    sessionID,
		ClientCount: len(r.members),
	})

	return JoinInfo{
		Config:      r.config.Clone(),
		Status:      r.status,
		ClientCount: len(r.members),
	}, nil
}

// Configure overwrites the config and forces the status to configured.
// It is allowed from any status, including running and completed.
func (r *Room) Configure(sessionID string, config *model.TestConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return model.ErrNotInRoom
	}
	if r.host != sessionID {
		return model.ErrNotHost
	}

	r.config = config.Clone()
	r.status = model.RoomStatusConfigured
	r.broadcastLocked(protocol.TypeTestConfigured, r.config)
	return nil
}

// Start moves a configured room to running, opens a new run record and
// broadcasts the shared start timestamp with the active config.
func (r *Room) Start(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return model.ErrNotInRoom
	}
	if r.host != sessionID {
		return model.ErrNotHost
	}
	if r.status != model.RoomStatusConfigured {
		return model.ErrNotConfigured
	}

	now := r.dir.now()
	r.status = model.RoomStatusRunning
	r.run = newRunRecord(r.dir.newRunID(now), now)

	r.broadcastLocked(protocol.TypeTestStarted, protocol.TestStarted{
		StartTime: now.UnixMilli(),
		Config:    r.config,
	})
	return nil
}

// Submit stores the session's result, overwriting an earlier one from the same
// session. When the number of stored results equals the current member count
// the run is aggregated, the room completes and the aggregate is broadcast.
// A run is aggregated at most once; the returned Completion is non-nil only for
// the submission that triggered it.
func (r *Room) Submit(sessionID string, result model.TestResult) (*Completion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, model.ErrNotInRoom
	}
	if r.run == nil {
		return nil, model.ErrNoActiveRun
	}

	r.run.Results[sessionID] = result

	if r.run.Completed() || len(r.run.Results) != len(r.members) {
		return nil, nil
	}

	now := r.dir.now()
	agg := aggregate.Merge(r.run.Results, now)
	r.run.Aggregate = &agg
	r.status = model.RoomStatusCompleted

	r.broadcastLocked(protocol.TypeTestCompleted, agg)

	results := make(map[string]model.TestResult, len(r.run.Results))
	for id, res := range r.run.Results {
		results[id] = res
	}
	return &Completion{
		RoomID:      r.id,
		RunID:       r.run.ID,
		Config:      r.config.Clone(),
		StartedAt:   r.run.StartTime,
		CompletedAt: now,
		Aggregate:   agg,
		Results:     results,
	}, nil
}

// LeaveResult describes the effect of a departure.
type LeaveResult struct {
	Deleted     bool
	NewHost     string
	ClientCount int
}

// Leave removes every occurrence of the session from the member list.
// An emptied room is removed from the directory together with its run record.
// Otherwise host succession goes to the first remaining member and the
// remaining members are notified.
func (r *Room) Leave(sessionID string) LeaveResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return LeaveResult{Deleted: true}
	}

	remaining := r.members[:0]
	for _, id := range r.members {
		if id != sessionID {
			remaining = append(remaining, id)
		}
	}
	r.members = remaining

	if len(r.members) == 0 {
		r.closed = true
		r.run = nil
		r.dir.remove(r.id)
		return LeaveResult{Deleted: true}
	}

	var result LeaveResult
	if r.host == sessionID {
		r.host = r.members[0]
		result.NewHost = r.host
		r.broadcastLocked(protocol.TypeHostChanged, protocol.HostChanged{NewHost: r.host})
	}

	result.ClientCount = len(r.members)
	r.broadcastLocked(protocol.TypeClientLeft, protocol.MembershipChanged{
		ClientID:    sessionID,
		ClientCount: result.ClientCount,
	})
	return result
}

// Snapshot returns a copy of the room's current state.
func (r *Room) Snapshot() model.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := make([]string, len(r.members))
	copy(members, r.members)

	submitted := 0
	if r.run != nil {
		submitted = len(r.run.Results)
	}

	return model.RoomSnapshot{
		ID:          r.id,
		Host:        r.host,
		Members:     members,
		ClientCount: len(members),
		Status:      r.status,
		Config:      r.config.Clone(),
		Submitted:   submitted,
	}
}

// LastAggregate returns the aggregate of the room's most recent run, if it completed.
func (r *Room) LastAggregate() (model.AggregatedResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.run == nil || r.run.Aggregate == nil {
		return model.AggregatedResult{}, false
	}
	return *r.run.Aggregate, true
}

// broadcastLocked fans an event out to the current membership. Caller must hold r.mu.
func (r *Room) broadcastLocked(t protocol.MessageType, payload interface{}) {
	if r.dir.broadcaster == nil {
		return
	}
	members := make([]string, len(r.members))
	copy(members, r.members)
	r.dir.broadcaster.Broadcast(members, t, payload)
}
