package history

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/armada-loadtest/coordinator/internal/model"
)

const recordTimeout = 10 * time.Second

// Archiver hands completed runs to a Recorder on a background goroutine.
type Archiver struct {
	recorder Recorder
	queue    chan *model.Run
	wg       sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewArchiver starts an archiver with a queue of the given size.
func NewArchiver(recorder Recorder, queueSize int) *Archiver {
	if queueSize <= 0 {
		queueSize = 64
	}
	a := &Archiver{
		recorder: recorder,
		queue:    make(chan *model.Run, queueSize),
	}
	a.wg.Add(1)
	go a.loop()
	return a
}

// Submit queues a run without blocking. It reports false when the run was dropped.
func (a *Archiver) Submit(run *model.Run) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return false
	}

	select {
	case a.queue <- run:
		return true
	default:
		log.Printf("Archive queue full, dropping run %s of room %s", run.ID, run.RoomID)
		return false
	}
}

// Close stops accepting runs and waits until queued runs are recorded.
func (a *Archiver) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	a.wg.Wait()
}

func (a *Archiver) loop() {
	defer a.wg.Done()

	for run := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		if err := a.recorder.Record(ctx, run); err != nil {
			log.Printf("Failed to archive run %s: %v", run.ID, err)
		}
		cancel()
	}
}
