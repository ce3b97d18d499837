// Package logger appends completed runs to a JSON-Lines journal file.
//
// A journal starts each server session with a header line, followed by one
// event line per archived run:
//
//	{"version":1,"timestamp":1700000000,"source":"armada-coordinator"}
//	[12.5, "run", {"id":"01H...","roomId":"...",...}]
package logger

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/armada-loadtest/coordinator/internal/model"
)

// JournalVersion is the format version written in every header.
const JournalVersion = 1

// EventRun is the event type of an archived run.
const EventRun = "run"

// JournalHeader marks the start of a server session in the journal.
type JournalHeader struct {
	Version   int    `json:"version"`
	Timestamp int64  `json:"timestamp"`
	Source    string `json:"source,omitempty"`
}

// JournalEvent is a single journal line.
// Format: [time_offset, event_type, run]
type JournalEvent struct {
	TimeOffset float64
	EventType  string
	Run        *model.Run
}

// MarshalJSON implements custom JSON marshaling for JournalEvent.
func (e JournalEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{e.TimeOffset, e.EventType, e.Run})
}

// UnmarshalJSON implements custom JSON unmarshaling for JournalEvent.
func (e *JournalEvent) UnmarshalJSON(data []byte) error {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	if len(arr) != 3 {
		return fmt.Errorf("invalid event format: expected 3 elements, got %d", len(arr))
	}

	if err := json.Unmarshal(arr[0], &e.TimeOffset); err != nil {
		return fmt.Errorf("invalid time offset: %w", err)
	}
	if err := json.Unmarshal(arr[1], &e.EventType); err != nil {
		return fmt.Errorf("invalid event type: %w", err)
	}
	var run model.Run
	if err := json.Unmarshal(arr[2], &run); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}
	e.Run = &run

	return nil
}

// Journal records archived runs in JSON-Lines format.
type Journal struct {
	writer    io.Writer
	file      *os.File // only set if we own the file
	startTime time.Time
	mu        sync.Mutex
}

// OpenJournal opens the journal at filePath for appending, creating it if
// needed, and writes a session header.
func OpenJournal(filePath string) (*Journal, error) {
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	j := &Journal{
		writer:    file,
		file:      file,
		startTime: time.Now(),
	}
	if err := j.writeHeader(); err != nil {
		file.Close()
		return nil, err
	}
	return j, nil
}

// NewJournalWithWriter creates a Journal that writes to w.
// This is useful for testing.
func NewJournalWithWriter(w io.Writer) (*Journal, error) {
	j := &Journal{
		writer:    w,
		startTime: time.Now(),
	}
	if err := j.writeHeader(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *Journal) writeHeader() error {
	header := JournalHeader{
		Version:   JournalVersion,
		Timestamp: j.startTime.Unix(),
		Source:    "armada-coordinator",
	}

	data, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	if _, err := j.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	return nil
}

// Record implements history.Recorder.
func (j *Journal) Record(_ context.Context, run *model.Run) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	event := JournalEvent{
		TimeOffset: time.Since(j.startTime).Seconds(),
		EventType:  EventRun,
		Run:        run,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := j.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}

// Close closes the journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file != nil {
		return j.file.Close()
	}
	return nil
}

// StartTime returns the start time of the journal session.
func (j *Journal) StartTime() time.Time {
	return j.startTime
}

// ReadRuns reads every run event from a journal, skipping header lines.
func ReadRuns(r io.Reader) ([]*model.Run, error) {
	var runs []*model.Run

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 || line[0] != '[' {
			continue
		}
		var ev JournalEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, err
		}
		if ev.EventType == EventRun {
			runs = append(runs, ev.Run)
		}
	}
	return runs, sc.Err()
}
