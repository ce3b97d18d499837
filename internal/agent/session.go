package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/armada-loadtest/coordinator/internal/loadgen"
	"github.com/armada-loadtest/coordinator/internal/model"
	"github.com/armada-loadtest/coordinator/internal/protocol"
)

// Runner produces the local result for a broadcast config.
type Runner func(ctx context.Context, cfg *model.TestConfig) (model.TestResult, error)

// Options controls one participation in a test run.
type Options struct {
	// RoomID joins an existing room. Empty creates a new room and hosts it.
	RoomID string
	// Config is applied by the host before starting.
	Config *model.TestConfig
	// MinClients is the member count the host waits for before starting.
	MinClients int
	// Runner executes the load. Defaults to loadgen.Run.
	Runner Runner
	// OnRoom is called once the session is in its room.
	OnRoom func(roomID string)
}

// Outcome is what one agent observed for a completed run.
type Outcome struct {
	RoomID    string
	ClientID  string
	Host      bool
	Local     model.TestResult
	Aggregate model.AggregatedResult
}

type runDone struct {
	result model.TestResult
	err    error
}

// Participate joins or creates a room, runs the load when the test starts,
// submits the local result and returns once the aggregate is broadcast.
func Participate(ctx context.Context, c *Client, opts Options) (*Outcome, error) {
	runner := opts.Runner
	if runner == nil {
		runner = loadgen.Run
	}

	out := &Outcome{ClientID: c.ID()}
	clientCount := 1

	if opts.RoomID == "" {
		if opts.Config == nil {
			return nil, errors.New("a host needs a test config")
		}
		roomID, err := c.CreateRoom(ctx)
		if err != nil {
			return nil, err
		}
		out.RoomID = roomID
		out.Host = true
		log.Printf("Created room %s", roomID)
	} else {
		reply, err := c.JoinRoom(ctx, opts.RoomID)
		if err != nil {
			return nil, err
		}
		out.RoomID = reply.RoomID
		clientCount = reply.ClientCount
		log.Printf("Joined room %s (%d clients, status %s)", reply.RoomID, reply.ClientCount, reply.Status)
	}
	if opts.OnRoom != nil {
		opts.OnRoom(out.RoomID)
	}

	started := false
	maybeStart := func() error {
		if !out.Host || started || clientCount < opts.MinClients {
			return nil
		}
		started = true
		log.Printf("Starting test with %d clients", clientCount)
		return c.Start(ctx)
	}

	if out.Host {
		if err := c.Configure(ctx, opts.Config); err != nil {
			return nil, err
		}
		if err := maybeStart(); err != nil {
			return nil, err
		}
	}

	results := make(chan runDone, 1)
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case done := <-results:
			if done.err != nil {
				return nil, fmt.Errorf("load generation failed: %w", done.err)
			}
			out.Local = done.result
			log.Printf("Local run finished: %s", loadgen.Summary(done.result))
			if err := c.Submit(ctx, done.result); err != nil {
				return nil, err
			}

		case env, ok := <-c.Events():
			if !ok {
				if err := c.Err(); err != nil && !errors.Is(err, ErrClosed) {
					return nil, err
				}
				return nil, ErrClosed
			}

			switch env.Type {
			case protocol.TypeClientJoined, protocol.TypeClientLeft:
				var ev protocol.MembershipChanged
				if err := json.Unmarshal(env.Payload, &ev); err == nil {
					clientCount = ev.ClientCount
				}
				if err := maybeStart(); err != nil {
					return nil, err
				}

			case protocol.TypeHostChanged:
				var ev protocol.HostChanged
				if err := json.Unmarshal(env.Payload, &ev); err == nil && ev.NewHost == c.ID() {
					log.Printf("This agent is now the host of room %s", out.RoomID)
					out.Host = true
				}

			case protocol.TypeTestStarted:
				var ev protocol.TestStarted
				if err := json.Unmarshal(env.Payload, &ev); err != nil || ev.Config == nil {
					return nil, fmt.Errorf("invalid test-started event: %v", err)
				}
				log.Printf("Test started at %d against %s", ev.StartTime, ev.Config.URL)
				go func(cfg *model.TestConfig) {
					res, err := runner(runCtx, cfg)
					results <- runDone{result: res, err: err}
				}(ev.Config)

			case protocol.TypeTestCompleted:
				if err := json.Unmarshal(env.Payload, &out.Aggregate); err != nil {
					return nil, fmt.Errorf("invalid test-completed event: %w", err)
				}
				return out, nil

			case protocol.TypeError:
				var ev protocol.ErrorPayload
				json.Unmarshal(env.Payload, &ev)
				log.Printf("Coordinator reported an error: %s", ev.Error)
			}
		}
	}
}
