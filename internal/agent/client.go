// Package agent implements the load-generating side of the coordination protocol.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/armada-loadtest/coordinator/internal/model"
	"github.com/armada-loadtest/coordinator/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	handshakeWait  = 10 * time.Second
	eventBuffer    = 256
	maxMessageSize = 1 << 20
)

// ErrClosed is returned by requests issued on a closed client.
var ErrClosed = errors.New("connection closed")

// RequestError is a failure reply from the coordinator.
type RequestError struct {
	Op      protocol.MessageType
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Op, e.Message)
}

// Client is a coordination session over a WebSocket connection.
// Replies are correlated by operation type, so at most one request per
// operation may be in flight.
type Client struct {
	conn *websocket.Conn
	id   string

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[protocol.MessageType]chan protocol.Envelope
	err     error

	events chan protocol.Envelope
	done   chan struct{}
	once   sync.Once
}

// Dial connects to the coordinator at url and waits for the connected greeting.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	conn.SetReadLimit(maxMessageSize)

	conn.SetReadDeadline(time.Now().Add(handshakeWait))
	var hello protocol.Envelope
	if err := conn.ReadJSON(&hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read greeting: %w", err)
	}
	if hello.Type != protocol.TypeConnected {
		conn.Close()
		return nil, fmt.Errorf("unexpected greeting %q", hello.Type)
	}
	var connected protocol.Connected
	if err := json.Unmarshal(hello.Payload, &connected); err != nil {
		conn.Close()
		return nil, fmt.Errorf("invalid greeting: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	c := &Client{
		conn:    conn,
		id:      connected.ClientID,
		pending: make(map[protocol.MessageType]chan protocol.Envelope),
		events:  make(chan protocol.Envelope, eventBuffer),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// ID returns the session id assigned by the coordinator.
func (c *Client) ID() string {
	return c.id
}

// Events delivers every broadcast event and error envelope.
// It is closed when the connection ends.
func (c *Client) Events() <-chan protocol.Envelope {
	return c.events
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the connection, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close closes the connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.conn.Close()
}

// CreateRoom creates a room hosted by this session and returns its id.
func (c *Client) CreateRoom(ctx context.Context) (string, error) {
	var reply protocol.CreateRoomReply
	if err := c.request(ctx, protocol.TypeCreateRoom, struct{}{}, &reply); err != nil {
		return "", err
	}
	return reply.RoomID, nil
}

// JoinRoom joins an existing room.
func (c *Client) JoinRoom(ctx context.Context, roomID string) (protocol.JoinRoomReply, error) {
	var reply protocol.JoinRoomReply
	err := c.request(ctx, protocol.TypeJoinRoom, protocol.JoinRoom{RoomID: roomID}, &reply)
	return reply, err
}

// Configure replaces the room's test config. Only the host may configure.
func (c *Client) Configure(ctx context.Context, cfg *model.TestConfig) error {
	return c.request(ctx, protocol.TypeConfigureTest, protocol.ConfigureTest{Config: cfg}, nil)
}

// Start starts the configured test. Only the host may start.
func (c *Client) Start(ctx context.Context) error {
	return c.request(ctx, protocol.TypeStartTest, struct{}{}, nil)
}

// Submit reports this session's result for the current run.
func (c *Client) Submit(ctx context.Context, res model.TestResult) error {
	return c.request(ctx, protocol.TypeSubmitResults, protocol.SubmitResults{Results: &res}, nil)
}

// Leave leaves the current room.
func (c *Client) Leave(ctx context.Context) error {
	return c.request(ctx, protocol.TypeLeaveRoom, struct{}{}, nil)
}

func (c *Client) request(ctx context.Context, op protocol.MessageType, payload, out interface{}) error {
	data, err := protocol.Encode(op, payload)
	if err != nil {
		return err
	}

	reply := make(chan protocol.Envelope, 1)
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return ErrClosed
	}
	if _, busy := c.pending[op]; busy {
		c.mu.Unlock()
		return fmt.Errorf("%s already in flight", op)
	}
	c.pending[op] = reply
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, op)
		c.mu.Unlock()
	}()

	if err := c.write(data); err != nil {
		return err
	}

	select {
	case env := <-reply:
		return decodeReply(op, env, out)
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}
}

func decodeReply(op protocol.MessageType, env protocol.Envelope, out interface{}) error {
	var status protocol.Reply
	if err := json.Unmarshal(env.Payload, &status); err != nil {
		return fmt.Errorf("invalid %s: %w", env.Type, err)
	}
	if !status.Success {
		return &RequestError{Op: op, Message: status.Error}
	}
	if out != nil {
		if err := json.Unmarshal(env.Payload, out); err != nil {
			return fmt.Errorf("invalid %s: %w", env.Type, err)
		}
	}
	return nil
}

func (c *Client) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) readLoop() {
	var readErr error
	defer func() {
		c.mu.Lock()
		if readErr == nil {
			readErr = ErrClosed
		}
		c.err = readErr
		c.mu.Unlock()
		c.once.Do(func() {
			close(c.done)
			close(c.events)
		})
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				readErr = err
			}
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Printf("Ignoring malformed envelope: %v", err)
			continue
		}

		if op, ok := env.Type.IsResponse(); ok {
			c.mu.Lock()
			reply, waiting := c.pending[op]
			c.mu.Unlock()
			if waiting {
				select {
				case reply <- env:
				default:
				}
			}
			continue
		}

		select {
		case c.events <- env:
		default:
			log.Printf("Event queue full, dropping %s", env.Type)
		}
	}
}
