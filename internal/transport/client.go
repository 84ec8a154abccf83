package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ClientState is the connection state of a playback client.
type ClientState int

const (
	// Disconnected is the initial state, and the state after an
	// explicit disconnect.
	Disconnected ClientState = iota
	// Connecting is an in-flight initial dial.
	Connecting
	// Connected has a live socket.
	Connected
	// Reconnecting is retrying after a dropped connection.
	Reconnecting
	// ClientClosed is terminal: the reconnect budget is exhausted.
	ClientClosed
)

func (s ClientState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case ClientClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Reconnection policy defaults: linear backoff attempt*base up to the
// attempt cap.
const (
	DefaultBaseDelay   = time.Second
	DefaultMaxAttempts = 5
)

// Conn is the minimal socket surface the client needs. Satisfied by
// *websocket.Conn; tests substitute fakes.
type Conn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	Close() error
}

// Dialer opens a Conn. The production dialer wraps gorilla's.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

type wsDialer struct{}

func (wsDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Client maintains a playback connection with automatic reconnection.
//
// Lifecycle: Connect dials once; after a successful connection, a
// transport-level close moves the client to Reconnecting and it
// retries with linear backoff (attempt * base delay) up to the
// attempt cap. Any successful reconnect resets the counter. When the
// budget is exhausted the client is ClientClosed and Err returns
// ConnectionLostError. Disconnect zeroes the remaining budget first,
// so a disconnect during Reconnecting cancels the pending timer and
// no further attempt is made.
type Client struct {
	url         string
	dialer      Dialer
	baseDelay   time.Duration
	maxAttempts int
	logger      *slog.Logger
	onMessage   func(Message)
	onState     func(ClientState)

	mu     sync.Mutex
	state  ClientState
	conn   Conn
	budget int
	cancel context.CancelFunc
	err    error

	done     chan struct{}
	doneOnce sync.Once
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithDialer replaces the websocket dialer. Tests use fakes.
func WithDialer(d Dialer) ClientOption {
	return func(c *Client) { c.dialer = d }
}

// WithBackoff sets the reconnection policy.
func WithBackoff(baseDelay time.Duration, maxAttempts int) ClientOption {
	return func(c *Client) {
		c.baseDelay = baseDelay
		c.maxAttempts = maxAttempts
	}
}

// WithOnMessage sets the inbound message callback. Called from the
// read goroutine; the callback must not block.
func WithOnMessage(fn func(Message)) ClientOption {
	return func(c *Client) { c.onMessage = fn }
}

// WithOnState sets the state transition callback.
func WithOnState(fn func(ClientState)) ClientOption {
	return func(c *Client) { c.onState = fn }
}

// WithClientLogger sets the client's logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a disconnected client for the given websocket URL.
func NewClient(url string, opts ...ClientOption) *Client {
	c := &Client{
		url:         url,
		dialer:      wsDialer{},
		baseDelay:   DefaultBaseDelay,
		maxAttempts: DefaultMaxAttempts,
		logger:      slog.Default(),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current connection state.
func (c *Client) State() ClientState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the terminal failure, if any. Non-nil only after the
// client reaches ClientClosed.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Done closes when the client reaches a terminal state (ClientClosed
// or explicit disconnect).
func (c *Client) Done() <-chan struct{} { return c.done }

// Connect dials the server. Initial dial failure is returned directly;
// the reconnection policy applies only to connections that drop after
// being established.
func (c *Client) Connect(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	if c.state != Disconnected {
		c.mu.Unlock()
		cancel()
		return fmt.Errorf("connect: client is %s", c.state)
	}
	c.cancel = cancel
	c.budget = c.maxAttempts
	c.mu.Unlock()

	c.setState(Connecting)
	conn, err := c.dialer.Dial(ctx, c.url)
	if err != nil {
		c.setState(Disconnected)
		cancel()
		return fmt.Errorf("connect %s: %w", c.url, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.setState(Connected)

	go c.readLoop(ctx, conn)
	return nil
}

// Send writes a command on the live connection.
func (c *Client) Send(cmd Command) error {
	c.mu.Lock()
	conn := c.conn
	state := c.state
	c.mu.Unlock()

	if state != Connected || conn == nil {
		return fmt.Errorf("send: client is %s", state)
	}
	return conn.WriteJSON(cmd)
}

// Disconnect stops the client. Zeroes the reconnect budget before
// closing so no timer that is already pending can fire another dial.
// ClientClosed is terminal: disconnecting an already-closed client is
// a no-op and Err keeps reporting the connection loss.
func (c *Client) Disconnect() {
	c.mu.Lock()
	closed := c.state == ClientClosed
	c.budget = 0
	conn := c.conn
	c.conn = nil
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	if !closed {
		c.setState(Disconnected)
	}
	c.closeDone()
}

func (c *Client) readLoop(ctx context.Context, conn Conn) {
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return // explicit disconnect or caller cancellation
			}
			c.logger.Info("connection dropped", "error", err)
			c.reconnect(ctx, err)
			return
		}
		if c.onMessage != nil {
			c.onMessage(msg)
		}
	}
}

// reconnect runs the backoff loop after a dropped connection.
func (c *Client) reconnect(ctx context.Context, cause error) {
	c.setState(Reconnecting)

	for attempt := 1; ; attempt++ {
		c.mu.Lock()
		remaining := c.budget
		c.mu.Unlock()
		if remaining <= 0 {
			break
		}
		if attempt > c.maxAttempts {
			break
		}

		delay := time.Duration(attempt) * c.baseDelay
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		// Budget may have been zeroed while the timer ran.
		c.mu.Lock()
		remaining = c.budget
		c.mu.Unlock()
		if remaining <= 0 {
			break
		}

		conn, err := c.dialer.Dial(ctx, c.url)
		if err != nil {
			c.logger.Info("reconnect attempt failed", "attempt", attempt, "error", err)
			cause = err
			continue
		}

		// Success resets the attempt counter for the next drop.
		c.mu.Lock()
		c.conn = conn
		c.budget = c.maxAttempts
		c.mu.Unlock()
		c.setState(Connected)
		c.logger.Info("reconnected", "attempt", attempt)

		go c.readLoop(ctx, conn)
		return
	}

	if ctx.Err() != nil {
		return
	}

	c.mu.Lock()
	c.state = ClientClosed
	c.err = &ConnectionLostError{Attempts: c.maxAttempts, Cause: cause}
	c.mu.Unlock()
	if c.onState != nil {
		c.onState(ClientClosed)
	}
	c.closeDone()
}

func (c *Client) setState(state ClientState) {
	c.mu.Lock()
	if c.state == state {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.mu.Unlock()
	if c.onState != nil {
		c.onState(state)
	}
}

func (c *Client) closeDone() {
	c.doneOnce.Do(func() { close(c.done) })
}
