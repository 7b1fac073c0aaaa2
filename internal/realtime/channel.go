package realtime

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/freight-booking/internal/observability"
)

// Event is the wire envelope for every realtime message, both directions.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func NewEvent(name string, payload any) (Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Event: name, Data: b}, nil
}

// Conn is the subset of a websocket connection the channel needs; it keeps
// the reconnect logic testable without a listening server.
type Conn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	Close() error
}

var ErrChannelClosed = errors.New("realtime channel closed")

// Channel is a client-side realtime connection scoped to one identity. It
// joins its room right after connecting and re-joins after every reconnect,
// so the server never pushes into a room nobody listens to. A channel is
// owned by exactly one component and torn down with it; it is never shared
// across an identity change.
type Channel struct {
	URL               string
	JoinEvent         string
	JoinPayload       any
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	Logger            *slog.Logger

	// Dial is swappable in tests; defaults to a gorilla websocket dial.
	Dial func(url string) (Conn, error)

	mu       sync.Mutex
	conn     Conn
	handlers map[string][]func(json.RawMessage)
	closed   bool
}

func defaultDial(url string) (Conn, error) {
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	return c, err
}

// On registers a handler for a named event. Register everything before
// Connect; handlers run on the read-loop goroutine.
func (c *Channel) On(event string, fn func(json.RawMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handlers == nil {
		c.handlers = make(map[string][]func(json.RawMessage))
	}
	c.handlers[event] = append(c.handlers[event], fn)
}

// Connect dials, joins the identity room and starts the read loop.
func (c *Channel) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrChannelClosed
	}
	if c.Dial == nil {
		c.Dial = defaultDial
	}
	if c.ReconnectAttempts == 0 {
		c.ReconnectAttempts = 5
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = time.Second
	}
	conn, err := c.Dial(c.URL)
	if err != nil {
		return err
	}
	c.conn = conn
	if err := c.joinLocked(); err != nil {
		conn.Close()
		c.conn = nil
		return err
	}
	go c.readLoop(conn)
	return nil
}

func (c *Channel) joinLocked() error {
	if c.JoinEvent == "" {
		return nil
	}
	ev, err := NewEvent(c.JoinEvent, c.JoinPayload)
	if err != nil {
		return err
	}
	return c.conn.WriteJSON(ev)
}

// Emit sends an event to the server.
func (c *Channel) Emit(event string, payload any) error {
	ev, err := NewEvent(event, payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.conn == nil {
		return ErrChannelClosed
	}
	return c.conn.WriteJSON(ev)
}

func (c *Channel) readLoop(conn Conn) {
	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			c.mu.Lock()
			closed, stale := c.closed, c.conn != conn
			c.mu.Unlock()
			if closed || stale {
				return
			}
			if !c.reconnect() {
				return
			}
			c.mu.Lock()
			conn = c.conn
			c.mu.Unlock()
			continue
		}
		c.dispatch(ev)
	}
}

func (c *Channel) dispatch(ev Event) {
	c.mu.Lock()
	fns := append([]func(json.RawMessage){}, c.handlers[ev.Event]...)
	c.mu.Unlock()
	if len(fns) == 0 && c.Logger != nil {
		c.Logger.Debug("unhandled realtime event", "event", ev.Event)
	}
	for _, fn := range fns {
		fn(ev.Data)
	}
}

// reconnect retries the dial a bounded number of times. If the transport
// never recovers the channel goes quiet; callers are expected to keep a
// poll-based fallback alive for anything correctness-critical.
func (c *Channel) reconnect() bool {
	for attempt := 1; attempt <= c.ReconnectAttempts; attempt++ {
		time.Sleep(c.ReconnectDelay)
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return false
		}
		c.mu.Unlock()

		observability.RealtimeReconnects.Inc()
		conn, err := c.Dial(c.URL)
		if err != nil {
			if c.Logger != nil {
				c.Logger.Warn("realtime reconnect failed", "attempt", attempt, "error", err)
			}
			continue
		}
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			conn.Close()
			return false
		}
		c.conn = conn
		err = c.joinLocked()
		c.mu.Unlock()
		if err != nil {
			conn.Close()
			continue
		}
		if c.Logger != nil {
			c.Logger.Info("realtime channel reconnected", "attempt", attempt)
		}
		return true
	}
	if c.Logger != nil {
		c.Logger.Error("realtime channel gave up reconnecting", "attempts", c.ReconnectAttempts)
	}
	return false
}

// Close disconnects and stops any reconnection. Safe to call twice.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}
