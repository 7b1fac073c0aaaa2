package realtime

import (
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn feeds scripted events to the channel's read loop and records
// everything written to it.
type fakeConn struct {
	in chan Event

	mu      sync.Mutex
	written []Event
	closed  bool
}

func newFakeConn() *fakeConn { return &fakeConn{in: make(chan Event, 8)} }

func (f *fakeConn) ReadJSON(v any) error {
	ev, ok := <-f.in
	if !ok {
		return io.EOF
	}
	*(v.(*Event)) = ev
	return nil
}

func (f *fakeConn) WriteJSON(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return io.ErrClosedPipe
	}
	f.written = append(f.written, v.(Event))
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.in)
	}
	return nil
}

func (f *fakeConn) writes() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event{}, f.written...)
}

func TestChannelJoinsOnConnect(t *testing.T) {
	conn := newFakeConn()
	ch := &Channel{
		URL:         "ws://test",
		JoinEvent:   "driver:join",
		JoinPayload: map[string]string{"driverId": "d-1"},
		Dial:        func(string) (Conn, error) { return conn, nil },
	}
	require.NoError(t, ch.Connect())
	defer ch.Close()

	writes := conn.writes()
	require.Len(t, writes, 1)
	assert.Equal(t, "driver:join", writes[0].Event)
}

func TestChannelDispatchesByEventName(t *testing.T) {
	conn := newFakeConn()
	ch := &Channel{URL: "ws://test", Dial: func(string) (Conn, error) { return conn, nil }}

	got := make(chan string, 2)
	ch.On("order:accepted", func(data json.RawMessage) {
		var p struct {
			OrderID string `json:"orderId"`
		}
		json.Unmarshal(data, &p)
		got <- p.OrderID
	})
	require.NoError(t, ch.Connect())
	defer ch.Close()

	ev, _ := NewEvent("order:accepted", map[string]string{"orderId": "o-7"})
	conn.in <- ev
	// unrelated event must not reach the handler
	other, _ := NewEvent("order:status:updated", map[string]string{"orderId": "o-7"})
	conn.in <- other

	select {
	case id := <-got:
		assert.Equal(t, "o-7", id)
	case <-time.After(time.Second):
		t.Fatal("handler never fired")
	}
	select {
	case <-got:
		t.Fatal("handler fired for an unrelated event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestChannelReconnectsAndRejoins(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	dials := 0
	ch := &Channel{
		URL:            "ws://test",
		JoinEvent:      "customer:join",
		JoinPayload:    map[string]string{"customerId": "c-1"},
		ReconnectDelay: 10 * time.Millisecond,
		Dial: func(string) (Conn, error) {
			dials++
			if dials == 1 {
				return first, nil
			}
			return second, nil
		},
	}
	got := make(chan struct{}, 1)
	ch.On("order:accepted", func(json.RawMessage) { got <- struct{}{} })
	require.NoError(t, ch.Connect())
	defer ch.Close()

	// sever the first connection; the channel must redial and rejoin
	first.Close()

	deadline := time.After(time.Second)
	for {
		if w := second.writes(); len(w) == 1 && w[0].Event == "customer:join" {
			break
		}
		select {
		case <-deadline:
			t.Fatal("never rejoined on the new connection")
		case <-time.After(5 * time.Millisecond):
		}
	}

	ev, _ := NewEvent("order:accepted", map[string]string{"orderId": "o-1"})
	second.in <- ev
	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("events not dispatched after reconnect")
	}
}

func TestChannelGivesUpAfterBoundedAttempts(t *testing.T) {
	conn := newFakeConn()
	var mu sync.Mutex
	dials := 0
	ch := &Channel{
		URL:               "ws://test",
		ReconnectAttempts: 3,
		ReconnectDelay:    5 * time.Millisecond,
		Dial: func(string) (Conn, error) {
			mu.Lock()
			defer mu.Unlock()
			dials++
			if dials == 1 {
				return conn, nil
			}
			return nil, errors.New("refused")
		},
	}
	require.NoError(t, ch.Connect())
	defer ch.Close()

	conn.Close()
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 4, dials, "1 connect + 3 bounded reconnect attempts")
}

func TestCloseStopsReconnect(t *testing.T) {
	conn := newFakeConn()
	var mu sync.Mutex
	dials := 0
	ch := &Channel{
		URL:            "ws://test",
		ReconnectDelay: 20 * time.Millisecond,
		Dial: func(string) (Conn, error) {
			mu.Lock()
			defer mu.Unlock()
			dials++
			return conn, nil
		},
	}
	require.NoError(t, ch.Connect())
	require.NoError(t, ch.Close())
	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, dials, "no dial after Close")
	assert.ErrorIs(t, ch.Emit("x", nil), ErrChannelClosed)
}
