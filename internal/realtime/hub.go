package realtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/example/freight-booking/internal/models"
)

// roomSession is one connected websocket, write-serialized.
type roomSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *roomSession) send(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(ev)
}

// Hub is the server side of the realtime contract: connections join a room
// named after their identity and the server pushes room-scoped events.
// A new connection for the same room replaces the previous one.
type Hub struct {
	Logger *slog.Logger

	mu    sync.RWMutex
	rooms map[string]*roomSession
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{Logger: logger, rooms: make(map[string]*roomSession)}
}

func CustomerRoom(id string) string { return "customer:" + id }
func DriverRoom(id string) string   { return "driver:" + id }

var upgrader = websocket.Upgrader{
	// dev stub: the booking client may run on any LAN host
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWS upgrades the request and waits for a join event before the
// connection becomes addressable.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written its own error response
		return
	}
	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		conn.Close()
		return
	}
	room, err := roomFromJoin(ev)
	if err != nil {
		h.Logger.Warn("rejecting ws connection", "error", err)
		conn.Close()
		return
	}
	s := &roomSession{conn: conn}
	h.add(room, s)
	h.Logger.Debug("realtime join", "room", room)

	// Drain until the client goes away; a re-join re-registers the room.
	for {
		var next Event
		if err := conn.ReadJSON(&next); err != nil {
			break
		}
		if r, err := roomFromJoin(next); err == nil && r != room {
			h.remove(room, s)
			room = r
			h.add(room, s)
		}
	}
	h.remove(room, s)
	conn.Close()
}

func roomFromJoin(ev Event) (string, error) {
	var p models.JoinPayload
	if len(ev.Data) > 0 {
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return "", err
		}
	}
	switch ev.Event {
	case models.EventCustomerJoin:
		if p.CustomerID == "" {
			return "", fmt.Errorf("customer:join without customerId")
		}
		return CustomerRoom(p.CustomerID), nil
	case models.EventDriverJoin:
		if p.DriverID == "" {
			return "", fmt.Errorf("driver:join without driverId")
		}
		return DriverRoom(p.DriverID), nil
	default:
		return "", fmt.Errorf("expected join event, got %q", ev.Event)
	}
}

func (h *Hub) add(room string, s *roomSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if prev, ok := h.rooms[room]; ok && prev != s {
		prev.conn.Close()
	}
	h.rooms[room] = s
}

func (h *Hub) remove(room string, s *roomSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == s {
		delete(h.rooms, room)
	}
}

var ErrNoSession = &NoSessionError{}

type NoSessionError struct{}

func (n *NoSessionError) Error() string { return "no realtime session for room" }

// Emit pushes an event into a room. Missing rooms are an error the caller
// may ignore; pushes are best-effort and REST polling remains the fallback.
func (h *Hub) Emit(room, event string, payload any) error {
	h.mu.RLock()
	s, ok := h.rooms[room]
	h.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	ev, err := NewEvent(event, payload)
	if err != nil {
		return err
	}
	if err := s.send(ev); err != nil {
		h.Logger.Warn("realtime push failed", "room", room, "error", err)
		return err
	}
	return nil
}
