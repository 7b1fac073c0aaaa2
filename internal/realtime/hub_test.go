package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/freight-booking/internal/models"
)

func TestHubDeliversRoomScopedPush(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(testWriter{t}, nil)))
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	got := make(chan models.OrderAccepted, 1)
	ch := &Channel{
		URL:         wsURL,
		JoinEvent:   models.EventCustomerJoin,
		JoinPayload: models.JoinPayload{CustomerID: "c-42"},
	}
	ch.On(models.EventOrderAccepted, func(data json.RawMessage) {
		var p models.OrderAccepted
		json.Unmarshal(data, &p)
		got <- p
	})
	require.NoError(t, ch.Connect())
	defer ch.Close()

	// the join races the emit; wait for the room to register
	require.Eventually(t, func() bool {
		return hub.Emit(CustomerRoom("c-42"), models.EventOrderAccepted,
			models.OrderAccepted{OrderID: "o-1", DriverName: "Binh"}) == nil
	}, 2*time.Second, 20*time.Millisecond)

	select {
	case p := <-got:
		assert.Equal(t, "o-1", p.OrderID)
		assert.Equal(t, "Binh", p.DriverName)
	case <-time.After(2 * time.Second):
		t.Fatal("push never arrived")
	}

	// other rooms stay empty
	assert.ErrorIs(t, hub.Emit(DriverRoom("d-9"), models.EventOfferNew, nil), ErrNoSession)
}

func TestHandleWSRejectsPlainHTTPOnce(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(testWriter{t}, nil)))

	// a non-websocket request fails the upgrade, which writes its own
	// error; the handler must not write a second one on top
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	hub.HandleWS(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Len(t, lines, 1)
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}
