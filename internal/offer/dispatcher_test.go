package offer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/freight-booking/internal/models"
)

type call struct{ orderID, itemID string }

type fakeDriverAPI struct {
	mu        sync.Mutex
	accepts   []call
	rejects   []call
	acceptErr error
	rejectErr error
	block     chan struct{} // when set, Accept/Reject wait on it
}

func (f *fakeDriverAPI) AcceptItem(ctx context.Context, orderID, itemID, driverID string) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accepts = append(f.accepts, call{orderID, itemID})
	return f.acceptErr
}

func (f *fakeDriverAPI) RejectItem(ctx context.Context, orderID, itemID, driverID string) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejects = append(f.rejects, call{orderID, itemID})
	return f.rejectErr
}

func (f *fakeDriverAPI) rejectCalls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call{}, f.rejects...)
}

func (f *fakeDriverAPI) acceptCalls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call{}, f.accepts...)
}

type nopNotifier struct{}

func (nopNotifier) Info(string)  {}
func (nopNotifier) Error(string) {}

func offer(orderID, itemID string) models.OfferNew {
	return models.OfferNew{OrderID: orderID, ItemID: itemID, PickupAddress: "A", DropoffAddress: "B", TotalPrice: 800000}
}

func newDispatcher(api DriverAPI, timeout time.Duration) *Dispatcher {
	return &Dispatcher{DriverID: "d-1", API: api, Notifier: nopNotifier{}, Timeout: timeout}
}

func TestAutoRejectFiresExactlyOnce(t *testing.T) {
	api := &fakeDriverAPI{}
	d := newDispatcher(api, 40*time.Millisecond)
	defer d.Close()

	d.HandleOffer(offer("o-1", "i-1"))
	assert.Equal(t, OfferShown, d.State())

	require.Eventually(t, func() bool { return len(api.rejectCalls()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, call{"o-1", "i-1"}, api.rejectCalls()[0])
	assert.Equal(t, Listening, d.State())

	time.Sleep(100 * time.Millisecond)
	assert.Len(t, api.rejectCalls(), 1, "auto-reject must not repeat")
}

func TestNewOfferPreemptsPendingTimer(t *testing.T) {
	api := &fakeDriverAPI{}
	d := newDispatcher(api, 60*time.Millisecond)
	defer d.Close()

	d.HandleOffer(offer("o-1", "i-1"))
	time.Sleep(30 * time.Millisecond)
	d.HandleOffer(offer("o-2", "i-2"))

	cur, ok := d.Current()
	require.True(t, ok)
	assert.Equal(t, "o-2", cur.OrderID)

	require.Eventually(t, func() bool { return len(api.rejectCalls()) == 1 }, time.Second, 5*time.Millisecond)
	// only the second offer may ever be auto-rejected
	for _, c := range api.rejectCalls() {
		assert.Equal(t, "o-2", c.orderID)
	}
}

func TestAcceptClearsTimerBeforeRequest(t *testing.T) {
	api := &fakeDriverAPI{}
	d := newDispatcher(api, 30*time.Millisecond)
	defer d.Close()

	var accepted models.OfferNew
	d.OnAccepted = func(o models.OfferNew) { accepted = o }

	d.HandleOffer(offer("o-1", "i-1"))
	require.NoError(t, d.Accept(context.Background()))
	assert.Equal(t, "o-1", accepted.OrderID)
	assert.Equal(t, Listening, d.State())

	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, api.rejectCalls(), "no auto-reject after a manual accept")
	assert.Len(t, api.acceptCalls(), 1)
}

func TestAcceptFailureClosesWithoutRetry(t *testing.T) {
	api := &fakeDriverAPI{acceptErr: errors.New("item already taken")}
	d := newDispatcher(api, time.Minute)
	defer d.Close()

	d.HandleOffer(offer("o-1", "i-1"))
	err := d.Accept(context.Background())
	require.Error(t, err)
	assert.Equal(t, Listening, d.State(), "popup closed despite failure")
	_, shown := d.Current()
	assert.False(t, shown)
	assert.Len(t, api.acceptCalls(), 1, "no automatic retry")
}

func TestRejectFailureStillCloses(t *testing.T) {
	api := &fakeDriverAPI{rejectErr: errors.New("network down")}
	d := newDispatcher(api, time.Minute)
	defer d.Close()

	d.HandleOffer(offer("o-1", "i-1"))
	err := d.Reject(context.Background())
	require.Error(t, err)
	assert.Equal(t, Listening, d.State())
}

func TestAcceptRejectMutuallyExclusive(t *testing.T) {
	api := &fakeDriverAPI{block: make(chan struct{})}
	d := newDispatcher(api, time.Minute)
	defer d.Close()

	d.HandleOffer(offer("o-1", "i-1"))

	done := make(chan error, 1)
	go func() { done <- d.Accept(context.Background()) }()

	require.Eventually(t, func() bool { return d.State() == Accepting }, time.Second, time.Millisecond)
	assert.ErrorIs(t, d.Reject(context.Background()), ErrDeciding)

	close(api.block)
	require.NoError(t, <-done)
	assert.Empty(t, api.rejectCalls())
}

func TestAutoRejectFailureStillClosesPopup(t *testing.T) {
	api := &fakeDriverAPI{rejectErr: errors.New("server unreachable")}
	d := newDispatcher(api, 20*time.Millisecond)
	defer d.Close()

	d.HandleOffer(offer("o-1", "i-1"))
	require.Eventually(t, func() bool { return d.State() == Listening }, time.Second, 5*time.Millisecond)
	_, shown := d.Current()
	assert.False(t, shown, "popup closed even though the auto-reject call failed")
}

func TestDecisionWithNoOffer(t *testing.T) {
	d := newDispatcher(&fakeDriverAPI{}, time.Minute)
	assert.ErrorIs(t, d.Accept(context.Background()), ErrNoOffer)
	assert.ErrorIs(t, d.Reject(context.Background()), ErrNoOffer)
}
