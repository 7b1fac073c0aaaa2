package match

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/example/freight-booking/internal/distance"
	"github.com/example/freight-booking/internal/models"
	"github.com/example/freight-booking/internal/observability"
)

// State is the customer-side matching lifecycle. Transitions only happen
// inside apply, with the session lock held, so the push handler and the
// poll loop can both observe "driver found" without racing each other.
type State int

const (
	Idle State = iota
	Submitting
	Awaiting
	Found
	Redirecting
	TimedOut
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Awaiting:
		return "awaiting"
	case Found:
		return "found"
	case Redirecting:
		return "redirecting"
	case TimedOut:
		return "timed_out"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

type eventKind int

const (
	evSubmitted eventKind = iota
	evAccepted
	evTimeout
	evDisplayDone
	evReset
)

type event struct {
	kind       eventKind
	orderID    string
	driverName string
}

// OrderAPI is the slice of the REST client the session needs.
type OrderAPI interface {
	CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error)
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
}

// Pushes is the slice of the realtime channel the session needs.
type Pushes interface {
	On(event string, fn func(json.RawMessage))
}

// Notifier surfaces transient user-facing messages.
type Notifier interface {
	Info(msg string)
	Error(msg string)
}

var ErrSessionActive = errors.New("an order is already awaiting a driver")
var ErrNotSubmittable = errors.New("order needs a positive weight and a pickup location")

// DefaultNoCoordsKm is used when neither the resolver nor the fallback has
// any usable coordinates at submission time.
const DefaultNoCoordsKm = 10

// Session drives one "finding a driver" experience: submit the order, then
// race a push notification, a poll fallback and a timeout. At most one
// session is active per Session value; Submit refuses while one is pending.
type Session struct {
	API      OrderAPI
	Notifier Notifier
	Logger   *slog.Logger

	// Redirect is invoked exactly once on success, after DisplayDelay.
	Redirect func(orderID string)

	Timeout      time.Duration // default 120s
	PollInterval time.Duration // default 3s
	DisplayDelay time.Duration // default 2s

	mu         sync.Mutex
	state      State
	orderID    string
	driverName string
	startedAt  time.Time

	timeoutTimer *time.Timer
	displayTimer *time.Timer
	pollCancel   context.CancelFunc
}

// Bind registers the session's push handler on a channel joined to the
// customer's room. Call once, before the first Submit.
func (s *Session) Bind(ch Pushes) {
	ch.On(models.EventOrderAccepted, func(data json.RawMessage) {
		var p models.OrderAccepted
		if err := json.Unmarshal(data, &p); err != nil {
			if s.Logger != nil {
				s.Logger.Debug("bad order:accepted payload", "error", err)
			}
			return
		}
		s.apply(event{kind: evAccepted, orderID: p.OrderID, driverName: p.DriverName})
	})
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Submittable reports whether the submit control should be enabled.
func (s *Session) Submittable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Idle || s.state == TimedOut
}

// Submit validates the request, fills in any missing item distances, posts
// the order and starts the awaiting watchdogs.
func (s *Session) Submit(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error) {
	s.mu.Lock()
	if s.state != Idle && s.state != TimedOut {
		s.mu.Unlock()
		return nil, ErrSessionActive
	}
	if !submittable(req) {
		s.mu.Unlock()
		return nil, ErrNotSubmittable
	}
	s.state = Submitting
	s.mu.Unlock()

	fillDistances(&req)

	order, err := s.API.CreateOrder(ctx, req)
	if err != nil {
		s.mu.Lock()
		s.state = Idle
		s.mu.Unlock()
		if s.Notifier != nil {
			s.Notifier.Error("could not submit the order, please try again")
		}
		return nil, err
	}
	observability.OrdersCreated.Inc()
	s.apply(event{kind: evSubmitted, orderID: order.ID})
	return order, nil
}

func submittable(req models.CreateOrderRequest) bool {
	if req.PickupLocation.Zero() {
		return false
	}
	for _, it := range req.Items {
		if it.WeightKg <= 0 {
			return false
		}
	}
	return len(req.Items) > 0
}

// fillDistances applies the Haversine fallback for items the async resolver
// never got to, defaulting when no coordinates are usable at all.
func fillDistances(req *models.CreateOrderRequest) {
	km := distance.FallbackKm(req.PickupLocation, req.DropoffLocation)
	if km == 0 {
		km = DefaultNoCoordsKm
	}
	for i := range req.Items {
		if req.Items[i].DistanceKm <= 0 {
			req.Items[i].DistanceKm = km
		}
	}
}

// apply is the single transition function. Every signal source - submit
// completion, the push handler, the poll loop, both timers - funnels
// through here, which is what makes duplicate signals a no-op.
func (s *Session) apply(ev event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.kind {
	case evSubmitted:
		if s.state != Submitting {
			return
		}
		s.state = Awaiting
		s.orderID = ev.orderID
		s.startedAt = time.Now()
		s.startWatchdogsLocked()

	case evAccepted:
		if s.state != Awaiting {
			s.debug("ignoring acceptance signal", "state", s.state.String(), "order_id", ev.orderID)
			return
		}
		// string comparison on purpose: ids may arrive as numbers from
		// the push path and must still match
		if ev.orderID != s.orderID {
			s.debug("acceptance for a different order", "got", ev.orderID, "want", s.orderID)
			return
		}
		s.state = Found
		s.driverName = ev.driverName
		s.stopWatchdogsLocked()
		observability.MatchesFound.Inc()
		observability.MatchWait.Observe(time.Since(s.startedAt).Seconds())
		if s.Notifier != nil {
			s.Notifier.Info("driver " + ev.driverName + " accepted your order")
		}
		delay := s.DisplayDelay
		if delay <= 0 {
			delay = 2 * time.Second
		}
		s.displayTimer = time.AfterFunc(delay, func() {
			s.apply(event{kind: evDisplayDone})
		})

	case evTimeout:
		if s.state != Awaiting {
			return
		}
		s.state = TimedOut
		s.stopWatchdogsLocked()
		observability.MatchesTimedOut.Inc()
		if s.Notifier != nil {
			s.Notifier.Info("no driver accepted in time, please try again")
		}

	case evDisplayDone:
		if s.state != Found {
			return
		}
		s.state = Redirecting
		orderID := s.orderID
		if s.Redirect != nil {
			// release the lock for the navigation callback
			s.mu.Unlock()
			s.Redirect(orderID)
			s.mu.Lock()
		}

	case evReset:
		s.state = Closed
		s.stopWatchdogsLocked()
		if s.displayTimer != nil {
			s.displayTimer.Stop()
			s.displayTimer = nil
		}
	}
}

func (s *Session) startWatchdogsLocked() {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	s.timeoutTimer = time.AfterFunc(timeout, func() {
		s.apply(event{kind: evTimeout})
	})

	interval := s.PollInterval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.pollCancel = cancel
	go s.poll(ctx, s.orderID, interval)
}

func (s *Session) stopWatchdogsLocked() {
	if s.timeoutTimer != nil {
		s.timeoutTimer.Stop()
		s.timeoutTimer = nil
	}
	if s.pollCancel != nil {
		s.pollCancel()
		s.pollCancel = nil
	}
}

// poll is the correctness fallback for a dropped push: re-fetch the order
// and look for an accepted item.
func (s *Session) poll(ctx context.Context, orderID string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			order, err := s.API.GetOrder(ctx, orderID)
			if err != nil {
				s.debug("matching poll failed", "error", err)
				continue
			}
			if it, ok := order.AcceptedItem(); ok {
				s.apply(event{kind: evAccepted, orderID: order.ID, driverName: it.DriverName})
				return
			}
		}
	}
}

// DriverName is the display name recorded when the driver was found.
func (s *Session) DriverName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driverName
}

// Close cancels all timers and the poll loop. After Close no redirect or
// notification fires; call it when the owning screen goes away.
func (s *Session) Close() {
	s.apply(event{kind: evReset})
}

func (s *Session) debug(msg string, args ...any) {
	if s.Logger != nil {
		s.Logger.Debug(msg, args...)
	}
}
