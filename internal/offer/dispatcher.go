package offer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/example/freight-booking/internal/models"
	"github.com/example/freight-booking/internal/observability"
)

// State is the driver-side offer lifecycle.
type State int

const (
	Listening State = iota
	OfferShown
	Accepting
	Rejecting
	AutoRejecting
)

func (s State) String() string {
	switch s {
	case Listening:
		return "listening"
	case OfferShown:
		return "offer_shown"
	case Accepting:
		return "accepting"
	case Rejecting:
		return "rejecting"
	case AutoRejecting:
		return "auto_rejecting"
	default:
		return "unknown"
	}
}

// DriverAPI is the slice of the REST client the dispatcher needs.
type DriverAPI interface {
	AcceptItem(ctx context.Context, orderID, itemID, driverID string) error
	RejectItem(ctx context.Context, orderID, itemID, driverID string) error
}

type Pushes interface {
	On(event string, fn func(json.RawMessage))
}

type Notifier interface {
	Info(msg string)
	Error(msg string)
}

var (
	ErrNoOffer  = errors.New("no offer is currently shown")
	ErrDeciding = errors.New("a decision for this offer is already in flight")
)

// Dispatcher presents incoming job offers to one driver and enforces the
// decision window. The latest offer always preempts a pending one; there is
// no queueing. Accept and reject are mutually exclusive in flight.
type Dispatcher struct {
	DriverID string
	API      DriverAPI
	Notifier Notifier
	Logger   *slog.Logger

	Timeout time.Duration // decision window, default 30s

	// OnAccepted runs after a successful accept, e.g. to navigate to the
	// active-orders view or refresh it.
	OnAccepted func(models.OfferNew)

	mu      sync.Mutex
	state   State
	current *models.OfferNew
	timer   *time.Timer
}

// Bind registers the dispatcher on a channel joined to the driver's room.
func (d *Dispatcher) Bind(ch Pushes) {
	ch.On(models.EventOfferNew, func(data json.RawMessage) {
		var o models.OfferNew
		if err := json.Unmarshal(data, &o); err != nil {
			if d.Logger != nil {
				d.Logger.Debug("bad offer payload", "error", err)
			}
			return
		}
		d.HandleOffer(o)
	})
}

func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Current returns the offer on display, if any.
func (d *Dispatcher) Current() (models.OfferNew, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return models.OfferNew{}, false
	}
	return *d.current, true
}

// HandleOffer shows a new offer, preempting any pending one: the previous
// 30s timer is cleared so it can never auto-reject the wrong job.
func (d *Dispatcher) HandleOffer(o models.OfferNew) {
	d.mu.Lock()
	if d.state == Accepting || d.state == Rejecting || d.state == AutoRejecting {
		// a decision is mid-flight; dropping the push is safer than
		// yanking the offer out from under it
		d.mu.Unlock()
		d.debug("offer dropped, decision in flight", "order_id", o.OrderID)
		return
	}
	d.stopTimerLocked()
	offer := o
	d.current = &offer
	d.state = OfferShown
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	orderID, itemID := o.OrderID, o.ItemID
	d.timer = time.AfterFunc(timeout, func() {
		d.autoReject(orderID, itemID)
	})
	d.mu.Unlock()

	observability.OffersShown.Inc()
	if d.Notifier != nil {
		d.Notifier.Info("new job offer: " + o.PickupAddress + " -> " + o.DropoffAddress)
	}
}

// Accept claims the shown offer. The timer is cleared before the request
// goes out so a manual accept never races the auto-reject. A failed accept
// closes the popup without retrying: the job may already belong to another
// driver, so retry-without-reconfirmation is unsafe.
func (d *Dispatcher) Accept(ctx context.Context) error {
	d.mu.Lock()
	if d.current == nil || d.state == Listening {
		d.mu.Unlock()
		return ErrNoOffer
	}
	if d.state != OfferShown {
		d.mu.Unlock()
		return ErrDeciding
	}
	d.state = Accepting
	d.stopTimerLocked()
	offer := *d.current
	d.mu.Unlock()

	err := d.API.AcceptItem(ctx, offer.OrderID, offer.ItemID, d.DriverID)

	d.mu.Lock()
	d.closeLocked()
	d.mu.Unlock()

	if err != nil {
		if d.Notifier != nil {
			d.Notifier.Error(err.Error())
		}
		return err
	}
	observability.OffersAccepted.Inc()
	if d.Notifier != nil {
		d.Notifier.Info("job accepted")
	}
	if d.OnAccepted != nil {
		d.OnAccepted(offer)
	}
	return nil
}

// Reject declines the shown offer. Failures are surfaced but the popup
// closes regardless; a stale popup is not a state the driver can retry from.
func (d *Dispatcher) Reject(ctx context.Context) error {
	d.mu.Lock()
	if d.current == nil || d.state == Listening {
		d.mu.Unlock()
		return ErrNoOffer
	}
	if d.state != OfferShown {
		d.mu.Unlock()
		return ErrDeciding
	}
	d.state = Rejecting
	d.stopTimerLocked()
	offer := *d.current
	d.mu.Unlock()

	err := d.API.RejectItem(ctx, offer.OrderID, offer.ItemID, d.DriverID)

	d.mu.Lock()
	d.closeLocked()
	d.mu.Unlock()

	if err != nil {
		if d.Notifier != nil {
			d.Notifier.Error(err.Error())
		}
		return err
	}
	observability.OffersRejected.Inc()
	if d.Notifier != nil {
		d.Notifier.Info("offer declined")
	}
	return nil
}

// autoReject fires when the decision window closes. Best-effort: the server
// owns timeout handling, so a failed reject call is logged and surfaced but
// never keeps the popup open.
func (d *Dispatcher) autoReject(orderID, itemID string) {
	d.mu.Lock()
	if d.state != OfferShown || d.current == nil ||
		d.current.OrderID != orderID || d.current.ItemID != itemID {
		d.mu.Unlock()
		return
	}
	d.state = AutoRejecting
	offer := *d.current
	d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err := d.API.RejectItem(ctx, offer.OrderID, offer.ItemID, d.DriverID)
	cancel()

	d.mu.Lock()
	d.closeLocked()
	d.mu.Unlock()

	observability.OffersAutoRejected.Inc()
	if err != nil {
		if d.Logger != nil {
			d.Logger.Error("auto-reject failed", "order_id", offer.OrderID, "item_id", offer.ItemID, "error", err)
		}
		if d.Notifier != nil {
			d.Notifier.Error("could not decline the offer: " + err.Error())
		}
		return
	}
	if d.Notifier != nil {
		d.Notifier.Info("offer expired, the job will go to another driver")
	}
}

// Close clears any pending offer and timer, e.g. on agent shutdown.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeLocked()
}

func (d *Dispatcher) closeLocked() {
	d.stopTimerLocked()
	d.current = nil
	d.state = Listening
}

func (d *Dispatcher) stopTimerLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Dispatcher) debug(msg string, args ...any) {
	if d.Logger != nil {
		d.Logger.Debug(msg, args...)
	}
}
