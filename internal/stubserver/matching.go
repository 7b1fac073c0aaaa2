package stubserver

import (
	"context"
	"errors"
	"sync"

	"github.com/example/freight-booking/internal/events"
	"github.com/example/freight-booking/internal/geo"
	"github.com/example/freight-booking/internal/models"
	"github.com/example/freight-booking/internal/realtime"
)

var (
	errItemTaken     = errors.New("item already taken")
	errBadTransition = errors.New("status transition not allowed")
)

// matcher drives the server side of the offer handshake: pick the nearest
// driver, push an offer, and on reject move to the next candidate. The real
// platform's matching is far richer; this only has to be contract-faithful.
type matcher struct {
	s *Server

	mu       sync.Mutex
	declined map[string]map[string]bool // orderID/itemID -> drivers who passed
	names    map[string]string          // driverID -> display name
	seen     map[string]bool            // driverID -> registered before
	holds    map[string]string          // orderID -> payment hold id
}

func newMatcher(s *Server) *matcher {
	return &matcher{
		s:        s,
		declined: make(map[string]map[string]bool),
		names:    make(map[string]string),
		seen:     make(map[string]bool),
		holds:    make(map[string]string),
	}
}

func itemKey(orderID, itemID string) string { return orderID + "/" + itemID }

// recordDriver remembers the driver's display name and reports whether this
// is the first time the driver has checked in. Location updates recur every
// heartbeat, so the online gauge must only move on the first one.
func (m *matcher) recordDriver(d models.Driver) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.Name != "" {
		m.names[d.ID] = d.Name
	}
	if m.seen[d.ID] {
		return false
	}
	m.seen[d.ID] = true
	return true
}

func (m *matcher) driverName(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.names[id]; ok {
		return n
	}
	return id
}

func (m *matcher) recordHold(orderID, holdID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holds[orderID] = holdID
}

func (m *matcher) takeHold(orderID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.holds[orderID]
	if ok {
		delete(m.holds, orderID)
	}
	return h, ok
}

func (m *matcher) declinedSet(orderID, itemID string) map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.declined[itemKey(orderID, itemID)]
	out := make(map[string]bool, len(set))
	for k := range set {
		out[k] = true
	}
	return out
}

func (m *matcher) markDeclined(orderID, itemID, driverID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := itemKey(orderID, itemID)
	if m.declined[k] == nil {
		m.declined[k] = make(map[string]bool)
	}
	m.declined[k][driverID] = true
}

func (m *matcher) clearDeclined(orderID, itemID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.declined, itemKey(orderID, itemID))
}

// offerItem pushes the item at the nearest non-declined driver and lets the
// runners-up know via their available feed.
func (m *matcher) offerItem(order *models.Order, item models.OrderItem, exclude map[string]bool) {
	nearby := m.s.Drivers.Nearby(order.PickupLocation.Lat, order.PickupLocation.Lng, m.s.cfg.MatcherTopN)
	payload := models.OfferNew{
		OrderID:        order.ID,
		ItemID:         item.ID,
		PickupAddress:  order.PickupAddress,
		DropoffAddress: order.DropoffAddress,
		WeightKg:       item.WeightKg,
		DistanceKm:     item.DistanceKm,
		TotalPrice:     item.TotalPrice,
		CustomerNote:   order.CustomerNote,
	}
	offered := false
	for _, d := range nearby {
		if exclude[d.ID] {
			continue
		}
		fromKm := geo.Round1(geo.HaversineKm(d.Loc.Lat, d.Loc.Lng, order.PickupLocation.Lat, order.PickupLocation.Lng))
		if m.s.cfg.MatcherRadiusKm > 0 && fromKm > m.s.cfg.MatcherRadiusKm {
			continue
		}
		if !offered {
			p := payload
			p.DistanceFromKm = fromKm
			if err := m.s.Hub.Emit(realtime.DriverRoom(d.ID), models.EventOfferNew, p); err == nil {
				offered = true
				continue
			}
			// driver not connected right now; fall through to the feed
		}
		_ = m.s.Hub.Emit(realtime.DriverRoom(d.ID), models.EventAvailableNew, payload)
	}
	if !offered {
		m.s.logger.Info("no driver to offer item to", "order_id", order.ID, "item_id", item.ID)
	}
}

func (m *matcher) accept(orderID, itemID, driverID string) (*models.Order, error) {
	order, err := m.s.Store.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	item, ok := findItem(order, itemID)
	if !ok {
		return nil, ErrNotFound
	}
	if item.Status != models.StatusCreated {
		return nil, errItemTaken
	}
	// the store's compare-and-set is what actually decides the race; the
	// check above is only an early exit
	name := m.driverName(driverID)
	order, err = m.s.Store.UpdateItem(orderID, itemID, models.StatusCreated, models.StatusAccepted, driverID, name)
	if errors.Is(err, errStatusConflict) {
		return nil, errItemTaken
	}
	if err != nil {
		return nil, err
	}
	m.clearDeclined(orderID, itemID)
	_ = m.s.Hub.Emit(realtime.CustomerRoom(order.CustomerID), models.EventOrderAccepted,
		models.OrderAccepted{OrderID: orderID, DriverName: name})
	_ = m.s.Events.Publish(events.OrderEvent{Type: events.TypeAccepted, OrderID: orderID, ItemID: itemID, DriverID: driverID})
	return order, nil
}

func (m *matcher) reject(orderID, itemID, driverID string) error {
	order, err := m.s.Store.GetOrder(orderID)
	if err != nil {
		return err
	}
	item, ok := findItem(order, itemID)
	if !ok {
		return ErrNotFound
	}
	if item.Status != models.StatusCreated {
		// already decided elsewhere; nothing to re-offer
		return nil
	}
	m.markDeclined(orderID, itemID, driverID)
	m.offerItem(order, item, m.declinedSet(orderID, itemID))
	return nil
}

func (m *matcher) updateStatus(ctx context.Context, orderID, itemID string, to models.ItemStatus) (*models.Order, error) {
	order, err := m.s.Store.GetOrder(orderID)
	if err != nil {
		return nil, err
	}
	item, ok := findItem(order, itemID)
	if !ok {
		return nil, ErrNotFound
	}
	if !item.Status.NextAllowed(to) {
		return nil, errBadTransition
	}
	order, err = m.s.Store.UpdateItem(orderID, itemID, item.Status, to, "", "")
	if err != nil {
		return nil, err
	}
	_ = m.s.Hub.Emit(realtime.CustomerRoom(order.CustomerID), models.EventStatusUpdated,
		models.StatusUpdated{OrderID: orderID, ItemID: itemID, Status: to})
	_ = m.s.Events.Publish(events.OrderEvent{Type: events.TypeStatusChanged, OrderID: orderID, ItemID: itemID, Status: to})

	switch to {
	case models.StatusDelivered:
		if hold, ok := m.takeHold(orderID); ok {
			if err := m.s.Payments.Capture(ctx, hold); err != nil {
				m.s.logger.Error("payment capture failed", "order_id", orderID, "error", err)
			}
		}
	case models.StatusCancelled:
		if hold, ok := m.takeHold(orderID); ok {
			if err := m.s.Payments.Release(ctx, hold); err != nil {
				m.s.logger.Error("payment release failed", "order_id", orderID, "error", err)
			}
		}
	}
	return order, nil
}

func findItem(o *models.Order, itemID string) (models.OrderItem, bool) {
	for _, it := range o.Items {
		if it.ID == itemID {
			return it, true
		}
	}
	return models.OrderItem{}, false
}
