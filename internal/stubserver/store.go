package stubserver

import (
	"errors"
	"sort"
	"sync"

	"github.com/example/freight-booking/internal/models"
)

var (
	ErrNotFound       = errors.New("order not found")
	errStatusConflict = errors.New("item status changed concurrently")
)

// OrderStore persists orders for the stub server. The memory variant is the
// default; postgres kicks in when PG_DSN is set.
//
// UpdateItem is a compare-and-set: the transition only happens while the
// item is still in the from status, otherwise errStatusConflict. Two
// drivers racing to accept the same item must produce exactly one winner,
// so the check has to live under the store's own lock.
type OrderStore interface {
	SaveOrder(o *models.Order) error
	GetOrder(id string) (*models.Order, error)
	UpdateItem(orderID, itemID string, from, to models.ItemStatus, driverID, driverName string) (*models.Order, error)
	ListUnclaimed() ([]models.Order, error)
}

type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]*models.Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]*models.Order)}
}

func (m *MemoryStore) SaveOrder(o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	cp.Items = append([]models.OrderItem{}, o.Items...)
	m.orders[o.ID] = &cp
	return nil
}

func (m *MemoryStore) GetOrder(id string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	cp.Items = append([]models.OrderItem{}, o.Items...)
	return &cp, nil
}

func (m *MemoryStore) UpdateItem(orderID, itemID string, from, to models.ItemStatus, driverID, driverName string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	for i := range o.Items {
		if o.Items[i].ID != itemID {
			continue
		}
		if o.Items[i].Status != from {
			return nil, errStatusConflict
		}
		o.Items[i].Status = to
		if driverID != "" {
			o.Items[i].DriverID = driverID
			o.Items[i].DriverName = driverName
		}
		cp := *o
		cp.Items = append([]models.OrderItem{}, o.Items...)
		return &cp, nil
	}
	return nil, ErrNotFound
}

// ListUnclaimed returns orders that still have an item without a driver,
// newest first.
func (m *MemoryStore) ListUnclaimed() ([]models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Order, 0)
	for _, o := range m.orders {
		for _, it := range o.Items {
			if it.Status == models.StatusCreated {
				cp := *o
				cp.Items = append([]models.OrderItem{}, o.Items...)
				out = append(out, cp)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
