package models

// Realtime event names shared by client and server. The server pushes into
// per-identity rooms; clients join their room right after connecting.
const (
	EventCustomerJoin  = "customer:join"
	EventDriverJoin    = "driver:join"
	EventOrderAccepted = "order:accepted"
	EventStatusUpdated = "order:status:updated"
	EventOfferNew      = "order:popup:new"
	EventAvailableNew  = "order:available:new"
)

type JoinPayload struct {
	CustomerID string `json:"customerId,omitempty"`
	DriverID   string `json:"driverId,omitempty"`
}

// OrderAccepted is pushed to the customer room when a driver takes an item.
type OrderAccepted struct {
	OrderID    string `json:"orderId"`
	DriverName string `json:"driverName"`
}

type StatusUpdated struct {
	OrderID string     `json:"orderId"`
	ItemID  string     `json:"itemId"`
	Status  ItemStatus `json:"status"`
}

// OfferNew is pushed to a single driver room as a candidate job. The driver
// has 30 seconds to decide before the client auto-rejects.
type OfferNew struct {
	OrderID          string  `json:"orderId"`
	ItemID           string  `json:"itemId"`
	PickupAddress    string  `json:"pickupAddress"`
	DropoffAddress   string  `json:"dropoffAddress"`
	DistanceFromKm   float64 `json:"distanceFromDriver"`
	WeightKg         float64 `json:"weightKg"`
	DistanceKm       float64 `json:"distanceKm"`
	TotalPrice       float64 `json:"totalPrice"`
	CustomerNote     string  `json:"customerNote,omitempty"`
}
