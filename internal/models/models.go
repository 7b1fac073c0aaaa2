package models

import "time"

type Coord struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Zero reports whether the coordinate is absent (both components unset).
func (c Coord) Zero() bool { return c.Lat == 0 && c.Lng == 0 }

// ItemStatus is the server-authoritative lifecycle of one order item.
// The client only requests transitions and reflects confirmed results.
type ItemStatus string

const (
	StatusCreated    ItemStatus = "created"
	StatusAccepted   ItemStatus = "accepted"
	StatusPickedUp   ItemStatus = "picked_up"
	StatusDelivering ItemStatus = "delivering"
	StatusDelivered  ItemStatus = "delivered"
	StatusCancelled  ItemStatus = "cancelled"
)

// NextAllowed reports whether to is a valid forward transition from s.
// Cancellation is allowed from any non-terminal state.
func (s ItemStatus) NextAllowed(to ItemStatus) bool {
	if s == StatusDelivered || s == StatusCancelled {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	forward := map[ItemStatus]ItemStatus{
		StatusCreated:    StatusAccepted,
		StatusAccepted:   StatusPickedUp,
		StatusPickedUp:   StatusDelivering,
		StatusDelivering: StatusDelivered,
	}
	return forward[s] == to
}

type PayerRole string

const (
	PayerSender   PayerRole = "sender"
	PayerReceiver PayerRole = "receiver"
)

type OrderItem struct {
	ID             string     `json:"id"`
	VehicleType    string     `json:"vehicleType"`
	PricePerKm     float64    `json:"pricePerKm"`
	WeightKg       float64    `json:"weightKg"`
	DistanceKm     float64    `json:"distanceKm"`
	LoadingService bool       `json:"loadingService"`
	Insurance      bool       `json:"insurance"`
	TotalPrice     float64    `json:"totalPrice"`
	Status         ItemStatus `json:"status"`
	DriverID       string     `json:"driverId,omitempty"`
	DriverName     string     `json:"driverName,omitempty"`
}

type Order struct {
	ID              string      `json:"id"`
	CustomerID      string      `json:"customerId"`
	PickupAddress   string      `json:"pickupAddress"`
	DropoffAddress  string      `json:"dropoffAddress"`
	PickupLocation  Coord       `json:"pickupLocation"`
	DropoffLocation Coord       `json:"dropoffLocation"`
	PaymentBy       PayerRole   `json:"paymentBy"`
	CustomerNote    string      `json:"customerNote,omitempty"`
	Items           []OrderItem `json:"items"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// AcceptedItem returns the first item a driver has accepted, if any.
func (o *Order) AcceptedItem() (OrderItem, bool) {
	for _, it := range o.Items {
		if it.Status == StatusAccepted && it.DriverID != "" {
			return it, true
		}
	}
	return OrderItem{}, false
}

// PriceBreakdown is a pure projection of the current quote inputs; it is
// never persisted.
type PriceBreakdown struct {
	RatePerKm    float64 `json:"ratePerKm"`
	DistanceCost float64 `json:"distanceCost"`
	LoadingFee   float64 `json:"loadingFee"`
	InsuranceFee float64 `json:"insuranceFee"`
	Total        float64 `json:"total"`
}

type Driver struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Loc     Coord     `json:"loc"`
	Online  bool      `json:"online"`
	Updated time.Time `json:"updated"`
}

// CreateOrderRequest is the body of POST /orders.
type CreateOrderRequest struct {
	CustomerID      string      `json:"customerId"`
	PickupAddress   string      `json:"pickupAddress"`
	DropoffAddress  string      `json:"dropoffAddress"`
	PickupLocation  Coord       `json:"pickupLocation"`
	DropoffLocation Coord       `json:"dropoffLocation"`
	PaymentBy       PayerRole   `json:"paymentBy"`
	CustomerNote    string      `json:"customerNote,omitempty"`
	Items           []OrderItem `json:"items"`
}
