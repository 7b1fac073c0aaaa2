package stubserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/freight-booking/internal/config"
	"github.com/example/freight-booking/internal/events"
	"github.com/example/freight-booking/internal/geo"
	"github.com/example/freight-booking/internal/models"
	"github.com/example/freight-booking/internal/observability"
	"github.com/example/freight-booking/internal/payments"
	"github.com/example/freight-booking/internal/pricing"
	"github.com/example/freight-booking/internal/realtime"
)

// Server is a local development backend implementing the booking platform's
// REST and realtime contracts, so the client protocol can be exercised end
// to end without the production system.
type Server struct {
	Store    OrderStore
	Drivers  geo.DriverIndex
	Hub      *realtime.Hub
	Events   events.Producer
	Payments payments.Gateway

	logger  *slog.Logger
	cfg     config.ServerConfig
	matcher *matcher
	mux     *mux.Router
}

func NewServer(cfg config.ServerConfig, logger *slog.Logger) *Server {
	s := &Server{
		Store:    NewMemoryStore(),
		Drivers:  geo.NewIndex(),
		Hub:      realtime.NewHub(logger),
		Events:   events.NoopProducer{},
		Payments: payments.NoopGateway{},
		logger:   logger,
		cfg:      cfg,
		mux:      mux.NewRouter(),
	}
	if cfg.RedisAddr != "" {
		s.Drivers = geo.NewRedisIndex(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
	}
	if cfg.PGDSN != "" {
		if ps, err := NewPostgresStore(cfg.PGDSN); err == nil {
			s.Store = ps
		} else {
			logger.Warn("postgres unavailable, using memory store", "error", err)
		}
	}
	if len(cfg.KafkaBrokers) > 0 {
		s.Events = events.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	}
	if cfg.StripeAPIKey != "" {
		s.Payments = payments.NewStripeGateway(cfg.StripeAPIKey)
	}
	s.matcher = newMatcher(s)
	s.routes()
	s.registerMiddleware()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/orders", s.handleCreateOrder).Methods("POST")
	s.mux.HandleFunc("/orders/driver/available", s.handleAvailableOrders).Methods("GET")
	s.mux.HandleFunc("/orders/{id}", s.handleGetOrder).Methods("GET")
	s.mux.HandleFunc("/orders/{orderId}/items/{itemId}/accept", s.handleAcceptItem).Methods("PUT")
	s.mux.HandleFunc("/orders/{orderId}/items/{itemId}/reject", s.handleRejectItem).Methods("PUT")
	s.mux.HandleFunc("/orders/{orderId}/items/{itemId}/status", s.handleUpdateStatus).Methods("PUT")
	s.mux.HandleFunc("/drivers/location", s.handleDriverLocation).Methods("POST")
	s.mux.HandleFunc("/ws", s.Hub.HandleWS)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// envelope helpers: every JSON endpoint answers {success, data, message}.

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

func writeErr(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": message})
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req models.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Items) == 0 {
		writeErr(w, http.StatusBadRequest, "order needs at least one item")
		return
	}
	now := time.Now()
	order := &models.Order{
		ID:              uuid.NewString(),
		CustomerID:      req.CustomerID,
		PickupAddress:   req.PickupAddress,
		DropoffAddress:  req.DropoffAddress,
		PickupLocation:  req.PickupLocation,
		DropoffLocation: req.DropoffLocation,
		PaymentBy:       req.PaymentBy,
		CustomerNote:    req.CustomerNote,
		Items:           req.Items,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	var total float64
	for i := range order.Items {
		if order.Items[i].ID == "" {
			order.Items[i].ID = uuid.NewString()
		}
		order.Items[i].Status = models.StatusCreated
		if order.Items[i].TotalPrice <= 0 {
			b := pricing.ComputeBreakdown(order.Items[i].WeightKg, order.Items[i].DistanceKm,
				order.Items[i].LoadingService, order.Items[i].Insurance)
			order.Items[i].PricePerKm = b.RatePerKm
			order.Items[i].TotalPrice = b.Total
		}
		total += order.Items[i].TotalPrice
	}
	if err := s.Store.SaveOrder(order); err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	observability.OrdersCreated.Inc()

	if holdID, err := s.Payments.Hold(r.Context(), int64(total), "vnd", req.CustomerID); err != nil {
		s.logger.Warn("payment hold failed", "order_id", order.ID, "error", err)
	} else if holdID != "" {
		s.matcher.recordHold(order.ID, holdID)
	}
	_ = s.Events.Publish(events.OrderEvent{Type: events.TypeCreated, OrderID: order.ID})

	for _, it := range order.Items {
		s.matcher.offerItem(order, it, nil)
	}
	writeData(w, http.StatusCreated, order)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.Store.GetOrder(mux.Vars(r)["id"])
	if err == ErrNotFound {
		writeErr(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, http.StatusOK, order)
}

func (s *Server) handleAvailableOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.Store.ListUnclaimed()
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeData(w, http.StatusOK, orders)
}

type decisionRequest struct {
	DriverID string `json:"driverId"`
}

func (s *Server) handleAcceptItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DriverID == "" {
		writeErr(w, http.StatusBadRequest, "driverId required")
		return
	}
	order, err := s.matcher.accept(vars["orderId"], vars["itemId"], req.DriverID)
	if err != nil {
		writeErr(w, statusFor(err), err.Error())
		return
	}
	writeData(w, http.StatusOK, order)
}

func (s *Server) handleRejectItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DriverID == "" {
		writeErr(w, http.StatusBadRequest, "driverId required")
		return
	}
	if err := s.matcher.reject(vars["orderId"], vars["itemId"], req.DriverID); err != nil {
		writeErr(w, statusFor(err), err.Error())
		return
	}
	writeData(w, http.StatusOK, nil)
}

type statusRequest struct {
	Status models.ItemStatus `json:"status"`
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	order, err := s.matcher.updateStatus(r.Context(), vars["orderId"], vars["itemId"], req.Status)
	if err != nil {
		writeErr(w, statusFor(err), err.Error())
		return
	}
	writeData(w, http.StatusOK, order)
}

func (s *Server) handleDriverLocation(w http.ResponseWriter, r *http.Request) {
	var d models.Driver
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if d.ID == "" {
		writeErr(w, http.StatusBadRequest, "driver id required")
		return
	}
	d.Online = true
	s.Drivers.Upsert(d)
	if s.matcher.recordDriver(d) {
		observability.DriversOnline.Inc()
	}
	writeData(w, http.StatusOK, nil)
}

func statusFor(err error) int {
	switch err {
	case ErrNotFound:
		return http.StatusNotFound
	case errItemTaken, errStatusConflict:
		return http.StatusConflict
	case errBadTransition:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
