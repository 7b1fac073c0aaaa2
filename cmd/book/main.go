package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/example/freight-booking/internal/api"
	"github.com/example/freight-booking/internal/config"
	"github.com/example/freight-booking/internal/distance"
	"github.com/example/freight-booking/internal/logging"
	"github.com/example/freight-booking/internal/match"
	"github.com/example/freight-booking/internal/models"
	"github.com/example/freight-booking/internal/pricing"
	"github.com/example/freight-booking/internal/realtime"
	"github.com/example/freight-booking/internal/session"
)

// book is the customer CLI: quote a delivery, submit it and wait for a
// driver to take it.
func main() {
	var (
		customerID  string
		pickupAddr  string
		dropoffAddr string
		pickupLat   float64
		pickupLng   float64
		dropoffLat  float64
		dropoffLng  float64
		weightKg    float64
		vehicleType string
		loading     bool
		insurance   bool
		paymentBy   string
		note        string
		quoteOnly   bool
		interactive bool
		osrmURL     string
	)
	flag.StringVar(&customerID, "customer", "", "customer id (defaults to the stored session)")
	flag.StringVar(&pickupAddr, "from", "", "pickup address")
	flag.StringVar(&dropoffAddr, "to", "", "dropoff address")
	flag.Float64Var(&pickupLat, "from-lat", 0, "pickup latitude")
	flag.Float64Var(&pickupLng, "from-lng", 0, "pickup longitude")
	flag.Float64Var(&dropoffLat, "to-lat", 0, "dropoff latitude")
	flag.Float64Var(&dropoffLng, "to-lng", 0, "dropoff longitude")
	flag.Float64Var(&weightKg, "weight", 0, "cargo weight in kg")
	flag.StringVar(&vehicleType, "vehicle", "truck", "vehicle type")
	flag.BoolVar(&loading, "loading", false, "add the loading service")
	flag.BoolVar(&insurance, "insurance", false, "add cargo insurance")
	flag.StringVar(&paymentBy, "payment-by", string(models.PayerSender), "who pays: sender or receiver")
	flag.StringVar(&note, "note", "", "note for the driver")
	flag.BoolVar(&quoteOnly, "quote", false, "print the price breakdown and exit")
	flag.BoolVar(&interactive, "interactive", false, "re-quote as coordinates are typed on stdin")
	flag.StringVar(&osrmURL, "osrm", "", "OSRM endpoint for road distances (optional)")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.LoadClientConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewTextLogger(cfg.LogLevel)

	if customerID == "" {
		if sess, ok := session.NewFileStore(session.DefaultPath()).Load(); ok && sess.Role == "customer" {
			customerID = sess.UserID
		}
	}
	if customerID == "" {
		customerID = uuid.NewString()
	}

	pickup := models.Coord{Lat: pickupLat, Lng: pickupLng}
	dropoff := models.Coord{Lat: dropoffLat, Lng: dropoffLng}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resolver := &distance.Resolver{Logger: logger}
	if osrmURL == "" {
		osrmURL = cfg.OSRMEndpoint
	}
	if osrmURL != "" {
		resolver.Router = distance.NewOSRMRouter(osrmURL)
	}

	if interactive {
		interactiveQuote(ctx, resolver, cfg.DebounceDelay, weightKg, loading, insurance)
		return
	}

	km := resolver.ResolveKm(ctx, pickup, dropoff)
	if km == 0 {
		km = match.DefaultNoCoordsKm
	}

	quote := pricing.ComputeBreakdown(weightKg, km, loading, insurance)
	printQuote(km, quote)
	if quoteOnly {
		return
	}

	client := api.NewClient(cfg.APIBaseURL)

	ch := &realtime.Channel{
		URL:               cfg.RealtimeURL,
		JoinEvent:         models.EventCustomerJoin,
		JoinPayload:       models.JoinPayload{CustomerID: customerID},
		ReconnectAttempts: cfg.ReconnectAttempts,
		ReconnectDelay:    cfg.ReconnectDelay,
		Logger:            logger,
	}

	done := make(chan string, 1)
	sess := &match.Session{
		API:          client,
		Notifier:     printNotifier{},
		Logger:       logger,
		Timeout:      cfg.MatchTimeout,
		PollInterval: cfg.PollInterval,
		DisplayDelay: cfg.DisplayDelay,
		Redirect: func(orderID string) {
			done <- orderID
		},
	}
	sess.Bind(ch)

	if err := ch.Connect(); err != nil {
		log.Fatalf("realtime connect: %v", err)
	}
	defer ch.Close()
	defer sess.Close()

	req := models.CreateOrderRequest{
		CustomerID:      customerID,
		PickupAddress:   pickupAddr,
		DropoffAddress:  dropoffAddr,
		PickupLocation:  pickup,
		DropoffLocation: dropoff,
		PaymentBy:       models.PayerRole(paymentBy),
		CustomerNote:    note,
		Items: []models.OrderItem{{
			VehicleType:    vehicleType,
			WeightKg:       weightKg,
			DistanceKm:     km,
			LoadingService: loading,
			Insurance:      insurance,
			TotalPrice:     quote.Total,
		}},
	}

	order, err := sess.Submit(ctx, req)
	if err != nil {
		log.Fatalf("submit: %v", err)
	}
	fmt.Printf("order %s submitted, waiting for a driver...\n", order.ID)

	// the session resolves by push or poll; we just wait for the redirect,
	// the timeout or an interrupt
	deadline := time.NewTimer(cfg.MatchTimeout + cfg.DisplayDelay + 5*time.Second)
	defer deadline.Stop()
	for {
		select {
		case orderID := <-done:
			fmt.Printf("driver %s is on the way (order %s)\n", sess.DriverName(), orderID)
			return
		case <-deadline.C:
			if sess.Submittable() {
				fmt.Println("no driver accepted in time")
				os.Exit(1)
			}
		case <-ctx.Done():
			fmt.Println("cancelled")
			os.Exit(130)
		}
	}
}

func printQuote(km float64, quote models.PriceBreakdown) {
	fmt.Printf("distance: %.1f km\n", km)
	fmt.Printf("rate:     %.0f VND/km\n", quote.RatePerKm)
	fmt.Printf("distance cost: %.0f VND\n", quote.DistanceCost)
	if quote.LoadingFee > 0 {
		fmt.Printf("loading fee:   %.0f VND\n", quote.LoadingFee)
	}
	if quote.InsuranceFee > 0 {
		fmt.Printf("insurance:     %.0f VND\n", quote.InsuranceFee)
	}
	fmt.Printf("total:    %.0f VND\n", quote.Total)
}

// interactiveQuote re-prices as coordinate pairs arrive on stdin, one
// "fromLat,fromLng toLat,toLng" per line, debounced like the booking form
// so a burst of edits costs one routing call.
func interactiveQuote(ctx context.Context, resolver *distance.Resolver, delay time.Duration, weightKg float64, loading, insurance bool) {
	deb := &distance.Debouncer{Delay: delay}
	defer deb.Stop()

	fmt.Println("enter coordinates as: fromLat,fromLng toLat,toLng")
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		var pickup, dropoff models.Coord
		if _, err := fmt.Sscanf(sc.Text(), "%f,%f %f,%f",
			&pickup.Lat, &pickup.Lng, &dropoff.Lat, &dropoff.Lng); err != nil {
			fmt.Println("could not parse, expected: fromLat,fromLng toLat,toLng")
			continue
		}
		deb.Do(func() {
			km := resolver.ResolveKm(ctx, pickup, dropoff)
			if km == 0 {
				km = match.DefaultNoCoordsKm
			}
			printQuote(km, pricing.ComputeBreakdown(weightKg, km, loading, insurance))
		})
	}
}

type printNotifier struct{}

func (printNotifier) Info(msg string)  { fmt.Println(msg) }
func (printNotifier) Error(msg string) { fmt.Println("error: " + msg) }
