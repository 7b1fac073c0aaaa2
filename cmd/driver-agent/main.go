package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/example/freight-booking/internal/api"
	"github.com/example/freight-booking/internal/config"
	"github.com/example/freight-booking/internal/logging"
	"github.com/example/freight-booking/internal/models"
	"github.com/example/freight-booking/internal/offer"
	"github.com/example/freight-booking/internal/realtime"
	"github.com/example/freight-booking/internal/session"
)

// driver-agent is a headless driver client: it joins the driver's realtime
// room, decides on incoming job offers via a simple policy, and reports its
// position so the matcher can find it.
func main() {
	var (
		driverID    string
		driverName  string
		lat, lng    float64
		maxPickupKm float64
		minPrice    float64
		metricsAddr string
	)
	flag.StringVar(&driverID, "driver", "", "driver id (defaults to the stored session)")
	flag.StringVar(&driverName, "name", "", "driver display name")
	flag.Float64Var(&lat, "lat", 21.0278, "current latitude")
	flag.Float64Var(&lng, "lng", 105.8342, "current longitude")
	flag.Float64Var(&maxPickupKm, "max-pickup-km", 0, "decline offers farther than this from the driver (0 = any)")
	flag.Float64Var(&minPrice, "min-price", 0, "decline offers priced below this (0 = any)")
	flag.StringVar(&metricsAddr, "metrics-addr", ":2112", "address to serve prometheus metrics on")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.LoadClientConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	store := session.NewFileStore(session.DefaultPath())
	sess, ok := store.Load()
	if driverID != "" {
		sess = session.Session{Token: "dev", UserID: driverID, Role: "driver", Name: driverName}
		if err := store.Save(sess); err != nil {
			logger.Warn("could not persist session", "error", err)
		}
	} else if !ok || sess.Role != "driver" {
		log.Fatal("no driver session; pass -driver to sign in")
	}

	client := api.NewClient(cfg.APIBaseURL)

	ch := &realtime.Channel{
		URL:               cfg.RealtimeURL,
		JoinEvent:         models.EventDriverJoin,
		JoinPayload:       models.JoinPayload{DriverID: sess.UserID},
		ReconnectAttempts: cfg.ReconnectAttempts,
		ReconnectDelay:    cfg.ReconnectDelay,
		Logger:            logger,
	}

	policy := offer.AcceptPolicy{MaxPickupKm: maxPickupKm, MinPrice: minPrice}
	dispatcher := &offer.Dispatcher{
		DriverID: sess.UserID,
		API:      client,
		Notifier: logNotifier{logger},
		Logger:   logger,
		Timeout:  cfg.OfferTimeout,
		OnAccepted: func(o models.OfferNew) {
			logger.Info("job accepted, heading to pickup", "order_id", o.OrderID, "pickup", o.PickupAddress)
		},
	}
	dispatcher.Bind(ch)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := ch.Connect(); err != nil {
		log.Fatalf("realtime connect: %v", err)
	}
	defer ch.Close()
	defer dispatcher.Close()

	g, ctx := errgroup.WithContext(ctx)

	// location heartbeat, cancelled with the agent
	g.Go(func() error {
		ticker := time.NewTicker(cfg.HeartbeatInterval)
		defer ticker.Stop()
		me := models.Driver{ID: sess.UserID, Name: sess.Name, Loc: models.Coord{Lat: lat, Lng: lng}, Online: true}
		if err := client.UpdateDriverLocation(ctx, me); err != nil {
			logger.Warn("location update failed", "error", err)
		}
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := client.UpdateDriverLocation(ctx, me); err != nil {
					logger.Warn("location update failed", "error", err)
				}
			}
		}
	})

	// policy loop: accept offers the policy likes, otherwise leave them to
	// expire through the decision window
	g.Go(func() error {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				o, shown := dispatcher.Current()
				if !shown || dispatcher.State() != offer.OfferShown {
					continue
				}
				if !policy.Decide(o) {
					continue
				}
				if err := dispatcher.Accept(ctx); err != nil && !errors.Is(err, offer.ErrNoOffer) && !errors.Is(err, offer.ErrDeciding) {
					logger.Warn("accept failed", "order_id", o.OrderID, "error", err)
				}
			}
		}
	})

	g.Go(func() error {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		srv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("metrics listening", "addr", metricsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	logger.Info("driver agent running", "driver_id", sess.UserID)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}

type logNotifier struct{ l *slog.Logger }

func (n logNotifier) Info(msg string)  { n.l.Info(msg) }
func (n logNotifier) Error(msg string) { n.l.Error(msg) }
