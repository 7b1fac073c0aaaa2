package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// ClientConfig captures tunables for the booking client and driver agent.
// Values load from environment variables with defaults that work against a
// locally-running stub server.
type ClientConfig struct {
	APIBaseURL  string
	RealtimeURL string
	Environment string // "development" or "production"

	OSRMEndpoint string

	MatchTimeout      time.Duration
	PollInterval      time.Duration
	OfferTimeout      time.Duration
	DisplayDelay      time.Duration
	DebounceDelay     time.Duration
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	HeartbeatInterval time.Duration

	LogLevel string
}

func defaultClientConfig() ClientConfig {
	return ClientConfig{
		APIBaseURL:        "http://localhost:8080",
		RealtimeURL:       "ws://localhost:8080/ws",
		Environment:       "development",
		MatchTimeout:      120 * time.Second,
		PollInterval:      3 * time.Second,
		OfferTimeout:      30 * time.Second,
		DisplayDelay:      2 * time.Second,
		DebounceDelay:     500 * time.Millisecond,
		ReconnectAttempts: 5,
		ReconnectDelay:    time.Second,
		HeartbeatInterval: 15 * time.Second,
		LogLevel:          "info",
	}
}

func LoadClientConfig() (ClientConfig, error) {
	cfg := defaultClientConfig()
	var errs []error

	setStringFromEnv(&cfg.APIBaseURL, "API_BASE_URL")
	setStringFromEnv(&cfg.RealtimeURL, "REALTIME_URL")
	setStringFromEnv(&cfg.Environment, "FREIGHT_ENV")
	setStringFromEnv(&cfg.OSRMEndpoint, "OSRM_ENDPOINT")

	setDurationFromEnv(&cfg.MatchTimeout, "MATCH_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.PollInterval, "MATCH_POLL_INTERVAL", &errs)
	setDurationFromEnv(&cfg.OfferTimeout, "OFFER_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.DisplayDelay, "MATCH_DISPLAY_DELAY", &errs)
	setDurationFromEnv(&cfg.DebounceDelay, "DISTANCE_DEBOUNCE", &errs)
	setIntFromEnv(&cfg.ReconnectAttempts, "REALTIME_RECONNECT_ATTEMPTS", &errs)
	setDurationFromEnv(&cfg.ReconnectDelay, "REALTIME_RECONNECT_DELAY", &errs)
	setDurationFromEnv(&cfg.HeartbeatInterval, "LOCATION_HEARTBEAT_INTERVAL", &errs)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if cfg.MatchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("MATCH_TIMEOUT must be > 0"))
	}
	if cfg.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("MATCH_POLL_INTERVAL must be > 0"))
	}
	if cfg.OfferTimeout <= 0 {
		errs = append(errs, fmt.Errorf("OFFER_TIMEOUT must be > 0"))
	}

	// In development, a realtime URL pointing at localhost is rewritten so
	// devices on the same LAN can reach a locally-hosted server.
	if cfg.Environment == "development" {
		if host := os.Getenv("LAN_HOST"); host != "" {
			cfg.RealtimeURL = RewriteForLAN(cfg.RealtimeURL, host)
			cfg.APIBaseURL = RewriteForLAN(cfg.APIBaseURL, host)
		}
	}

	return cfg, errors.Join(errs...)
}

// RewriteForLAN substitutes a localhost host in rawURL with currentHost,
// keeping scheme, port and path. Non-localhost URLs pass through untouched,
// as do unparseable ones.
func RewriteForLAN(rawURL, currentHost string) string {
	if currentHost == "" || currentHost == "localhost" || currentHost == "127.0.0.1" {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if u.Hostname() != "localhost" && u.Hostname() != "127.0.0.1" {
		return rawURL
	}
	if port := u.Port(); port != "" {
		u.Host = currentHost + ":" + port
	} else {
		u.Host = currentHost
	}
	return u.String()
}

// ServerConfig captures tunables for the local stub server process.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisGeoKey   string

	KafkaBrokers []string
	KafkaTopic   string

	PGDSN string

	StripeAPIKey string

	MatcherRadiusKm float64
	MatcherTopN     int

	LogLevel string
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:        ":8080",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RedisGeoKey:     "drivers_geo",
		KafkaTopic:      "order-events",
		MatcherRadiusKm: 50,
		MatcherTopN:     8,
		LogLevel:        "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")
	cfg.StripeAPIKey = os.Getenv("STRIPE_API_KEY")

	setFloatFromEnv(&cfg.MatcherRadiusKm, "MATCHER_RADIUS_KM", &errs)
	setIntFromEnv(&cfg.MatcherTopN, "MATCHER_TOP_N", &errs)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if cfg.MatcherTopN <= 0 {
		errs = append(errs, fmt.Errorf("MATCHER_TOP_N must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
