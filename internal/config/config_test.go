package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRewriteForLAN(t *testing.T) {
	cases := []struct {
		name    string
		rawURL  string
		host    string
		want    string
	}{
		{"localhost ws", "ws://localhost:8080/ws", "192.168.1.20", "ws://192.168.1.20:8080/ws"},
		{"loopback http", "http://127.0.0.1:8080", "192.168.1.20", "http://192.168.1.20:8080"},
		{"no port", "ws://localhost/ws", "192.168.1.20", "ws://192.168.1.20/ws"},
		{"non-localhost untouched", "wss://rt.example.com/ws", "192.168.1.20", "wss://rt.example.com/ws"},
		{"current host is localhost", "ws://localhost:8080/ws", "localhost", "ws://localhost:8080/ws"},
		{"empty host", "ws://localhost:8080/ws", "", "ws://localhost:8080/ws"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, RewriteForLAN(c.rawURL, c.host))
		})
	}
}

func TestLoadClientConfigDefaults(t *testing.T) {
	cfg, err := LoadClientConfig()
	assert.NoError(t, err)
	assert.Equal(t, 5, cfg.ReconnectAttempts)
	assert.Equal(t, 120*time.Second, cfg.MatchTimeout)
	assert.Positive(t, cfg.PollInterval)
	assert.Positive(t, cfg.OfferTimeout)
}

func TestLoadClientConfigRejectsBadDuration(t *testing.T) {
	t.Setenv("MATCH_TIMEOUT", "not-a-duration")
	_, err := LoadClientConfig()
	assert.Error(t, err)
}
