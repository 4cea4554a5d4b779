package reader

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustclaw/models"
)

func newTestClient(opts ClientOptions) *Client {
	if opts.RequestsPerMinute == 0 {
		opts.RequestsPerMinute = 60_000
		opts.Burst = 100
	}
	return NewClient("test", opts)
}

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "agent/1", r.Header.Get("User-Agent"))
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		io.WriteString(w, `{"name":"claw"}`)
	}))
	defer srv.Close()

	c := newTestClient(ClientOptions{UserAgent: "agent/1"})
	var out struct{ Name string }
	require.NoError(t, c.GetJSON(context.Background(), srv.URL, url.Values{"limit": {"25"}}, &out))
	assert.Equal(t, "claw", out.Name)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		transient bool
		parse     bool
	}{
		{"rate limited", http.StatusTooManyRequests, "slow down", true, false},
		{"server error", http.StatusBadGateway, "", true, false},
		{"not found", http.StatusNotFound, "", true, false},
		{"bad body", http.StatusOK, "<html>", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			var out map[string]interface{}
			err := newTestClient(ClientOptions{}).GetJSON(context.Background(), srv.URL, nil, &out)
			require.Error(t, err)
			assert.Equal(t, tt.transient, models.IsTransient(err), "transient: %v", err)
			assert.Equal(t, tt.parse, models.IsParse(err), "parse: %v", err)
		})
	}
}

func TestTimeoutIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	_, err := newTestClient(ClientOptions{Timeout: 30 * time.Millisecond}).GetBody(context.Background(), srv.URL, nil)
	require.Error(t, err)
	assert.True(t, models.IsTransient(err))
}

func TestBreakerOpensOnUpstreamFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(ClientOptions{BreakerFailures: 2, BreakerCooldown: time.Hour})
	for i := 0; i < 2; i++ {
		_, err := c.GetBody(context.Background(), srv.URL, nil)
		require.Error(t, err)
	}
	_, err := c.GetBody(context.Background(), srv.URL, nil)
	require.Error(t, err)
	assert.True(t, models.IsTransient(err))
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(2), hits.Load(), "open breaker must not reach the server")
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(ClientOptions{BreakerFailures: 1, BreakerCooldown: time.Hour})
	for i := 0; i < 3; i++ {
		_, err := c.GetBody(context.Background(), srv.URL, nil)
		require.Error(t, err)
		assert.False(t, errors.Is(err, gobreaker.ErrOpenState))
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestClient(ClientOptions{}).GetBody(ctx, "http://127.0.0.1:1", nil)
	require.Error(t, err)
	assert.True(t, models.IsTransient(err))
}
