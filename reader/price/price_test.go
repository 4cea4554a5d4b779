package price

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustclaw/models"
)

type fakeSource struct {
	name  string
	price float64
	err   error
	calls int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Price(ctx context.Context) (float64, error) {
	f.calls++
	return f.price, f.err
}

func TestOracleCachesWithinTTL(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{name: "a", price: 140}
	o := NewOracle(OracleOptions{TTL: time.Minute}, src)
	o.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		p, err := o.SOLPrice(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 140.0, p)
	}
	assert.Equal(t, 1, src.calls)

	now = now.Add(2 * time.Minute)
	src.price = 150
	p, err := o.SOLPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 150.0, p)
	assert.Equal(t, "a", o.Source())
}

func TestOracleFallsThroughSources(t *testing.T) {
	primary := &fakeSource{name: "binance", err: errors.New("451 restricted location")}
	secondary := &fakeSource{name: "bybit", price: 151.5}
	o := NewOracle(OracleOptions{}, primary, secondary)

	p, err := o.SOLPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 151.5, p)
	assert.Equal(t, "bybit", o.Source())
}

func TestOracleStaleThenFallback(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{name: "a", price: 130}
	o := NewOracle(OracleOptions{TTL: time.Minute, FallbackUSD: 150}, src)
	o.now = func() time.Time { return now }

	_, err := o.SOLPrice(context.Background())
	require.NoError(t, err)

	now = now.Add(time.Hour)
	src.err = errors.New("down")
	p, err := o.SOLPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 130.0, p, "last known price beats the static fallback")

	fresh := NewOracle(OracleOptions{FallbackUSD: 150}, &fakeSource{name: "a", err: errors.New("down")})
	p, err = fresh.SOLPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 150.0, p)

	none := NewOracle(OracleOptions{}, &fakeSource{name: "a", price: -1})
	_, err = none.SOLPrice(context.Background())
	require.Error(t, err)
	assert.True(t, models.IsTransient(err))
}

func TestBinanceSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		assert.Equal(t, "SOLUSDT", r.URL.Query().Get("symbol"))
		io.WriteString(w, `[{"symbol":"SOLUSDT","price":"142.37000000"}]`)
	}))
	defer srv.Close()

	p, err := NewBinanceSource(srv.URL, SOLUSDT, srv.Client()).Price(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 142.37, p, 1e-9)
}

func TestBybitLastPrice(t *testing.T) {
	result := map[string]interface{}{
		"category": "spot",
		"list": []interface{}{
			map[string]interface{}{"symbol": "BTCUSDT", "lastPrice": "97000"},
			map[string]interface{}{"symbol": "SOLUSDT", "lastPrice": "141.2"},
		},
	}
	p, err := lastPrice(result, SOLUSDT)
	require.NoError(t, err)
	assert.InDelta(t, 141.2, p, 1e-9)

	_, err = lastPrice(map[string]interface{}{"list": []interface{}{}}, SOLUSDT)
	require.Error(t, err)
}
