// Package price provides the SOL/USD rate used to value whale swaps.
package price

import (
	"context"
	"errors"
	"sync"
	"time"

	"trustclaw/internal/metrics"
	"trustclaw/logger"
	"trustclaw/models"
)

const SOLUSDT = "SOLUSDT"

// Source is one upstream quote provider.
type Source interface {
	Name() string
	Price(ctx context.Context) (float64, error)
}

type OracleOptions struct {
	TTL         time.Duration
	Timeout     time.Duration
	FallbackUSD float64
}

// Oracle returns a cached SOL price, asking its sources in order when the
// cache is older than the TTL. When every source fails it serves the last
// known price, then the static fallback.
type Oracle struct {
	sources  []Source
	ttl      time.Duration
	timeout  time.Duration
	fallback float64
	now      func() time.Time
	log      *logger.Entry

	mu       sync.Mutex
	price    float64
	priceAt  time.Time
	priceSrc string
}

func NewOracle(opts OracleOptions, sources ...Source) *Oracle {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Oracle{
		sources:  sources,
		ttl:      opts.TTL,
		timeout:  opts.Timeout,
		fallback: opts.FallbackUSD,
		now:      time.Now,
		log:      logger.GetLogger().WithComponent("reader.price"),
	}
}

func (o *Oracle) SOLPrice(ctx context.Context) (float64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.now()
	if o.price > 0 && now.Sub(o.priceAt) < o.ttl {
		return o.price, nil
	}

	var errs []error
	for _, src := range o.sources {
		p, err := o.fetch(ctx, src)
		if err != nil {
			metrics.SourceError(src.Name(), "price")
			errs = append(errs, err)
			continue
		}
		o.price, o.priceAt, o.priceSrc = p, now, src.Name()
		metrics.EmitMetric(nil, "price", "sol_price_usd", p, "gauge", logger.Fields{"source": src.Name()})
		return p, nil
	}

	fields := logger.Fields{"sources": len(o.sources)}
	if len(errs) > 0 {
		fields["error"] = errors.Join(errs...).Error()
	}
	switch {
	case o.price > 0:
		o.log.WithFields(fields).WithField("stale_price", o.price).Warn("price sources failed; using last known SOL price")
		return o.price, nil
	case o.fallback > 0:
		o.log.WithFields(fields).WithField("fallback_price", o.fallback).Warn("price sources failed; using fallback SOL price")
		return o.fallback, nil
	default:
		return 0, models.NewTransient("sol price", errors.Join(errs...))
	}
}

func (o *Oracle) fetch(ctx context.Context, src Source) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	p, err := src.Price(ctx)
	if err != nil {
		return 0, err
	}
	if p <= 0 {
		return 0, errors.New(src.Name() + " returned a non-positive price")
	}
	return p, nil
}

// Source reports which provider supplied the cached price.
func (o *Oracle) Source() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.priceSrc
}
