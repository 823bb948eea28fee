package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evyataryagoni/ipglobe/internal/cache"
	"github.com/evyataryagoni/ipglobe/internal/logger"
	"github.com/evyataryagoni/ipglobe/internal/metrics"
	"github.com/evyataryagoni/ipglobe/internal/models"
)

// ModeAuto tries every provider in order until one succeeds
const ModeAuto = "auto"

// DefaultOrder is the fallback order used in auto mode
var DefaultOrder = []string{NameIPWho, NameIPQuery, NameIPAPI, NameIPAPICo, NameIPInfo}

// ErrUnknownProvider is returned for a mode that names no configured provider
var ErrUnknownProvider = errors.New("unknown provider")

// AggregateError is returned in auto mode when every provider failed
type AggregateError struct {
	Attempts []error
}

func (e *AggregateError) Error() string {
	return "All API services failed. Please try again later."
}

// Unwrap exposes the per-provider failures to errors.Is / errors.As
func (e *AggregateError) Unwrap() []error {
	return e.Attempts
}

// Chain resolves an IP through one provider or through all of them in fallback order,
// and writes every successful lookup to the cache
type Chain struct {
	providers map[string]Provider
	order     []string
	cache     *cache.LocationCache
	log       *logger.Logger
	metrics   *metrics.Metrics
}

// NewChain builds a chain from providers, keeping their order for auto mode
// cache and m may be nil
func NewChain(providers []Provider, c *cache.LocationCache, log *logger.Logger, m *metrics.Metrics) *Chain {
	chain := &Chain{
		providers: make(map[string]Provider, len(providers)),
		order:     make([]string, 0, len(providers)),
		cache:     c,
		log:       log.WithComponent("provider_chain"),
		metrics:   m,
	}
	for _, p := range providers {
		if _, dup := chain.providers[p.Name()]; dup {
			continue
		}
		chain.providers[p.Name()] = p
		chain.order = append(chain.order, p.Name())
	}
	return chain
}

// NewDefaultChain builds the five public providers in DefaultOrder
func NewDefaultChain(cfg Config, c *cache.LocationCache, log *logger.Logger, m *metrics.Metrics) *Chain {
	return NewChain([]Provider{
		NewIPWho(cfg),
		NewIPQuery(cfg),
		NewIPAPI(cfg),
		NewIPAPICo(cfg),
		NewIPInfo(cfg),
	}, c, log, m)
}

// Names returns provider names in fallback order
func (c *Chain) Names() []string {
	names := make([]string, len(c.order))
	copy(names, c.order)
	return names
}

// Supports reports whether mode is "auto", empty or a configured provider name
func (c *Chain) Supports(mode string) bool {
	mode = normalizeMode(mode)
	if mode == ModeAuto {
		return true
	}
	_, ok := c.providers[mode]
	return ok
}

// Resolve looks ip up according to mode
//
// In auto mode providers are tried in order, each failure is logged and the next one is tried;
// if all fail an *AggregateError is returned. In single-provider mode only that provider is
// called and its failure is returned as "<name> API failed: <message>".
func (c *Chain) Resolve(ctx context.Context, ip, mode string) (models.LocationRecord, error) {
	mode = normalizeMode(mode)

	if mode != ModeAuto {
		p, ok := c.providers[mode]
		if !ok {
			return models.LocationRecord{}, fmt.Errorf("%w: %s", ErrUnknownProvider, mode)
		}

		record, err := c.call(ctx, p, ip)
		if err != nil {
			return models.LocationRecord{}, fmt.Errorf("%s API failed: %w", mode, err)
		}
		c.store(ctx, ip, record)
		return record, nil
	}

	attempts := make([]error, 0, len(c.order))
	for _, name := range c.order {
		if err := ctx.Err(); err != nil {
			attempts = append(attempts, err)
			break
		}

		record, err := c.call(ctx, c.providers[name], ip)
		if err != nil {
			c.log.Warn().
				Str("ip", ip).
				Str("provider", name).
				Err(err).
				Msg("Provider failed, trying next")
			attempts = append(attempts, err)
			continue
		}

		c.store(ctx, ip, record)
		return record, nil
	}

	return models.LocationRecord{}, &AggregateError{Attempts: attempts}
}

func (c *Chain) call(ctx context.Context, p Provider, ip string) (models.LocationRecord, error) {
	start := time.Now()
	record, err := p.Resolve(ctx, ip)

	if c.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		c.metrics.ProviderCalls.WithLabelValues(p.Name(), status).Inc()
		c.metrics.ProviderDuration.WithLabelValues(p.Name()).Observe(time.Since(start).Seconds())
	}

	return record, err
}

func (c *Chain) store(ctx context.Context, ip string, record models.LocationRecord) {
	if c.cache != nil {
		c.cache.Put(ctx, ip, record)
	}
}

func normalizeMode(mode string) string {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		return ModeAuto
	}
	return mode
}
