package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmanzanog/quote-resolver/internal/domain"
	"github.com/jmanzanog/quote-resolver/internal/infrastructure/marketdata"
	"golang.org/x/sync/singleflight"
)

// DefaultFxCacheTTL is how long an accepted rate is served from cache.
const DefaultFxCacheTTL = 30 * time.Second

// DefaultFxLookupTimeout bounds one shared walk of the provider chain.
const DefaultFxLookupTimeout = 30 * time.Second

// FxOption customizes an FxService.
type FxOption func(*FxService)

// WithCacheTTL overrides DefaultFxCacheTTL.
func WithCacheTTL(ttl time.Duration) FxOption {
	return func(s *FxService) { s.ttl = ttl }
}

// WithRateBounds overrides the plausibility window.
func WithRateBounds(bounds domain.RateBounds) FxOption {
	return func(s *FxService) { s.bounds = bounds }
}

// WithLookupTimeout overrides DefaultFxLookupTimeout.
func WithLookupTimeout(timeout time.Duration) FxOption {
	return func(s *FxService) { s.lookupTimeout = timeout }
}

// WithClock replaces time.Now (for testing).
func WithClock(now func() time.Time) FxOption {
	return func(s *FxService) { s.now = now }
}

// FxService resolves exchange rates through an ordered provider chain,
// rejecting implausible rates and caching accepted ones per directional pair.
type FxService struct {
	providers []marketdata.RateProvider
	cache     domain.FxRateCache
	ttl       time.Duration
	bounds    domain.RateBounds
	now       func() time.Time
	group     singleflight.Group

	lookupTimeout time.Duration
}

func NewFxService(cache domain.FxRateCache, providers []marketdata.RateProvider, opts ...FxOption) (*FxService, error) {
	if cache == nil {
		return nil, fmt.Errorf("fx cache is required")
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("at least one fx provider is required")
	}

	s := &FxService{
		providers: append([]marketdata.RateProvider(nil), providers...),
		cache:     cache,
		ttl:       DefaultFxCacheTTL,
		bounds:    domain.DefaultRateBounds(),
		now:       time.Now,

		lookupTimeout: DefaultFxLookupTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.lookupTimeout <= 0 {
		return nil, fmt.Errorf("fx lookup timeout must be positive, got %s", s.lookupTimeout)
	}
	if s.bounds.Min.Cmp(s.bounds.Max) >= 0 {
		return nil, fmt.Errorf("fx rate bounds are empty: min %s >= max %s", s.bounds.Min, s.bounds.Max)
	}
	return s, nil
}

func normalizePair(from, to string) (string, string, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == "" || to == "" {
		return "", "", fmt.Errorf("%w: from/to required", domain.ErrInvalidInput)
	}
	return from, to, nil
}

// ResolveRate returns the rate from -> to. Identity pairs return 1 without
// touching cache or providers, and a cached rate younger than the TTL is
// returned unchanged.
func (s *FxService) ResolveRate(ctx context.Context, from, to string) (domain.FxRate, error) {
	from, to, err := normalizePair(from, to)
	if err != nil {
		return domain.FxRate{}, err
	}
	if from == to {
		return domain.FxRate{Rate: domain.One, Provider: domain.FxProviderIdentity, CapturedAtMs: s.now().UnixMilli()}, nil
	}

	key := domain.PairKey(from, to)
	if rate, ok := s.fresh(ctx, key); ok {
		return rate, nil
	}

	return s.shared(ctx, key, func(lookupCtx context.Context) (domain.FxRate, error) {
		if rate, ok := s.fresh(lookupCtx, key); ok {
			return rate, nil
		}
		return s.compute(lookupCtx, from, to, key)
	})
}

// RefreshRate recomputes from -> to ignoring any cached entry.
func (s *FxService) RefreshRate(ctx context.Context, from, to string) (domain.FxRate, error) {
	from, to, err := normalizePair(from, to)
	if err != nil {
		return domain.FxRate{}, err
	}
	if from == to {
		return s.ResolveRate(ctx, from, to)
	}

	key := domain.PairKey(from, to)
	return s.shared(ctx, key, func(lookupCtx context.Context) (domain.FxRate, error) {
		return s.compute(lookupCtx, from, to, key)
	})
}

// shared runs fn once per key for all concurrent callers. fn gets a context
// detached from any single caller and bounded by the lookup timeout, so one
// caller giving up does not fail the others; each caller still returns as
// soon as its own ctx is done.
func (s *FxService) shared(ctx context.Context, key string, fn func(context.Context) (domain.FxRate, error)) (domain.FxRate, error) {
	ch := s.group.DoChan(key, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.lookupTimeout)
		defer cancel()
		return fn(lookupCtx)
	})

	select {
	case <-ctx.Done():
		return domain.FxRate{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.FxRate{}, res.Err
		}
		return res.Val.(domain.FxRate), nil
	}
}

// ClearCache drops every cached rate.
func (s *FxService) ClearCache(ctx context.Context) error {
	return s.cache.Clear(ctx)
}

func (s *FxService) fresh(ctx context.Context, key string) (domain.FxRate, bool) {
	rate, ok := s.cache.Get(ctx, key)
	if !ok {
		return domain.FxRate{}, false
	}
	if s.now().Sub(rate.CapturedAt()) >= s.ttl {
		return domain.FxRate{}, false
	}
	return rate, true
}

func (s *FxService) compute(ctx context.Context, from, to, key string) (domain.FxRate, error) {
	var errs []error

	for _, p := range s.providers {
		rate, err := p.GetRate(ctx, from, to)
		if err != nil {
			slog.DebugContext(ctx, "fx provider failed", "provider", p.Name(), "pair", key, "error", err)
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if !s.bounds.Accepts(rate.Rate) {
			slog.WarnContext(ctx, "fx rate rejected as implausible", "provider", p.Name(), "pair", key,
				"rate", rate.Rate.String(), "min", s.bounds.Min.String(), "max", s.bounds.Max.String())
			errs = append(errs, fmt.Errorf("%w: %s rate %s outside (%s, %s)",
				domain.ErrPlausibilityRejected, p.Name(), rate.Rate, s.bounds.Min, s.bounds.Max))
			continue
		}

		rate.CapturedAtMs = s.now().UnixMilli()
		if err := s.cache.Save(ctx, key, rate); err != nil {
			slog.WarnContext(ctx, "failed to cache fx rate", "pair", key, "error", err)
		}
		return rate, nil
	}

	return domain.FxRate{}, fmt.Errorf("%w for %s: %w", domain.ErrFxUnavailable, key, errors.Join(errs...))
}
