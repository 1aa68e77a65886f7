package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jmanzanog/quote-resolver/internal/domain"
)

// FxPair is a directional currency pair.
type FxPair struct {
	From string
	To   string
}

type RateRefresher interface {
	RefreshRate(ctx context.Context, from, to string) (domain.FxRate, error)
}

// FxWarmer refreshes a fixed set of pairs on an interval so requests for
// them are served from cache.
type FxWarmer struct {
	service  RateRefresher
	pairs    []FxPair
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewFxWarmer(service RateRefresher, pairs []FxPair, interval time.Duration) *FxWarmer {
	return &FxWarmer{
		service:  service,
		pairs:    append([]FxPair(nil), pairs...),
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Enabled reports whether Start would do any work.
func (w *FxWarmer) Enabled() bool {
	return w.interval > 0 && len(w.pairs) > 0
}

// Start warms every pair once, then again on every tick until Stop is
// called or ctx is done. It returns immediately when the warmer is disabled.
func (w *FxWarmer) Start(ctx context.Context) {
	if !w.Enabled() {
		slog.Debug("FX warmer disabled", "interval", w.interval, "pairs", len(w.pairs))
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	slog.Info("FX warmer started", "interval", w.interval, "pairs", len(w.pairs))
	w.warm(ctx)

	for {
		select {
		case <-ticker.C:
			w.warm(ctx)
		case <-w.stopChan:
			slog.Info("FX warmer stopped")
			return
		case <-ctx.Done():
			slog.Info("FX warmer stopped due to context cancellation")
			return
		}
	}
}

func (w *FxWarmer) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
}

func (w *FxWarmer) warm(ctx context.Context) {
	failed := 0
	for _, p := range w.pairs {
		if ctx.Err() != nil {
			return
		}
		if _, err := w.service.RefreshRate(ctx, p.From, p.To); err != nil {
			failed++
			slog.Warn("Error warming fx rate", "pair", domain.PairKey(p.From, p.To), "error", err)
		}
	}
	if failed == 0 {
		slog.Debug("FX rates warmed", "pairs", len(w.pairs))
	}
}
