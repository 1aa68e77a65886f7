// Package demo produces synthetic quotes so quote resolution always has an
// answer. Prices are a random walk and must not be used as real market data.
package demo

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jmanzanog/quote-resolver/internal/domain"
	"github.com/jmanzanog/quote-resolver/internal/infrastructure/marketdata"
)

const (
	seedMin  = 100.0
	seedSpan = 50.0
	maxStep  = 0.002
)

// Provider keeps the last synthetic price per symbol for its own lifetime.
type Provider struct {
	mu     sync.Mutex
	rng    *rand.Rand
	prices map[string]float64
	now    func() time.Time
}

// NewProvider creates a provider seeded from the runtime source.
func NewProvider() *Provider {
	return NewProviderWithSource(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// NewProviderWithSource creates a provider with a fixed random source (for testing).
func NewProviderWithSource(src rand.Source) *Provider {
	return &Provider{
		rng:    rand.New(src),
		prices: make(map[string]float64),
		now:    time.Now,
	}
}

func (p *Provider) Name() string {
	return domain.ProviderDemo
}

// GetQuote never fails. The first call for a symbol returns a price in
// [100, 150); later calls move at most 0.2% away from the previous price.
func (p *Provider) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	price := p.next(symbol)

	d, err := domain.NewDecimalFromFloat(price)
	if err != nil {
		return domain.Quote{}, err
	}
	d, err = d.Round(2)
	if err != nil {
		return domain.Quote{}, err
	}

	now := p.now().UTC()
	return domain.NewQuote(symbol, d, domain.CurrencyUSD, symbol+" (demo)", &now, domain.ProviderDemo)
}

func (p *Provider) next(symbol string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	prev, ok := p.prices[symbol]
	if !ok {
		seed := math.Floor((seedMin+p.rng.Float64()*seedSpan)*100) / 100
		p.prices[symbol] = seed
		return seed
	}

	// Truncating the step toward zero keeps the rounded move within maxStep.
	step := prev * (p.rng.Float64() - 0.5) * 2 * maxStep
	step = math.Trunc(step*100) / 100
	next := math.Round((prev+step)*100) / 100
	p.prices[symbol] = next
	return next
}

// Reset forgets every symbol.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices = make(map[string]float64)
}

// Compile-time check that Provider implements QuoteProvider.
var _ marketdata.QuoteProvider = (*Provider)(nil)
