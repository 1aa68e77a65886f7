package application

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jmanzanog/quote-resolver/internal/domain"
)

// --- Mocks ---

type MockRateProvider struct {
	name        string
	getRateFunc func(ctx context.Context, from, to string) (domain.FxRate, error)
	calls       atomic.Int32
}

func (m *MockRateProvider) Name() string { return m.name }

func (m *MockRateProvider) GetRate(ctx context.Context, from, to string) (domain.FxRate, error) {
	m.calls.Add(1)
	return m.getRateFunc(ctx, from, to)
}

func (m *MockRateProvider) Calls() int { return int(m.calls.Load()) }

func fixedRate(name, value string) *MockRateProvider {
	return &MockRateProvider{
		name: name,
		getRateFunc: func(ctx context.Context, from, to string) (domain.FxRate, error) {
			d, err := domain.NewDecimalFromString(value)
			if err != nil {
				return domain.FxRate{}, err
			}
			return domain.FxRate{Rate: d, Provider: name}, nil
		},
	}
}

func failingRate(name string, err error) *MockRateProvider {
	return &MockRateProvider{
		name: name,
		getRateFunc: func(ctx context.Context, from, to string) (domain.FxRate, error) {
			return domain.FxRate{}, err
		},
	}
}

type MockQuoteProvider struct {
	name         string
	getQuoteFunc func(ctx context.Context, symbol string) (domain.Quote, error)

	mu      sync.Mutex
	symbols []string
}

func (m *MockQuoteProvider) Name() string { return m.name }

func (m *MockQuoteProvider) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	m.mu.Lock()
	m.symbols = append(m.symbols, symbol)
	m.mu.Unlock()
	return m.getQuoteFunc(ctx, symbol)
}

func (m *MockQuoteProvider) Symbols() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.symbols...)
}

type MockIdentifierMapper struct {
	mapISINFunc   func(ctx context.Context, isin string) ([]domain.FigiEntry, error)
	mapTickerFunc func(ctx context.Context, ticker string) ([]domain.FigiEntry, error)
}

func (m *MockIdentifierMapper) MapISIN(ctx context.Context, isin string) ([]domain.FigiEntry, error) {
	if m.mapISINFunc == nil {
		return nil, nil
	}
	return m.mapISINFunc(ctx, isin)
}

func (m *MockIdentifierMapper) MapTicker(ctx context.Context, ticker string) ([]domain.FigiEntry, error) {
	if m.mapTickerFunc == nil {
		return nil, nil
	}
	return m.mapTickerFunc(ctx, ticker)
}

type MockRateResolver struct {
	resolveFunc func(ctx context.Context, from, to string) (domain.FxRate, error)
}

func (m *MockRateResolver) ResolveRate(ctx context.Context, from, to string) (domain.FxRate, error) {
	return m.resolveFunc(ctx, from, to)
}

func mustDecimal(v string) domain.Decimal {
	d, err := domain.NewDecimalFromString(v)
	if err != nil {
		panic(err)
	}
	return d
}
