package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmanzanog/quote-resolver/internal/domain"
	"github.com/jmanzanog/quote-resolver/internal/infrastructure/marketdata"
)

// CandidateResolver expands a query into symbols to quote.
type CandidateResolver interface {
	ResolveCandidates(ctx context.Context, query string) []string
}

// RateResolver converts between currencies.
type RateResolver interface {
	ResolveRate(ctx context.Context, from, to string) (domain.FxRate, error)
}

// QuoteService resolves prices through an ordered quote provider chain. The
// first provider is the primary, the second the secondary, and the last one
// is expected never to fail.
type QuoteService struct {
	resolver CandidateResolver
	fx       RateResolver
	chain    []marketdata.QuoteProvider
}

func NewQuoteService(resolver CandidateResolver, fx RateResolver, chain ...marketdata.QuoteProvider) (*QuoteService, error) {
	if resolver == nil || fx == nil {
		return nil, fmt.Errorf("candidate resolver and fx resolver are required")
	}
	if len(chain) < 2 {
		return nil, fmt.Errorf("quote chain needs a primary and a secondary provider, got %d", len(chain))
	}
	return &QuoteService{
		resolver: resolver,
		fx:       fx,
		chain:    append([]marketdata.QuoteProvider(nil), chain...),
	}, nil
}

func (s *QuoteService) primary() marketdata.QuoteProvider   { return s.chain[0] }
func (s *QuoteService) secondary() marketdata.QuoteProvider { return s.chain[1] }

// QuoteAny returns the first quote any provider in the chain produces.
func (s *QuoteService) QuoteAny(ctx context.Context, symbol string) (domain.Quote, error) {
	var lastErr error
	for _, p := range s.chain {
		q, err := p.GetQuote(ctx, symbol)
		if err == nil {
			return q, nil
		}
		slog.DebugContext(ctx, "quote provider failed", "provider", p.Name(), "symbol", symbol, "error", err)
		lastErr = err
	}
	return domain.Quote{}, fmt.Errorf("failed to quote %s: %w", symbol, lastErr)
}

// LegacyQuote quotes symbol with the primary provider, then the secondary.
func (s *QuoteService) LegacyQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return domain.Quote{}, fmt.Errorf("%w: symbol required", domain.ErrInvalidInput)
	}

	q, err := s.primary().GetQuote(ctx, symbol)
	if err == nil {
		return q, nil
	}
	slog.DebugContext(ctx, "primary quote failed", "symbol", symbol, "error", err)

	q, err2 := s.secondary().GetQuote(ctx, symbol)
	if err2 != nil {
		return domain.Quote{}, fmt.Errorf("failed to quote %s: %w", symbol, err2)
	}
	return q, nil
}

// ResolveUSDPrice resolves query (ticker or ISIN) to a USD price, descending
// from the primary provider over every candidate, to the secondary provider
// on the first candidate, to the full chain. Every attempt is recorded in
// Tried.
func (s *QuoteService) ResolveUSDPrice(ctx context.Context, query string) (domain.USDPrice, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.USDPrice{}, fmt.Errorf("%w: q required (ticker or ISIN)", domain.ErrInvalidInput)
	}

	candidates := s.resolver.ResolveCandidates(ctx, query)
	tried := make([]string, 0, len(candidates)+2)

	for _, cand := range candidates {
		tried = append(tried, fmt.Sprintf("%s:%s", s.primary().Name(), cand))
		q, err := s.primary().GetQuote(ctx, cand)
		if err == nil {
			var res domain.USDPrice
			res, err = s.toUSD(ctx, cand, query, q)
			if err == nil {
				res.Tried = tried
				return res, nil
			}
		}
		tried = append(tried, fmt.Sprintf("%s_err:%s:%s", s.primary().Name(), cand, err))
		if ctx.Err() != nil {
			return domain.USDPrice{}, ctx.Err()
		}
	}

	fallback := query
	if len(candidates) > 0 {
		fallback = candidates[0]
	}

	tried = append(tried, fmt.Sprintf("%s:%s", s.secondary().Name(), fallback))
	q, err := s.secondary().GetQuote(ctx, fallback)
	if err == nil {
		var res domain.USDPrice
		res, err = s.toUSD(ctx, fallback, query, q)
		if err == nil {
			res.Tried = tried
			return res, nil
		}
	}
	tried = append(tried, fmt.Sprintf("%s_err:%s:%s", s.secondary().Name(), fallback, err))
	if ctx.Err() != nil {
		return domain.USDPrice{}, ctx.Err()
	}

	q, err = s.QuoteAny(ctx, fallback)
	if err != nil {
		return domain.USDPrice{}, fmt.Errorf("quote_usd error: %w", err)
	}

	res, err := s.toUSD(ctx, fallback, query, q)
	if err != nil {
		slog.WarnContext(ctx, "fx conversion failed, returning unconverted price",
			"symbol", fallback, "currency", q.CurrencyOrUSD(), "error", err)
		res = s.result(fallback, query, q, q.Price)
		res.Currency = q.CurrencyOrUSD()
		res.Degraded = true
	}
	res.Tried = tried
	return res, nil
}

// toUSD converts q into a USD result, rounding converted prices half-up to
// two decimals.
func (s *QuoteService) toUSD(ctx context.Context, symbol, query string, q domain.Quote) (domain.USDPrice, error) {
	cur := strings.ToUpper(q.CurrencyOrUSD())
	if cur == domain.CurrencyUSD {
		return s.result(symbol, query, q, q.Price), nil
	}

	rate, err := s.fx.ResolveRate(ctx, cur, domain.CurrencyUSD)
	if err != nil {
		return domain.USDPrice{}, err
	}
	px, err := q.Price.Mul(rate.Rate)
	if err != nil {
		return domain.USDPrice{}, fmt.Errorf("failed to convert price: %w", err)
	}
	if px, err = px.Round(2); err != nil {
		return domain.USDPrice{}, fmt.Errorf("failed to round price: %w", err)
	}

	res := s.result(symbol, query, q, px)
	res.Provider = q.Provider + "+fx"
	return res, nil
}

func (s *QuoteService) result(symbol, query string, q domain.Quote, px domain.Decimal) domain.USDPrice {
	return domain.USDPrice{
		Symbol:       symbol,
		Name:         q.Name,
		PriceUSD:     px,
		Currency:     domain.CurrencyUSD,
		Provider:     q.Provider,
		ResolvedFrom: query,
	}
}
