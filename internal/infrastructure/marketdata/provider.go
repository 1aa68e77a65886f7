package marketdata

import (
	"context"

	"github.com/jmanzanog/quote-resolver/internal/domain"
)

// QuoteProvider returns a quote for a single symbol.
type QuoteProvider interface {
	Name() string
	GetQuote(ctx context.Context, symbol string) (domain.Quote, error)
}

// RateProvider returns the exchange rate from one currency to another.
type RateProvider interface {
	Name() string
	GetRate(ctx context.Context, from, to string) (domain.FxRate, error)
}

// IdentifierMapper maps identifiers (ISIN or ticker) to security entries.
type IdentifierMapper interface {
	MapISIN(ctx context.Context, isin string) ([]domain.FigiEntry, error)
	MapTicker(ctx context.Context, ticker string) ([]domain.FigiEntry, error)
}
