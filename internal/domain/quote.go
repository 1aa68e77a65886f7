package domain

import (
	"fmt"
	"time"
)

// Quote provider names.
const (
	ProviderYahoo = "yahoo"
	ProviderStooq = "stooq"
	ProviderDemo  = "demo"
)

// CurrencyUSD is the currency every quote_usd result is normalized to.
const CurrencyUSD = "USD"

// Quote is a single-symbol market quote. Price is always finite and positive.
type Quote struct {
	Symbol   string     `json:"symbol"`
	Price    Decimal    `json:"price"`
	Currency string     `json:"currency"`
	Name     string     `json:"name"`
	Time     *time.Time `json:"time,omitempty"`
	Provider string     `json:"provider"`
}

// NewQuote validates price and builds a Quote. An empty currency means unknown.
func NewQuote(symbol string, price Decimal, currency, name string, observedAt *time.Time, provider string) (Quote, error) {
	if !price.IsPositive() {
		return Quote{}, fmt.Errorf("%w: non-positive price %s for %s", ErrUpstreamMalformedBody, price.String(), symbol)
	}
	if name == "" {
		name = symbol
	}
	return Quote{
		Symbol:   symbol,
		Price:    price,
		Currency: currency,
		Name:     name,
		Time:     observedAt,
		Provider: provider,
	}, nil
}

// CurrencyOrUSD returns the quote currency, treating unknown as USD.
func (q Quote) CurrencyOrUSD() string {
	if q.Currency == "" {
		return CurrencyUSD
	}
	return q.Currency
}

// USDPrice is the result of resolving a query to a USD-normalized price.
// Tried records every provider attempt in order. Degraded is set when the
// price could not be converted and is still in Currency.
type USDPrice struct {
	Symbol       string   `json:"symbol"`
	Name         string   `json:"name"`
	PriceUSD     Decimal  `json:"price_usd"`
	Currency     string   `json:"currency"`
	Provider     string   `json:"provider"`
	ResolvedFrom string   `json:"resolvedFrom"`
	Tried        []string `json:"tried"`
	Degraded     bool     `json:"degraded,omitempty"`
}
