package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/jmanzanog/quote-resolver/internal/domain"
	"github.com/jmanzanog/quote-resolver/internal/infrastructure/httpx"
	"github.com/jmanzanog/quote-resolver/internal/infrastructure/marketdata"
)

const quotePath = "/v7/finance/quote"

// DefaultHosts are the two redundant Yahoo Finance query hosts.
var DefaultHosts = []string{
	"https://query1.finance.yahoo.com",
	"https://query2.finance.yahoo.com",
}

// Client implements QuoteProvider and RateProvider on top of the Yahoo Finance
// batch quote endpoint. Hosts are tried in order and the first usable answer wins.
type Client struct {
	hosts      []string
	httpClient *httpx.Client
	now        func() time.Time
}

// NewClient creates a Yahoo client using the default hosts.
func NewClient(httpClient *httpx.Client) *Client {
	return NewClientWithHosts(httpClient, DefaultHosts)
}

// NewClientWithHosts creates a client with custom hosts (useful for testing).
func NewClientWithHosts(httpClient *httpx.Client, hosts []string) *Client {
	return &Client{
		hosts:      append([]string(nil), hosts...),
		httpClient: httpClient,
		now:        time.Now,
	}
}

// SetHosts replaces the host list.
func (c *Client) SetHosts(hosts ...string) {
	c.hosts = append([]string(nil), hosts...)
}

func (c *Client) Name() string {
	return domain.ProviderYahoo
}

// quoteResponse represents the response from the v7 quote endpoint.
type quoteResponse struct {
	QuoteResponse struct {
		Result []quoteResult `json:"result"`
	} `json:"quoteResponse"`
}

type quoteResult struct {
	Symbol             string       `json:"symbol"`
	Currency           string       `json:"currency"`
	ShortName          string       `json:"shortName"`
	LongName           string       `json:"longName"`
	RegularMarketPrice *json.Number `json:"regularMarketPrice"`
	RegularMarketTime  *int64       `json:"regularMarketTime"`
}

// lookup returns the first result that carries a numeric price.
func (c *Client) lookup(ctx context.Context, symbol string) (quoteResult, domain.Decimal, error) {
	lastErr := fmt.Errorf("%w: no hosts configured", domain.ErrUpstreamUnreachable)

	for _, host := range c.hosts {
		reqURL := fmt.Sprintf("%s%s?symbols=%s", strings.TrimRight(host, "/"), quotePath, url.QueryEscape(symbol))

		var body quoteResponse
		resp, decoded, err := c.httpClient.GetJSON(ctx, reqURL, &body)
		if err != nil {
			lastErr = err
			slog.DebugContext(ctx, "yahoo host failed", "host", host, "symbol", symbol, "error", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if !resp.OK {
			lastErr = httpx.StatusError(resp)
			continue
		}
		if !decoded {
			lastErr = fmt.Errorf("%w: response is not JSON", domain.ErrUpstreamMalformedBody)
			continue
		}
		if len(body.QuoteResponse.Result) == 0 {
			lastErr = fmt.Errorf("%w: no result for %s", domain.ErrUpstreamMalformedBody, symbol)
			continue
		}

		q := body.QuoteResponse.Result[0]
		if q.RegularMarketPrice == nil {
			lastErr = fmt.Errorf("%w: no price for %s", domain.ErrUpstreamMalformedBody, symbol)
			continue
		}
		price, err := domain.NewDecimalFromString(q.RegularMarketPrice.String())
		if err != nil || !price.IsFinite() {
			lastErr = fmt.Errorf("%w: price %q is not numeric", domain.ErrUpstreamMalformedBody, q.RegularMarketPrice.String())
			continue
		}
		if !price.IsPositive() {
			lastErr = fmt.Errorf("%w: non-positive price %s for %s", domain.ErrUpstreamMalformedBody, price, symbol)
			continue
		}
		return q, price, nil
	}

	return quoteResult{}, domain.Decimal{}, lastErr
}

// GetQuote retrieves the current quote for a symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	q, price, err := c.lookup(ctx, symbol)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("yahoo quote %s: %w", symbol, err)
	}

	name := q.ShortName
	if name == "" {
		name = q.LongName
	}

	var observedAt *time.Time
	if q.RegularMarketTime != nil && *q.RegularMarketTime > 0 {
		ts := time.Unix(*q.RegularMarketTime, 0).UTC()
		observedAt = &ts
	}

	quote, err := domain.NewQuote(symbol, price, strings.ToUpper(q.Currency), name, observedAt, domain.ProviderYahoo)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("yahoo quote %s: %w", symbol, err)
	}
	return quote, nil
}

// GetRate retrieves the spot rate through the FROMTO=X pseudo-symbol.
func (c *Client) GetRate(ctx context.Context, from, to string) (domain.FxRate, error) {
	pair := strings.ToUpper(from+to) + "=X"

	_, rate, err := c.lookup(ctx, pair)
	if err != nil {
		return domain.FxRate{}, fmt.Errorf("yahoo fx %s: %w", pair, err)
	}

	fx, err := domain.NewFxRate(rate, domain.FxProviderYahoo, c.now())
	if err != nil {
		return domain.FxRate{}, fmt.Errorf("yahoo fx %s: %w", pair, err)
	}
	return fx, nil
}

// Compile-time checks that Client implements both provider interfaces.
var (
	_ marketdata.QuoteProvider = (*Client)(nil)
	_ marketdata.RateProvider  = (*Client)(nil)
)
