package stooq

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/jmanzanog/quote-resolver/internal/domain"
	"github.com/jmanzanog/quote-resolver/internal/infrastructure/httpx"
	"github.com/jmanzanog/quote-resolver/internal/infrastructure/marketdata"
)

// DefaultHosts are the domain/scheme variants of the CSV quote service.
var DefaultHosts = []string{
	"https://stooq.com",
	"http://stooq.com",
	"https://stooq.pl",
	"http://stooq.pl",
}

// DefaultFxHost serves the FX pair CSV.
const DefaultFxHost = "https://stooq.com"

var exchangeSuffix = regexp.MustCompile(`(?i)\.[a-z]{2,4}$`)

// Client implements QuoteProvider and RateProvider on top of Stooq CSV quotes.
// Stooq prices are reported in USD by convention.
type Client struct {
	hosts      []string
	fxHost     string
	httpClient *httpx.Client
	now        func() time.Time
}

// NewClient creates a Stooq client with the default hosts.
func NewClient(httpClient *httpx.Client) *Client {
	return NewClientWithHosts(httpClient, DefaultHosts, DefaultFxHost)
}

// NewClientWithHosts creates a client with custom hosts (useful for testing).
func NewClientWithHosts(httpClient *httpx.Client, hosts []string, fxHost string) *Client {
	return &Client{
		hosts:      append([]string(nil), hosts...),
		fxHost:     strings.TrimRight(fxHost, "/"),
		httpClient: httpClient,
		now:        time.Now,
	}
}

func (c *Client) Name() string {
	return domain.ProviderStooq
}

// StooqSymbol lowercases symbol and appends ".us" unless it already ends in a
// 2-4 letter exchange suffix.
func StooqSymbol(symbol string) string {
	s := strings.ToLower(strings.TrimSpace(symbol))
	if exchangeSuffix.MatchString(s) {
		return s
	}
	return s + ".us"
}

// CandidateURLs lists every host x path combination for symbol, in try order.
func (c *Client) CandidateURLs(symbol string) []string {
	s := url.QueryEscape(StooqSymbol(symbol))
	paths := []string{
		"/q/l/?s=" + s + "&i=d",
		"/q/l/?s=" + s + "&f=sd2t2ohlcv&h&e=csv",
	}

	out := make([]string, 0, len(c.hosts)*len(paths))
	for _, h := range c.hosts {
		for _, p := range paths {
			out = append(out, strings.TrimRight(h, "/")+p)
		}
	}
	return out
}

// GetQuote tries every candidate URL until one yields a usable close price.
func (c *Client) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	lastErr := fmt.Errorf("%w: stooq fail", domain.ErrUpstreamUnreachable)

	for _, reqURL := range c.CandidateURLs(symbol) {
		resp, err := c.httpClient.Get(ctx, reqURL)
		if err != nil {
			lastErr = err
			slog.DebugContext(ctx, "stooq candidate failed", "url", reqURL, "error", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if !resp.OK {
			lastErr = httpx.StatusError(resp)
			continue
		}

		price, err := ParseClose(resp.Text())
		if err != nil {
			lastErr = err
			continue
		}

		quote, err := domain.NewQuote(symbol, price, domain.CurrencyUSD, symbol, nil, domain.ProviderStooq)
		if err != nil {
			lastErr = err
			continue
		}
		return quote, nil
	}

	return domain.Quote{}, fmt.Errorf("stooq quote %s: %w", symbol, lastErr)
}

// GetRate reads the close of the lowercase "fromto" pair.
func (c *Client) GetRate(ctx context.Context, from, to string) (domain.FxRate, error) {
	sym := strings.ToLower(from + to)
	reqURL := fmt.Sprintf("%s/q/l/?s=%s&f=sd2t2ohlcv&h&e=csv", c.fxHost, url.QueryEscape(sym))

	resp, err := c.httpClient.Get(ctx, reqURL)
	if err != nil {
		return domain.FxRate{}, fmt.Errorf("stooq fx %s: %w", sym, err)
	}
	if !resp.OK {
		return domain.FxRate{}, fmt.Errorf("stooq fx %s: %w", sym, httpx.StatusError(resp))
	}

	rate, err := ParseHeaderClose(resp.Text())
	if err != nil {
		return domain.FxRate{}, fmt.Errorf("stooq fx %s: %w", sym, err)
	}

	fx, err := domain.NewFxRate(rate, domain.FxProviderStooq, c.now())
	if err != nil {
		return domain.FxRate{}, fmt.Errorf("stooq fx %s: %w", sym, err)
	}
	return fx, nil
}

// Compile-time checks that Client implements both provider interfaces.
var (
	_ marketdata.QuoteProvider = (*Client)(nil)
	_ marketdata.RateProvider  = (*Client)(nil)
)
