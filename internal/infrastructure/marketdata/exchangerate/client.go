// Package exchangerate provides the daily reference rate from exchangerate.host.
package exchangerate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jmanzanog/quote-resolver/internal/domain"
	"github.com/jmanzanog/quote-resolver/internal/infrastructure/httpx"
	"github.com/jmanzanog/quote-resolver/internal/infrastructure/marketdata"
)

const (
	defaultBaseURL = "https://api.exchangerate.host"
	convertPath    = "/convert"
)

// Client for the exchangerate.host convert endpoint. The returned rate is
// trusted as-is; plausibility is the caller's concern.
type Client struct {
	baseURL    string
	accessKey  string
	httpClient *httpx.Client
	now        func() time.Time
}

// NewClient creates a client. accessKey is optional and sent as access_key.
func NewClient(httpClient *httpx.Client, accessKey string) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		accessKey:  accessKey,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// SetBaseURL sets the base URL for the API (useful for testing).
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimRight(baseURL, "/")
}

func (c *Client) Name() string {
	return domain.FxProviderECB
}

type convertResponse struct {
	Result *json.Number `json:"result"`
}

// GetRate converts one unit of from into to.
func (c *Client) GetRate(ctx context.Context, from, to string) (domain.FxRate, error) {
	params := url.Values{}
	params.Add("from", from)
	params.Add("to", to)
	if c.accessKey != "" {
		params.Add("access_key", c.accessKey)
	}
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, convertPath, params.Encode())

	var body convertResponse
	resp, decoded, err := c.httpClient.GetJSON(ctx, reqURL, &body)
	if err != nil {
		return domain.FxRate{}, fmt.Errorf("ecb fx %s->%s: %w", from, to, err)
	}
	if !resp.OK {
		return domain.FxRate{}, fmt.Errorf("ecb fx %s->%s: %w", from, to, httpx.StatusError(resp))
	}
	if !decoded || body.Result == nil {
		return domain.FxRate{}, fmt.Errorf("ecb fx %s->%s: %w: no numeric result", from, to, domain.ErrUpstreamMalformedBody)
	}

	rate, err := domain.NewDecimalFromString(body.Result.String())
	if err != nil {
		return domain.FxRate{}, fmt.Errorf("ecb fx %s->%s: %w: %v", from, to, domain.ErrUpstreamMalformedBody, err)
	}

	fx, err := domain.NewFxRate(rate, domain.FxProviderECB, c.now())
	if err != nil {
		return domain.FxRate{}, fmt.Errorf("ecb fx %s->%s: %w", from, to, err)
	}
	return fx, nil
}

// Compile-time check that Client implements RateProvider.
var _ marketdata.RateProvider = (*Client)(nil)
