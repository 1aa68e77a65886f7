// Package openfigi maps ISINs and tickers to securities through Bloomberg's
// OpenFIGI mapping API. An API key is optional and only raises rate limits.
package openfigi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jmanzanog/quote-resolver/internal/domain"
	"github.com/jmanzanog/quote-resolver/internal/infrastructure/httpx"
	"github.com/jmanzanog/quote-resolver/internal/infrastructure/marketdata"
)

const (
	defaultBaseURL = "https://api.openfigi.com/v3"
	mappingPath    = "/mapping"
	apiKeyHeader   = "X-OPENFIGI-APIKEY"

	IDTypeISIN   = "ID_ISIN"
	IDTypeTicker = "TICKER"
)

// MappingRequest represents a single job in a mapping request.
type MappingRequest struct {
	IDType  string `json:"idType"`
	IDValue string `json:"idValue"`
}

// MappingResult represents a single security returned for a job.
type MappingResult struct {
	FIGI         string `json:"figi"`
	Ticker       string `json:"ticker"`
	Name         string `json:"name"`
	SecurityName string `json:"securityName"`
	ISIN         string `json:"isin"`
	ExchCode     string `json:"exchCode"`
	MICCode      string `json:"micCode"`
	SecurityType string `json:"securityType"`
	MarketSector string `json:"marketSector"`
	Country      string `json:"country"`
	Currency     string `json:"currency"`
}

// MappingResponse is the response item for one job.
type MappingResponse struct {
	Data    []MappingResult `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Warning string          `json:"warning,omitempty"`
}

// Client is the OpenFIGI API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *httpx.Client
}

// NewClient creates a new OpenFIGI client. apiKey may be empty.
func NewClient(httpClient *httpx.Client, apiKey string) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// SetBaseURL sets the base URL for the API (useful for testing).
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimRight(baseURL, "/")
}

// MapISIN returns every listing OpenFIGI knows for isin.
func (c *Client) MapISIN(ctx context.Context, isin string) ([]domain.FigiEntry, error) {
	return c.mapOne(ctx, IDTypeISIN, strings.ToUpper(isin))
}

// MapTicker returns every security trading under ticker.
func (c *Client) MapTicker(ctx context.Context, ticker string) ([]domain.FigiEntry, error) {
	return c.mapOne(ctx, IDTypeTicker, strings.ToUpper(ticker))
}

func (c *Client) mapOne(ctx context.Context, idType, idValue string) ([]domain.FigiEntry, error) {
	body, err := json.Marshal([]MappingRequest{{IDType: idType, IDValue: idValue}})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	headers := map[string]string{"Content-Type": "application/json"}
	if c.apiKey != "" {
		headers[apiKeyHeader] = c.apiKey
	}

	var responses []MappingResponse
	resp, decoded, err := c.httpClient.FetchJSON(ctx, httpx.Request{
		Method:  http.MethodPost,
		URL:     c.baseURL + mappingPath,
		Headers: headers,
		Body:    body,
	}, &responses)
	if err != nil {
		return nil, fmt.Errorf("openfigi %s %s: %w", idType, idValue, err)
	}
	if !resp.OK {
		return nil, fmt.Errorf("openfigi %s %s: %w", idType, idValue, httpx.StatusError(resp))
	}
	if !decoded {
		return nil, fmt.Errorf("openfigi %s %s: %w: response is not JSON", idType, idValue, domain.ErrUpstreamMalformedBody)
	}

	if len(responses) == 0 {
		return []domain.FigiEntry{}, nil
	}
	first := responses[0]
	if first.Error != "" || first.Warning != "" {
		slog.DebugContext(ctx, "openfigi job returned no data", "id_type", idType, "id_value", idValue,
			"error", first.Error, "warning", first.Warning)
	}

	entries := make([]domain.FigiEntry, 0, len(first.Data))
	for _, r := range first.Data {
		entries = append(entries, toEntry(r))
	}
	return entries, nil
}

func toEntry(r MappingResult) domain.FigiEntry {
	return domain.FigiEntry{
		Ticker:       r.Ticker,
		Name:         r.Name,
		SecurityName: r.SecurityName,
		ISIN:         r.ISIN,
		SecurityType: r.SecurityType,
		Country:      r.Country,
		Currency:     r.Currency,
		ExchCode:     r.ExchCode,
		MICCode:      r.MICCode,
	}
}

// Compile-time check that Client implements IdentifierMapper.
var _ marketdata.IdentifierMapper = (*Client)(nil)
