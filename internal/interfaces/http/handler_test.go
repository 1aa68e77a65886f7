package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jmanzanog/quote-resolver/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock Services ---

type MockQuoteService struct {
	resolveUSDPriceFunc func(ctx context.Context, query string) (domain.USDPrice, error)
	legacyQuoteFunc     func(ctx context.Context, symbol string) (domain.Quote, error)
}

func (m *MockQuoteService) ResolveUSDPrice(ctx context.Context, query string) (domain.USDPrice, error) {
	if m.resolveUSDPriceFunc != nil {
		return m.resolveUSDPriceFunc(ctx, query)
	}
	return domain.USDPrice{}, fmt.Errorf("not implemented")
}

func (m *MockQuoteService) LegacyQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	if m.legacyQuoteFunc != nil {
		return m.legacyQuoteFunc(ctx, symbol)
	}
	return domain.Quote{}, fmt.Errorf("not implemented")
}

type MockFxService struct {
	resolveRateFunc func(ctx context.Context, from, to string) (domain.FxRate, error)
}

func (m *MockFxService) ResolveRate(ctx context.Context, from, to string) (domain.FxRate, error) {
	if m.resolveRateFunc != nil {
		return m.resolveRateFunc(ctx, from, to)
	}
	return domain.FxRate{}, fmt.Errorf("not implemented")
}

type MockIdentityService struct {
	resolveIdentityFunc func(ctx context.Context, query string) (domain.Identity, error)
}

func (m *MockIdentityService) ResolveIdentity(ctx context.Context, query string) (domain.Identity, error) {
	if m.resolveIdentityFunc != nil {
		return m.resolveIdentityFunc(ctx, query)
	}
	return domain.Identity{}, fmt.Errorf("not implemented")
}

// --- Test Setup ---

func setupRouter(handler *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupRoutes(router, handler)
	return router
}

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func perform(router *gin.Engine, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func mustDecimal(t *testing.T, v string) domain.Decimal {
	t.Helper()
	d, err := domain.NewDecimalFromString(v)
	require.NoError(t, err)
	return d
}

// --- FX Tests ---

func TestHandler_GetFxRate(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var gotFrom, gotTo string
		fx := &MockFxService{
			resolveRateFunc: func(ctx context.Context, from, to string) (domain.FxRate, error) {
				gotFrom, gotTo = from, to
				return domain.FxRate{Rate: mustDecimal(t, "1.0842"), Provider: "yahoo", CapturedAtMs: 1}, nil
			},
		}
		router := setupRouter(NewHandler(&MockQuoteService{}, fx, &MockIdentityService{}))

		w := perform(router, "/api/fx?from=eur&to=usd")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
		assert.Equal(t, "EUR", gotFrom)
		assert.Equal(t, "USD", gotTo)
		assert.JSONEq(t, `{"rate":1.0842,"provider":"yahoo"}`, w.Body.String())
	})

	t.Run("missing params", func(t *testing.T) {
		router := setupRouter(NewHandler(&MockQuoteService{}, &MockFxService{}, &MockIdentityService{}))

		w := perform(router, "/api/fx?from=EUR")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "from/to required", decodeError(t, w).Error)
	})

	t.Run("all providers failed", func(t *testing.T) {
		fx := &MockFxService{
			resolveRateFunc: func(ctx context.Context, from, to string) (domain.FxRate, error) {
				return domain.FxRate{}, domain.ErrFxUnavailable
			},
		}
		router := setupRouter(NewHandler(&MockQuoteService{}, fx, &MockIdentityService{}))

		w := perform(router, "/api/fx?from=EUR&to=USD")

		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "fx error: fx unavailable", decodeError(t, w).Error)
		assert.Empty(t, w.Header().Get("Cache-Control"))
	})
}

// --- quote_usd Tests ---

func TestHandler_GetUSDQuote(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		quotes := &MockQuoteService{
			resolveUSDPriceFunc: func(ctx context.Context, query string) (domain.USDPrice, error) {
				return domain.USDPrice{
					Symbol:       "AAPL",
					Name:         "Apple Inc.",
					PriceUSD:     mustDecimal(t, "150"),
					Currency:     "USD",
					Provider:     "yahoo",
					ResolvedFrom: query,
					Tried:        []string{"yahoo:AAPL"},
				}, nil
			},
		}
		router := setupRouter(NewHandler(quotes, &MockFxService{}, &MockIdentityService{}))

		w := perform(router, "/api/quote_usd?q=US0378331005")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{
			"symbol":"AAPL","name":"Apple Inc.","price_usd":150,"currency":"USD",
			"provider":"yahoo","resolvedFrom":"US0378331005","tried":["yahoo:AAPL"]
		}`, w.Body.String())
	})

	t.Run("degraded flag is serialized", func(t *testing.T) {
		quotes := &MockQuoteService{
			resolveUSDPriceFunc: func(ctx context.Context, query string) (domain.USDPrice, error) {
				return domain.USDPrice{Symbol: "VOD.L", PriceUSD: mustDecimal(t, "90"), Currency: "GBP", Provider: "demo", Tried: []string{}, Degraded: true}, nil
			},
		}
		router := setupRouter(NewHandler(quotes, &MockFxService{}, &MockIdentityService{}))

		w := perform(router, "/api/quote_usd?q=VOD.L")

		assert.Equal(t, http.StatusOK, w.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, true, body["degraded"])
		assert.Equal(t, "GBP", body["currency"])
	})

	t.Run("missing q", func(t *testing.T) {
		router := setupRouter(NewHandler(&MockQuoteService{}, &MockFxService{}, &MockIdentityService{}))

		w := perform(router, "/api/quote_usd?q=%20")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unexpected failure", func(t *testing.T) {
		quotes := &MockQuoteService{
			resolveUSDPriceFunc: func(ctx context.Context, query string) (domain.USDPrice, error) {
				return domain.USDPrice{}, fmt.Errorf("quote_usd error: %w", domain.ErrUpstreamUnreachable)
			},
		}
		router := setupRouter(NewHandler(quotes, &MockFxService{}, &MockIdentityService{}))

		w := perform(router, "/api/quote_usd?q=AAPL")

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, decodeError(t, w).Error, "quote_usd error")
	})
}

// --- Legacy quote Tests ---

func TestHandler_GetQuote(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		quotes := &MockQuoteService{
			legacyQuoteFunc: func(ctx context.Context, symbol string) (domain.Quote, error) {
				return domain.NewQuote(symbol, mustDecimal(t, "187.44"), "USD", "Apple Inc.", nil, "yahoo")
			},
		}
		router := setupRouter(NewHandler(quotes, &MockFxService{}, &MockIdentityService{}))

		w := perform(router, "/api/quote?symbol=AAPL")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"price":187.44,"currency":"USD","name":"Apple Inc.","provider":"yahoo"}`, w.Body.String())
	})

	t.Run("missing symbol", func(t *testing.T) {
		router := setupRouter(NewHandler(&MockQuoteService{}, &MockFxService{}, &MockIdentityService{}))

		w := perform(router, "/api/quote")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "symbol required", decodeError(t, w).Error)
	})

	t.Run("both providers fail", func(t *testing.T) {
		quotes := &MockQuoteService{
			legacyQuoteFunc: func(ctx context.Context, symbol string) (domain.Quote, error) {
				return domain.Quote{}, domain.ErrUpstreamBadStatus
			},
		}
		router := setupRouter(NewHandler(quotes, &MockFxService{}, &MockIdentityService{}))

		w := perform(router, "/api/quote?symbol=AAPL")

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "could not fetch price", decodeError(t, w).Error)
	})
}

// --- Resolve Tests ---

func TestHandler_Resolve(t *testing.T) {
	ticker := "AAPL"
	isin := "US0378331005"

	tests := []struct {
		name       string
		target     string
		identity   domain.Identity
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "isin",
			target:     "/api/resolve?q=US0378331005",
			identity:   domain.Identity{Name: "APPLE INC", ISIN: &isin, Ticker: &ticker},
			wantStatus: http.StatusOK,
			wantBody:   `{"name":"APPLE INC","isin":"US0378331005","ticker":"AAPL"}`,
		},
		{
			name:       "ticker without isin",
			target:     "/api/resolve?q=AAPL",
			identity:   domain.Identity{Name: "APPLE INC", Ticker: &ticker},
			wantStatus: http.StatusOK,
			wantBody:   `{"name":"APPLE INC","isin":null,"ticker":"AAPL"}`,
		},
		{
			name:       "missing q",
			target:     "/api/resolve",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown isin",
			target:     "/api/resolve?q=US0000000000",
			err:        fmt.Errorf("%w: ISIN US0000000000", domain.ErrNotFound),
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "mapping provider down",
			target:     "/api/resolve?q=AAPL",
			err:        fmt.Errorf("failed to map ticker: %w", domain.ErrUpstreamBadStatus),
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "unexpected",
			target:     "/api/resolve?q=AAPL",
			err:        fmt.Errorf("boom"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids := &MockIdentityService{
				resolveIdentityFunc: func(ctx context.Context, query string) (domain.Identity, error) {
					return tt.identity, tt.err
				},
			}
			router := setupRouter(NewHandler(&MockQuoteService{}, &MockFxService{}, ids))

			w := perform(router, tt.target)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				assert.NotEmpty(t, decodeError(t, w).Error)
			}
		})
	}
}

// --- Routes and middleware ---

func TestHealth(t *testing.T) {
	router := setupRouter(NewHandler(&MockQuoteService{}, &MockFxService{}, &MockIdentityService{}))

	w := perform(router, "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRequestID(t *testing.T) {
	router := setupRouter(NewHandler(&MockQuoteService{}, &MockFxService{}, &MockIdentityService{}))

	t.Run("generated", func(t *testing.T) {
		w := perform(router, "/health")
		assert.Len(t, w.Header().Get(RequestIDHeader), 36)
	})

	t.Run("propagated", func(t *testing.T) {
		const id = "3f2c1a4e-9b7d-4c1e-8a2f-6d5e4c3b2a10"
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, id)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, id, w.Header().Get(RequestIDHeader))
	})

	t.Run("invalid replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, "not-a-uuid")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.NotEqual(t, "not-a-uuid", w.Header().Get(RequestIDHeader))
	})
}

func TestServeStatic(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>quotes</h1>"), 0o600))

	router := setupRouter(NewHandler(&MockQuoteService{}, &MockFxService{}, &MockIdentityService{}))
	ServeStatic(router, dir)

	w := perform(router, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<h1>quotes</h1>")

	w = perform(router, "/api/quote")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
