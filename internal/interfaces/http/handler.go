package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmanzanog/quote-resolver/internal/domain"
)

// QuoteService resolves prices for the quote endpoints.
type QuoteService interface {
	ResolveUSDPrice(ctx context.Context, query string) (domain.USDPrice, error)
	LegacyQuote(ctx context.Context, symbol string) (domain.Quote, error)
}

// FxService resolves exchange rates.
type FxService interface {
	ResolveRate(ctx context.Context, from, to string) (domain.FxRate, error)
}

// IdentityService maps tickers and ISINs to identities.
type IdentityService interface {
	ResolveIdentity(ctx context.Context, query string) (domain.Identity, error)
}

type Handler struct {
	quoteService    QuoteService
	fxService       FxService
	identityService IdentityService
}

func NewHandler(quoteService QuoteService, fxService FxService, identityService IdentityService) *Handler {
	return &Handler{
		quoteService:    quoteService,
		fxService:       fxService,
		identityService: identityService,
	}
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type FxResponse struct {
	Rate     domain.Decimal `json:"rate"`
	Provider string         `json:"provider"`
}

type QuoteResponse struct {
	Price    domain.Decimal `json:"price"`
	Currency string         `json:"currency"`
	Name     string         `json:"name"`
	Provider string         `json:"provider"`
	Time     *time.Time     `json:"time,omitempty"`
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsUpstream(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func query(c *gin.Context, key string) string {
	return strings.TrimSpace(c.Query(key))
}

func (h *Handler) GetFxRate(c *gin.Context) {
	from := strings.ToUpper(query(c, "from"))
	to := strings.ToUpper(query(c, "to"))
	if from == "" || to == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "from/to required"})
		return
	}

	rate, err := h.fxService.ResolveRate(c.Request.Context(), from, to)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "Failed to resolve fx rate", "from", from, "to", to, "error", err)
		status := http.StatusBadGateway
		if errors.Is(err, domain.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		c.JSON(status, ErrorResponse{Error: "fx error: " + err.Error()})
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, FxResponse{Rate: rate.Rate, Provider: rate.Provider})
}

func (h *Handler) GetUSDQuote(c *gin.Context) {
	q := query(c, "q")
	if q == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "q required (ticker or ISIN)"})
		return
	}

	price, err := h.quoteService.ResolveUSDPrice(c.Request.Context(), q)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "Failed to resolve USD price", "q", q, "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}

	if price.Degraded {
		slog.WarnContext(c.Request.Context(), "Serving unconverted price", "q", q, "currency", price.Currency)
	}
	c.JSON(http.StatusOK, price)
}

func (h *Handler) GetQuote(c *gin.Context) {
	symbol := query(c, "symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "symbol required"})
		return
	}

	quote, err := h.quoteService.LegacyQuote(c.Request.Context(), symbol)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "Failed to get quote", "symbol", symbol, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "could not fetch price"})
		return
	}

	c.JSON(http.StatusOK, QuoteResponse{
		Price:    quote.Price,
		Currency: quote.Currency,
		Name:     quote.Name,
		Provider: quote.Provider,
		Time:     quote.Time,
	})
}

func (h *Handler) Resolve(c *gin.Context) {
	q := query(c, "q")
	if q == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "q required (ticker or ISIN)"})
		return
	}

	identity, err := h.identityService.ResolveIdentity(c.Request.Context(), q)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusNotFound {
			slog.InfoContext(c.Request.Context(), "Identifier not found", "q", q)
		} else {
			slog.ErrorContext(c.Request.Context(), "Failed to resolve identifier", "q", q, "error", err)
		}
		c.JSON(status, ErrorResponse{Error: "resolve error: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, identity)
}
