package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/jmanzanog/quote-resolver/internal/application"
	"github.com/jmanzanog/quote-resolver/internal/domain"
	"github.com/jmanzanog/quote-resolver/internal/infrastructure/config"
	"github.com/jmanzanog/quote-resolver/internal/infrastructure/httpx"
	"github.com/jmanzanog/quote-resolver/internal/infrastructure/marketdata"
	"github.com/jmanzanog/quote-resolver/internal/infrastructure/marketdata/demo"
	"github.com/jmanzanog/quote-resolver/internal/infrastructure/marketdata/exchangerate"
	"github.com/jmanzanog/quote-resolver/internal/infrastructure/marketdata/openfigi"
	"github.com/jmanzanog/quote-resolver/internal/infrastructure/marketdata/stooq"
	"github.com/jmanzanog/quote-resolver/internal/infrastructure/marketdata/yahoo"
	"github.com/jmanzanog/quote-resolver/internal/infrastructure/persistence/memory"
	httpHandler "github.com/jmanzanog/quote-resolver/internal/interfaces/http"
	"github.com/joho/godotenv"
)

// parseLogLevel maps LOG_LEVEL onto a slog level, defaulting to info
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupLogger configures and returns a structured logger with source information
func setupLogger(level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource: true,
		Level:     parseLogLevel(level),
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, opts))
	slog.SetDefault(logger)
	return logger
}

// Services holds everything the HTTP layer and the warmer need
type Services struct {
	Quotes     *application.QuoteService
	Fx         *application.FxService
	Identifier *application.IdentifierResolver
	Warmer     *application.FxWarmer
}

// buildServices wires provider clients into the orchestrators
func buildServices(cfg *config.Config) (*Services, error) {
	client := httpx.New(cfg.UpstreamTimeout)

	yahooClient := yahoo.NewClient(client)
	if len(cfg.YahooHosts) > 0 {
		yahooClient.SetHosts(cfg.YahooHosts...)
	}

	stooqHosts := stooq.DefaultHosts
	if len(cfg.StooqHosts) > 0 {
		stooqHosts = cfg.StooqHosts
	}
	stooqFxHost := stooq.DefaultFxHost
	if cfg.StooqFxBaseURL != "" {
		stooqFxHost = cfg.StooqFxBaseURL
	}
	stooqClient := stooq.NewClientWithHosts(client, stooqHosts, stooqFxHost)

	ecbClient := exchangerate.NewClient(client, cfg.ExchangeRateAPIKey)
	if cfg.ExchangeRateBaseURL != "" {
		ecbClient.SetBaseURL(cfg.ExchangeRateBaseURL)
	}

	figiClient := openfigi.NewClient(client, cfg.OpenFIGIKey)
	if cfg.OpenFIGIBaseURL != "" {
		figiClient.SetBaseURL(cfg.OpenFIGIBaseURL)
	}

	fxService, err := application.NewFxService(
		memory.NewFxRateCache(),
		[]marketdata.RateProvider{yahooClient, stooqClient, ecbClient},
		application.WithCacheTTL(cfg.FxCacheTTL),
		application.WithRateBounds(domain.RateBounds{Min: cfg.FxMinRate, Max: cfg.FxMaxRate}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fx service: %w", err)
	}

	resolver := application.NewIdentifierResolver(figiClient)

	quoteService, err := application.NewQuoteService(resolver, fxService, yahooClient, stooqClient, demo.NewProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create quote service: %w", err)
	}

	pairs := make([]application.FxPair, 0, len(cfg.FxWarmPairs))
	for _, p := range cfg.FxWarmPairs {
		pairs = append(pairs, application.FxPair{From: p.From, To: p.To})
	}

	return &Services{
		Quotes:     quoteService,
		Fx:         fxService,
		Identifier: resolver,
		Warmer:     application.NewFxWarmer(fxService, pairs, cfg.FxWarmInterval),
	}, nil
}

// buildServer creates and configures the HTTP server with all routes and handlers
func buildServer(cfg *config.Config, services *Services) *http.Server {
	router := gin.New()
	router.Use(gin.Recovery())

	handler := httpHandler.NewHandler(services.Quotes, services.Fx, services.Identifier)
	httpHandler.SetupRoutes(router, handler)
	httpHandler.ServeStatic(router, cfg.StaticDir)

	origins := cfg.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	withCORS := cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", httpHandler.RequestIDHeader},
		ExposedHeaders: []string{httpHandler.RequestIDHeader},
		MaxAge:         300,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:           withCORS(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return server
}

// App wraps the application components for easier testing
type App struct {
	Server        *http.Server
	Warmer        *application.FxWarmer
	CancelContext context.CancelFunc
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down application...")

	a.Warmer.Stop()
	a.CancelContext()

	if err := a.Server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	return nil
}

// run contains the main application logic without os.Exit calls
func run() error {
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setupLogger(cfg.LogLevel)

	services, err := buildServices(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go services.Warmer.Start(ctx)

	server := buildServer(cfg, services)

	app := &App{
		Server:        server,
		Warmer:        services.Warmer,
		CancelContext: cancel,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "host", cfg.ServerHost, "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
		slog.Info("Received shutdown signal")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := app.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	slog.Info("Server exited gracefully")
	return nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("Application error", "error", err)
		os.Exit(1)
	}
}
