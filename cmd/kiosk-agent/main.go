package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	internalhttp "github.com/nextgenvending/kiosk-agent/internal/api/http"
	"github.com/nextgenvending/kiosk-agent/internal/auth"
	"github.com/nextgenvending/kiosk-agent/internal/backend"
	"github.com/nextgenvending/kiosk-agent/internal/catalog"
	"github.com/nextgenvending/kiosk-agent/internal/checkin"
	"github.com/nextgenvending/kiosk-agent/internal/identity"
	"github.com/nextgenvending/kiosk-agent/internal/liveness"
	"github.com/nextgenvending/kiosk-agent/internal/pairing"
)

var AppVersion string

const (
	defaultCheckinInterval = 5 * time.Minute
	defaultCatalogRefresh  = 30 * time.Second
)

func main() {
	InitConfig()

	slog.Info("Kiosk Agent", "version", AppVersion)

	store, err := newStore(config.Store)
	if err != nil {
		slog.Error("Failed to open identity store", "error", err)
		os.Exit(1)
	}

	var tokens auth.TokenSource = auth.NoneSource{}
	if config.Backend.AuthToken != "" {
		tokens = auth.NewBearerSource(config.Backend.AuthToken)
	}
	client := backend.NewHTTPClient(config.Backend.BaseURL, tokens)

	session := pairing.NewSession(store, client, pairing.Config{
		PollInterval: time.Duration(config.Pairing.PollIntervalSeconds) * time.Second,
		AdminBaseURL: config.Pairing.AdminBaseURL,
	})

	var catalogService *catalog.Service
	var agent *checkin.Agent

	statusFn := func() backend.CheckinStatus {
		status := backend.CheckinStatus{Battery: 100, Temperature: 37}
		if catalogService != nil {
			status.StockLevel = catalogService.StockLevel()
		}
		return status
	}
	agent = checkin.NewAgent(store, client, checkin.Config{
		AutoRegister: config.Machine.AutoRegister,
		MaxRetries:   config.Checkin.MaxRetries,
		BackoffBase:  time.Duration(config.Checkin.BackoffBaseSeconds) * time.Second,
		Name:         config.Machine.Name,
		Location:     config.Machine.Location,
		Status:       statusFn,
	})

	if config.Catalog.Enabled {
		catalogService = catalog.NewService(store, client, func() liveness.State {
			return agent.Liveness()
		})
	}

	if err := session.Start(context.Background()); err != nil {
		// The machine can still serve its local API; pairing is retried
		// through the reset endpoint.
		slog.Warn("Pairing could not start", "error", err)
	}

	checkinInterval := time.Duration(config.Checkin.IntervalMinutes) * time.Minute
	if checkinInterval <= 0 {
		checkinInterval = defaultCheckinInterval
	}
	agent.Start(checkinInterval)

	if catalogService != nil {
		refresh := time.Duration(config.Catalog.RefreshSeconds) * time.Second
		if refresh <= 0 {
			refresh = defaultCatalogRefresh
		}
		catalogService.Start(refresh)
	}

	services := &internalhttp.Services{
		Identity: store,
		Pairing:  session,
		Checkin:  agent,
		Catalog:  catalogService,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"PUT", "PATCH", "GET", "POST", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-API-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(gin.Recovery())
	internalhttp.SetupRoute(engine, config.Http, services)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Http.Port),
		Handler: engine,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("Starting HTTP server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			quit <- syscall.SIGTERM
		}
	}()

	sig := <-quit
	slog.Info("Received shutdown signal", "signal", sig)

	slog.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server stopped")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		agent.Stop()
		session.Stop()
		if catalogService != nil {
			catalogService.Stop()
		}
	}()

	wg.Wait()

	if closer, ok := store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			slog.Error("Identity store close error", "error", err)
		}
	}

	slog.Info("Shutdown complete")
}

func newStore(cfg StoreConfig) (identity.Store, error) {
	switch cfg.Backend {
	case "", "file":
		path := cfg.Path
		if path == "" {
			path = "./data"
		}
		return identity.NewFileStore(path)
	case "sqlite":
		path := cfg.Path
		if path == "" {
			path = "./data/kiosk.db"
		}
		return identity.NewSQLiteStore(path)
	case "memory":
		return identity.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
