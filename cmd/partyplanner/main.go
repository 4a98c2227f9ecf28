package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/partyplanner/internal/config"
	"github.com/dukerupert/partyplanner/internal/gateway"
	"github.com/dukerupert/partyplanner/internal/logging"
	"github.com/dukerupert/partyplanner/internal/middleware"
	"github.com/dukerupert/partyplanner/internal/planner"
	"github.com/dukerupert/partyplanner/internal/server"
	"github.com/dukerupert/partyplanner/internal/telemetry"
	"github.com/dukerupert/partyplanner/internal/view"
	ws "github.com/dukerupert/partyplanner/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("partyplanner exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint, "partyplanner")
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("flush traces", "error", err)
		}
	}()

	views, err := view.New()
	if err != nil {
		return err
	}

	gw := gateway.NewClient(gateway.Config{
		BaseURL: cfg.APIBase,
		Cohort:  cfg.Cohort,
		Timeout: cfg.APITimeout,
	})
	hub := ws.NewHub(logger.With("component", "websocket"))
	pl := planner.New(gw, views, hub, logger.With("component", "planner"))
	limiter := middleware.NewWriteLimiter(cfg.WriteLimit, time.Minute)

	srv := server.New(pl, hub, limiter, server.Config{OriginPatterns: cfg.OriginPatterns}, logger)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Interactions wait on the write and the refetch.
		WriteTimeout: 2*cfg.APITimeout + 5*time.Second,
		IdleTimeout:  120 * time.Second,
		// Websocket pumps run on request contexts; tie them to the signal.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("party planner running", "addr", "http://localhost:"+cfg.Port, "api", gw.APIURL())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		pl.Init(gctx)
		logger.Info("initial load finished", "renders", pl.Renders())
		return nil
	})

	g.Go(func() error {
		return limiter.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	})

	return g.Wait()
}
