package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/storekit/cartsync/internal/app"
	"github.com/storekit/cartsync/internal/catalog"
	"github.com/storekit/cartsync/internal/config"
	"github.com/storekit/cartsync/internal/devserver"
	"github.com/storekit/cartsync/pkg/config/configloader"
	"github.com/storekit/cartsync/pkg/logger"
	"github.com/storekit/cartsync/pkg/server"
)

const appName = "cartsync"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Printf("application run failed: %v", err)
		os.Exit(1)
	}
	log.Println("application stopped gracefully")
}

// run loads configuration and serves the dev backend until the context
// is cancelled.
func run(ctx context.Context) error {
	cfg, cfgErr := configloader.Load[*config.ServerConfig](appName)
	if cfgErr != nil {
		return fmt.Errorf("failed to load configuration: %w", cfgErr)
	}
	log.Printf("Configuration loaded: %v", cfg)

	lg := logger.New(cfg.Log.Level)
	slog.SetDefault(lg)

	handler, _ := app.SetupDevHandler(seedProducts(), devserver.Pricing{
		ShippingCost: cfg.Checkout.ShippingCost,
		TaxRateBps:   cfg.Checkout.TaxRateBps,
	}, lg)

	httpServer := server.NewHTTPServer(server.HTTPConfig{
		Port:           cfg.HTTPServer.Port,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		ReadTimeout:    cfg.HTTPServer.Timeout.Read,
		WriteTimeout:   cfg.HTTPServer.Timeout.Write,
		IdleTimeout:    cfg.HTTPServer.Timeout.Idle,
		ReadHeader:     cfg.HTTPServer.Timeout.ReadHeader,
	}, handler)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Dev server listening", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		lg.Info("Shutting down dev server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("errgroup encountered an error: %w", err)
	}
	return nil
}

// seedProducts is a small fixed catalog for local development.
func seedProducts() []catalog.Product {
	return []catalog.Product{
		{ID: "p-shirt", Name: "Linen Shirt", Price: 2499, Category: "apparel", InStock: true},
		{ID: "p-jeans", Name: "Slim Jeans", Price: 4999, Category: "apparel", InStock: true},
		{ID: "p-mug", Name: "Stoneware Mug", Price: 1099, Category: "home", InStock: true},
		{ID: "p-lamp", Name: "Desk Lamp", Price: 3599, Category: "home", InStock: false},
	}
}
