// Command auctionhouse runs a devnet auction house: the settlement engine over in-memory tokens,
// driven by JSON requests on a TCP port, with prometheus metrics and signed settlement receipts.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/cloudx-io/auctionhouse/chain"
	"github.com/cloudx-io/auctionhouse/logging"
	"github.com/cloudx-io/auctionhouse/receipts"
)

func main() {
	configPath := flag.String("config", "", "Path to the configuration file (default ./auctionhouse.yaml)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "auctionhouse: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	keys, err := loadKeys(cfg.ReceiptKeyPath, logger)
	if err != nil {
		return err
	}

	metrics := NewMetrics()
	service, err := NewService(cfg, chain.SystemClock{}, keys, metrics, logger)
	if err != nil {
		return fmt.Errorf("initialize service: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddress,
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Metrics listening", zap.String("address", cfg.MetricsAddress))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	logger.Info("Auction house listening", zap.String("address", listener.Addr().String()))

	err = NewServer(service, cfg.MaxWorkers, metrics, logger).Serve(ctx, listener)
	if errors.Is(err, context.Canceled) {
		logger.Info("Shutting down")
		return nil
	}
	return err
}

func loadKeys(path string, logger *zap.Logger) (*receipts.KeyManager, error) {
	if path == "" {
		keys, err := receipts.NewKeyManager()
		if err != nil {
			return nil, fmt.Errorf("failed to generate receipt key: %w", err)
		}
		logger.Warn("No receipt key configured, generated an ephemeral key")
		return keys, nil
	}
	keys, err := receipts.LoadKeyManager(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load receipt key: %w", err)
	}
	logger.Info("Receipt key loaded", zap.String("path", path))
	return keys, nil
}
