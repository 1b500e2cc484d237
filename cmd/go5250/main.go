package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/heymumford/go5250/internal/config"
	"github.com/heymumford/go5250/internal/observability"
	"github.com/heymumford/go5250/internal/session"
	"github.com/heymumford/go5250/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "go5250: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "go5250.toml", "path to session profile")
	flag.Parse()

	logger := observability.InitLogger("go5250")
	observability.RegisterMetrics()

	profile, err := config.LoadProfile(*configPath)
	if err != nil {
		return err
	}

	dialer := transport.NetDialer{Timeout: profile.Session.ConnectTimeout}
	ctrl := session.New(profile.Name, profile.Addr(), dialer, profile.Session)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ctrl.Connect(ctx); err != nil {
		logger.Warn().Err(err).Msg("initial connect failed, retrying")
		if err := ctrl.Retry(ctx); err != nil {
			return err
		}
	}
	logger.Info().Str("addr", profile.Addr()).Str("device", profile.Device).Msg("session up")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down")
			return ctrl.Disconnect()
		case <-ctrl.Done():
			if ctx.Err() != nil {
				return ctrl.Disconnect()
			}
			logger.Warn().Err(ctrl.LastErr()).Msg("session lost, retrying")
			if err := ctrl.Retry(ctx); err != nil {
				return err
			}
			logger.Info().Str("addr", profile.Addr()).Msg("session restored")
		}
	}
}
