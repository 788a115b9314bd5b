package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/udisondev/arenamatch/internal/config"
	"github.com/udisondev/arenamatch/internal/matchmaking"
	"github.com/udisondev/arenamatch/internal/netutil"
)

const configPath = "config/coordinator.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))
	slog.Info("arenamatch matchmaking coordinator starting")

	path := configPath
	if p := os.Getenv("ARENAMATCH_CONFIG"); p != "" {
		path = p
	}
	cfg, err := config.LoadCoordinator(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	slog.Info("config loaded", "bind", cfg.BindAddress, "port", cfg.Port, "requiredPlayers", cfg.RequiredPlayers)

	ep, err := netutil.Listen(fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port))
	if err != nil {
		return fmt.Errorf("binding udp socket: %w", err)
	}
	defer ep.Close()

	authEP, err := netutil.Listen("0.0.0.0:0")
	if err != nil {
		return fmt.Errorf("binding auth-facing udp socket: %w", err)
	}
	defer authEP.Close()

	authAddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", cfg.AuthHost, cfg.AuthPort))
	if err != nil {
		return fmt.Errorf("resolving auth address: %w", err)
	}

	coordinator := matchmaking.NewCoordinator(cfg, ep, authEP, authAddr)
	slog.Info("coordinator ready")
	return coordinator.Run(ctx)
}
