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
	"github.com/udisondev/arenamatch/internal/dedicated"
	"github.com/udisondev/arenamatch/internal/netutil"
)

const configPath = "config/gameserver.yaml"

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
	slog.Info("arenamatch dedicated game server starting")

	path := configPath
	if p := os.Getenv("ARENAMATCH_CONFIG"); p != "" {
		path = p
	}
	cfg, err := config.LoadGameServer(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	slog.Info("config loaded", "bind", cfg.BindAddress, "port", cfg.Port, "capacity", cfg.Capacity, "tickRateHz", cfg.TickRateHz)

	gameEP, err := netutil.Listen(fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port))
	if err != nil {
		return fmt.Errorf("binding game udp socket: %w", err)
	}
	defer gameEP.Close()

	coordEP, err := netutil.Listen("0.0.0.0:0")
	if err != nil {
		return fmt.Errorf("binding coordinator-facing udp socket: %w", err)
	}
	defer coordEP.Close()

	coordAddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", cfg.CoordinatorHost, cfg.CoordinatorPort))
	if err != nil {
		return fmt.Errorf("resolving coordinator address: %w", err)
	}

	server, err := dedicated.NewServer(cfg, gameEP, coordEP, coordAddr)
	if err != nil {
		return fmt.Errorf("creating dedicated server: %w", err)
	}
	slog.Info("dedicated server ready")
	return server.Run(ctx)
}
