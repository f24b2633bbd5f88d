package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/softstation/icon-ctld/internal/config"
	"github.com/softstation/icon-ctld/internal/icons"
	"github.com/softstation/icon-ctld/internal/resolve"
	"github.com/softstation/icon-ctld/server"
)

func main() {
	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize config: %v\n", err)
		os.Exit(1)
	}

	// Start config watcher
	if err := cfg.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start config watcher: %v\n", err)
		os.Exit(1)
	}
	defer cfg.Close()

	// Start the privileged loop that owns the icon cache
	loop := icons.NewLoop()
	loop.Start()
	defer loop.Stop()

	// Wire the resolution pipeline; index builds start in the background
	rt, err := resolve.NewRuntime(cfg, loop)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build runtime: %v\n", err)
		os.Exit(1)
	}
	defer rt.Close()

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create server
	srv, err := server.NewServer(rt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create server: %v\n", err)
		os.Exit(1)
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start(ctx)
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	fmt.Println("station-icond started")

	select {
	case sig := <-sigChan:
		fmt.Printf("\nReceived signal: %v\n", sig)
		cancel()
		if err := srv.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error stopping server: %v\n", err)
		}
	case err := <-serverErr:
		if err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println("station-icond stopped")
}
