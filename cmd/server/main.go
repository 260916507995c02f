package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dhofer/mcp-server-kontomanager/internal/config"
	mcpserver "github.com/dhofer/mcp-server-kontomanager/internal/mcp"
	"github.com/dhofer/mcp-server-kontomanager/internal/portal"
)

func main() {
	configPath := flag.String("config", "", "Optional path to a YAML config overlay")
	ssePort := flag.Int("sse-port", 0, "Optional SSE port override (falls back to config)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// Before we can redirect logs, write to stderr as last resort
		log.Fatalf("failed to load config: %v", err)
	}
	if *ssePort != 0 {
		cfg.MCP.SSEPort = *ssePort
	}

	// Redirect logging to file for stdio mode (stderr interferes with MCP protocol)
	if cfg.MCP.SSEPort == 0 && cfg.Server.LogFile != "" {
		logFile, err := os.OpenFile(cfg.Server.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			log.SetOutput(logFile)
			defer logFile.Close()
		} else {
			// If we can't open log file, disable logging to avoid stderr pollution
			log.SetOutput(io.Discard)
		}
	}

	log.Printf("configured for brand %s as %s (password %s)",
		cfg.Portal.Brand, cfg.Portal.Username, config.MaskPassword(cfg.Portal.Password))

	client, err := portal.New(portal.Options{
		BaseURL:          cfg.Portal.BaseURL(),
		Username:         cfg.Portal.Username,
		Password:         cfg.Portal.Password,
		Timeout:          cfg.Portal.Timeout(),
		ExtraSimSettings: cfg.Portal.ExtraSimSettings,
	})
	if err != nil {
		log.Fatalf("failed to initialize portal client: %v", err)
	}

	server, err := mcpserver.NewServer(cfg, client)
	if err != nil {
		log.Fatalf("failed to initialize MCP server: %v", err)
	}

	var startErr error
	if cfg.MCP.SSEPort > 0 {
		log.Printf("starting Kontomanager MCP SSE server on port %d", cfg.MCP.SSEPort)
		startErr = server.StartSSE(ctx, cfg.MCP.SSEPort)
	} else {
		log.Printf("starting Kontomanager MCP stdio server")
		startErr = server.Start(ctx)
	}

	if startErr != nil && !errors.Is(startErr, context.Canceled) {
		log.Fatalf("server exited with error: %v", startErr)
	}
}
