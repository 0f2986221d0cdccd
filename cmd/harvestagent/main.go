package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/xcelerator/logharvest/internal/agent"
	"github.com/xcelerator/logharvest/internal/config"
	"github.com/xcelerator/logharvest/internal/logging"
	"github.com/xcelerator/logharvest/internal/quictransport"
)

const version = "v0.3.0"

func main() {
	if hasHelpFlag(os.Args[1:]) {
		printUsage()
		return
	}
	if hasVersionFlag(os.Args[1:]) {
		fmt.Println(version)
		return
	}

	cfg := config.ParseAgentConfig()
	logger := logging.New("harvestagent", cfg.LogLevel)

	listener, err := quictransport.Listen(cfg.Addr, logger)
	if err != nil {
		os.Exit(1)
	}
	defer listener.Close()

	server := agent.NewServer(cfg.Root, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger.Info("serving log root", "root", cfg.Root, "addr", cfg.Addr)

	for {
		conn, err := listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("accept failed", "error", err)
			return
		}
		logger.Info("harvester connected", "remote", conn.RemoteAddr())

		go func() {
			wrapped := quictransport.WrapConn(conn)
			defer wrapped.Close()
			if err := server.Serve(ctx, wrapped); err != nil {
				logger.Warn("connection ended", "error", err)
			}
		}()
	}
}

func hasHelpFlag(args []string) bool {
	for _, a := range args {
		if a == "-h" || a == "--help" || a == "-help" {
			return true
		}
	}
	return false
}

func hasVersionFlag(args []string) bool {
	for _, a := range args {
		if a == "-v" || a == "--version" || a == "-version" {
			return true
		}
	}
	return false
}

func printUsage() {
	fmt.Print(`harvestagent - serve a machine's log directories to harvesters

Usage:
  harvestagent --root <dir> [--addr :7443]

Flags:
  --root       log root directory to serve (default D:\Proj\LogFiles)
  --addr       listen address (default :7443)
  --log-level  debug, info, warn, error (default info)

Environment: XCEL_AGENT_ROOT, XCEL_AGENT_ADDR, XCEL_LOG_LEVEL.
Flags take precedence over environment.
`)
}
