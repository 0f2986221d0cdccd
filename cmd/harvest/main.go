package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/xcelerator/logharvest/internal/agent"
	"github.com/xcelerator/logharvest/internal/config"
	"github.com/xcelerator/logharvest/internal/fleet"
	"github.com/xcelerator/logharvest/internal/harvest"
	"github.com/xcelerator/logharvest/internal/logging"
	"github.com/xcelerator/logharvest/internal/progress"
	"github.com/xcelerator/logharvest/internal/quictransport"
	"github.com/xcelerator/logharvest/internal/sharefs"
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

	cfg := config.ParseHarvesterConfig()
	logger := logging.New("harvest", cfg.LogLevel)

	item := cfg.Item
	machines := cfg.Machines
	if cfg.FleetPath != "" {
		fc, err := fleet.Load(cfg.FleetPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if len(machines) == 0 {
			machines = fc.Machines
		}
		if item == "" {
			item = fc.Item
		}
	}
	if item == "" || len(machines) == 0 {
		fmt.Fprintln(os.Stderr, "need --item and --machine, or --fleet")
		os.Exit(2)
	}

	meter := progress.NewMeter()
	params := harvest.Params{
		ChunkCount: cfg.Chunks,
		Timeout:    cfg.Timeout,
		ProgressFn: meter.Add,
	}

	var open fleet.OpenSourceFn
	switch cfg.Mode {
	case "share":
		src := sharefs.New()
		open = func(ctx context.Context, machine string) (harvest.Source, func(), error) {
			return src, nil, nil
		}
	case "agent":
		open = func(ctx context.Context, machine string) (harvest.Source, func(), error) {
			addr := net.JoinHostPort(machine, strconv.Itoa(cfg.AgentPort))
			conn, err := quictransport.Dial(ctx, addr, logger)
			if err != nil {
				return nil, nil, err
			}
			client := agent.NewClient(quictransport.WrapConn(conn))
			return client, func() { client.Close() }, nil
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q (want share or agent)\n", cfg.Mode)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runner := fleet.NewRunner(open, params, cfg.Parallel, logger)

	start := time.Now()
	results := runner.Run(ctx, machines, item)

	failed := 0
	for _, res := range results {
		if res.Success {
			fmt.Printf("ok    %-20s %s\n", res.Machine, res.LocalPath)
		} else {
			failed++
			fmt.Printf("fail  %-20s %s\n", res.Machine, res.ErrorMessage)
		}
	}

	stats := meter.Snapshot()
	fmt.Printf("%d/%d machines harvested, %s in %s\n",
		len(results)-failed, len(results),
		formatBytes(stats.BytesDone),
		time.Since(start).Round(time.Millisecond))

	if failed > 0 {
		os.Exit(1)
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
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
	fmt.Print(`harvest - pull the newest log file off each machine in a fleet

Usage:
  harvest --item <name> --machine <host> [--machine <host> ...]
  harvest --fleet fleet.yaml

Flags:
  --item        log item (category) to harvest
  --machine     machine to harvest, repeatable
  --fleet       fleet definition file (YAML: item + machines)
  --mode        remote access: share (default, admin share) or agent (QUIC)
  --agent-port  agent port in agent mode (default 7443)
  --parallel    max machines harvested concurrently (default 8, max 32)
  --chunks      chunk fan-out for large files (default 4)
  --timeout     per-harvest deadline, e.g. 90s (default none)
  --log-level   debug, info, warn, error (default info)

Environment: XCEL_ITEM, XCEL_FLEET, XCEL_MODE, XCEL_AGENT_PORT, XCEL_LOG_LEVEL.
Flags take precedence over environment.

Harvested files land under <tempdir>/XceleratorLogs/<id>/ and are yours to
clean up.
`)
}
