package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"
)

// HarvesterConfig holds configuration for the harvest CLI.
type HarvesterConfig struct {
	FleetPath string        // Fleet definition YAML (optional when --machine given)
	Item      string        // Logical log item to harvest
	Machines  []string      // Machines from repeatable --machine flags
	Mode      string        // "share" (administrative share) or "agent" (QUIC agent)
	AgentPort int           // Agent port when Mode == "agent"
	LogLevel  string
	Parallel  int           // Max machines harvested concurrently (1..32)
	Chunks    int           // Chunk fan-out for large files
	Timeout   time.Duration // Per-harvest deadline (0 = none)
}

// AgentConfig holds configuration for the harvestagent daemon.
type AgentConfig struct {
	Addr     string // Listen address
	Root     string // Log root directory served to harvesters
	LogLevel string
}

// ParseHarvesterConfig parses harvester configuration from flags and
// environment variables. Flags take precedence over environment.
func ParseHarvesterConfig() HarvesterConfig {
	return parseHarvesterConfigWithFlagSet(flag.CommandLine, os.Args[1:])
}

// parseHarvesterConfigWithFlagSet is an internal helper for testing with
// isolated flag sets.
func parseHarvesterConfigWithFlagSet(fs *flag.FlagSet, args []string) HarvesterConfig {
	cfg := HarvesterConfig{
		Mode:      "share",
		AgentPort: 7443,
		LogLevel:  "info",
		Parallel:  8,
	}

	// Read from environment first
	if v := os.Getenv("XCEL_FLEET"); v != "" {
		cfg.FleetPath = v
	}
	if v := os.Getenv("XCEL_ITEM"); v != "" {
		cfg.Item = v
	}
	if v := os.Getenv("XCEL_MODE"); v != "" {
		cfg.Mode = v
	}
	if v := os.Getenv("XCEL_AGENT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.AgentPort = port
		}
	}
	if v := os.Getenv("XCEL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	// Flags override environment
	fs.StringVar(&cfg.FleetPath, "fleet", cfg.FleetPath, "fleet definition file (YAML)")
	fs.StringVar(&cfg.Item, "item", cfg.Item, "log item to harvest")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "remote access mode (share, agent)")
	fs.IntVar(&cfg.AgentPort, "agent-port", cfg.AgentPort, "agent port in agent mode")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.IntVar(&cfg.Parallel, "parallel", cfg.Parallel, "max machines harvested concurrently (1..32)")
	fs.IntVar(&cfg.Chunks, "chunks", 0, "chunk fan-out for large files (default 4)")
	fs.DurationVar(&cfg.Timeout, "timeout", 0, "per-harvest deadline (0 = none)")

	machines := make([]string, 0)
	fs.Var((*stringSlice)(&machines), "machine", "machine to harvest (repeatable)")

	fs.Parse(args)

	if len(machines) > 0 {
		cfg.Machines = machines
	}

	if cfg.Parallel < 1 {
		cfg.Parallel = 1
	}
	if cfg.Parallel > 32 {
		cfg.Parallel = 32
	}

	return cfg
}

// ParseAgentConfig parses agent configuration from flags and environment
// variables. Flags take precedence over environment.
// Defaults: addr=":7443", root=`D:\Proj\LogFiles`, logLevel="info"
func ParseAgentConfig() AgentConfig {
	return parseAgentConfigWithFlagSet(flag.CommandLine, os.Args[1:])
}

// parseAgentConfigWithFlagSet is an internal helper for testing with isolated
// flag sets.
func parseAgentConfigWithFlagSet(fs *flag.FlagSet, args []string) AgentConfig {
	cfg := AgentConfig{
		Addr:     ":7443",
		Root:     `D:\Proj\LogFiles`,
		LogLevel: "info",
	}

	if v := os.Getenv("XCEL_AGENT_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("XCEL_AGENT_ROOT"); v != "" {
		cfg.Root = v
	}
	if v := os.Getenv("XCEL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	fs.StringVar(&cfg.Root, "root", cfg.Root, "log root directory to serve")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.Parse(args)

	return cfg
}

// stringSlice implements flag.Value for repeatable string flags.
type stringSlice []string

func (s *stringSlice) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSlice) Set(value string) error {
	*s = append(*s, value)
	return nil
}

var _ flag.Value = (*stringSlice)(nil)
