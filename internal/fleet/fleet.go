// Package fleet fans a harvest out over many machines at once. Each machine
// gets its own harvest call, workspace, and source; one slow or unreachable
// machine never blocks the rest.
package fleet

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/xcelerator/logharvest/internal/harvest"
)

// Config is a fleet definition loaded from a YAML file: which machines to
// harvest and which log item to pull from each.
type Config struct {
	Item     string   `yaml:"item"`
	Machines []string `yaml:"machines"`
}

// Load reads and validates a fleet definition.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read fleet file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse fleet file: %w", err)
	}
	if strings.TrimSpace(cfg.Item) == "" {
		return Config{}, fmt.Errorf("fleet file %s: item must not be blank", path)
	}
	if len(cfg.Machines) == 0 {
		return Config{}, fmt.Errorf("fleet file %s: no machines listed", path)
	}
	return cfg, nil
}

// OpenSourceFn provides the source for one machine. The release func is
// called when that machine's harvest finishes, successful or not.
type OpenSourceFn func(ctx context.Context, machine string) (harvest.Source, func(), error)

// Runner harvests a list of machines with bounded parallelism.
type Runner struct {
	open     OpenSourceFn
	params   harvest.Params
	logger   *slog.Logger
	parallel int
}

// NewRunner creates a runner. parallel is clamped to 1..32.
func NewRunner(open OpenSourceFn, params harvest.Params, parallel int, logger *slog.Logger) *Runner {
	if parallel < 1 {
		parallel = 1
	}
	if parallel > 32 {
		parallel = 32
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		open:     open,
		params:   params,
		logger:   logger,
		parallel: parallel,
	}
}

// Run harvests item from every machine and returns one result per machine, in
// input order. Failures are isolated per machine; Run itself never fails.
func (r *Runner) Run(ctx context.Context, machines []string, item string) []harvest.Result {
	results := make([]harvest.Result, len(machines))
	sem := make(chan struct{}, r.parallel)
	var wg sync.WaitGroup

	for i, machine := range machines {
		wg.Add(1)
		go func(idx int, machine string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx] = r.harvestOne(ctx, machine, item)
		}(i, machine)
	}

	wg.Wait()
	return results
}

func (r *Runner) harvestOne(ctx context.Context, machine, item string) harvest.Result {
	src, release, err := r.open(ctx, machine)
	if err != nil {
		r.logger.Warn("source unavailable", "machine", machine, "error", err)
		return harvest.Result{
			Machine:      machine,
			ErrorMessage: fmt.Sprintf("source unavailable: %v", err),
		}
	}
	if release != nil {
		defer release()
	}

	h := harvest.New(src, r.params, r.logger)
	return h.Harvest(ctx, harvest.Request{Machine: machine, Item: item})
}
