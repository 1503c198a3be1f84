package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-rune/infrastructure/middleware"
	"github.com/ahrav/go-rune/internal/application"
	"github.com/ahrav/go-rune/internal/ctxlog"
	"github.com/ahrav/go-rune/internal/domain"
	"github.com/ahrav/go-rune/internal/ports"
)

// runOptions holds the run command's flags.
type runOptions struct {
	tick        time.Duration
	parallel    int
	fuel        int64
	fuelPerNode int64
	policy      string
	maxPasses   int
	maxAttempts int
	origin      []float64
	caster      string
	trace       bool
	metrics     bool
}

var runFlags = runOptions{parallel: 4}

var runCmd = &cobra.Command{
	Use:   "run <chain-file>...",
	Short: "Run one or more chains to completion",
	Long: "Run loads every chain file and runs the chains concurrently, one pass\n" +
		"per tick. Staged effects are printed as they are drained.",
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.DurationVar(&runFlags.tick, "tick", 0, "Minimum interval between passes (0 runs passes back to back)")
	f.IntVar(&runFlags.parallel, "parallel", 4, "Maximum number of chains run at once")
	f.Int64Var(&runFlags.fuel, "fuel", 0, "Fuel budget per run, overriding the chain file (0 keeps the file's)")
	f.Int64Var(&runFlags.fuelPerNode, "fuel-per-node", 0, "Fuel charged for every node visit")
	f.StringVar(&runFlags.policy, "policy", "", "Failure policy override: continue or abort")
	f.IntVar(&runFlags.maxPasses, "max-passes", 0, "Pass limit override")
	f.IntVar(&runFlags.maxAttempts, "max-attempts", 0, "Attempts per failing node override")
	f.Float64SliceVar(&runFlags.origin, "origin", nil, "Run origin as x,y,z")
	f.StringVar(&runFlags.caster, "caster", "", "Entity id of the caster")
	f.BoolVar(&runFlags.trace, "trace", false, "Emit OpenTelemetry spans through the global tracer provider")
	f.BoolVar(&runFlags.metrics, "metrics", false, "Print run metrics after all chains finished")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if runFlags.policy != "" && runFlags.policy != "continue" && runFlags.policy != "abort" {
		return fmt.Errorf("invalid --policy %q: want continue or abort", runFlags.policy)
	}
	if len(runFlags.origin) != 0 && len(runFlags.origin) != 3 {
		return fmt.Errorf("invalid --origin: want three components, got %d", len(runFlags.origin))
	}

	registry, err := newRegistry(runFlags.fuelPerNode)
	if err != nil {
		return fmt.Errorf("build registry: %w", err)
	}
	loader, err := application.NewChainLoader[*domain.RuneExecutionContext](registry)
	if err != nil {
		return fmt.Errorf("create loader: %w", err)
	}

	promRegistry := prometheus.NewRegistry()
	observers := []ports.Observer{middleware.NewPrometheusObserver(promRegistry)}
	if runFlags.trace {
		observers = append(observers, middleware.NewTracingObserver(nil))
	}

	out := &syncWriter{w: cmd.OutOrStdout()}
	errs := make([]error, len(args))

	var g errgroup.Group
	g.SetLimit(max(runFlags.parallel, 1))
	for i, path := range args {
		g.Go(func() error {
			if err := runChain(ctx, loader, observers, path, out); err != nil {
				errs[i] = fmt.Errorf("%s: %w", path, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if runFlags.metrics {
		if err := printMetrics(promRegistry, out); err != nil {
			return err
		}
	}
	return errors.Join(errs...)
}

// runChain loads and runs one chain file, one pass per limiter tick.
func runChain(
	ctx context.Context,
	loader *application.ChainLoader[*domain.RuneExecutionContext],
	observers []ports.Observer,
	path string,
	out *syncWriter,
) error {
	loaded, err := loader.LoadFromFile(ctx, path)
	if err != nil {
		return err
	}
	chain, err := loaded.Template.Instantiate()
	if err != nil {
		return err
	}

	driver := application.NewDriver[*domain.RuneExecutionContext](driverOptions(loaded.Config.Run, observers)...)

	fuel := loaded.Config.Run.Fuel
	if runFlags.fuel > 0 {
		fuel = runFlags.fuel
	}
	rc := domain.NewRuneExecutionContext(chain.ID(), uuid.NewString(), domain.WithFuelLimit(fuel))
	if len(runFlags.origin) == 3 {
		domain.Set(rc, domain.KeyOrigin, domain.Vector{X: runFlags.origin[0], Y: runFlags.origin[1], Z: runFlags.origin[2]})
	}
	if runFlags.caster != "" {
		domain.Set(rc, domain.KeyCaster, domain.EntityRef{ID: runFlags.caster})
	}

	logger := ctxlog.FromContext(ctx).With("chain", chain.ID(), "file", path)
	run, err := driver.Start(ctxlog.WithLogger(ctx, logger), chain, rc)
	if err != nil {
		return err
	}

	limit := rate.Inf
	if runFlags.tick > 0 {
		limit = rate.Every(runFlags.tick)
	}
	limiter := rate.NewLimiter(limit, 1)

	for tick := int64(0); !run.Done(); tick++ {
		if err := limiter.Wait(ctx); err != nil {
			run.Cancel()
			break
		}
		domain.Set(rc, domain.KeyTick, tick)
		run.Pass()
		printEffects(out, chain.ID(), tick, rc.DrainEffects())
	}
	printEffects(out, chain.ID(), -1, rc.DrainEffects())

	res := run.Result()
	fuelUsage := rc.FuelUsage()
	out.printf("%s run=%s outcome=%s passes=%d steps=%d fuel=%d/%d elapsed=%s\n",
		res.ChainID, res.RunID, res.Outcome, res.Passes, res.Steps,
		fuelUsage.Used, fuelUsage.Limit, res.Elapsed.Round(time.Microsecond))
	return res.Err()
}

// driverOptions merges the chain's run settings with command-line overrides.
func driverOptions(cfg application.RunConfig, observers []ports.Observer) []application.DriverOption {
	opts := cfg.DriverOptions()
	opts = append(opts, application.WithObservers(observers...))
	switch runFlags.policy {
	case "abort":
		opts = append(opts, application.WithFailurePolicy(application.AbortOnFailure))
	case "continue":
		opts = append(opts, application.WithFailurePolicy(application.ContinueIndependent))
	}
	if runFlags.maxPasses > 0 {
		opts = append(opts, application.WithMaxPasses(runFlags.maxPasses))
	}
	if runFlags.maxAttempts > 0 {
		opts = append(opts, application.WithMaxAttempts(runFlags.maxAttempts))
	}
	return opts
}

func printEffects(out *syncWriter, chainID string, tick int64, effects []domain.Effect) {
	for _, e := range effects {
		out.printf("%s tick=%d effect=%s source=%s value=%v\n", chainID, tick, e.Kind, e.Source, e.Value)
	}
}

// printMetrics writes counter and gauge samples from reg, sorted by name.
func printMetrics(reg *prometheus.Registry, out *syncWriter) error {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			var value float64
			switch {
			case m.GetCounter() != nil:
				value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				value = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				value = float64(m.GetHistogram().GetSampleCount())
			default:
				continue
			}
			lines = append(lines, fmt.Sprintf("%s{%s} %g", mf.GetName(), strings.Join(labels, ","), value))
		}
	}
	sort.Strings(lines)
	for _, l := range lines {
		out.printf("%s\n", l)
	}
	return nil
}
