package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bdicore/internal/agent"
	"bdicore/internal/mas"
	"bdicore/internal/metrics"
	"bdicore/internal/program"
	"bdicore/internal/term"
)

var (
	maxTicks    int
	untilIdle   bool
	tickEvery   time.Duration
	metricsAddr string
)

// runCmd runs a program until every module is done
var runCmd = &cobra.Command{
	Use:   "run [program.yaml]",
	Short: "Run a multi-agent program",
	Long: `Loads a program, builds its environments and modules and drives every
module on its own goroutine. The run ends after --max-ticks ticks per module,
when every module is idle (--until-idle), or on interrupt.

Example:
  bdi run examples/blocks.yaml --until-idle`,
	Args: cobra.ExactArgs(1),
	RunE: runProgram,
}

func init() {
	runCmd.Flags().IntVar(&maxTicks, "max-ticks", -1, "Ticks per module (overrides config; 0 = unlimited)")
	runCmd.Flags().BoolVar(&untilIdle, "until-idle", false, "Stop each module once it has nothing left to do")
	runCmd.Flags().DurationVar(&tickEvery, "tick", 0, "Tick interval (overrides config)")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
}

func runProgram(cmd *cobra.Command, args []string) error {
	p, err := program.Load(args[0])
	if err != nil {
		return err
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.New(cfg.Metrics.Namespace)
	}
	sys, err := program.Build(p, cfg, collector)
	if err != nil {
		return err
	}

	opts := mas.RunnerOptionsFromConfig(cfg)
	opts.StopWhenIdle = untilIdle
	if maxTicks >= 0 {
		opts.MaxTicks = maxTicks
	}
	if cmd.Flags().Changed("tick") {
		opts.TickInterval = tickEvery
	}
	if opts.MaxTicks == 0 && !opts.StopWhenIdle {
		logger.Info("no tick limit, running until interrupted")
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if metricsAddr != "" && collector != nil {
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdown, done := context.WithTimeout(context.Background(), time.Second)
			defer done()
			_ = srv.Shutdown(shutdown)
		}()
		logger.Info("serving metrics", zap.String("addr", metricsAddr))
	}

	start := time.Now()
	runner := mas.NewRunner(sys.Registry, opts)
	err = runner.Run(ctx)
	logger.Info("run finished",
		zap.Int("modules", len(sys.Registry.Names())),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err))

	printSummary(cmd.OutOrStdout(), sys.Registry, runner.Ticks())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type factLister interface {
	Facts() []term.Term
}

func printSummary(w io.Writer, reg *mas.Registry, ticks map[string]int) {
	for _, m := range reg.Modules() {
		fmt.Fprintf(w, "module %s: %d ticks, %d goals, %d plans\n",
			m.Name(), ticks[m.Name()], m.GoalBase().Len(), m.Plans().Len())
		for _, g := range m.GoalBase().Goals() {
			fmt.Fprintf(w, "  goal   %s\n", g)
		}
		printBeliefs(w, m)
	}
}

func printBeliefs(w io.Writer, m *agent.Module) {
	fl, ok := m.Beliefs().(factLister)
	if !ok {
		return
	}
	facts := fl.Facts()
	lines := make([]string, len(facts))
	for i, f := range facts {
		lines[i] = f.String()
	}
	sort.Strings(lines)
	for _, l := range lines {
		fmt.Fprintf(w, "  belief %s\n", l)
	}
}
