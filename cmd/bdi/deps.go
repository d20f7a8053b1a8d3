package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bdicore/internal/mas"
	"bdicore/internal/program"
)

var watchDeps bool

// depsCmd prints the result of the static inertia phase
var depsCmd = &cobra.Command{
	Use:   "deps [program.yaml]",
	Short: "Print the guard dependency set of every rule",
	Long: `Builds the program and prints, for every rule of every module, the
predicates its guard depends on and whether its verdicts are ever cached.
With --watch the program is rebuilt and printed again whenever it changes.`,
	Args: cobra.ExactArgs(1),
	RunE: runDeps,
}

func init() {
	depsCmd.Flags().BoolVarP(&watchDeps, "watch", "w", false, "Reprint when the program file changes")
}

func runDeps(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	p, err := program.Load(args[0])
	if err != nil {
		return err
	}
	if err := printDeps(out, p); err != nil {
		return err
	}
	if !watchDeps {
		return nil
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	w, err := program.NewWatcher(args[0], func(p *program.Program) {
		fmt.Fprintln(out, "---")
		if err := printDeps(out, p); err != nil {
			logger.Warn("rebuild failed", zap.Error(err))
		}
	}, func(err error) {
		logger.Warn("reload failed", zap.Error(err))
	})
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	<-ctx.Done()
	return nil
}

func printDeps(w io.Writer, p *program.Program) error {
	sys, err := program.Build(p, cfg, nil)
	if err != nil {
		return err
	}
	defer deactivate(sys.Registry)

	for _, m := range sys.Registry.Modules() {
		fmt.Fprintf(w, "module %s\n", m.Name())
		for _, r := range m.Rules() {
			meta := r.Info()
			flag := ""
			if meta.Excluded {
				flag = " (never cached)"
			}
			id := meta.ID
			if id == "" {
				id = r.String()
			}
			fmt.Fprintf(w, "  %-6s %s: {%s}%s\n", r.Kind(), id, strings.Join(meta.DependencySet, ", "), flag)
		}
	}
	return nil
}

func deactivate(reg *mas.Registry) {
	for _, name := range reg.Names() {
		reg.Remove(name)
	}
}
