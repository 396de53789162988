// Command-line companion to the profiler plugin: inspect and export recorded
// sessions, dry-run macros.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Joonalai/profiler-qgis-plugin/config"
	"github.com/Joonalai/profiler-qgis-plugin/converter"
	"github.com/Joonalai/profiler-qgis-plugin/macro"
	"github.com/Joonalai/profiler-qgis-plugin/query"
)

var (
	debug      bool
	configPath string
	cfg        = config.NewDefault()

	rootCmd = &cobra.Command{
		Use:           "profiler-plugin",
		Short:         "Inspect recorded profiling sessions and replay macros",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
	}
)

func newLogger() (*zap.Logger, error) {
	if debug || cfg.Debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "D", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "plugin config file (yaml)")
	rootCmd.AddCommand(newInspectCmd(), newExportCmd(), newPlayCmd())
}

func newInspectCmd() *cobra.Command {
	var (
		filter      string
		pattern     string
		minDuration time.Duration
	)
	cmd := &cobra.Command{
		Use:   "inspect <session-file>",
		Short: "Print the span tree and statistics of a recorded session",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			res, err := converter.ReadFile(args[0])
			if err != nil {
				return err
			}

			it, err := query.NewIterator(res.Tree, query.Filter{
				Name:        filter,
				Pattern:     pattern,
				MinDuration: minDuration,
			})
			if err != nil {
				return err
			}

			depths := make(map[int]int)
			res.Tree.Walk(func(id, depth int) bool {
				depths[id] = depth
				return true
			})
			for {
				id, ok := it.Next()
				if !ok {
					break
				}
				span := it.Span(id)
				fmt.Printf("%s- %s: %v (self %v)\n",
					strings.Repeat("  ", depths[id]), span.Name, span.Duration(), span.SelfDuration())
			}

			fmt.Println()
			for _, name := range res.Tree.Names() {
				agg, _ := res.Tree.Aggregate(name)
				fmt.Printf("%-40s count=%d total=%v mean=%v min=%v max=%v\n",
					name, agg.Count, time.Duration(agg.Total), agg.Mean(),
					time.Duration(agg.Min), time.Duration(agg.Max))
			}
			for _, name := range res.Tree.MeterNames() {
				fmt.Printf("meter %-34s samples=%d\n", name, len(res.Tree.Meter(name).Samples))
			}
			if res.Discarded > 0 || res.ForceClosed > 0 {
				fmt.Printf("\ndiscarded stops: %d, force-closed spans: %d\n", res.Discarded, res.ForceClosed)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "case-insensitive name substring")
	cmd.Flags().StringVarP(&pattern, "pattern", "p", "", "regular expression on span names")
	cmd.Flags().DurationVarP(&minDuration, "min-duration", "m", 0, "hide spans shorter than this")
	return cmd
}

func newExportCmd() *cobra.Command {
	var (
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export <session-file>",
		Short: "Export a recorded session for external visualization tools",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			res, err := converter.ReadFile(args[0])
			if err != nil {
				return err
			}

			out := os.Stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating output: %w", err)
				}
				defer f.Close()
				out = f
			}

			switch format {
			case "collapsed":
				return converter.ToCollapsed(res, out)
			case "pprof":
				return converter.ToProfile(res).Write(out)
			default:
				return fmt.Errorf("unknown export format %q", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "collapsed", "export format: collapsed or pprof")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newPlayCmd() *cobra.Command {
	var speed float64
	cmd := &cobra.Command{
		Use:   "play <macro-file>",
		Short: "Replay a macro against a logging injector (dry run)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			m, err := macro.Load(args[0])
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("speed") {
				speed = cfg.Macro.Speed
			}
			player := macro.NewPlayer(speed, log)
			inj := macro.InjectorFunc(func(_ context.Context, ev macro.Event) error {
				log.Info("dispatch",
					zap.String("kind", string(ev.Kind)),
					zap.Int64("delay_ms", ev.DelayMS))
				return nil
			})
			dispatched, err := player.Play(cmd.Context(), m, inj)
			if err != nil {
				return err
			}
			log.Info("macro finished", zap.Int("dispatched", dispatched))
			return nil
		},
	}
	cmd.Flags().Float64VarP(&speed, "speed", "s", 1.0, "delay scale factor, smaller is faster")
	return cmd
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
