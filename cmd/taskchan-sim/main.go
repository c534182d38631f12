// Command taskchan-sim drives a dispatcher with a worker pool under
// synthetic load and verifies its delivery guarantees.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/taskchan"
	"github.com/xraph/taskchan/internal/sim"
	"github.com/xraph/taskchan/router"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "taskchan-sim",
		Short: "Channel-affinity dispatcher simulator",
		Long:  "taskchan-sim runs producers and executors against a dispatcher and checks ordering, exclusivity and counter conservation.",
	}

	defaults := sim.DefaultOptions()

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run one simulation",
		RunE: func(cmd *cobra.Command, _ []string) error {
			executors, _ := cmd.Flags().GetInt("executors")
			producers, _ := cmd.Flags().GetInt("producers")
			channels, _ := cmd.Flags().GetInt("channels")
			tasks, _ := cmd.Flags().GetInt("tasks")
			strategy, _ := cmd.Flags().GetString("strategy")
			locking, _ := cmd.Flags().GetString("locking")
			buckets, _ := cmd.Flags().GetInt("buckets")
			compact, _ := cmd.Flags().GetUint64("compact-interval")
			work, _ := cmd.Flags().GetDuration("work")
			rate, _ := cmd.Flags().GetFloat64("rate")
			timeout, _ := cmd.Flags().GetDuration("timeout")
			logLevel, _ := cmd.Flags().GetString("log-level")

			var level slog.Level
			if err := level.UnmarshalText([]byte(logLevel)); err != nil {
				return fmt.Errorf("invalid --log-level %q: %w", logLevel, err)
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			switch router.Strategy(strategy) {
			case router.StrategyFixed, router.StrategyDynamic:
			default:
				return fmt.Errorf("invalid --strategy; use fixed|dynamic")
			}
			switch taskchan.Locking(locking) {
			case taskchan.LockingGlobal, taskchan.LockingPerQueue:
			default:
				return fmt.Errorf("invalid --locking; use global|per-queue")
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			report, err := sim.Run(ctx, sim.Options{
				Executors:       executors,
				Producers:       producers,
				Channels:        channels,
				Tasks:           tasks,
				Strategy:        router.Strategy(strategy),
				Buckets:         buckets,
				CompactInterval: compact,
				Locking:         taskchan.Locking(locking),
				Work:            work,
				Rate:            rate,
				Timeout:         timeout,
				Logger:          logger,
			})
			if err != nil {
				return fmt.Errorf("simulation error: %w", err)
			}

			printReport(cmd, report)
			return report.Verify()
		},
	}
	runCmd.Flags().Int("executors", defaults.Executors, "Number of executors")
	runCmd.Flags().Int("producers", defaults.Producers, "Number of producer goroutines")
	runCmd.Flags().Int("channels", defaults.Channels, "Number of non-default channels")
	runCmd.Flags().Int("tasks", defaults.Tasks, "Total tasks to add")
	runCmd.Flags().String("strategy", string(defaults.Strategy), "Routing strategy: fixed|dynamic")
	runCmd.Flags().String("locking", string(defaults.Locking), "Locking discipline: global|per-queue")
	runCmd.Flags().Int("buckets", defaults.Buckets, "Bucket count for --strategy=fixed (power of two)")
	runCmd.Flags().Uint64("compact-interval", defaults.CompactInterval, "Adds between compactions for --strategy=dynamic")
	runCmd.Flags().Duration("work", defaults.Work, "Upper bound of simulated task time")
	runCmd.Flags().Float64("rate", 0, "Per-channel start rate limit in tasks/s (0 disables)")
	runCmd.Flags().Duration("timeout", defaults.Timeout, "Abort the run after this long")
	runCmd.Flags().String("log-level", "info", "Log level: debug|info|warn|error")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func printReport(cmd *cobra.Command, r sim.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "elapsed:     %s\n", r.Elapsed.Round(time.Microsecond))
	fmt.Fprintf(out, "added:       %d\n", r.Stats.Added)
	fmt.Fprintf(out, "run:         %d\n", r.Stats.Run)
	fmt.Fprintf(out, "finished:    %d\n", r.Stats.Finished)
	fmt.Fprintf(out, "pending:     %d\n", r.Stats.Pending)
	fmt.Fprintf(out, "queues:      %d\n", r.Stats.Queues)
	fmt.Fprintf(out, "delivered:   %d\n", r.Delivered)
	fmt.Fprintf(out, "deferred:    %d\n", r.Deferred)

	sources := make([]string, 0, len(r.Polled))
	for s := range r.Polled {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	for _, s := range sources {
		fmt.Fprintf(out, "polled/%-9s %d\n", s+":", r.Polled[s])
	}
	if r.Elapsed > 0 {
		fmt.Fprintf(out, "throughput:  %.0f tasks/s\n", float64(r.Delivered)/r.Elapsed.Seconds())
	}
}
