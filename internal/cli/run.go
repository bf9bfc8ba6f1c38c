package cli

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/regpool/internal/report"
)

func init() {
	runCmd.Flags().IntVarP(&runCount, "count", "n", 0, "Number of registrations (overrides config)")
	runCmd.Flags().IntVarP(&runThreads, "threads", "t", 0, "Concurrent workers (overrides config)")
	runCmd.Flags().BoolVar(&runProxy, "proxy", false, "Route each window through a dynamic proxy")
	runCmd.Flags().BoolVar(&runKeepOpen, "keep-open", false, "Leave windows open for a human when an attempt ends")
	rootCmd.AddCommand(runCmd)
}

var (
	runCount    int
	runThreads  int
	runProxy    bool
	runKeepOpen bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a batch of registrations in the foreground",
	Long: `Run submits the requested number of registrations, storing each result as it
completes, then exports the database to the reports directory. Ctrl-C stops
new submissions; attempts already started finish.`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	if runCount > 0 {
		cfg.Run.Count = runCount
	}
	if runThreads > 0 {
		cfg.Run.Concurrency = runThreads
	}
	if cmd.Flags().Changed("proxy") {
		cfg.Run.UseProxy = runProxy
	}
	if runKeepOpen {
		cfg.Run.AutoClose = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	results := a.orch.Run(ctx, a.runDefaults(), a.db.Sink(a.sink))

	succeeded := 0
	for _, r := range results {
		if r.Succeeded() {
			succeeded++
		}
	}
	stats := a.orch.Stats()
	logger.Info("run complete",
		zap.Int("submitted", int(stats.Submitted)),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", len(results)-succeeded),
		zap.Int64("crashed", stats.Crashed),
		zap.Int64("peak", stats.Peak))

	out := filepath.Join(cfg.Paths.Reports, report.DefaultName(time.Now()))
	return exportReport(context.Background(), a.db, out, logger)
}
