package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/regpool/internal/api"
	"github.com/shehryarbajwa/regpool/internal/proxy"
	"github.com/shehryarbajwa/regpool/internal/ratelimit"
	"github.com/shehryarbajwa/regpool/internal/task"
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the control API",
	Long: `Start the HTTP control API: start and stop background runs, inspect browser
windows, and take over windows left open for a human.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
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

	runs := task.NewRuns(a.orch, a.db.Sink(a.sink))
	limiter := ratelimit.NewLimiter(cfg.Server.RatePerHour, cfg.Server.Burst)
	handler := api.NewHandler(a.browsers)
	runHandler := api.NewRunHandler(runs, a.sms, a.runDefaults())
	router := handler.SetupRoutes(runHandler, proxy.NewRelay(a.browsers, logger), limiter, cfg.Server.RatePerHour)

	srv := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("control API listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}

	// attempts in flight hold leases; let them settle
	waitCtx, cancelWait := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancelWait()
	if err := runs.StopAll(waitCtx); err != nil {
		logger.Warn("runs still in flight at exit", zap.Error(err))
	}
	return nil
}
