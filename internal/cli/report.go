package cli

import (
	"context"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/regpool/internal/report"
	"github.com/shehryarbajwa/regpool/internal/store"
)

func init() {
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "", "Output file (default: <reports dir>/report_<time>.xlsx)")
	rootCmd.AddCommand(reportCmd)
}

var reportOut string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export stored results to an xlsx workbook",
	RunE:  runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := store.Open(cfg.Paths.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	out := reportOut
	if out == "" {
		out = filepath.Join(cfg.Paths.Reports, report.DefaultName(time.Now()))
	}
	return exportReport(context.Background(), db, out, logger)
}

// exportReport writes every stored result to path
func exportReport(ctx context.Context, db *store.DB, path string, logger *zap.Logger) error {
	prod, err := db.Prod(ctx)
	if err != nil {
		return err
	}
	sale, err := db.Sale(ctx)
	if err != nil {
		return err
	}
	if err := report.Write(path, prod, sale); err != nil {
		return err
	}

	logger.Info("report written", zap.String("path", path), zap.Int("prod", len(prod)), zap.Int("sale", len(sale)))
	return nil
}
