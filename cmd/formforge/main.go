package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"formforge/internal/config"
	"formforge/internal/logging"
	"formforge/internal/service"
	"formforge/internal/store"
)

var (
	// Global flags
	configPath string
	ownerID    string
	verbose    bool

	logger *zap.Logger
	cfg    config.Config
	db     *store.Store
	svc    *service.Service
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "formforge",
	Short: "formforge - dynamic form, submission, and report engine",
	Long: `formforge manages user-designed forms, collects public submissions,
fans submissions out to forms that embed other forms, and aggregates the
accumulated data into chart-ready reports.

Examples:
  formforge form create --name "Customer Survey"
  formforge form publish 1
  formforge submit <share-url> --data '{"q1":"hi","q2":"5"}'
  formforge report run <report-url>`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(level, cfg.Logging.Development)
		if err != nil {
			return err
		}

		db, err = store.New(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		svc = service.New(db, logger, cfg.Server.ShareBaseURL)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if db != nil {
			_ = db.Close()
		}
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "formforge.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&ownerID, "owner", "local", "acting owner id")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	formCmd.AddCommand(formCreateCmd)
	formCmd.AddCommand(formListCmd)
	formCmd.AddCommand(formShowCmd)
	formCmd.AddCommand(formPublishCmd)
	formCmd.AddCommand(formUpdateCmd)
	formCmd.AddCommand(formReindexCmd)

	reportCmd.AddCommand(reportPublishCmd)
	reportCmd.AddCommand(reportRunCmd)
	reportCmd.AddCommand(reportListCmd)

	rootCmd.AddCommand(formCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
