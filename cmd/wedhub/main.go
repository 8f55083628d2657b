// @title                       WedHub Billing API
// @version                     1.0
// @description                 Verification codes, invoices, payments and receipts for the WedHub marketplace.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"wedhub/internal/app"
	"wedhub/internal/config"
	"wedhub/internal/jobs"
	"wedhub/internal/logging"
	"wedhub/internal/repositories"
)

var Version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     "wedhub",
		Short:   "WedHub billing and account verification service",
		Version: Version,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "Path to config.yaml")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(migrateCmd(&configPath))
	rootCmd.AddCommand(sweepOverdueCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	logging.Init(cfg.App.Name, cfg.App.LogLevel, cfg.App.LogJSON)
	return cfg, nil
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and scheduled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.Open(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Run(ctx)
		},
	}
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.Database.Driver != config.DriverPostgres {
				return fmt.Errorf("migrate needs the postgres driver, got %q", cfg.Database.Driver)
			}
			ctx := cmd.Context()
			db, err := repositories.Open(ctx, cfg.Database.DSN, 1, 1)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := repositories.Migrate(ctx, db); err != nil {
				return err
			}
			logging.Logger.Info("[migrate] schema applied")
			return nil
		},
	}
}

func sweepOverdueCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep-overdue",
		Short: "Mark past-due invoices OVERDUE once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			timeout, _ := cmd.Flags().GetDuration("timeout")
			ctx := cmd.Context()
			a, err := app.Open(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			n, err := jobs.RunOverdueSweep(ctx, a.Invoices, timeout)
			if err != nil {
				return err
			}
			fmt.Printf("marked %d invoice(s) overdue\n", n)
			return nil
		},
	}
	cmd.Flags().Duration("timeout", 5*time.Minute, "Sweep deadline")
	return cmd
}
