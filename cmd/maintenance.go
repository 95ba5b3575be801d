package cmd

import (
	"fmt"
	"log/slog"

	"itsm-knowledge-base/router"

	"github.com/spf13/cobra"
)

var (
	reconcileCmd = &cobra.Command{
		Use:   "reconcile-categories",
		Short: "Recount articles per category and correct drifted counts",
		Long: `Recount articles per category and correct drifted counts.

With the json, postgres and sqlite drivers this may run next to kb serve.
Badger keeps an exclusive lock on its directory, so while serving use
POST /api/v1/categories/reconcile instead. A count that changes during the
run is caught by the next one.`,
		RunE: runReconcile,
	}

	sweepCmd = &cobra.Command{
		Use:   "sweep-locks",
		Short: "Remove expired edit locks once and exit",
		Long: `Remove expired edit locks once and exit.

kb serve already sweeps on LOCK_SWEEP_INTERVAL. This command is for
deployments where the server is down or runs without the sweeper.`,
		RunE: runSweep,
	}
)

func runReconcile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	backend, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	report, err := router.NewServices(backend, cfg, nil).Categories.Reconcile(cmd.Context())
	if err != nil {
		return err
	}
	slog.Info("Categories reconciled", "checked", report.Checked, "corrected", len(report.Corrected))
	for name, count := range report.Corrected {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\n", name, count)
	}
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	backend, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	removed, err := router.NewServices(backend, cfg, nil).Locks.ExpireSweep(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired locks\n", removed)
	return nil
}
