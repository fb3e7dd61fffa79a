package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/s0up4200/requestarr/session"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Notify requesters whose titles are now on Plex",
	Long: `Check every request that has not been followed up against Plex and e-mail
the requester once the title is available. Run it from cron or a systemd timer.`,
	RunE: runReconcile,
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	svc, st, err := newService(ctx, session.Static{})
	if err != nil {
		return err
	}
	defer st.Close()

	report, err := svc.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("reconcile failed: %w", err)
	}

	fmt.Printf("Checked %d requests: %d available, %d notified, %d failed\n",
		report.Checked, report.Available, report.Notified, report.Failed)
	return nil
}
