package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test connections to Plex, Radarr, Sonarr and the database",
	RunE:  runTest,
}

type checkResult struct {
	name string
	url  string
	err  error
}

func runTest(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c, err := newClients()
	if err != nil {
		return err
	}

	checks := []struct {
		name string
		url  string
		ping func() error
	}{
		{name: "Plex", url: cfg.Plex.URL, ping: func() error { return c.plex.Ping(ctx) }},
		{name: "Radarr", url: cfg.Radarr.URL, ping: c.radarr.Ping},
		{name: "Sonarr", url: cfg.Sonarr.URL, ping: c.sonarr.Ping},
		{name: "Database", url: cfg.Database.Driver, ping: func() error {
			st, err := openStore(ctx)
			if err != nil {
				return err
			}
			return st.Close()
		}},
	}

	results := make([]checkResult, len(checks))
	var g errgroup.Group
	for i, check := range checks {
		g.Go(func() error {
			results[i] = checkResult{name: check.name, url: check.url, err: check.ping()}
			return nil
		})
	}
	_ = g.Wait()

	var failed int
	for _, r := range results {
		if r.err != nil {
			failed++
			fmt.Printf("✗ %s (%s): %v\n", r.name, r.url, r.err)
			continue
		}
		fmt.Printf("✓ %s (%s): connection successful\n", r.name, r.url)
	}

	fmt.Printf("\nNotifications: %s\n", boolToStatus(cfg.Notify.Enabled))
	fmt.Printf("Public request detail: %s\n", boolToStatus(cfg.Server.PublicDetail))

	if failed > 0 {
		return fmt.Errorf("%d of %d connection checks failed", failed, len(results))
	}
	return nil
}

func boolToStatus(b bool) string {
	if b {
		return "Enabled"
	}
	return "Disabled"
}
