package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/s0up4200/requestarr/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the request API",
	Long:  `Start the HTTP API. Users authenticate with the session cookie issued by the login frontend.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolver, err := newCookieResolver()
	if err != nil {
		return err
	}

	svc, st, err := newService(ctx, resolver)
	if err != nil {
		return err
	}
	defer st.Close()

	srv, err := server.New(server.Config{
		Addr:         cfg.Server.Addr,
		CookieName:   resolver.CookieName(),
		Sessions:     resolver,
		PublicDetail: cfg.Server.PublicDetail,
	}, svc, logger)
	if err != nil {
		return err
	}

	logger.Info().
		Str("version", version).
		Str("database", cfg.Database.Driver).
		Bool("public_detail", cfg.Server.PublicDetail).
		Msg("Starting requestarr")
	return srv.Run(ctx)
}
