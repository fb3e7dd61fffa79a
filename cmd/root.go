package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/s0up4200/requestarr/config"
	"github.com/s0up4200/requestarr/filter"
	"github.com/s0up4200/requestarr/notify"
	"github.com/s0up4200/requestarr/plex"
	"github.com/s0up4200/requestarr/radarr"
	"github.com/s0up4200/requestarr/requests"
	"github.com/s0up4200/requestarr/session"
	"github.com/s0up4200/requestarr/sonarr"
	"github.com/s0up4200/requestarr/store"
)

const filterCacheSize = 32

var (
	cfgFile string
	cfg     *config.Config
	logger  zerolog.Logger
	filters = filter.NewCompiler(filter.WithCache(filterCacheSize))

	version   = "dev"
	buildTime = "unknown"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "requestarr",
	Short: "Movie and show requests for Plex, Radarr and Sonarr",
	Long: `requestarr lets users request movies and shows for a shared Plex library.
Requests are checked against Plex, submitted to Radarr or Sonarr and recorded
so they can be listed, removed and followed up when they become available.`,
	PersistentPreRunE: initializeApp,
	SilenceUsage:      true,
}

// SetVersion records build information shown by --version
func SetVersion(v, built string) {
	version = v
	buildTime = built
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(requestsCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(tokenCmd)
}

// initializeApp loads the configuration and sets up logging
func initializeApp(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger = setupLogger(cfg.Logging)

	if err := validateFilters(cfg.Filter, filters); err != nil {
		return fmt.Errorf("invalid filter config: %w", err)
	}
	logger.Debug().Int("compiled", filters.CacheSize()).Msg("Filter expressions loaded")
	return nil
}

// validateFilters compiles the default and preset expressions up front.
// Compiled filters stay in c's cache for later lookups.
func validateFilters(fc config.FilterConfig, c *filter.Compiler) error {
	if fc.DefaultExpression != "" {
		if _, err := c.Compile(fc.DefaultExpression); err != nil {
			return fmt.Errorf("default: %w", err)
		}
	}
	for name, p := range fc.Presets {
		if _, err := c.Compile(p.Expression); err != nil {
			return fmt.Errorf("preset %q: %w", name, err)
		}
	}
	return nil
}

// setupLogger configures the zerolog logger
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	if cfg.Format == "json" {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	// Colour only when stderr is a terminal
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    !cfg.Color || !isatty.IsTerminal(os.Stderr.Fd()),
	}

	return zerolog.New(output).With().Timestamp().Logger()
}

// clients groups the external service clients built from config
type clients struct {
	plex   *plex.Client
	radarr *radarr.Client
	sonarr *sonarr.Client
}

func newClients() (*clients, error) {
	plexClient, err := plex.NewClient(cfg.Plex.URL, logger.With().Str("service", "plex").Logger(),
		plex.WithToken(cfg.Plex.Token),
		plex.WithTimeout(cfg.Plex.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Plex client: %w", err)
	}

	radarrClient, err := radarr.NewClient(cfg.Radarr.URL, cfg.Radarr.APIKey, radarr.AddOptions{
		RootFolder:          cfg.Radarr.RootFolder,
		QualityProfileID:    cfg.Radarr.QualityProfileID,
		MinimumAvailability: cfg.Radarr.MinimumAvailability,
		Timeout:             cfg.Radarr.Timeout,
	}, logger.With().Str("service", "radarr").Logger())
	if err != nil {
		return nil, fmt.Errorf("failed to create Radarr client: %w", err)
	}

	sonarrClient, err := sonarr.NewClient(cfg.Sonarr.URL, cfg.Sonarr.APIKey, sonarr.Options{
		RootFolder:       cfg.Sonarr.RootFolder,
		QualityProfileID: cfg.Sonarr.QualityProfileID,
		Timeout:          cfg.Sonarr.Timeout,
	}, logger.With().Str("service", "sonarr").Logger())
	if err != nil {
		return nil, fmt.Errorf("failed to create Sonarr client: %w", err)
	}

	return &clients{plex: plexClient, radarr: radarrClient, sonarr: sonarrClient}, nil
}

func openStore(ctx context.Context) (*store.SQLStore, error) {
	st, err := store.Open(ctx, store.Options{
		Driver: cfg.Database.Driver,
		Path:   cfg.Database.Path,
		URL:    cfg.Database.URL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open request store: %w", err)
	}
	return st, nil
}

// newNotifier returns nil when e-mail notifications are disabled.
func newNotifier() (requests.Notifier, error) {
	if !cfg.Notify.Enabled {
		return nil, nil
	}
	mailer, err := notify.NewMailer(cfg.Notify.APIKey, cfg.Notify.From, logger.With().Str("component", "notify").Logger())
	if err != nil {
		return nil, fmt.Errorf("failed to create mailer: %w", err)
	}
	return mailer, nil
}

// newService wires the orchestrator. The caller closes the returned store.
func newService(ctx context.Context, resolver session.Resolver) (*requests.Service, *store.SQLStore, error) {
	c, err := newClients()
	if err != nil {
		return nil, nil, err
	}
	notifier, err := newNotifier()
	if err != nil {
		return nil, nil, err
	}
	st, err := openStore(ctx)
	if err != nil {
		return nil, nil, err
	}

	svc, err := requests.NewService(requests.Config{
		Library:              c.plex,
		Movies:               c.radarr,
		Shows:                c.sonarr,
		Store:                st,
		Sessions:             resolver,
		Notifier:             notifier,
		Logger:               logger,
		PublicDetail:         cfg.Server.PublicDetail,
		ReconcileConcurrency: cfg.Reconcile.Concurrency,
	})
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	return svc, st, nil
}

func newCookieResolver() (*session.CookieResolver, error) {
	resolver, err := session.NewCookieResolver(cfg.Session.Secret, cfg.Session.CookieName, cfg.Session.MaxAge)
	if err != nil {
		return nil, fmt.Errorf("failed to create session resolver: %w", err)
	}
	return resolver, nil
}
