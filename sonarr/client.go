// Package sonarr submits show requests to Sonarr.
package sonarr

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golift.io/starr"
	"golift.io/starr/sonarr"

	"github.com/s0up4200/requestarr/arr"
)

const (
	defaultTimeout  = 10 * time.Second
	seasonSearchCmd = "SeasonSearch"
	posterCoverType = "poster"
)

// ShowInput describes the series to add
type ShowInput struct {
	Title            string
	PosterURL        string
	TvdbID           string
	RootFolder       string
	QualityProfileID int64
}

// Options holds connection settings and defaults for new series
type Options struct {
	RootFolder       string
	QualityProfileID int64
	DeleteFiles      bool
	Timeout          time.Duration
}

// Client wraps the starr Sonarr client
type Client struct {
	client  SonarrAPI
	opts    Options
	timeout time.Duration
	logger  zerolog.Logger
}

// NewClient creates a Sonarr client. It does not contact the server; use
// Ping to verify the connection.
func NewClient(url, apiKey string, opts Options, logger zerolog.Logger) (*Client, error) {
	if url == "" {
		return nil, fmt.Errorf("sonarr URL is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("sonarr API key is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	config := starr.New(apiKey, url, opts.Timeout)
	return NewClientWithAPI(sonarr.New(config), opts, logger), nil
}

// NewClientWithAPI creates a client on top of an existing API implementation
func NewClientWithAPI(api SonarrAPI, opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		client:  api,
		opts:    opts,
		timeout: timeout,
		logger:  logger,
	}
}

// Ping tests the connection to Sonarr
func (c *Client) Ping() error {
	if err := c.client.Ping(); err != nil {
		return fmt.Errorf("failed to connect to Sonarr: %w", err)
	}
	return nil
}

// Defaults returns a ShowInput pre-filled with the configured library path
// and quality profile.
func (c *Client) Defaults(title, posterURL, tvdbID string) ShowInput {
	return ShowInput{
		Title:            title,
		PosterURL:        posterURL,
		TvdbID:           tvdbID,
		RootFolder:       c.opts.RootFolder,
		QualityProfileID: c.opts.QualityProfileID,
	}
}

// AddShow adds a monitored series. The Sonarr series id becomes the
// acquisition id. Seasons are searched separately with SearchSeasons.
func (c *Client) AddShow(ctx context.Context, in ShowInput) (arr.Response, error) {
	tvdbID, err := strconv.ParseInt(in.TvdbID, 10, 64)
	if err != nil {
		return arr.Rejected(fmt.Sprintf("Invalid TVDB id %q.", in.TvdbID)), nil
	}

	input := &sonarr.AddSeriesInput{
		Title:            in.Title,
		TvdbID:           tvdbID,
		RootFolderPath:   in.RootFolder,
		QualityProfileID: in.QualityProfileID,
		Monitored:        true,
		SeasonFolder:     true,
	}
	if in.PosterURL != "" {
		input.Images = []*starr.Image{{CoverType: posterCoverType, URL: in.PosterURL}}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	series, err := c.client.AddSeriesContext(ctx, input)
	if err != nil {
		return arr.Classify("add series", err)
	}

	c.logger.Info().
		Int64("tvdb_id", tvdbID).
		Int64("series_id", series.ID).
		Str("title", series.Title).
		Msg("Added series to Sonarr")
	return arr.Accepted(strconv.FormatInt(series.ID, 10), series), nil
}

// SearchSeasons issues one season search per entry, in order, and stops at
// the first failure. An empty list is a no-op.
func (c *Client) SearchSeasons(ctx context.Context, acquisitionID string, seasons []int) (arr.Response, error) {
	seriesID, err := strconv.ParseInt(acquisitionID, 10, 64)
	if err != nil {
		return arr.Rejected(fmt.Sprintf("Invalid Sonarr series id %q.", acquisitionID)), nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	commands := make([]*sonarr.CommandResponse, 0, len(seasons))
	for _, season := range seasons {
		resp, err := c.client.SendCommandContext(ctx, &sonarr.CommandRequest{
			Name:         seasonSearchCmd,
			SeriesID:     seriesID,
			SeasonNumber: season,
		})
		if err != nil {
			return arr.Classify(fmt.Sprintf("search season %d of series %d", season, seriesID), err)
		}
		commands = append(commands, resp)

		c.logger.Debug().
			Int64("series_id", seriesID).
			Int("season", season).
			Msg("Queued season search")
	}

	return arr.Accepted(acquisitionID, commands), nil
}

// DeleteShow removes a series from Sonarr
func (c *Client) DeleteShow(ctx context.Context, acquisitionID string) (arr.Response, error) {
	seriesID, err := strconv.Atoi(acquisitionID)
	if err != nil {
		return arr.Rejected(fmt.Sprintf("Invalid Sonarr series id %q.", acquisitionID)), nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.client.DeleteSeriesContext(ctx, seriesID, c.opts.DeleteFiles, false); err != nil {
		return arr.Classify(fmt.Sprintf("delete series ID %d", seriesID), err)
	}

	c.logger.Info().Int("series_id", seriesID).Bool("delete_files", c.opts.DeleteFiles).
		Msg("Successfully deleted series")
	return arr.Accepted(acquisitionID, nil), nil
}
