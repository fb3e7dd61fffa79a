// Package radarr submits movie requests to Radarr.
package radarr

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golift.io/starr"
	"golift.io/starr/radarr"

	"github.com/s0up4200/requestarr/arr"
)

const defaultTimeout = 10 * time.Second

// AddOptions holds the Radarr settings applied to every new movie
type AddOptions struct {
	RootFolder          string
	QualityProfileID    int64
	MinimumAvailability string
	DeleteFiles         bool
	Timeout             time.Duration
}

// Client submits movie requests to Radarr
type Client struct {
	client  RadarrAPI
	opts    AddOptions
	timeout time.Duration
	logger  zerolog.Logger
}

// NewClient creates a Radarr client. It does not contact the server; use
// Ping to verify the connection.
func NewClient(url, apiKey string, opts AddOptions, logger zerolog.Logger) (*Client, error) {
	if url == "" {
		return nil, fmt.Errorf("radarr URL is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("radarr API key is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	config := starr.New(apiKey, url, opts.Timeout)
	return NewClientWithAPI(radarr.New(config), opts, logger), nil
}

// NewClientWithAPI creates a client on top of an existing API implementation
func NewClientWithAPI(api RadarrAPI, opts AddOptions, logger zerolog.Logger) *Client {
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

// Ping tests the connection to Radarr
func (c *Client) Ping() error {
	if err := c.client.Ping(); err != nil {
		return fmt.Errorf("failed to connect to Radarr: %w", err)
	}
	return nil
}

// AddMovie looks the movie up by IMDB id and adds it to Radarr with a
// search. The Radarr movie id becomes the acquisition id.
func (c *Client) AddMovie(ctx context.Context, imdbID string) (arr.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	movies, err := c.client.LookupContext(ctx, "imdb:"+imdbID)
	if err != nil {
		return arr.Classify("lookup movie", err)
	}

	movie := pickLookup(movies, imdbID)
	if movie == nil {
		c.logger.Debug().Str("imdb_id", imdbID).Msg("Movie not found in Radarr lookup")
		return arr.Rejected(fmt.Sprintf("No movie found for IMDB id %s.", imdbID)), nil
	}
	if movie.ID != 0 {
		return arr.Rejected(fmt.Sprintf("%s is already tracked by Radarr.", movie.Title)), nil
	}

	added, err := c.client.AddMovieContext(ctx, &radarr.AddMovieInput{
		Title:               movie.Title,
		TitleSlug:           movie.TitleSlug,
		TmdbID:              movie.TmdbID,
		Year:                movie.Year,
		Images:              movie.Images,
		RootFolderPath:      c.opts.RootFolder,
		QualityProfileID:    c.opts.QualityProfileID,
		MinimumAvailability: radarr.Availability(c.opts.MinimumAvailability),
		Monitored:           true,
		AddOptions:          &radarr.AddMovieOptions{SearchForMovie: true},
	})
	if err != nil {
		return arr.Classify("add movie", err)
	}

	c.logger.Info().
		Str("imdb_id", imdbID).
		Int64("movie_id", added.ID).
		Str("title", added.Title).
		Msg("Added movie to Radarr")
	return arr.Accepted(strconv.FormatInt(added.ID, 10), added), nil
}

// DeleteMovie removes a movie from Radarr
func (c *Client) DeleteMovie(ctx context.Context, acquisitionID string) (arr.Response, error) {
	movieID, err := strconv.ParseInt(acquisitionID, 10, 64)
	if err != nil {
		return arr.Rejected(fmt.Sprintf("Invalid Radarr movie id %q.", acquisitionID)), nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.client.DeleteMovieContext(ctx, movieID, c.opts.DeleteFiles, false); err != nil {
		return arr.Classify(fmt.Sprintf("delete movie ID %d", movieID), err)
	}

	c.logger.Info().Int64("movie_id", movieID).Bool("delete_files", c.opts.DeleteFiles).
		Msg("Successfully deleted movie")
	return arr.Accepted(acquisitionID, nil), nil
}

// pickLookup prefers the lookup hit carrying the requested IMDB id
func pickLookup(movies []*radarr.Movie, imdbID string) *radarr.Movie {
	for _, m := range movies {
		if m != nil && strings.EqualFold(m.ImdbID, imdbID) {
			return m
		}
	}
	if len(movies) == 1 {
		return movies[0]
	}
	return nil
}
