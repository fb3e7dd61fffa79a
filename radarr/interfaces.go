package radarr

import (
	"context"

	"golift.io/starr/radarr"
)

// RadarrAPI defines the subset of the starr Radarr client used for
// acquisition. *radarr.Radarr satisfies it.
type RadarrAPI interface {
	LookupContext(ctx context.Context, term string) ([]*radarr.Movie, error)
	AddMovieContext(ctx context.Context, movie *radarr.AddMovieInput) (*radarr.Movie, error)
	DeleteMovieContext(ctx context.Context, movieID int64, deleteFiles, addImportExclusion bool) error

	// Health check
	Ping() error
}
