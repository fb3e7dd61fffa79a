package sonarr

import (
	"context"

	"golift.io/starr/sonarr"
)

// SonarrAPI defines the subset of the starr Sonarr client used for
// acquisition. *sonarr.Sonarr satisfies it.
type SonarrAPI interface {
	AddSeriesContext(ctx context.Context, series *sonarr.AddSeriesInput) (*sonarr.Series, error)
	DeleteSeriesContext(ctx context.Context, seriesID int, deleteFiles bool, importExclude bool) error
	SendCommandContext(ctx context.Context, cmd *sonarr.CommandRequest) (*sonarr.CommandResponse, error)

	// Health check
	Ping() error
}
