// Package requests orchestrates movie and show requests.
//
// A create walks through fixed gates: resolve the session, ask the library
// whether the title is already there, submit it to the acquisition service,
// then persist the record. A delete removes the title from the acquisition
// service before the record is dropped. Each external call is made at most
// once per action.
package requests

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/s0up4200/requestarr/arr"
	"github.com/s0up4200/requestarr/plex"
	"github.com/s0up4200/requestarr/session"
	"github.com/s0up4200/requestarr/sonarr"
	"github.com/s0up4200/requestarr/store"
)

// Library reports whether a title is already available
type Library interface {
	IsAvailable(ctx context.Context, kind plex.MediaType, title, year string) (bool, error)
}

// MovieAcquirer submits movies to the movie acquisition service
type MovieAcquirer interface {
	AddMovie(ctx context.Context, externalID string) (arr.Response, error)
	DeleteMovie(ctx context.Context, acquisitionID string) (arr.Response, error)
}

// ShowAcquirer submits shows to the show acquisition service
type ShowAcquirer interface {
	Defaults(title, posterURL, tvdbID string) sonarr.ShowInput
	AddShow(ctx context.Context, in sonarr.ShowInput) (arr.Response, error)
	SearchSeasons(ctx context.Context, acquisitionID string, seasons []int) (arr.Response, error)
	DeleteShow(ctx context.Context, acquisitionID string) (arr.Response, error)
}

// Notifier tells a requester their title is available
type Notifier interface {
	Notify(ctx context.Context, rec *store.Record) error
}

// MovieInput is a movie request as received from the caller
type MovieInput struct {
	Title       string
	ReleaseDate string
	ExternalID  string
}

// ShowInput is a show request as received from the caller
type ShowInput struct {
	Title       string
	ReleaseDate string
	ExternalID  string
	PosterURL   string
	Seasons     []int
}

// ShowResult is a created show. SeasonSearchErr is set when the record was
// persisted but the season search failed.
type ShowResult struct {
	Record            *store.Record
	SeasonSearchErr   error
	SeasonSearchReply json.RawMessage
}

// Config wires the service
type Config struct {
	Library  Library
	Movies   MovieAcquirer
	Shows    ShowAcquirer
	Store    store.Store
	Sessions session.Resolver
	// Notifier is optional. Without one, Reconcile only logs available
	// titles and leaves them pending.
	Notifier Notifier
	Logger   zerolog.Logger

	// PublicDetail lets Get run without a session
	PublicDetail bool
	// ReconcileConcurrency bounds parallel library checks in Reconcile
	ReconcileConcurrency int
}

// Service is the request orchestrator
type Service struct {
	library      Library
	movies       MovieAcquirer
	shows        ShowAcquirer
	store        store.Store
	sessions     session.Resolver
	notifier     Notifier
	logger       zerolog.Logger
	publicDetail bool
	concurrency  int
}

// NewService creates a Service
func NewService(cfg Config) (*Service, error) {
	switch {
	case cfg.Library == nil:
		return nil, errors.New("library client is required")
	case cfg.Movies == nil:
		return nil, errors.New("movie acquisition client is required")
	case cfg.Shows == nil:
		return nil, errors.New("show acquisition client is required")
	case cfg.Store == nil:
		return nil, errors.New("store is required")
	case cfg.Sessions == nil:
		return nil, errors.New("session resolver is required")
	}

	concurrency := cfg.ReconcileConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	return &Service{
		library:      cfg.Library,
		movies:       cfg.Movies,
		shows:        cfg.Shows,
		store:        cfg.Store,
		sessions:     cfg.Sessions,
		notifier:     cfg.Notifier,
		logger:       cfg.Logger.With().Str("component", "requests").Logger(),
		publicDetail: cfg.PublicDetail,
		concurrency:  concurrency,
	}, nil
}

func (s *Service) resolve(ctx context.Context, token string) (session.Identity, error) {
	id, ok := s.sessions.Resolve(ctx, token)
	if !ok {
		return session.Identity{}, ErrUnauthorized
	}
	return id, nil
}

// CreateMovie requests a movie on behalf of the session owner
func (s *Service) CreateMovie(ctx context.Context, token string, in MovieInput) (*store.Record, error) {
	user, err := s.resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := validate(in.Title, in.ReleaseDate, in.ExternalID); err != nil {
		return nil, err
	}

	if err := s.checkNew(ctx, store.KindMovie, in.Title, in.ReleaseDate, in.ExternalID); err != nil {
		return nil, err
	}

	resp, err := s.movies.AddMovie(ctx, in.ExternalID)
	if err != nil {
		return nil, unavailable("add movie", err)
	}
	if !resp.OK {
		s.logger.Info().Str("external_id", in.ExternalID).RawJSON("reply", replyJSON(resp.Reply)).
			Msg("Movie request declined")
		return nil, &RejectedError{Op: "add movie", Reply: resp.Reply}
	}

	rec := &store.Record{
		Kind:             store.KindMovie,
		Title:            in.Title,
		ExternalID:       in.ExternalID,
		AcquisitionID:    resp.AcquisitionID,
		ReleaseDate:      in.ReleaseDate,
		RequestedBy:      user.Username,
		RequestedByEmail: user.Email,
	}
	if err := s.persist(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// CreateShow requests a show on behalf of the session owner. The season
// search runs once the record is stored; its failure is reported in the
// result and leaves the record in place.
func (s *Service) CreateShow(ctx context.Context, token string, in ShowInput) (*ShowResult, error) {
	user, err := s.resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := validate(in.Title, in.ReleaseDate, in.ExternalID); err != nil {
		return nil, err
	}

	if err := s.checkNew(ctx, store.KindShow, in.Title, in.ReleaseDate, in.ExternalID); err != nil {
		return nil, err
	}

	resp, err := s.shows.AddShow(ctx, s.shows.Defaults(in.Title, in.PosterURL, in.ExternalID))
	if err != nil {
		return nil, unavailable("add show", err)
	}
	if !resp.OK {
		s.logger.Info().Str("external_id", in.ExternalID).RawJSON("reply", replyJSON(resp.Reply)).
			Msg("Show request declined")
		return nil, &RejectedError{Op: "add show", Reply: resp.Reply}
	}

	rec := &store.Record{
		Kind:             store.KindShow,
		Title:            in.Title,
		ExternalID:       in.ExternalID,
		AcquisitionID:    resp.AcquisitionID,
		ReleaseDate:      in.ReleaseDate,
		PosterURL:        in.PosterURL,
		Seasons:          in.Seasons,
		RequestedBy:      user.Username,
		RequestedByEmail: user.Email,
	}
	if err := s.persist(ctx, rec); err != nil {
		return nil, err
	}

	result := &ShowResult{Record: rec}
	if len(in.Seasons) == 0 {
		return result, nil
	}

	search, err := s.shows.SearchSeasons(ctx, rec.AcquisitionID, in.Seasons)
	switch {
	case err != nil:
		result.SeasonSearchErr = unavailable("search seasons", err)
	case !search.OK:
		result.SeasonSearchErr = &RejectedError{Op: "search seasons", Reply: search.Reply}
		result.SeasonSearchReply = search.Reply
	}
	if result.SeasonSearchErr != nil {
		s.logger.Warn().Err(result.SeasonSearchErr).
			Int64("request_id", rec.ID).
			Str("acquisition_id", rec.AcquisitionID).
			Ints("seasons", in.Seasons).
			Msg("Season search failed; request kept")
	}
	return result, nil
}

// checkNew runs the gates that must pass before anything is submitted
func (s *Service) checkNew(ctx context.Context, kind store.Kind, title, releaseDate, externalID string) error {
	available, err := s.library.IsAvailable(ctx, plex.MediaType(kind), title, store.ReleaseYear(releaseDate))
	if err != nil {
		return unavailable("library lookup", err)
	}
	if available {
		return &ConflictError{Reason: ReasonAvailable}
	}

	exists, err := s.store.Exists(ctx, kind, externalID)
	if err != nil {
		return fmt.Errorf("check existing request: %w", err)
	}
	if exists {
		return &ConflictError{Reason: ReasonRequested}
	}
	return nil
}

// persist stores rec after a successful submission. A duplicate at this
// point means the submission cannot be matched to a record; it is logged
// with the orphaned acquisition id.
func (s *Service) persist(ctx context.Context, rec *store.Record) error {
	exists, err := s.store.Exists(ctx, rec.Kind, rec.ExternalID)
	if err == nil && !exists {
		err = s.store.Insert(ctx, rec)
	} else if err == nil {
		err = store.ErrDuplicate
	}

	switch {
	case err == nil:
		s.logger.Info().
			Int64("request_id", rec.ID).
			Str("kind", string(rec.Kind)).
			Str("title", rec.Title).
			Str("acquisition_id", rec.AcquisitionID).
			Str("user", rec.RequestedBy).
			Msg("Request created")
		return nil
	case errors.Is(err, store.ErrDuplicate):
		s.logger.Warn().
			Str("kind", string(rec.Kind)).
			Str("external_id", rec.ExternalID).
			Str("orphaned_acquisition_id", rec.AcquisitionID).
			Str("user", rec.RequestedBy).
			Msg("Duplicate request after acquisition succeeded; submission not retracted")
		return &ConflictError{Reason: ReasonRequested}
	default:
		s.logger.Error().Err(err).
			Str("kind", string(rec.Kind)).
			Str("orphaned_acquisition_id", rec.AcquisitionID).
			Msg("Failed to persist request after acquisition succeeded")
		return fmt.Errorf("persist request: %w", err)
	}
}

// Delete removes the title from its acquisition service, then drops the
// record. A declined removal keeps the record.
func (s *Service) Delete(ctx context.Context, token string, kind store.Kind, id int64) error {
	user, err := s.resolve(ctx, token)
	if err != nil {
		return err
	}

	rec, err := s.get(ctx, kind, id)
	if err != nil {
		return err
	}

	var resp arr.Response
	switch rec.Kind {
	case store.KindMovie:
		resp, err = s.movies.DeleteMovie(ctx, rec.AcquisitionID)
	case store.KindShow:
		resp, err = s.shows.DeleteShow(ctx, rec.AcquisitionID)
	default:
		return fmt.Errorf("delete request %d: unknown kind %q", id, rec.Kind)
	}
	if err != nil {
		return unavailable("delete "+string(rec.Kind), err)
	}
	if !resp.OK {
		return &RejectedError{Op: "delete " + string(rec.Kind), Reply: resp.Reply}
	}

	if err := s.store.Delete(ctx, kind, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete request %d: %w", id, err)
	}

	s.logger.Info().
		Int64("request_id", id).
		Str("kind", string(kind)).
		Str("acquisition_id", rec.AcquisitionID).
		Str("user", user.Username).
		Msg("Request deleted")
	return nil
}

// List returns requests of kind, newest first. With ownOnly only the
// session owner's requests are returned.
func (s *Service) List(ctx context.Context, token string, kind store.Kind, ownOnly bool) ([]*store.Record, error) {
	user, err := s.resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	opts := store.ListOptions{Kind: kind}
	if ownOnly {
		opts.RequestedBy = user.Username
	}
	records, err := s.store.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return records, nil
}

// Get returns a single request. A session is required unless the service
// was configured with PublicDetail.
func (s *Service) Get(ctx context.Context, token string, kind store.Kind, id int64) (*store.Record, error) {
	if !s.publicDetail {
		if _, err := s.resolve(ctx, token); err != nil {
			return nil, err
		}
	}
	return s.get(ctx, kind, id)
}

func (s *Service) get(ctx context.Context, kind store.Kind, id int64) (*store.Record, error) {
	rec, err := s.store.Get(ctx, kind, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get request %d: %w", id, err)
	}
	return rec, nil
}

func validate(title, releaseDate, externalID string) error {
	switch {
	case strings.TrimSpace(title) == "":
		return invalid("title is required")
	case strings.TrimSpace(externalID) == "":
		return invalid("external id is required")
	case store.ReleaseYear(releaseDate) == "":
		return invalid("release date is required")
	}
	return nil
}

// replyJSON keeps zerolog's RawJSON valid for empty replies
func replyJSON(reply json.RawMessage) []byte {
	if len(reply) == 0 {
		return []byte("null")
	}
	return reply
}
