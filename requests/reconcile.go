package requests

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/s0up4200/requestarr/plex"
)

// ReconcileReport summarises a Reconcile run
type ReconcileReport struct {
	Checked   int
	Available int
	Notified  int
	Failed    int
}

// Reconcile checks every request whose requester has not yet been told
// about it. When the library now has the title the requester is notified
// and the request is marked notified. Records are never removed here.
// A library failure skips the record; it is never taken as available.
// Without a notifier available titles are logged and stay pending.
func (s *Service) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	records, err := s.store.ListUnnotified(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}

	var (
		mu     sync.Mutex
		report = &ReconcileReport{}
	)
	count := func(f func(r *ReconcileReport)) {
		mu.Lock()
		f(report)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, rec := range records {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			count(func(r *ReconcileReport) { r.Checked++ })

			log := s.logger.With().Int64("request_id", rec.ID).Str("title", rec.Title).Logger()

			available, err := s.library.IsAvailable(gctx, plex.MediaType(rec.Kind), rec.Title, rec.Year())
			if err != nil {
				log.Warn().Err(err).Msg("Library check failed; skipping")
				count(func(r *ReconcileReport) { r.Failed++ })
				return nil
			}
			if !available {
				return nil
			}
			count(func(r *ReconcileReport) { r.Available++ })

			if s.notifier == nil {
				log.Info().Str("user", rec.RequestedBy).Msg("Request is now available (notifications disabled)")
				return nil
			}
			if err := s.notifier.Notify(gctx, rec); err != nil {
				log.Warn().Err(err).Str("email", rec.RequestedByEmail).Msg("Failed to notify requester")
				count(func(r *ReconcileReport) { r.Failed++ })
				return nil
			}
			if err := s.store.MarkNotified(gctx, rec.ID); err != nil {
				log.Error().Err(err).Msg("Failed to mark request notified")
				count(func(r *ReconcileReport) { r.Failed++ })
				return nil
			}

			count(func(r *ReconcileReport) { r.Notified++ })
			log.Info().Str("user", rec.RequestedBy).Msg("Requester notified of availability")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}

	s.logger.Info().
		Int("checked", report.Checked).
		Int("available", report.Available).
		Int("notified", report.Notified).
		Int("failed", report.Failed).
		Msg("Reconcile complete")
	return report, nil
}
