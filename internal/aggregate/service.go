package aggregate

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hids-dashboard-go/internal/metrics"
	"hids-dashboard-go/internal/models"
	"hids-dashboard-go/internal/sources"
)

// ErrUnknownSource is returned when a request names a source that has no adapter.
var ErrUnknownSource = errors.New("unknown alert source")

// Query selects one page of alerts.
type Query struct {
	Page   int
	Limit  int
	Filter string
	Source string // a source name or models.SourceAll
}

// Service fans requests out to the source adapters and merges the results.
type Service struct {
	adapters []sources.Adapter
	bySource map[models.Source]sources.Adapter
	logger   *zap.SugaredLogger

	// drained tracks lookups not yet received from a race.
	drained sync.WaitGroup
}

func New(logger *zap.SugaredLogger, adapters ...sources.Adapter) *Service {
	s := &Service{
		adapters: adapters,
		bySource: make(map[models.Source]sources.Adapter, len(adapters)),
		logger:   logger,
	}
	for _, a := range adapters {
		s.bySource[a.Source()] = a
	}
	return s
}

// Adapter returns the adapter registered for name.
func (s *Service) Adapter(name string) (sources.Adapter, error) {
	src, ok := models.ParseSource(name)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownSource, "%q", name)
	}
	a, ok := s.bySource[src]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownSource, "%q is not configured", name)
	}
	return a, nil
}

// Summary collects every source's summary keyed by source. Any failure
// fails the whole call.
func (s *Service) Summary(ctx context.Context) (map[models.Source]any, error) {
	results := make([]any, len(s.adapters))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range s.adapters {
		g.Go(func() error {
			summary, err := a.Summary(gctx)
			if err != nil {
				return errors.Wrapf(err, "%s summary", a.Source())
			}
			results[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Errorw("Failed to build dashboard summary", "error", err)
		return nil, err
	}

	out := make(map[models.Source]any, len(s.adapters))
	for i, a := range s.adapters {
		out[a.Source()] = results[i]
	}
	return out, nil
}

// RecentAlerts returns the newest limit alerts across all sources.
func (s *Service) RecentAlerts(ctx context.Context, limit int) ([]models.Alert, error) {
	results := make([][]models.Alert, len(s.adapters))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range s.adapters {
		g.Go(func() error {
			alerts, err := a.RecentAlerts(gctx, limit)
			if err != nil {
				return errors.Wrapf(err, "%s recent alerts", a.Source())
			}
			results[i] = alerts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Errorw("Failed to fetch recent alerts", "limit", limit, "error", err)
		return nil, err
	}

	merged := concat(results)
	models.SortByTimestampDesc(merged)
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// Alerts returns one page of alerts. A single source paginates natively.
// For every source, each adapter is asked for the same page, the results
// are merged and sorted, and the page window is applied to the merged list.
// That window is not the true global page beyond page 1; TotalCount is the
// exact sum of per-source counts.
func (s *Service) Alerts(ctx context.Context, q Query) (models.AlertPage, error) {
	if q.Source != models.SourceAll {
		a, err := s.Adapter(q.Source)
		if err != nil {
			return models.AlertPage{}, err
		}
		page, err := a.Alerts(ctx, q.Page, q.Limit, q.Filter)
		if err != nil {
			return models.AlertPage{}, errors.Wrapf(err, "%s alerts", a.Source())
		}
		return page, nil
	}

	results := make([]models.AlertPage, len(s.adapters))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range s.adapters {
		g.Go(func() error {
			page, err := a.Alerts(gctx, q.Page, q.Limit, q.Filter)
			if err != nil {
				return errors.Wrapf(err, "%s alerts", a.Source())
			}
			results[i] = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Errorw("Failed to fetch alerts", "page", q.Page, "limit", q.Limit, "filter", q.Filter, "error", err)
		return models.AlertPage{}, err
	}

	total := 0
	lists := make([][]models.Alert, len(results))
	for i, page := range results {
		total += page.TotalCount
		lists[i] = page.Alerts
	}
	merged := concat(lists)
	models.SortByTimestampDesc(merged)

	start := min((max(q.Page, 1)-1)*max(q.Limit, 0), len(merged))
	end := min(start+max(q.Limit, 0), len(merged))
	return models.AlertPage{Alerts: merged[start:end], TotalCount: total}, nil
}

type lookupResult struct {
	source models.Source
	lookup sources.Lookup
}

// AlertByID looks an alert up in one source, or in every source when source
// is empty. Across sources the first lookup to find the alert wins; the
// others keep running and are logged when they finish. The result fails
// only when every source failed.
func (s *Service) AlertByID(ctx context.Context, id, source string) sources.Lookup {
	if source != "" && source != models.SourceAll {
		a, err := s.Adapter(source)
		if err != nil {
			return sources.Failed(err)
		}
		lookup := a.AlertByID(ctx, id)
		metrics.AlertLookups.WithLabelValues(lookup.String()).Inc()
		return lookup
	}

	// Buffered so losing lookups never block after the winner returns.
	results := make(chan lookupResult, len(s.adapters))
	raceCtx := context.WithoutCancel(ctx)
	for _, a := range s.adapters {
		s.drained.Add(1)
		go func() {
			results <- lookupResult{source: a.Source(), lookup: a.AlertByID(raceCtx, id)}
		}()
	}

	failed := 0
	var errs error
	for received := 1; received <= len(s.adapters); received++ {
		r := <-results
		s.drained.Done()
		if r.lookup.IsFound() {
			metrics.AlertLookups.WithLabelValues("found").Inc()
			s.drain(id, results, len(s.adapters)-received)
			return r.lookup
		}
		if r.lookup.IsFailed() {
			failed++
			errs = errors.CombineErrors(errs, errors.Wrapf(r.lookup.Err, "%s", r.source))
		}
	}

	if len(s.adapters) > 0 && failed == len(s.adapters) {
		metrics.AlertLookups.WithLabelValues("failed").Inc()
		s.logger.Errorw("Alert lookup failed in every source", "id", id, "error", errs)
		return sources.Failed(errs)
	}
	if errs != nil {
		s.logger.Warnw("Alert lookup failed in some sources", "id", id, "error", errs)
	}
	metrics.AlertLookups.WithLabelValues("not_found").Inc()
	return sources.NotFound()
}

// drain consumes the remaining lookups of a finished race in the background.
func (s *Service) drain(id string, results <-chan lookupResult, remaining int) {
	if remaining == 0 {
		return
	}
	go func() {
		for range remaining {
			r := <-results
			s.logger.Debugw("Late alert lookup finished", "id", id, "source", r.source, "outcome", r.lookup.String(), "error", r.lookup.Err)
			s.drained.Done()
		}
	}()
}

// Wait blocks until background lookups have finished.
func (s *Service) Wait() {
	s.drained.Wait()
}

func concat(lists [][]models.Alert) []models.Alert {
	n := 0
	for _, l := range lists {
		n += len(l)
	}
	out := make([]models.Alert, 0, n)
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
