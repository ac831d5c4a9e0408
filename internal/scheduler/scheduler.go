// Package scheduler drives the periodic fetch cycle across every active
// source, running each source's pipeline (fetch, extract, geocode, dedup,
// recompute) with bounded concurrency and per-source backoff.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mchenry-intel/ingestion-pipeline/internal/adapters"
	"github.com/mchenry-intel/ingestion-pipeline/internal/dedup"
	"github.com/mchenry-intel/ingestion-pipeline/internal/domain"
	"github.com/mchenry-intel/ingestion-pipeline/internal/events"
	"github.com/mchenry-intel/ingestion-pipeline/internal/extraction"
	"github.com/mchenry-intel/ingestion-pipeline/internal/geocode"
	"github.com/mchenry-intel/ingestion-pipeline/internal/metrics"
	"github.com/mchenry-intel/ingestion-pipeline/internal/queue"
	"github.com/mchenry-intel/ingestion-pipeline/internal/store"
	"github.com/mchenry-intel/ingestion-pipeline/internal/workflow"
)

const (
	maxConsecutiveFailures = 10
	minBackoff             = time.Minute
	maxBackoff             = 64 * time.Minute
	maxConcurrentSources   = 8
	ingestWorkersPerSource = 4
	ingestJobTimeout       = 30 * time.Second
)

// sourceState tracks per-source scheduling state that has no reason to be
// persisted: it resets on process restart, which just means a source with
// an in-flight backoff gets one extra immediate retry after a redeploy.
type sourceState struct {
	nextFireAt          time.Time
	consecutiveFailures int
}

// Scheduler runs the ingestion cycle for every active source on a fixed
// tick, applying independent exponential backoff per source.
type Scheduler struct {
	store      *store.Store
	deps       adapters.Dependencies
	extractor  *extraction.Extractor
	geocoder   *geocode.Geocoder
	bus        *events.Bus
	tickPeriod time.Duration

	mu     sync.Mutex
	states map[string]*sourceState
}

// New builds a Scheduler.
func New(st *store.Store, deps adapters.Dependencies, extractor *extraction.Extractor, geocoder *geocode.Geocoder,
	bus *events.Bus, tickPeriod time.Duration) *Scheduler {
	return &Scheduler{
		store:      st,
		deps:       deps,
		extractor:  extractor,
		geocoder:   geocoder,
		bus:        bus,
		tickPeriod: tickPeriod,
		states:     make(map[string]*sourceState),
	}
}

// Run blocks, ticking RunCycle until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunCycle(ctx); err != nil {
				log.Printf("scheduler: cycle error: %v", err)
			}
		}
	}
}

// RunCycle fetches every active, due source concurrently (bounded to
// maxConcurrentSources in flight) and processes each source's new
// observations through the full pipeline.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	sources, err := s.store.ListActiveSources(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSources)

	for _, src := range sources {
		src := src
		if src.SourceType == domain.SourceTypeAudio {
			// audio sources skip the due check: Fetch drains whatever the
			// watcher has buffered since the last cycle, through the same
			// pipeline.
			g.Go(func() error {
				s.processSource(gctx, src)
				return nil
			})
			continue
		}
		if !s.isDue(src.ID, now) {
			continue
		}
		g.Go(func() error {
			s.processSource(gctx, src)
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) isDue(sourceID string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[sourceID]
	if !ok {
		return true
	}
	return !now.Before(st.nextFireAt)
}

func (s *Scheduler) processSource(ctx context.Context, src *domain.Source) {
	adapter, err := adapters.For(src.SourceType, s.deps)
	if err != nil {
		s.recordFailure(ctx, src, err)
		return
	}

	obs, err := adapter.Fetch(ctx, src)
	if err != nil {
		s.recordFailure(ctx, src, err)
		return
	}
	s.recordSuccess(ctx, src)
	if len(obs) == 0 {
		return
	}

	// a source can return dozens of observations in one cycle (a busy RSS
	// feed, a backlog of scanner segments); a small worker pool lets one
	// slow extraction call proceed alongside the rest instead of blocking
	// them.
	q := queue.New(len(obs), ingestWorkersPerSource, ingestJobTimeout)
	q.Start(ctx)
	var wg sync.WaitGroup
	for _, o := range obs {
		o := o
		wg.Add(1)
		q.Enqueue(queue.Job{
			ID:     o.ExternalID,
			Source: src.ID,
			Work: func(jobCtx context.Context) error {
				return s.IngestObservation(jobCtx, src, o)
			},
			OnFinish: func(err error) {
				defer wg.Done()
				if err != nil {
					log.Printf("scheduler: source %s: ingest %s: %v", src.ID, o.ExternalID, err)
					metrics.IncIngestErrors()
				}
			},
		})
	}
	wg.Wait()
	q.Stop(ctx)
}

// IngestObservation runs one raw observation through extraction, geocoding,
// and deduplication, exported so the standalone backfill entrypoint can
// replay a source's history through the same pipeline the scheduler uses.
func (s *Scheduler) IngestObservation(ctx context.Context, src *domain.Source, o adapters.RawObservation) error {
	extracted, err := s.extractor.Extract(ctx, o.Text)
	if err != nil {
		return err
	}

	report := &domain.IncidentReport{
		SourceID:             src.ID,
		ExternalID:           o.ExternalID,
		SourceURL:            o.SourceURL,
		RawText:              o.Text,
		IncidentType:         extracted.IncidentType,
		Category:             extracted.Category,
		Address:              extracted.Address,
		City:                 extracted.City,
		OccurredAt:           extracted.OccurredAt,
		IngestedAt:           o.FetchedAt,
		ExtractionModel:      "",
		ExtractionConfidence: extracted.SelfReportedConfidence,
		UrgencyScore:         extracted.UrgencyScore,
		DedupStatus:          domain.DedupPending,
	}

	if err := s.store.InsertReport(ctx, report); err != nil {
		if err == store.ErrConflict {
			return nil // already ingested, not an error
		}
		return err
	}
	metrics.IncReportsIngested()

	rawAddress := o.Text
	if report.Address != nil {
		rawAddress = *report.Address
	}
	city := ""
	if report.City != nil {
		city = *report.City
	}
	if result, err := s.geocoder.Resolve(ctx, src.Region, rawAddress, city); err == nil {
		report.Location = &result.Location
		report.LocationResolution = result.Resolution
		report.LocationConfidence = result.Confidence
		if err := s.store.UpdateReportLocation(ctx, report.ID, result.Location, result.Resolution, result.Confidence); err != nil {
			return err
		}
	}

	decision, err := dedup.Match(ctx, s.store, src.Region, report)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if decision.IsNewIncident {
		return s.seedIncident(ctx, src, report, now)
	}
	return s.linkToIncident(ctx, decision.MatchedIncidentID, report, now)
}

func (s *Scheduler) seedIncident(ctx context.Context, src *domain.Source, report *domain.IncidentReport, now time.Time) error {
	resolution := report.LocationResolution
	if resolution == "" {
		resolution = domain.ResolutionUnknown
	}
	urgency := report.UrgencyScore
	if urgency == 0 {
		urgency = 1
	}
	inc := &domain.Incident{
		IncidentType:       report.IncidentType,
		Category:           string(report.Category),
		UrgencyScore:       urgency,
		Location:           report.Location,
		LocationResolution: resolution,
		LocationConfidence: report.LocationConfidence,
		Address:            report.Address,
		City:               report.City,
		Region:             src.Region,
		OccurredAt:         report.OccurredAt,
		ReportedAt:         now,
		Title:              report.RawText,
		Description:        report.RawText,
		Status:             domain.IncidentActive,
		ReviewStatus:       domain.ReviewNeedsReview,
	}
	if err := s.store.CreateIncident(ctx, inc); err != nil {
		return err
	}
	if err := s.store.UpdateReportLink(ctx, report.ID, domain.DedupNewIncident, inc.ID, now); err != nil {
		return err
	}
	if err := workflow.RecomputeIncident(ctx, s.store, inc, now); err != nil {
		return err
	}
	metrics.IncIncidentsCreated()
	s.bus.Publish(events.IncidentCreated, inc.ID)
	return nil
}

func (s *Scheduler) linkToIncident(ctx context.Context, incidentID string, report *domain.IncidentReport, now time.Time) error {
	if err := s.store.UpdateReportLink(ctx, report.ID, domain.DedupMatched, incidentID, now); err != nil {
		return err
	}
	inc, err := s.store.GetIncident(ctx, incidentID)
	if err != nil {
		return err
	}
	if err := workflow.RecomputeIncident(ctx, s.store, inc, now); err != nil {
		return err
	}
	metrics.IncIncidentsLinked()
	s.bus.Publish(events.IncidentUpdated, inc.ID)
	return nil
}

func (s *Scheduler) recordSuccess(ctx context.Context, src *domain.Source) {
	now := time.Now().UTC()
	_ = s.store.MarkFetched(ctx, src.ID, now)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[src.ID] = &sourceState{nextFireAt: now.Add(s.tickPeriod)}
}

func (s *Scheduler) recordFailure(ctx context.Context, src *domain.Source, err error) {
	log.Printf("scheduler: source %s fetch failed: %v", src.ID, err)
	metrics.IncFetchErrors()

	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[src.ID]
	if !ok {
		st = &sourceState{}
		s.states[src.ID] = st
	}
	st.consecutiveFailures++

	if st.consecutiveFailures >= maxConsecutiveFailures {
		_ = s.store.DeactivateSource(ctx, src.ID)
		s.bus.Publish(events.SourceDeactivated, src.ID)
		return
	}

	backoff := minBackoff * time.Duration(1<<uint(st.consecutiveFailures-1))
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	st.nextFireAt = time.Now().UTC().Add(backoff)
}
