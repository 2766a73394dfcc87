package scraper

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/octobees/visa-directory/api/internal/entity"
	"github.com/octobees/visa-directory/api/internal/jobs"
	"github.com/octobees/visa-directory/api/internal/places"
	"github.com/octobees/visa-directory/api/internal/repository"
)

var (
	// ErrAlreadyRunning is returned when a start request arrives while a job
	// is active. Only one job may run process-wide.
	ErrAlreadyRunning = errors.New("a scrape job is already running")
	// ErrNoActiveJob is returned by stop requests when nothing is running.
	ErrNoActiveJob = errors.New("no scrape job is running")
)

const (
	maxRecentErrors      = 10
	maxPhotosPerBusiness = 5
	defaultMaxResults    = 10
	maxResultsCap        = 20
)

// PlacesAPI is the upstream surface the orchestrator drives.
type PlacesAPI interface {
	Search(ctx context.Context, query, location string, radius int) ([]places.Candidate, error)
	Details(ctx context.Context, placeID string) (*places.Detail, error)
	SavePhotos(ctx context.Context, placeID string, photos []places.PhotoRef, max int) ([]entity.Image, error)
}

// BusinessStore is the durable store surface the orchestrator writes to.
type BusinessStore interface {
	FindByPlaceID(ctx context.Context, placeID string) (*entity.Business, error)
	Upsert(ctx context.Context, business *entity.Business) (uuid.UUID, error)
	ListPlaceIDs(ctx context.Context) ([]repository.BusinessRef, error)
	ReplaceReviews(ctx context.Context, businessID uuid.UUID, reviews []entity.Review) error
}

// JobConfig is one (cities x categories) scrape configuration.
type JobConfig struct {
	Cities              []string
	Categories          []string
	MaxResultsPerSearch int
	Delay               time.Duration
}

// RefreshSummary reports the outcome of a full review re-pull.
type RefreshSummary struct {
	Processed int      `json:"processed"`
	Updated   int      `json:"updated"`
	Errors    []string `json:"errors,omitempty"`
}

// Orchestrator turns a job configuration into the search -> details ->
// extract -> dedupe -> persist sequence. One instance owns the process-wide
// single-job invariant; cancellation is cooperative via a flag checked at
// loop boundaries, so in-flight upstream calls finish before the job stops.
type Orchestrator struct {
	places       PlacesAPI
	extractor    *places.Extractor
	store        BusinessStore
	registry     *jobs.Registry
	logger       *zap.Logger
	searchRadius int
	sleep        func(time.Duration)

	mu            sync.Mutex
	active        bool
	stopRequested bool
	currentJobID  string
}

// New wires an orchestrator.
func New(placesAPI PlacesAPI, extractor *places.Extractor, store BusinessStore, registry *jobs.Registry, logger *zap.Logger, searchRadius int) *Orchestrator {
	return &Orchestrator{
		places:       placesAPI,
		extractor:    extractor,
		store:        store,
		registry:     registry,
		logger:       logger.Named("scraper"),
		searchRadius: searchRadius,
		sleep:        time.Sleep,
	}
}

// Start validates the configuration, registers a pending job and launches the
// run loop on its own goroutine. It fails fast with ErrAlreadyRunning while
// another job (or a review refresh) is active.
func (o *Orchestrator) Start(cfg JobConfig) (string, error) {
	if len(cfg.Cities) == 0 || len(cfg.Categories) == 0 {
		return "", fmt.Errorf("cities and categories must not be empty")
	}
	if cfg.MaxResultsPerSearch <= 0 {
		cfg.MaxResultsPerSearch = defaultMaxResults
	}
	if cfg.MaxResultsPerSearch > maxResultsCap {
		cfg.MaxResultsPerSearch = maxResultsCap
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active {
		return "", ErrAlreadyRunning
	}

	job := o.registry.Create(entity.ScrapeJob{
		Cities:              append([]string(nil), cfg.Cities...),
		Categories:          append([]string(nil), cfg.Categories...),
		MaxResultsPerSearch: cfg.MaxResultsPerSearch,
		DelayMS:             int(cfg.Delay / time.Millisecond),
		TotalSearches:       len(cfg.Cities) * len(cfg.Categories),
	})

	o.active = true
	o.stopRequested = false
	o.currentJobID = job.ID

	go o.run(job.ID, cfg)

	return job.ID, nil
}

// Stop requests cancellation of the active job.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.active {
		return ErrNoActiveJob
	}
	o.stopRequested = true
	return nil
}

// StopJob requests cancellation of a specific job id.
func (o *Orchestrator) StopJob(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active && o.currentJobID == id {
		o.stopRequested = true
		return nil
	}
	if _, ok := o.registry.Get(id); !ok {
		return jobs.ErrJobNotFound
	}
	return ErrNoActiveJob
}

// ActiveJobID returns the id of the running job, if any.
func (o *Orchestrator) ActiveJobID() (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.currentJobID, o.active
}

func (o *Orchestrator) stopped() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stopRequested
}

func (o *Orchestrator) release() {
	o.mu.Lock()
	o.active = false
	o.stopRequested = false
	o.currentJobID = ""
	o.mu.Unlock()
}

// runState accumulates counters and the bounded recent-errors list for one
// job. The run loop is the single writer.
type runState struct {
	maxResults int
	saved      int
	duplicates int
	errors     []string
}

func (s *runState) record(msg string) {
	s.errors = append(s.errors, msg)
	if len(s.errors) > maxRecentErrors {
		s.errors = s.errors[len(s.errors)-maxRecentErrors:]
	}
}

func (o *Orchestrator) run(jobID string, cfg JobConfig) {
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("scrape job panicked", zap.String("job_id", jobID), zap.Any("panic", r))
			now := time.Now()
			_ = o.registry.Update(jobID, func(j *entity.ScrapeJob) {
				j.Status = entity.JobStatusFailed
				j.CompletedAt = &now
				j.Errors = appendBounded(j.Errors, fmt.Sprintf("internal error: %v", r))
			})
		}
		o.release()
	}()

	started := time.Now()
	_ = o.registry.Update(jobID, func(j *entity.ScrapeJob) {
		j.Status = entity.JobStatusRunning
		j.StartedAt = &started
	})
	o.logger.Info("scrape job started",
		zap.String("job_id", jobID),
		zap.Int("cities", len(cfg.Cities)),
		zap.Int("categories", len(cfg.Categories)))

	state := &runState{maxResults: cfg.MaxResultsPerSearch}
	total := len(cfg.Cities) * len(cfg.Categories)
	pairsDone := 0
	stopped := false

outer:
	for _, city := range cfg.Cities {
		if o.stopped() {
			stopped = true
			break
		}
		for _, category := range cfg.Categories {
			if o.stopped() {
				stopped = true
				break outer
			}

			// the reported pointer reflects the most recently started pair
			_ = o.registry.Update(jobID, func(j *entity.ScrapeJob) {
				j.CurrentCity = city
				j.CurrentCategory = category
			})

			o.processPair(ctx, state, city, category)
			pairsDone++

			if cfg.Delay > 0 {
				o.sleep(cfg.Delay)
			}

			progress := int(math.Round(100 * float64(pairsDone) / float64(total)))
			_ = o.registry.Update(jobID, func(j *entity.ScrapeJob) {
				j.Progress = progress
				j.SearchesCompleted = pairsDone
				j.BusinessesSaved = state.saved
				j.DuplicatesSkipped = state.duplicates
				j.Errors = append([]string(nil), state.errors...)
			})
		}
	}

	final := entity.JobStatusCompleted
	if stopped {
		final = entity.JobStatusCancelled
	}
	now := time.Now()
	_ = o.registry.Update(jobID, func(j *entity.ScrapeJob) {
		j.Status = final
		j.CompletedAt = &now
	})

	o.logger.Info("scrape job finished",
		zap.String("job_id", jobID),
		zap.String("status", string(final)),
		zap.Int("searches", pairsDone),
		zap.Int("saved", state.saved),
		zap.Int("duplicates", state.duplicates),
		zap.Int("errors", len(state.errors)))
}

// processPair runs one (city, category) search and its candidates. Search and
// per-candidate failures are recorded and never abort the job.
func (o *Orchestrator) processPair(ctx context.Context, state *runState, city, category string) {
	query := fmt.Sprintf("%s in %s", category, city)

	candidates, err := o.places.Search(ctx, query, "", o.searchRadius)
	if err != nil {
		state.record(fmt.Sprintf("search %q: %v", query, err))
		o.logger.Warn("search failed", zap.String("query", query), zap.Error(err))
		return
	}
	if len(candidates) > state.maxResults {
		candidates = candidates[:state.maxResults]
	}

	for _, candidate := range candidates {
		if o.stopped() {
			return
		}
		if err := o.processCandidate(ctx, state, candidate, category, city); err != nil {
			state.record(fmt.Sprintf("%s (%s): %v", candidate.Name, candidate.PlaceID, err))
			o.logger.Warn("candidate failed",
				zap.String("place_id", candidate.PlaceID),
				zap.String("city", city),
				zap.Error(err))
		}
	}
}

func (o *Orchestrator) processCandidate(ctx context.Context, state *runState, candidate places.Candidate, category, city string) error {
	detail, err := o.places.Details(ctx, candidate.PlaceID)
	if err != nil {
		return fmt.Errorf("details: %w", err)
	}

	business := o.extractor.Extract(detail, category, city)

	if business.PlaceID != nil {
		existing, err := o.store.FindByPlaceID(ctx, *business.PlaceID)
		switch {
		case err == nil && existing != nil:
			state.duplicates++
			return nil
		case err != nil && !errors.Is(err, repository.ErrBusinessNotFound):
			return fmt.Errorf("duplicate check: %w", err)
		}
	}

	// a failed photo batch degrades to a business without media
	images, err := o.places.SavePhotos(ctx, candidate.PlaceID, detail.Photos, maxPhotosPerBusiness)
	if err != nil {
		o.logger.Warn("photos failed", zap.String("place_id", candidate.PlaceID), zap.Error(err))
		images = nil
	}
	business.Images = images
	for _, img := range images {
		url := img.URL
		switch img.Position {
		case 0:
			business.Logo = &url
		case 1:
			business.Cover = &url
		default:
			business.Gallery = append(business.Gallery, url)
		}
	}

	if _, err := o.store.Upsert(ctx, business); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	state.saved++
	return nil
}

// RefreshAllReviews re-pulls reviews for every stored business with an
// external place id and replaces them wholesale. The upstream caps reviews
// per call, so this refreshes the visible window rather than fetching a
// complete history. It shares the single-active-pipeline slot with scrape
// jobs.
func (o *Orchestrator) RefreshAllReviews(ctx context.Context) (*RefreshSummary, error) {
	o.mu.Lock()
	if o.active {
		o.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	o.active = true
	o.stopRequested = false
	o.mu.Unlock()
	defer o.release()

	refs, err := o.store.ListPlaceIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list businesses for refresh: %w", err)
	}

	summary := &RefreshSummary{}
	for _, ref := range refs {
		if ctx.Err() != nil || o.stopped() {
			break
		}
		summary.Processed++

		detail, err := o.places.Details(ctx, ref.PlaceID)
		if err != nil {
			summary.Errors = appendBounded(summary.Errors, fmt.Sprintf("%s: %v", ref.PlaceID, err))
			continue
		}
		reviews := o.extractor.ExtractReviews(detail)
		if err := o.store.ReplaceReviews(ctx, ref.ID, reviews); err != nil {
			summary.Errors = appendBounded(summary.Errors, fmt.Sprintf("%s: %v", ref.PlaceID, err))
			continue
		}
		summary.Updated++
	}

	o.logger.Info("review refresh finished",
		zap.Int("processed", summary.Processed),
		zap.Int("updated", summary.Updated),
		zap.Int("errors", len(summary.Errors)))
	return summary, nil
}

func appendBounded(list []string, msg string) []string {
	list = append(list, msg)
	if len(list) > maxRecentErrors {
		list = list[len(list)-maxRecentErrors:]
	}
	return list
}
