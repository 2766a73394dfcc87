package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/octobees/visa-directory/api/internal/dto"
	"github.com/octobees/visa-directory/api/internal/jobs"
	"github.com/octobees/visa-directory/api/internal/repository"
	"github.com/octobees/visa-directory/api/internal/scraper"
)

// ScrapeController is the pipeline surface the handler drives.
type ScrapeController interface {
	Start(cfg scraper.JobConfig) (string, error)
	Stop() error
	StopJob(id string) error
	RefreshAllReviews(ctx context.Context) (*scraper.RefreshSummary, error)
}

// ScrapingHandler exposes the scrape-job lifecycle endpoints.
type ScrapingHandler struct {
	controller   ScrapeController
	registry     *jobs.Registry
	repo         repository.BusinessesRepository
	defaultDelay time.Duration
}

// NewScrapingHandler creates a new handler instance.
func NewScrapingHandler(controller ScrapeController, registry *jobs.Registry, repo repository.BusinessesRepository, defaultDelay time.Duration) *ScrapingHandler {
	return &ScrapingHandler{controller: controller, registry: registry, repo: repo, defaultDelay: defaultDelay}
}

// Start handles POST /api/scraping/start requests.
func (h *ScrapingHandler) Start(c echo.Context) error {
	var req dto.StartScrapeRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}

	cities := trimAll(req.Cities)
	categories := trimAll(req.Categories)
	if len(cities) == 0 {
		return Error(c, http.StatusBadRequest, "cities is required")
	}
	if len(categories) == 0 {
		return Error(c, http.StatusBadRequest, "categories is required")
	}

	delay := h.defaultDelay
	if req.Delay > 0 {
		delay = time.Duration(req.Delay) * time.Millisecond
	}

	jobID, err := h.controller.Start(scraper.JobConfig{
		Cities:              cities,
		Categories:          categories,
		MaxResultsPerSearch: req.MaxResultsPerSearch,
		Delay:               delay,
	})
	if err != nil {
		if errors.Is(err, scraper.ErrAlreadyRunning) {
			return Error(c, http.StatusConflict, err.Error())
		}
		return Error(c, http.StatusBadRequest, err.Error())
	}

	return Success(c, http.StatusAccepted, "scrape job started", map[string]any{
		"job_id":         jobID,
		"total_searches": len(cities) * len(categories),
	})
}

// Stop handles POST /api/scraping/stop requests for the active job.
func (h *ScrapingHandler) Stop(c echo.Context) error {
	if err := h.controller.Stop(); err != nil {
		if errors.Is(err, scraper.ErrNoActiveJob) {
			return Error(c, http.StatusConflict, err.Error())
		}
		return Error(c, http.StatusInternalServerError, "failed to stop job")
	}
	return Success(c, http.StatusOK, "stop requested", nil)
}

// StopJob handles POST /api/scraping/job/:id/stop requests.
func (h *ScrapingHandler) StopJob(c echo.Context) error {
	id := c.Param("id")
	if err := h.controller.StopJob(id); err != nil {
		switch {
		case errors.Is(err, jobs.ErrJobNotFound):
			return Error(c, http.StatusNotFound, "job not found")
		case errors.Is(err, scraper.ErrNoActiveJob):
			return Error(c, http.StatusConflict, "job is not running")
		default:
			return Error(c, http.StatusInternalServerError, "failed to stop job")
		}
	}
	return Success(c, http.StatusOK, "stop requested", nil)
}

// Job handles GET /api/scraping/job/:id requests.
func (h *ScrapingHandler) Job(c echo.Context) error {
	job, ok := h.registry.Get(c.Param("id"))
	if !ok {
		return Error(c, http.StatusNotFound, "job not found")
	}
	return Success(c, http.StatusOK, "", job)
}

// Jobs handles GET /api/scraping/jobs requests, newest first.
func (h *ScrapingHandler) Jobs(c echo.Context) error {
	return Success(c, http.StatusOK, "", h.registry.List())
}

// Stats handles GET /api/scraping/stats requests.
func (h *ScrapingHandler) Stats(c echo.Context) error {
	stats, err := h.repo.GetStatistics(c.Request().Context())
	if err != nil {
		return Error(c, http.StatusInternalServerError, "failed to load statistics")
	}
	return Success(c, http.StatusOK, "", stats)
}

// Duplicates handles GET /api/scraping/duplicates requests.
func (h *ScrapingHandler) Duplicates(c echo.Context) error {
	groups, err := h.repo.FindDuplicates(c.Request().Context())
	if err != nil {
		return Error(c, http.StatusInternalServerError, "failed to find duplicates")
	}
	return Success(c, http.StatusOK, "", map[string]any{
		"groups": groups,
		"count":  len(groups),
	})
}

// FetchAllReviews handles POST /api/scraping/fetch-all-reviews requests. The
// refresh runs synchronously and shares the single-pipeline slot with scrape
// jobs.
func (h *ScrapingHandler) FetchAllReviews(c echo.Context) error {
	summary, err := h.controller.RefreshAllReviews(c.Request().Context())
	if err != nil {
		if errors.Is(err, scraper.ErrAlreadyRunning) {
			return Error(c, http.StatusConflict, err.Error())
		}
		return Error(c, http.StatusInternalServerError, "failed to refresh reviews")
	}
	return Success(c, http.StatusOK, "reviews refreshed", summary)
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
