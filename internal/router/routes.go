package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/octobees/visa-directory/api/internal/config"
	"github.com/octobees/visa-directory/api/internal/handler"
	middlewarepkg "github.com/octobees/visa-directory/api/internal/middleware"
)

// Handlers aggregates HTTP handlers used by the router.
type Handlers struct {
	Scraping   *handler.ScrapingHandler
	Businesses *handler.BusinessesHandler
}

// Register wires all HTTP routes for the API.
func Register(e *echo.Echo, cfg *config.Config, handlers Handlers) {
	e.GET("/healthz", func(c echo.Context) error {
		return handler.Success(c, http.StatusOK, "service healthy", map[string]any{"status": "ok"})
	})

	if cfg.BlobBackend == "local" && cfg.BlobLocalDir != "" {
		e.Static("/uploads", cfg.BlobLocalDir)
	}

	api := e.Group("/api")

	scraping := api.Group("/scraping")
	scraping.POST("/start", handlers.Scraping.Start, middlewarepkg.StartRateLimiter(cfg.RateLimitStart))
	scraping.POST("/stop", handlers.Scraping.Stop)
	scraping.POST("/job/:id/stop", handlers.Scraping.StopJob)
	scraping.GET("/job/:id", handlers.Scraping.Job)
	scraping.GET("/jobs", handlers.Scraping.Jobs)
	scraping.GET("/stats", handlers.Scraping.Stats)
	scraping.GET("/duplicates", handlers.Scraping.Duplicates)
	scraping.POST("/fetch-all-reviews", handlers.Scraping.FetchAllReviews)

	api.GET("/scraped-businesses", handlers.Businesses.List)
}
