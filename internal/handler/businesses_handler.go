package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/octobees/visa-directory/api/internal/dto"
	"github.com/octobees/visa-directory/api/internal/repository"
)

// BusinessesHandler exposes the scraped-business catalogue endpoints.
type BusinessesHandler struct {
	repo repository.BusinessesRepository
}

// NewBusinessesHandler creates a new handler instance.
func NewBusinessesHandler(repo repository.BusinessesRepository) *BusinessesHandler {
	return &BusinessesHandler{repo: repo}
}

// List handles GET /api/scraped-businesses requests.
func (h *BusinessesHandler) List(c echo.Context) error {
	filter := dto.BusinessFilter{
		Query:    strings.TrimSpace(c.QueryParam("search")),
		City:     strings.TrimSpace(c.QueryParam("city")),
		Category: strings.TrimSpace(c.QueryParam("category")),
		Page:     parseIntDefault(c.QueryParam("page"), 1),
		Limit:    parseIntDefault(c.QueryParam("limit"), 20),
	}

	businesses, total, err := h.repo.List(c.Request().Context(), filter)
	if err != nil {
		return Error(c, http.StatusInternalServerError, "failed to list businesses")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	totalPages := (total + limit - 1) / limit
	page := filter.Page
	if page <= 0 {
		page = 1
	}

	return Success(c, http.StatusOK, "", map[string]any{
		"businesses": businesses,
		"pagination": map[string]any{
			"page":       page,
			"limit":      limit,
			"total":      total,
			"totalPages": totalPages,
		},
	})
}

func parseIntDefault(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
