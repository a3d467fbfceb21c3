package controlapi

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/render"

	"github.com/rafaeljc/accolade/internal/logger"
)

// handleListBadges processes GET /api/v1/badges.
// Query parameters: page, page_size, and active=true to hide retired badges.
func (a *API) handleListBadges(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	page, err := parseOptionalInt(r, "page", 1)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "ERR_INVALID_QUERY_PARAM", err.Error())
		return
	}
	pageSize, err := parseOptionalInt(r, "page_size", 20)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "ERR_INVALID_QUERY_PARAM", err.Error())
		return
	}
	onlyActive := r.URL.Query().Get("active") == "true"

	// Out-of-bounds values are clamped rather than rejected.
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	defs, err := a.badges.List(r.Context())
	if err != nil {
		log.Error("failed to list badges", slog.String("error", err.Error()))
		writeError(w, r, http.StatusInternalServerError, "ERR_INTERNAL", "Failed to list badges")
		return
	}

	dtos := make([]Badge, 0, len(defs))
	for _, d := range defs {
		if onlyActive && !d.Active {
			continue
		}
		dtos = append(dtos, toBadge(d))
	}

	total := len(dtos)
	offset := min((page-1)*pageSize, total)
	end := min(offset+pageSize, total)

	totalPages := 0
	if total > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(pageSize)))
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, PaginatedResponse{
		Data: dtos[offset:end],
		Pagination: Pagination{
			TotalItems:  int64(total),
			TotalPages:  totalPages,
			CurrentPage: page,
			PageSize:    pageSize,
		},
	})
}

// parseOptionalInt extracts an integer from the query string.
// If the parameter is missing, it returns the defaultValue.
func parseOptionalInt(r *http.Request, key string, defaultValue int) (int, error) {
	valStr := r.URL.Query().Get(key)
	if valStr == "" {
		return defaultValue, nil
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return 0, fmt.Errorf("parameter '%s' must be an integer", key)
	}
	return val, nil
}
