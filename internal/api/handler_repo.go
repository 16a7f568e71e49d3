package api

import (
	"net/http"
	"strconv"

	"github.com/repolens/repolens/internal/model"
)

// getRepos returns a paginated repository listing as JSON.
func (h *Handler) getRepos(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	pageSize, err := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if err != nil || pageSize < 1 || pageSize > 100 {
		pageSize = 25
	}

	search := r.URL.Query().Get("search")

	repos, totalCount, err := h.Docs.PageRepositories(r.Context(), search, page, pageSize)
	if err != nil {
		h.Logger.Error(r.Context(), "Failed to fetch repositories: %v", err)
		h.writeError(w, r, http.StatusInternalServerError, "failed to fetch repositories")
		return
	}
	if repos == nil {
		repos = []model.Repository{}
	}

	h.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"repositories": repos,
		"pagination": map[string]interface{}{
			"page":       page,
			"pageSize":   pageSize,
			"totalCount": totalCount,
			"totalPages": (totalCount + int64(pageSize) - 1) / int64(pageSize),
		},
	})
}

// getLocationRepos returns the top repositories collected for one location.
func (h *Handler) getLocationRepos(w http.ResponseWriter, r *http.Request) {
	location := model.NormalizeKey(r.PathValue("location"))
	if location == "" {
		h.writeError(w, r, http.StatusBadRequest, "location missing")
		return
	}

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 25
	}

	repos, err := h.Docs.RepositoriesByLocation(r.Context(), location, limit)
	if err != nil {
		h.Logger.Error(r.Context(), "Failed to fetch repositories for %s: %v", location, err)
		h.writeError(w, r, http.StatusInternalServerError, "failed to fetch repositories")
		return
	}
	if repos == nil {
		repos = []model.Repository{}
	}

	h.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"location":     location,
		"count":        len(repos),
		"repositories": repos,
	})
}
