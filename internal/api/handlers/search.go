package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tessellate-ai/recall/internal/api"
	"github.com/tessellate-ai/recall/internal/domain"
)

// SearchService is the retrieval surface exposed over HTTP.
type SearchService interface {
	Search(ctx context.Context, query string, filters domain.SearchFilters) (*domain.SearchResponse, error)
	SearchGrouped(ctx context.Context, query string, filters domain.SearchFilters) (*domain.GroupedSearchResponse, error)
	Batch(ctx context.Context, req domain.BatchSearchRequest) (*domain.BatchSearchResponse, error)
	Health(ctx context.Context) domain.HealthStatus
}

type SearchHandler struct {
	svc SearchService
}

func NewSearchHandler(svc SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

// Search handles GET /api/search. Query parameters mirror SearchFilters;
// grouped mode switches the response envelope to grouped results.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		api.HandleError(w, domain.ErrMissingQuery)
		return
	}

	filters, err := filtersFromQuery(r.URL.Query())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	if filters.Mode == domain.SearchModeGrouped {
		resp, err := h.svc.SearchGrouped(r.Context(), q, filters)
		if err != nil {
			api.HandleError(w, err)
			return
		}
		api.Success(w, http.StatusOK, resp)
		return
	}

	resp, err := h.svc.Search(r.Context(), q, filters)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, resp)
}

// BatchSearch handles POST /api/search/batch.
func (h *SearchHandler) BatchSearch(w http.ResponseWriter, r *http.Request) {
	var req domain.BatchSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.svc.Batch(r.Context(), req)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, resp)
}

// Health handles GET /api/health.
func (h *SearchHandler) Health(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, h.svc.Health(r.Context()))
}

// filtersFromQuery decodes the search query parameters. Enum and range
// checks happen in the service; only shape errors are rejected here.
func filtersFromQuery(query url.Values) (domain.SearchFilters, error) {
	filters := domain.SearchFilters{
		Platform:       query.Get("platform"),
		DateFrom:       query.Get("date_from"),
		DateTo:         query.Get("date_to"),
		MetadataFilter: query.Get("metadata_filter"),
		Mode:           domain.SearchMode(query.Get("search_mode")),
		OrderByField:   query.Get("order_by_field"),
		OrderDirection: query.Get("order_direction"),
		GroupBy:        query.Get("group_by"),
	}

	var err error
	if filters.Limit, err = intParam(query, "limit"); err != nil {
		return filters, err
	}
	if filters.GroupSize, err = intParam(query, "group_size"); err != nil {
		return filters, err
	}
	if filters.WithInterpretations, err = boolParam(query, "interpretations"); err != nil {
		return filters, err
	}
	if filters.Diversity, err = floatParam(query, "mmr_diversity"); err != nil {
		return filters, err
	}

	if ids := query.Get("positive_ids"); ids != "" {
		filters.PositiveIDs = strings.Split(ids, ",")
	}
	if ids := query.Get("negative_ids"); ids != "" {
		filters.NegativeIDs = strings.Split(ids, ",")
	}

	return filters, nil
}

func intParam(query url.Values, name string) (int, error) {
	raw := query.Get(name)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewDomainError(domain.ErrCodeValidation, name+" must be an integer")
	}
	return value, nil
}

func boolParam(query url.Values, name string) (bool, error) {
	raw := query.Get(name)
	if raw == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, domain.NewDomainError(domain.ErrCodeValidation, name+" must be a boolean")
	}
	return value, nil
}

func floatParam(query url.Values, name string) (*float64, error) {
	raw := query.Get(name)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, name+" must be a number")
	}
	return &value, nil
}
