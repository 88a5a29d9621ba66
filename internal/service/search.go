// Package service orchestrates normalization, indexing, and retrieval on
// top of the embedding and index clients.
package service

import (
	"context"
	"math"
	"time"

	"github.com/tessellate-ai/recall/internal/domain"
	"github.com/tessellate-ai/recall/internal/embedding"
	"github.com/tessellate-ai/recall/internal/index"
	"github.com/tessellate-ai/recall/internal/telemetry"
)

// healthTimeout bounds the index reachability probe.
const healthTimeout = 5 * time.Second

// SearchIndex is the slice of the index client the dispatcher uses. A
// fresh connection is opened per request and closed before returning.
type SearchIndex interface {
	Query(ctx context.Context, req index.QueryRequest) ([]index.ScoredPoint, error)
	QueryGroups(ctx context.Context, req index.GroupQueryRequest) ([]index.PointGroup, error)
	Health(ctx context.Context) error
	Close()
}

// SearchService routes a query to one of the retrieval strategies,
// orchestrating the encoder and the index client. The encoder is
// constructed once and reused across requests; it holds no mutable state,
// so the service is safe for concurrent use.
type SearchService struct {
	encoder  embedding.Encoder
	newIndex func() SearchIndex
}

// NewSearchService creates a SearchService around an encoder and an index
// connection factory.
func NewSearchService(encoder embedding.Encoder, newIndex func() SearchIndex) *SearchService {
	return &SearchService{
		encoder:  encoder,
		newIndex: newIndex,
	}
}

// Search executes one of the flat retrieval strategies and wraps the hits
// in a response envelope. Grouped retrieval has its own envelope; use
// SearchGrouped for it.
func (s *SearchService) Search(ctx context.Context, query string, filters domain.SearchFilters) (*domain.SearchResponse, error) {
	filters.ApplyDefaults()
	if err := filters.Validate(); err != nil {
		return nil, err
	}
	if query == "" && filters.Mode != domain.SearchModeRecommend {
		return nil, domain.ErrMissingQuery
	}

	ctx, span := telemetry.StartSpan(ctx, "SearchService.Search", telemetry.SpanAttributes{
		Mode:      string(filters.Mode),
		Platform:  filters.Platform,
		Operation: "search",
	})
	defer span.End()

	start := time.Now()

	var results []domain.SearchResult
	var err error
	switch filters.Mode {
	case domain.SearchModeRecommend:
		results, err = s.searchRecommend(ctx, filters)
	case domain.SearchModeOrderBy:
		results, err = s.searchOrderBy(ctx, query, filters)
	case domain.SearchModeMMR:
		results, err = s.searchMMR(ctx, query, filters)
	case domain.SearchModeGrouped:
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "grouped search has its own response shape; call SearchGrouped")
	default:
		results, err = s.searchHybrid(ctx, query, filters)
	}
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	return &domain.SearchResponse{
		Query:           query,
		TotalResults:    len(results),
		ExecutionTimeMS: elapsedMS(start),
		Results:         results,
		Filters:         filters,
	}, nil
}

// SearchGrouped executes the grouped strategy: up to limit groups of up to
// group_size hits each, keyed by the group-by payload field.
func (s *SearchService) SearchGrouped(ctx context.Context, query string, filters domain.SearchFilters) (*domain.GroupedSearchResponse, error) {
	filters.ApplyDefaults()
	filters.Mode = domain.SearchModeGrouped
	if err := filters.Validate(); err != nil {
		return nil, err
	}
	if filters.GroupBy == "" {
		return nil, domain.ErrMissingGroupBy
	}
	if query == "" {
		return nil, domain.ErrMissingQuery
	}

	ctx, span := telemetry.StartSpan(ctx, "SearchService.SearchGrouped", telemetry.SpanAttributes{
		Mode:      string(filters.Mode),
		Platform:  filters.Platform,
		Operation: "search",
	})
	defer span.End()

	start := time.Now()

	dense, _, err := s.encoder.Encode(ctx, query)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	predicate, err := index.BuildFilter(filters)
	if err != nil {
		return nil, err
	}

	client := s.newIndex()
	defer client.Close()

	groups, err := client.QueryGroups(ctx, index.GroupQueryRequest{
		Dense:     dense,
		GroupBy:   filters.GroupBy,
		Limit:     filters.Limit,
		GroupSize: filters.GroupSize,
		Filter:    predicate,
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	results := flattenGroups(groups)
	return &domain.GroupedSearchResponse{
		Query:           query,
		TotalGroups:     len(results),
		ExecutionTimeMS: elapsedMS(start),
		Groups:          results,
		Filters:         filters,
	}, nil
}

// Batch runs every query in the request sequentially under the shared
// filter set. Grouped mode is rejected because batch responses are flat.
func (s *SearchService) Batch(ctx context.Context, req domain.BatchSearchRequest) (*domain.BatchSearchResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Filters.Mode == domain.SearchModeGrouped {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "batch search does not support grouped mode")
	}

	ctx, span := telemetry.StartSpan(ctx, "SearchService.Batch", telemetry.SpanAttributes{
		Mode:      string(req.Filters.Mode),
		Platform:  req.Filters.Platform,
		Operation: "batch_search",
	})
	defer span.End()

	start := time.Now()

	responses := make([]domain.SearchResponse, 0, len(req.Queries))
	for _, q := range req.Queries {
		resp, err := s.Search(ctx, q, req.Filters)
		if err != nil {
			span.SetError(err)
			return nil, err
		}
		responses = append(responses, *resp)
	}

	return &domain.BatchSearchResponse{
		Results:              responses,
		TotalExecutionTimeMS: elapsedMS(start),
	}, nil
}

// Health reports encoder readiness and index reachability. The index
// probe runs under its own short timeout so a hung index cannot stall the
// health endpoint.
func (s *SearchService) Health(ctx context.Context) domain.HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	modelLoaded := s.encoder != nil

	qdrantConnected := false
	client := s.newIndex()
	defer client.Close()
	if err := client.Health(ctx); err == nil {
		qdrantConnected = true
	}

	status := "degraded"
	if modelLoaded && qdrantConnected {
		status = "healthy"
	}
	return domain.HealthStatus{
		Status:          status,
		ModelLoaded:     modelLoaded,
		QdrantConnected: qdrantConnected,
	}
}

// searchHybrid encodes the query into both representations and fuses two
// top-k lists under the same predicate. A dense-only encoder skips the
// sparse leg.
func (s *SearchService) searchHybrid(ctx context.Context, query string, filters domain.SearchFilters) ([]domain.SearchResult, error) {
	dense, sparse, err := s.encoder.Encode(ctx, query)
	if err != nil {
		return nil, err
	}
	predicate, err := index.BuildFilter(filters)
	if err != nil {
		return nil, err
	}

	client := s.newIndex()
	defer client.Close()

	denseHits, err := client.Query(ctx, index.QueryRequest{
		Dense:  dense,
		Using:  index.VectorDense,
		Filter: predicate,
		Limit:  filters.Limit,
	})
	if err != nil {
		return nil, err
	}

	var sparseHits []index.ScoredPoint
	if sparse != nil {
		sparseHits, err = client.Query(ctx, index.QueryRequest{
			Sparse: sparse,
			Filter: predicate,
			Limit:  filters.Limit,
		})
		if err != nil {
			return nil, err
		}
	}

	return convertHits(fuseHybrid(denseHits, sparseHits, filters.Limit)), nil
}

// searchRecommend queries example-based similarity. The query text is
// unused; the positive and negative point ids drive the search.
func (s *SearchService) searchRecommend(ctx context.Context, filters domain.SearchFilters) ([]domain.SearchResult, error) {
	if len(filters.PositiveIDs) == 0 {
		return nil, domain.ErrMissingPositiveExample
	}
	predicate, err := index.BuildFilter(filters)
	if err != nil {
		return nil, err
	}

	client := s.newIndex()
	defer client.Close()

	hits, err := client.Query(ctx, index.QueryRequest{
		Recommend: &index.RecommendInput{
			Positive: filters.PositiveIDs,
			Negative: filters.NegativeIDs,
		},
		Filter: predicate,
		Limit:  filters.Limit,
	})
	if err != nil {
		return nil, err
	}

	return convertHits(hits), nil
}

// searchOrderBy runs the hybrid strategy and re-sorts the converted
// results by the declared field, discarding relevance order. With no
// field declared the hybrid order stands.
func (s *SearchService) searchOrderBy(ctx context.Context, query string, filters domain.SearchFilters) ([]domain.SearchResult, error) {
	results, err := s.searchHybrid(ctx, query, filters)
	if err != nil {
		return nil, err
	}
	if filters.OrderByField != "" {
		sortResultsByField(results, filters.OrderByField, filters.OrderDirection)
	}
	return results, nil
}

// searchMMR over-fetches dense candidates with their vectors and greedily
// re-ranks them for diversity.
func (s *SearchService) searchMMR(ctx context.Context, query string, filters domain.SearchFilters) ([]domain.SearchResult, error) {
	dense, _, err := s.encoder.Encode(ctx, query)
	if err != nil {
		return nil, err
	}
	predicate, err := index.BuildFilter(filters)
	if err != nil {
		return nil, err
	}

	client := s.newIndex()
	defer client.Close()

	candidates, err := client.Query(ctx, index.QueryRequest{
		Dense:       dense,
		Using:       index.VectorDense,
		Filter:      predicate,
		Limit:       filters.Limit * mmrCandidateMultiplier,
		WithVectors: true,
	})
	if err != nil {
		return nil, err
	}

	return convertHits(selectMMR(candidates, filters.DiversityWeight(), filters.Limit)), nil
}

func elapsedMS(start time.Time) float64 {
	ms := float64(time.Since(start)) / float64(time.Millisecond)
	return math.Round(ms*100) / 100
}
