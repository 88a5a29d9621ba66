package domain

// SearchMode selects the retrieval strategy.
type SearchMode string

const (
	// SearchModeHybrid is the default dense + sparse fusion search.
	SearchModeHybrid SearchMode = "vector"
	// SearchModeRecommend finds points similar to positive example ids and
	// dissimilar to negative ones.
	SearchModeRecommend SearchMode = "recommend"
	// SearchModeOrderBy re-sorts hybrid results by a declared field.
	SearchModeOrderBy SearchMode = "order_by"
	// SearchModeMMR re-ranks for diversity with Maximal Marginal Relevance.
	SearchModeMMR SearchMode = "mmr"
	// SearchModeGrouped clusters hits by a payload field.
	SearchModeGrouped SearchMode = "groups"
)

// Order directions for SearchModeOrderBy.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

const (
	DefaultLimit     = 10
	MaxLimit         = 100
	DefaultGroupSize = 3
	MaxGroupSize     = 10
	DefaultDiversity = 0.5
)

// SearchFilters carries every per-request retrieval parameter: the filter
// clauses plus the strategy-selection fields.
type SearchFilters struct {
	Platform            string     `json:"platform,omitempty"`
	Limit               int        `json:"limit"`
	WithInterpretations bool       `json:"with_interpretations"`
	DateFrom            string     `json:"date_from,omitempty"`
	DateTo              string     `json:"date_to,omitempty"`
	MetadataFilter      string     `json:"metadata_filter,omitempty"`
	Mode                SearchMode `json:"search_mode"`

	PositiveIDs []string `json:"positive_ids,omitempty"`
	NegativeIDs []string `json:"negative_ids,omitempty"`

	OrderByField   string `json:"order_by_field,omitempty"`
	OrderDirection string `json:"order_direction"`

	// Diversity is the MMR weight: 0 is pure relevance, 1 pure diversity.
	// Nil means the default 0.5.
	Diversity *float64 `json:"mmr_diversity,omitempty"`

	GroupBy   string `json:"group_by,omitempty"`
	GroupSize int    `json:"group_size"`
}

// ApplyDefaults fills unset fields with their documented defaults.
func (f *SearchFilters) ApplyDefaults() {
	if f.Limit == 0 {
		f.Limit = DefaultLimit
	}
	if f.Mode == "" {
		f.Mode = SearchModeHybrid
	}
	if f.OrderDirection == "" {
		f.OrderDirection = OrderDesc
	}
	if f.GroupSize == 0 {
		f.GroupSize = DefaultGroupSize
	}
	if f.Diversity == nil {
		d := DefaultDiversity
		f.Diversity = &d
	}
}

// Validate checks range and enum constraints. Strategy-specific required
// fields (positive ids, group_by) are checked by the dispatcher, not here,
// because they only apply to their own mode.
func (f *SearchFilters) Validate() error {
	if f.Limit < 1 || f.Limit > MaxLimit {
		return ErrInvalidLimit
	}

	switch f.Mode {
	case SearchModeHybrid, SearchModeRecommend, SearchModeOrderBy, SearchModeMMR, SearchModeGrouped:
	default:
		return ErrInvalidSearchMode
	}

	switch f.OrderDirection {
	case OrderAsc, OrderDesc:
	default:
		return ErrInvalidOrderDirection
	}

	if f.Diversity != nil && (*f.Diversity < 0 || *f.Diversity > 1) {
		return ErrInvalidDiversity
	}

	if f.GroupSize < 1 || f.GroupSize > MaxGroupSize {
		return ErrInvalidGroupSize
	}

	return nil
}

// DiversityWeight returns the effective MMR diversity weight.
func (f *SearchFilters) DiversityWeight() float64 {
	if f.Diversity == nil {
		return DefaultDiversity
	}
	return *f.Diversity
}

// SearchResult is one hit at the retrieval boundary. ID is a
// request-scoped sequence number, not the chunk id. Score semantics are
// strategy-specific and not comparable across strategies.
type SearchResult struct {
	ID    int     `json:"id"`
	Score float64 `json:"score"`

	Platform          string `json:"platform"`
	ConversationTitle string `json:"conversation_title"`
	Timestamp         string `json:"timestamp,omitempty"`
	TurnNumber        int    `json:"turn_number"`

	UserMessage      string `json:"user_message"`
	AssistantMessage string `json:"assistant_message"`

	HasInterpretations bool   `json:"has_interpretations"`
	AboutUser          string `json:"about_user,omitempty"`
	AboutModel         string `json:"about_model,omitempty"`

	UserMessageType      string `json:"user_message_type,omitempty"`
	AssistantMessageType string `json:"assistant_message_type,omitempty"`
	AssistantModel       string `json:"assistant_model,omitempty"`
}

// GroupedResult is one (group key, hits) pair from a grouped search.
type GroupedResult struct {
	GroupKey string         `json:"group_key"`
	Hits     []SearchResult `json:"hits"`
}

// SearchResponse is the flat-strategy response envelope.
type SearchResponse struct {
	Query           string         `json:"query"`
	TotalResults    int            `json:"total_results"`
	ExecutionTimeMS float64        `json:"execution_time_ms"`
	Results         []SearchResult `json:"results"`
	Filters         SearchFilters  `json:"filters"`
}

// GroupedSearchResponse is the grouped-strategy response envelope.
type GroupedSearchResponse struct {
	Query           string          `json:"query"`
	TotalGroups     int             `json:"total_groups"`
	ExecutionTimeMS float64         `json:"execution_time_ms"`
	Groups          []GroupedResult `json:"groups"`
	Filters         SearchFilters   `json:"filters"`
}

// BatchSearchRequest runs several queries under one shared filter set.
type BatchSearchRequest struct {
	Queries []string      `json:"queries"`
	Filters SearchFilters `json:"filters"`
}

// MaxBatchQueries bounds one batch request.
const MaxBatchQueries = 10

// Validate checks the batch envelope; per-query filter validation happens
// when each query runs.
func (r *BatchSearchRequest) Validate() error {
	if len(r.Queries) == 0 {
		return NewDomainError(ErrCodeValidation, "batch requires at least one query")
	}
	if len(r.Queries) > MaxBatchQueries {
		return NewDomainError(ErrCodeValidation, "batch accepts at most 10 queries")
	}
	for _, q := range r.Queries {
		if q == "" {
			return ErrMissingQuery
		}
	}
	return nil
}

// BatchSearchResponse carries one response per batch query.
type BatchSearchResponse struct {
	Results              []SearchResponse `json:"results"`
	TotalExecutionTimeMS float64          `json:"total_execution_time_ms"`
}

// HealthStatus reports readiness of the two external collaborators.
type HealthStatus struct {
	Status          string `json:"status"`
	ModelLoaded     bool   `json:"model_loaded"`
	QdrantConnected bool   `json:"qdrant_connected"`
}

// SparseVector is a sparse lexical representation: parallel term indices
// and weights, as produced by the embedding service and consumed by the
// index service.
type SparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}
