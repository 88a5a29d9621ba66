package index

import (
	"encoding/json"
	"strconv"

	"github.com/tessellate-ai/recall/internal/domain"
)

// Filter is a conjunctive predicate over payload fields, in the index
// service's wire shape. A nil *Filter means no filtering.
type Filter struct {
	Must []Condition `json:"must,omitempty"`
}

// Condition matches one payload field, either exactly or by range.
type Condition struct {
	Key   string      `json:"key"`
	Match *MatchValue `json:"match,omitempty"`
	Range *RangeValue `json:"range,omitempty"`
}

// MatchValue is an exact-match clause.
type MatchValue struct {
	Value any `json:"value"`
}

// RangeValue is a numeric range clause. Only the set bounds serialize.
type RangeValue struct {
	GTE *float64 `json:"gte,omitempty"`
	LTE *float64 `json:"lte,omitempty"`
}

// QueryRequest is one vector query. Exactly one of Dense, Sparse, or
// Recommend must be set; Using names the vector space for Dense/Sparse.
type QueryRequest struct {
	Dense       []float32
	Sparse      *domain.SparseVector
	Recommend   *RecommendInput
	Using       string
	Filter      *Filter
	Limit       int
	WithVectors bool
}

// RecommendInput is an example-based query: ids the results should
// resemble and ids they should not.
type RecommendInput struct {
	Positive []string
	Negative []string
}

// GroupQueryRequest is a dense query whose hits cluster by a payload field.
type GroupQueryRequest struct {
	Dense     []float32
	GroupBy   string
	Limit     int
	GroupSize int
	Filter    *Filter
}

// ScoredPoint is one hit. ID is either a number or a UUID string,
// depending on how points were written. Dense is only populated when the
// query asked for vectors.
type ScoredPoint struct {
	ID      any
	Score   float64
	Payload map[string]any
	Dense   []float32
}

// PointGroup is one (group key, hits) cluster from a grouped query.
type PointGroup struct {
	ID   any           `json:"id"`
	Hits []ScoredPoint `json:"hits"`
}

// Point is one record to upsert: named dense and sparse vectors plus the
// displayable payload.
type Point struct {
	ID      any
	Dense   []float32
	Sparse  *domain.SparseVector
	Payload map[string]any
}

// CollectionInfo is the subset of collection metadata the CLI surfaces.
type CollectionInfo struct {
	Status        string `json:"status"`
	PointsCount   int64  `json:"points_count"`
	VectorsCount  int64  `json:"vectors_count"`
	IndexedCount  int64  `json:"indexed_vectors_count"`
	SegmentsCount int64  `json:"segments_count"`
}

// Payload index schemas, named as the index service names them.
const (
	SchemaKeyword = "keyword"
	SchemaBool    = "bool"
	SchemaFloat   = "float"
	SchemaInteger = "integer"
)

type scoredPointWire struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
	Vector  json.RawMessage `json:"vector"`
}

func (w scoredPointWire) toPoint() ScoredPoint {
	point := ScoredPoint{
		Score:   w.Score,
		Payload: w.Payload,
		ID:      decodePointID(w.ID),
	}
	if len(w.Vector) > 0 {
		point.Dense = decodeDenseVector(w.Vector)
	}
	return point
}

func decodePointID(raw json.RawMessage) any {
	var num uint64
	if err := json.Unmarshal(raw, &num); err == nil {
		return num
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// decodeDenseVector handles both named-vector objects and bare arrays.
func decodeDenseVector(raw json.RawMessage) []float32 {
	var named struct {
		Dense []float32 `json:"dense"`
	}
	if err := json.Unmarshal(raw, &named); err == nil && named.Dense != nil {
		return named.Dense
	}
	var bare []float32
	if err := json.Unmarshal(raw, &bare); err == nil {
		return bare
	}
	return nil
}

// encodePointID turns an example id into the wire value the index service
// expects: numeric strings become numbers, everything else stays a string.
func encodePointID(id string) any {
	if n, err := strconv.ParseUint(id, 10, 64); err == nil {
		return n
	}
	return id
}
