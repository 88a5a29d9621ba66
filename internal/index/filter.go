package index

import (
	"strconv"
	"strings"
	"time"

	"github.com/tessellate-ai/recall/internal/domain"
)

// BuildFilter translates search filters into the index service predicate:
// ANDed clauses for platform, interpretation presence, timestamp range,
// and one key:value metadata equality. No clauses means a nil filter.
func BuildFilter(filters domain.SearchFilters) (*Filter, error) {
	var must []Condition

	if filters.Platform != "" {
		must = append(must, Condition{
			Key:   "platform",
			Match: &MatchValue{Value: filters.Platform},
		})
	}

	if filters.WithInterpretations {
		must = append(must, Condition{
			Key:   "has_interpretations",
			Match: &MatchValue{Value: true},
		})
	}

	if filters.DateFrom != "" {
		gte, err := ParseDate(filters.DateFrom)
		if err != nil {
			return nil, err
		}
		must = append(must, Condition{
			Key:   "timestamp",
			Range: &RangeValue{GTE: &gte},
		})
	}

	if filters.DateTo != "" {
		lte, err := ParseDate(filters.DateTo)
		if err != nil {
			return nil, err
		}
		must = append(must, Condition{
			Key:   "timestamp",
			Range: &RangeValue{LTE: &lte},
		})
	}

	if filters.MetadataFilter != "" {
		key, value, ok := strings.Cut(filters.MetadataFilter, ":")
		if !ok || key == "" {
			return nil, domain.NewDomainError(domain.ErrCodeValidation, "metadata filter must be key:value")
		}
		must = append(must, Condition{
			Key:   "payload." + key,
			Match: &MatchValue{Value: value},
		})
	}

	if len(must) == 0 {
		return nil, nil
	}
	return &Filter{Must: must}, nil
}

// ParseDate turns a filter date into epoch seconds. Numeric input (literal
// epoch or numeric string) passes through; otherwise the value must be
// ISO-8601, with Z accepted as +00:00 and a missing timezone taken as UTC.
func ParseDate(value string) (float64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, domain.NewDateParseError(value)
	}

	if epoch, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return epoch, nil
	}

	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return float64(t.UnixNano()) / float64(time.Second), nil
		}
	}

	return 0, domain.NewDateParseError(value)
}
