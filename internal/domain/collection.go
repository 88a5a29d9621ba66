package domain

import "time"

// Collection is an ordered container of normalized chunks. Order is
// insertion order, not global time order.
type Collection struct {
	Chunks []*Chunk
}

// NewCollection creates an empty Collection
func NewCollection() *Collection {
	return &Collection{}
}

// Add appends a chunk to the collection
func (c *Collection) Add(chunk *Chunk) {
	c.Chunks = append(c.Chunks, chunk)
}

// Len returns the number of chunks in the collection
func (c *Collection) Len() int {
	return len(c.Chunks)
}

// Merge appends another collection's chunks. Plain concatenation: no
// cross-platform conversation_id collision resolution is performed.
func (c *Collection) Merge(other *Collection) {
	if other == nil {
		return
	}
	c.Chunks = append(c.Chunks, other.Chunks...)
}

// Platforms returns the unique platforms in first-seen order.
func (c *Collection) Platforms() []Platform {
	seen := make(map[Platform]bool)
	var platforms []Platform
	for _, chunk := range c.Chunks {
		if !seen[chunk.Platform] {
			seen[chunk.Platform] = true
			platforms = append(platforms, chunk.Platform)
		}
	}
	return platforms
}

// DateRange returns the earliest and latest chunk timestamps, or nils when
// no chunk carries one.
func (c *Collection) DateRange() (earliest, latest *time.Time) {
	return dateRange(c.Chunks)
}

// PlatformStats summarizes one platform's share of a collection.
type PlatformStats struct {
	ChunkCount          int
	ConversationCount   int
	Earliest            *time.Time
	Latest              *time.Time
	WithInterpretations int
	WithToolUsage       int
}

// Stats returns per-platform statistics, keyed by platform.
func (c *Collection) Stats() map[Platform]PlatformStats {
	stats := make(map[Platform]PlatformStats)

	for _, platform := range c.Platforms() {
		var chunks []*Chunk
		for _, chunk := range c.Chunks {
			if chunk.Platform == platform {
				chunks = append(chunks, chunk)
			}
		}

		conversations := make(map[string]bool)
		var interpretations, tools int
		for _, chunk := range chunks {
			conversations[chunk.ConversationID] = true
			if chunk.HasInterpretations() {
				interpretations++
			}
			if len(chunk.ToolUsage) > 0 {
				tools++
			}
		}

		earliest, latest := dateRange(chunks)
		stats[platform] = PlatformStats{
			ChunkCount:          len(chunks),
			ConversationCount:   len(conversations),
			Earliest:            earliest,
			Latest:              latest,
			WithInterpretations: interpretations,
			WithToolUsage:       tools,
		}
	}

	return stats
}

func dateRange(chunks []*Chunk) (earliest, latest *time.Time) {
	for _, chunk := range chunks {
		if chunk.Timestamp == nil {
			continue
		}
		if earliest == nil || chunk.Timestamp.Before(*earliest) {
			earliest = chunk.Timestamp
		}
		if latest == nil || chunk.Timestamp.After(*latest) {
			latest = chunk.Timestamp
		}
	}
	return earliest, latest
}
