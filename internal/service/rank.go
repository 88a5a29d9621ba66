package service

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/tessellate-ai/recall/internal/domain"
	"github.com/tessellate-ai/recall/internal/index"
)

const (
	// mmrCandidateMultiplier controls dense over-fetch before diversity
	// selection.
	mmrCandidateMultiplier = 2

	scoreDecimals = 4
)

// fuseHybrid merges the dense and sparse candidate lists into one ranked
// list. On a point id collision the dense hit wins; the merged set is
// sorted by score descending and truncated to limit. Dense and sparse
// scores live in different ranges, so the ordering across spaces is an
// approximation rather than a calibrated ranking.
func fuseHybrid(dense, sparse []index.ScoredPoint, limit int) []index.ScoredPoint {
	merged := make([]index.ScoredPoint, 0, len(dense)+len(sparse))
	seen := make(map[any]bool, len(dense)+len(sparse))

	for _, p := range dense {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		merged = append(merged, p)
	}
	for _, p := range sparse {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		merged = append(merged, p)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})

	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// selectMMR greedily re-ranks candidates with Maximal Marginal Relevance.
// The top-relevance candidate seeds the selection; each following pick
// maximizes (1-d)*relevance - d*maxSimilarity against the already selected
// set, where d is the diversity weight (0 pure relevance, 1 pure
// diversity). Ties keep the earliest remaining candidate. Candidates must
// carry their dense vectors; a candidate without one contributes zero
// similarity.
func selectMMR(candidates []index.ScoredPoint, diversity float64, limit int) []index.ScoredPoint {
	if len(candidates) == 0 || limit < 1 {
		return nil
	}

	selected := make([]index.ScoredPoint, 0, limit)
	remaining := make([]index.ScoredPoint, len(candidates))
	copy(remaining, candidates)

	selected = append(selected, remaining[0])
	remaining = remaining[1:]

	for len(remaining) > 0 && len(selected) < limit {
		bestScore := math.Inf(-1)
		bestIdx := 0

		for i, cand := range remaining {
			maxSim := 0.0
			for _, sel := range selected {
				if sim := cosineSimilarity(cand.Dense, sel.Dense); sim > maxSim {
					maxSim = sim
				}
			}
			score := (1-diversity)*cand.Score - diversity*maxSim
			if score > bestScore {
				bestScore = score
				bestIdx = i
			}
		}

		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return selected
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// sortResultsByField re-sorts converted results by one of their declared
// fields, named by its wire name. An unknown field compares as the empty
// string, so the incoming order survives. Sequence ids are assigned before
// the re-sort and keep their relevance-rank identity.
func sortResultsByField(results []domain.SearchResult, field, direction string) {
	sort.SliceStable(results, func(i, j int) bool {
		a := resultFieldValue(results[i], field)
		b := resultFieldValue(results[j], field)
		if direction == domain.OrderAsc {
			return lessFieldValue(a, b)
		}
		return lessFieldValue(b, a)
	})
}

func resultFieldValue(r domain.SearchResult, field string) any {
	switch field {
	case "id":
		return float64(r.ID)
	case "score":
		return r.Score
	case "platform":
		return r.Platform
	case "conversation_title":
		return r.ConversationTitle
	case "timestamp":
		return r.Timestamp
	case "turn_number":
		return float64(r.TurnNumber)
	case "user_message":
		return r.UserMessage
	case "assistant_message":
		return r.AssistantMessage
	case "has_interpretations":
		return r.HasInterpretations
	case "about_user":
		return r.AboutUser
	case "about_model":
		return r.AboutModel
	case "user_message_type":
		return r.UserMessageType
	case "assistant_message_type":
		return r.AssistantMessageType
	case "assistant_model":
		return r.AssistantModel
	}
	return ""
}

func lessFieldValue(a, b any) bool {
	if af, ok := a.(float64); ok {
		if bf, ok := b.(float64); ok {
			return af < bf
		}
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			return !ab && bb
		}
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

// convertHits turns raw index hits into SearchResults, assigning
// request-scoped sequence ids from 0 in list order.
func convertHits(points []index.ScoredPoint) []domain.SearchResult {
	results := make([]domain.SearchResult, 0, len(points))
	for i, p := range points {
		results = append(results, convertHit(i, p))
	}
	return results
}

func convertHit(seq int, p index.ScoredPoint) domain.SearchResult {
	payload := p.Payload
	return domain.SearchResult{
		ID:                   seq,
		Score:                roundScore(p.Score),
		Platform:             payloadString(payload, "platform", "unknown"),
		ConversationTitle:    payloadString(payload, "conversation_title", domain.DefaultTitle),
		Timestamp:            payloadTimestamp(payload),
		TurnNumber:           payloadInt(payload, "turn_number"),
		UserMessage:          payloadString(payload, "user_message", ""),
		AssistantMessage:     payloadString(payload, "assistant_message", ""),
		HasInterpretations:   payloadBool(payload, "has_interpretations"),
		AboutUser:            payloadString(payload, "about_user", ""),
		AboutModel:           payloadString(payload, "about_model", ""),
		UserMessageType:      payloadString(payload, "user_message_type", ""),
		AssistantMessageType: payloadString(payload, "assistant_message_type", ""),
		AssistantModel:       payloadString(payload, "assistant_model", ""),
	}
}

func flattenGroups(groups []index.PointGroup) []domain.GroupedResult {
	out := make([]domain.GroupedResult, 0, len(groups))
	for _, g := range groups {
		out = append(out, domain.GroupedResult{
			GroupKey: fmt.Sprint(g.ID),
			Hits:     convertHits(g.Hits),
		})
	}
	return out
}

func roundScore(score float64) float64 {
	shift := math.Pow10(scoreDecimals)
	return math.Round(score*shift) / shift
}

func payloadString(payload map[string]any, key, fallback string) string {
	if v, ok := payload[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func payloadInt(payload map[string]any, key string) int {
	if v, ok := payload[key].(float64); ok {
		return int(v)
	}
	return 0
}

func payloadBool(payload map[string]any, key string) bool {
	v, _ := payload[key].(bool)
	return v
}

// payloadTimestamp renders the stored epoch timestamp as a UTC ISO-8601
// instant. String timestamps pass through unchanged.
func payloadTimestamp(payload map[string]any) string {
	switch v := payload["timestamp"].(type) {
	case float64:
		return epochToISO(v)
	case string:
		return v
	}
	return ""
}

func epochToISO(epoch float64) string {
	sec, frac := math.Modf(epoch)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC().Format(time.RFC3339Nano)
}
