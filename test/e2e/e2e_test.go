//go:build e2e

package e2e

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tessellate-ai/recall/internal/domain"
)

// TestE2E_SearchFlow drives the seeded index through every retrieval
// strategy over the HTTP API.
func TestE2E_SearchFlow(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	t.Run("health", func(t *testing.T) {
		resp, err := env.Get("/api/health")
		require.NoError(t, err)

		var health domain.HealthStatus
		require.NoError(t, json.Unmarshal(resp.Data, &health))
		assert.Equal(t, "healthy", health.Status)
		assert.True(t, health.ModelLoaded)
		assert.True(t, health.QdrantConnected)
	})

	t.Run("hybrid search finds the matching chunk", func(t *testing.T) {
		query := "how do I drain a kubernetes node safely"
		resp, err := env.Get("/api/search?q=" + url.QueryEscape(query))
		require.NoError(t, err)

		var search domain.SearchResponse
		require.NoError(t, json.Unmarshal(resp.Data, &search))
		require.NotZero(t, search.TotalResults)
		assert.Equal(t, query, search.Query)

		messages := make([]string, 0, len(search.Results))
		for _, r := range search.Results {
			messages = append(messages, r.UserMessage)
		}
		assert.Contains(t, messages, query)
	})

	t.Run("mmr puts the closest chunk first", func(t *testing.T) {
		query := "my sourdough never rises"
		resp, err := env.Get("/api/search?search_mode=mmr&q=" + url.QueryEscape(query))
		require.NoError(t, err)

		var search domain.SearchResponse
		require.NoError(t, json.Unmarshal(resp.Data, &search))
		require.NotZero(t, search.TotalResults)
		assert.Equal(t, query, search.Results[0].UserMessage)
		assert.Equal(t, "chatgpt", search.Results[0].Platform)
		assert.Equal(t, "Bread baking", search.Results[0].ConversationTitle)
	})

	t.Run("platform filter narrows results", func(t *testing.T) {
		resp, err := env.Get("/api/search?platform=claude&q=" + url.QueryEscape("anything at all"))
		require.NoError(t, err)

		var search domain.SearchResponse
		require.NoError(t, json.Unmarshal(resp.Data, &search))
		require.NotZero(t, search.TotalResults)
		for _, r := range search.Results {
			assert.Equal(t, "claude", r.Platform)
		}
	})

	t.Run("interpretations filter", func(t *testing.T) {
		resp, err := env.Get("/api/search?interpretations=true&q=" + url.QueryEscape("sourdough starter"))
		require.NoError(t, err)

		var search domain.SearchResponse
		require.NoError(t, json.Unmarshal(resp.Data, &search))
		require.Equal(t, 1, search.TotalResults)
		assert.True(t, search.Results[0].HasInterpretations)
		assert.Contains(t, search.Results[0].AboutUser, "Hobby baker")
	})

	t.Run("limit caps the result count", func(t *testing.T) {
		resp, err := env.Get("/api/search?limit=2&q=" + url.QueryEscape("kubernetes"))
		require.NoError(t, err)

		var search domain.SearchResponse
		require.NoError(t, json.Unmarshal(resp.Data, &search))
		assert.LessOrEqual(t, search.TotalResults, 2)
		assert.LessOrEqual(t, len(search.Results), 2)
	})

	t.Run("date range filter", func(t *testing.T) {
		// Only the garden chunk sits inside 2024-03-10..2024-03-15.
		resp, err := env.Get("/api/search?date_from=2024-03-10&date_to=2024-03-15&q=" + url.QueryEscape("plants"))
		require.NoError(t, err)

		var search domain.SearchResponse
		require.NoError(t, json.Unmarshal(resp.Data, &search))
		require.Equal(t, 1, search.TotalResults)
		assert.Equal(t, "Garden planning", search.Results[0].ConversationTitle)
	})

	t.Run("recommend excludes its positive examples", func(t *testing.T) {
		resp, err := env.Get("/api/search?search_mode=recommend&positive_ids=2&q=" + url.QueryEscape("cluster maintenance"))
		require.NoError(t, err)

		var search domain.SearchResponse
		require.NoError(t, json.Unmarshal(resp.Data, &search))
		require.NotZero(t, search.TotalResults)
		for _, r := range search.Results {
			assert.NotEqual(t, "how do I drain a kubernetes node safely", r.UserMessage)
		}
	})

	t.Run("order by timestamp ascending", func(t *testing.T) {
		resp, err := env.Get("/api/search?search_mode=order_by&order_by_field=timestamp&order_direction=asc&q=" + url.QueryEscape("kubernetes cluster"))
		require.NoError(t, err)

		var search domain.SearchResponse
		require.NoError(t, json.Unmarshal(resp.Data, &search))
		require.Greater(t, search.TotalResults, 1)
		for i := 1; i < len(search.Results); i++ {
			assert.LessOrEqual(t, search.Results[i-1].Timestamp, search.Results[i].Timestamp)
		}
	})

	t.Run("grouped by platform", func(t *testing.T) {
		resp, err := env.Get("/api/search?search_mode=groups&group_by=platform&group_size=2&q=" + url.QueryEscape("how do things work"))
		require.NoError(t, err)

		var grouped domain.GroupedSearchResponse
		require.NoError(t, json.Unmarshal(resp.Data, &grouped))
		require.NotZero(t, grouped.TotalGroups)

		seen := make(map[string]bool)
		for _, g := range grouped.Groups {
			assert.False(t, seen[g.GroupKey], "duplicate group key %q", g.GroupKey)
			seen[g.GroupKey] = true
			assert.LessOrEqual(t, len(g.Hits), 2)
		}
	})

	t.Run("batch runs every query", func(t *testing.T) {
		resp, err := env.Post("/api/search/batch", domain.BatchSearchRequest{
			Queries: []string{"sourdough", "kubernetes"},
		})
		require.NoError(t, err)

		var batch domain.BatchSearchResponse
		require.NoError(t, json.Unmarshal(resp.Data, &batch))
		require.Len(t, batch.Results, 2)
		assert.Equal(t, "sourdough", batch.Results[0].Query)
		assert.Equal(t, "kubernetes", batch.Results[1].Query)
	})

	t.Run("missing query is a client error", func(t *testing.T) {
		_, err := env.Get("/api/search")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "400")
	})
}
