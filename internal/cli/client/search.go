package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tessellate-ai/recall/internal/domain"
)

// searchModeValue is a pflag.Value restricted to the known search modes.
type searchModeValue struct {
	mode *domain.SearchMode
}

func (v *searchModeValue) String() string { return string(*v.mode) }

func (v *searchModeValue) Set(s string) error {
	switch domain.SearchMode(s) {
	case domain.SearchModeHybrid, domain.SearchModeRecommend, domain.SearchModeOrderBy,
		domain.SearchModeMMR, domain.SearchModeGrouped:
		*v.mode = domain.SearchMode(s)
		return nil
	}
	return fmt.Errorf("unknown search mode %q (want vector, recommend, order_by, mmr, or groups)", s)
}

func (v *searchModeValue) Type() string { return "mode" }

// metadataValue is a pflag.Value for a key:value payload filter.
type metadataValue struct {
	filter *string
}

func (v *metadataValue) String() string { return *v.filter }

func (v *metadataValue) Set(s string) error {
	key, value, found := strings.Cut(s, ":")
	if !found || key == "" || value == "" {
		return fmt.Errorf("metadata filter must be key:value, got %q", s)
	}
	*v.filter = s
	return nil
}

func (v *metadataValue) Type() string { return "key:value" }

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var (
		mode           = domain.SearchModeHybrid
		metadataFilter string

		platform        string
		limit           int
		interpretations bool
		dateFrom        string
		dateTo          string
		positiveIDs     []string
		negativeIDs     []string
		orderByField    string
		orderDirection  string
		diversity       float64
		groupBy         string
		groupSize       int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed conversations",
		Long: `Searches the daemon's index across all imported platforms.

Examples:
  # Hybrid semantic + lexical search
  recall search "trip planning advice"

  # Only ChatGPT conversations with interpretation data
  recall search "what does the model think of me" --platform chatgpt --interpretations

  # More like these results, less like that one (query text is ignored)
  recall search similar --mode recommend --positive 12,40 --negative 7

  # Diverse results, one per conversation
  recall search "debugging sessions" --mode mmr --diversity 0.7`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			params := url.Values{}
			params.Set("q", args[0])
			if platform != "" {
				params.Set("platform", platform)
			}
			if cmd.Flags().Changed("limit") {
				params.Set("limit", strconv.Itoa(limit))
			}
			if interpretations {
				params.Set("interpretations", "true")
			}
			if dateFrom != "" {
				params.Set("date_from", dateFrom)
			}
			if dateTo != "" {
				params.Set("date_to", dateTo)
			}
			if metadataFilter != "" {
				params.Set("metadata_filter", metadataFilter)
			}
			if mode != domain.SearchModeHybrid {
				params.Set("search_mode", string(mode))
			}
			if len(positiveIDs) > 0 {
				params.Set("positive_ids", strings.Join(positiveIDs, ","))
			}
			if len(negativeIDs) > 0 {
				params.Set("negative_ids", strings.Join(negativeIDs, ","))
			}
			if orderByField != "" {
				params.Set("order_by_field", orderByField)
			}
			if orderDirection != "" {
				params.Set("order_direction", orderDirection)
			}
			if cmd.Flags().Changed("diversity") {
				params.Set("mmr_diversity", strconv.FormatFloat(diversity, 'f', -1, 64))
			}
			if groupBy != "" {
				params.Set("group_by", groupBy)
			}
			if cmd.Flags().Changed("group-size") {
				params.Set("group_size", strconv.Itoa(groupSize))
			}

			return runSearch(cmd, params, mode == domain.SearchModeGrouped, outputJSON)
		},
	}

	cmd.Flags().Var(&searchModeValue{mode: &mode}, "mode", "Search mode (vector, recommend, order_by, mmr, groups)")
	cmd.Flags().Var(&metadataValue{filter: &metadataFilter}, "metadata", "Payload filter as key:value")
	cmd.Flags().StringVarP(&platform, "platform", "p", "", "Filter by platform (chatgpt, claude, claude_projects)")
	cmd.Flags().IntVarP(&limit, "limit", "n", domain.DefaultLimit, "Maximum number of results")
	cmd.Flags().BoolVar(&interpretations, "interpretations", false, "Only chunks with AI interpretation data")
	cmd.Flags().StringVar(&dateFrom, "from", "", "Earliest timestamp (RFC3339 or epoch seconds)")
	cmd.Flags().StringVar(&dateTo, "to", "", "Latest timestamp (RFC3339 or epoch seconds)")
	cmd.Flags().StringSliceVar(&positiveIDs, "positive", nil, "Positive example point ids (recommend mode)")
	cmd.Flags().StringSliceVar(&negativeIDs, "negative", nil, "Negative example point ids (recommend mode)")
	cmd.Flags().StringVar(&orderByField, "order-by", "", "Result field to sort by (order_by mode)")
	cmd.Flags().StringVar(&orderDirection, "order", "", "Sort direction: asc or desc")
	cmd.Flags().Float64Var(&diversity, "diversity", domain.DefaultDiversity, "MMR diversity weight, 0 to 1 (mmr mode)")
	cmd.Flags().StringVar(&groupBy, "group-by", "", "Payload field to group by (groups mode)")
	cmd.Flags().IntVar(&groupSize, "group-size", domain.DefaultGroupSize, "Hits per group (groups mode)")

	return cmd
}

func runSearch(cmd *cobra.Command, params url.Values, grouped, outputJSON bool) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}

	resp, err := api.Get("/api/search?" + params.Encode())
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if grouped {
		var groupedResp domain.GroupedSearchResponse
		if err := json.Unmarshal(resp.Data, &groupedResp); err != nil {
			return fmt.Errorf("failed to parse search results: %w", err)
		}
		return printGroupedResults(&groupedResp, outputJSON)
	}

	var searchResp domain.SearchResponse
	if err := json.Unmarshal(resp.Data, &searchResp); err != nil {
		return fmt.Errorf("failed to parse search results: %w", err)
	}
	return printResults(&searchResp, outputJSON)
}

func printResults(resp *domain.SearchResponse, outputJSON bool) error {
	if outputJSON {
		output, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(resp.Results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d results in %.2fms:\n\n", resp.TotalResults, resp.ExecutionTimeMS)
	for i, result := range resp.Results {
		printResult(result)
		if i < len(resp.Results)-1 {
			fmt.Println(strings.Repeat("-", 40))
		}
	}

	return nil
}

func printGroupedResults(resp *domain.GroupedSearchResponse, outputJSON bool) error {
	if outputJSON {
		output, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(resp.Groups) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d groups in %.2fms:\n", resp.TotalGroups, resp.ExecutionTimeMS)
	for _, group := range resp.Groups {
		fmt.Printf("\n=== %s (%d hits) ===\n", group.GroupKey, len(group.Hits))
		for _, hit := range group.Hits {
			printResult(hit)
		}
	}

	return nil
}

func printResult(result domain.SearchResult) {
	fmt.Printf("[%.4f] %s (%s)\n", result.Score, result.ConversationTitle, result.Platform)
	if result.Timestamp != "" {
		fmt.Printf("   %s (turn %d)\n", result.Timestamp, result.TurnNumber)
	}
	fmt.Printf("   User: %s\n", truncate(result.UserMessage, 160))
	fmt.Printf("   Assistant: %s\n", truncate(result.AssistantMessage, 160))
	if result.AboutUser != "" {
		fmt.Printf("   About user: %s\n", truncate(result.AboutUser, 120))
	}
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
