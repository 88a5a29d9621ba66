package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/tessellate-ai/recall/internal/domain"
	"github.com/tessellate-ai/recall/internal/tui"
)

// InteractiveCmd opens the terminal search console.
func InteractiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "interactive",
		Short: "Interactive search console",
		Long: `Open a terminal console that searches the daemon as you type.

Enter runs a query. Slash commands set session filters:
  /platform <p>     only results from one platform
  /limit <n>        results per query
  /interpretations  only chunks with interpretation data
  /metadata k:v     filter on a metadata field
  /all              clear all filters
  /quit             leave the console`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd)
		},
	}
}

func runInteractive(cmd *cobra.Command) error {
	api, err := NewAPIClientWithCmd(cmd)
	if err != nil {
		return err
	}
	model := tui.New(&apiSearcher{api: api})
	if _, err := tea.NewProgram(model).Run(); err != nil {
		return fmt.Errorf("console failed: %w", err)
	}
	return nil
}

// apiSearcher adapts the HTTP client to the console's search port.
type apiSearcher struct {
	api *APIClient
}

func (s *apiSearcher) Search(query string, filters tui.SessionFilters) (*domain.SearchResponse, error) {
	params := url.Values{}
	params.Set("q", query)
	if filters.Platform != "" {
		params.Set("platform", filters.Platform)
	}
	if filters.Limit > 0 {
		params.Set("limit", strconv.Itoa(filters.Limit))
	}
	if filters.Interpretations {
		params.Set("interpretations", "true")
	}
	if filters.Metadata != "" {
		params.Set("metadata_filter", filters.Metadata)
	}

	resp, err := s.api.Get("/api/search?" + params.Encode())
	if err != nil {
		return nil, err
	}
	var out domain.SearchResponse
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}
	return &out, nil
}
