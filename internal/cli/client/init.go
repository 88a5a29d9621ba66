package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func InitCmd() *cobra.Command {
	var apiKey string
	var apiURL string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Save daemon connection settings",
		Long:  "Writes the daemon URL and optional API key to the global config file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runInit(apiKey, apiURL, outputJSON)
		},
	}

	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key, if the daemon requires one")
	cmd.Flags().StringVar(&apiURL, "api-url", "", "API base URL (default: http://localhost:8000)")

	return cmd
}

func runInit(apiKey, apiURL string, outputJSON bool) error {
	_ = godotenv.Load()
	if apiKey == "" {
		apiKey = os.Getenv(envAPIKey)
	}
	if apiURL == "" {
		apiURL = os.Getenv(envAPIURL)
	}
	if apiURL == "" {
		fmt.Printf("Enter API URL [%s]: ", defaultAPIURL)
		reader := bufio.NewReader(os.Stdin)
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read API URL: %w", err)
		}
		apiURL = strings.TrimSpace(input)
		if apiURL == "" {
			apiURL = defaultAPIURL
		}
	}

	config := &GlobalConfig{
		APIKey: apiKey,
		APIURL: apiURL,
	}
	if err := SaveGlobalConfig(config); err != nil {
		return err
	}

	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	// Confirm the daemon is reachable; a failure is reported but the
	// config still stands so it can be fixed by re-running init.
	api, _ := NewAPIClientWithConfig(apiKey, apiURL)
	healthy := false
	if resp, err := api.Get("/api/health"); err == nil {
		var status struct {
			Status string `json:"status"`
		}
		if json.Unmarshal(resp.Data, &status) == nil {
			healthy = status.Status == "healthy"
		}
	}

	if outputJSON {
		result := map[string]interface{}{
			"success": true,
			"config":  configPath,
			"api_url": apiURL,
			"healthy": healthy,
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(data))
	} else {
		fmt.Printf("Config saved to %s\n", configPath)
		if healthy {
			fmt.Printf("Daemon at %s is healthy\n", apiURL)
		} else {
			fmt.Printf("Warning: daemon at %s is not reachable\n", apiURL)
		}
	}

	return nil
}
