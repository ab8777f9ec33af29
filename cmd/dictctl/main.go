// Package main provides the dictctl CLI binary for working with the data
// dictionary server. It is a thin client over the server's HTTP API.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	version = "dev"

	// Global flags
	serverURL    string
	outputFlag   string
	tokenFlag    string
	globalClient *dictClient
)

// dictClient wraps an HTTP client and the server base URL.
type dictClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func newDictClient(baseURL string) *dictClient {
	return &dictClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default(),
	}
}

// envelope mirrors the server's response shape.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Code    int             `json:"code,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// doRequest performs an HTTP request and returns the data portion of the
// response envelope. It returns an error if the status code indicates a
// failure.
func (c *dictClient) doRequest(method, path string, body io.Reader) (json.RawMessage, error) {
	url := c.baseURL + path

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if tokenFlag != "" {
		req.Header.Set("Authorization", "Bearer "+tokenFlag)
	}

	c.logger.Debug("sending request", "method", method, "url", url)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connecting to dictionary server at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("server error (%d): %s", resp.StatusCode, string(respBody))
		}
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	if resp.StatusCode >= 400 {
		if env.Message != "" {
			return nil, fmt.Errorf("server error (%d): %s", resp.StatusCode, env.Message)
		}
		return nil, fmt.Errorf("server error (%d): %s", resp.StatusCode, string(respBody))
	}

	return env.Data, nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "dictctl",
		Short: "CLI for the data dictionary server",
		Long: `dictctl is a command-line tool for working with the data dictionary server.

It provides commands for managing projects and dictionary versions.

The CLI communicates with the datadict-server HTTP API and authenticates
with a JWT passed via --token or the DICTCTL_TOKEN environment variable.`,
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if tokenFlag == "" {
				tokenFlag = os.Getenv("DICTCTL_TOKEN")
			}
			globalClient = newDictClient(serverURL)
			return nil
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Dictionary server URL")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "JWT access token (defaults to DICTCTL_TOKEN)")

	rootCmd.AddCommand(newProjectsCmd())
	rootCmd.AddCommand(newVersionsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
