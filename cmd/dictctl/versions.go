package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// versionInfo mirrors the JSON structure of the server's version records.
type versionInfo struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Version     int       `json:"version"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsLatest    bool      `json:"is_latest"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type versionsListResponse struct {
	Versions []versionInfo `json:"versions"`
}

type versionDetailResponse struct {
	Version    *versionInfo    `json:"version"`
	Dictionary json.RawMessage `json:"dictionary"`
}

func newVersionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "Manage dictionary versions",
		Long:  "List, create, inspect, and delete dictionary versions within a project.",
	}

	cmd.AddCommand(newVersionsListCmd())
	cmd.AddCommand(newVersionsCreateCmd())
	cmd.AddCommand(newVersionsGetCmd())
	cmd.AddCommand(newVersionsDeleteCmd())

	return cmd
}

// --- versions list ---

func newVersionsListCmd() *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List versions of a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersionsList(projectID)
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "Project ID (required)")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}

func runVersionsList(projectID string) error {
	path := fmt.Sprintf("/api/v1/projects/%s/versions", projectID)

	data, err := globalClient.doRequest("GET", path, nil)
	if err != nil {
		return err
	}

	var resp versionsListResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	format, err := parseOutputFormat(outputFlag)
	if err != nil {
		return err
	}

	headers := []string{"version", "name", "latest", "created by", "created"}
	rows := make([][]string, 0, len(resp.Versions))
	for _, v := range resp.Versions {
		latest := ""
		if v.IsLatest {
			latest = "*"
		}
		rows = append(rows, []string{
			strconv.Itoa(v.Version), v.Name, latest, v.CreatedBy,
			v.CreatedAt.Format(time.RFC3339),
		})
	}

	return printOutput(os.Stdout, format, resp, headers, rows)
}

// --- versions create ---

func newVersionsCreateCmd() *cobra.Command {
	var projectID, name, description string
	var baseVersion int

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new version",
		Long:  "Create a new version, optionally copying its content from an existing base version.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersionsCreate(cmd, projectID, name, description, baseVersion)
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "Project ID (required)")
	cmd.Flags().StringVar(&name, "name", "", "Version name (required)")
	cmd.Flags().StringVar(&description, "description", "", "Version description")
	cmd.Flags().IntVar(&baseVersion, "base", 0, "Base version number to copy content from")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func runVersionsCreate(cmd *cobra.Command, projectID, name, description string, baseVersion int) error {
	body := map[string]any{
		"name":        name,
		"description": description,
	}
	if cmd.Flags().Changed("base") {
		body["base_version"] = baseVersion
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/api/v1/projects/%s/versions", projectID)
	data, err := globalClient.doRequest("POST", path, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	var resp versionDetailResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	fmt.Printf("Version %d (%q) created\n", resp.Version.Version, resp.Version.Name)
	return nil
}

// --- versions get ---

func newVersionsGetCmd() *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "get <version|latest>",
		Short: "Show a version and its dictionary content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersionsGet(projectID, args[0])
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "Project ID (required)")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}

func runVersionsGet(projectID, version string) error {
	path := fmt.Sprintf("/api/v1/projects/%s/versions/%s", projectID, version)

	data, err := globalClient.doRequest("GET", path, nil)
	if err != nil {
		return err
	}

	var resp versionDetailResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	if resp.Version == nil {
		fmt.Println("No versions found for this project")
		return nil
	}

	format, err := parseOutputFormat(outputFlag)
	if err != nil {
		return err
	}
	if format == outputTable {
		// The dictionary content is nested JSON; pretty-print it instead of
		// forcing it into a table.
		format = outputJSON
	}

	return printOutput(os.Stdout, format, resp, nil, nil)
}

// --- versions delete ---

func newVersionsDeleteCmd() *cobra.Command {
	var projectID string

	cmd := &cobra.Command{
		Use:   "delete <version>",
		Short: "Delete a version",
		Long:  "Delete a version. If it was the latest, the highest remaining version becomes latest.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersionsDelete(projectID, args[0])
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "Project ID (required)")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}

func runVersionsDelete(projectID, version string) error {
	path := fmt.Sprintf("/api/v1/projects/%s/versions/%s", projectID, version)
	if _, err := globalClient.doRequest("DELETE", path, nil); err != nil {
		return err
	}
	fmt.Printf("Version %s deleted\n", version)
	return nil
}
