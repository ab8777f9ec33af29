package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// projectInfo mirrors the JSON structure of the server's project records.
type projectInfo struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	DBType      string    `json:"db_type,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type projectsListResponse struct {
	Projects []projectInfo `json:"projects"`
}

type projectResponse struct {
	Project projectInfo `json:"project"`
}

func newProjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "Manage dictionary projects",
		Long:  "List, create, inspect, and delete dictionary projects.",
	}

	cmd.AddCommand(newProjectsListCmd())
	cmd.AddCommand(newProjectsCreateCmd())
	cmd.AddCommand(newProjectsGetCmd())
	cmd.AddCommand(newProjectsDeleteCmd())

	return cmd
}

// --- projects list ---

func newProjectsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjectsList()
		},
	}
}

func runProjectsList() error {
	data, err := globalClient.doRequest("GET", "/api/v1/projects", nil)
	if err != nil {
		return err
	}

	var resp projectsListResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	format, err := parseOutputFormat(outputFlag)
	if err != nil {
		return err
	}

	headers := []string{"id", "name", "db type", "created"}
	rows := make([][]string, 0, len(resp.Projects))
	for _, p := range resp.Projects {
		rows = append(rows, []string{
			p.ID, p.Name, p.DBType, p.CreatedAt.Format(time.RFC3339),
		})
	}

	return printOutput(os.Stdout, format, resp, headers, rows)
}

// --- projects create ---

func newProjectsCreateCmd() *cobra.Command {
	var name, description, dbType string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		Long:  "Create a project. The server seeds it with an initial dictionary version.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjectsCreate(name, description, dbType)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Project name (required)")
	cmd.Flags().StringVar(&description, "description", "", "Project description")
	cmd.Flags().StringVar(&dbType, "db-type", "", "Target database type (e.g. postgresql)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func runProjectsCreate(name, description, dbType string) error {
	payload, err := json.Marshal(map[string]string{
		"name":        name,
		"description": description,
		"db_type":     dbType,
	})
	if err != nil {
		return err
	}

	data, err := globalClient.doRequest("POST", "/api/v1/projects", bytes.NewReader(payload))
	if err != nil {
		return err
	}

	var resp projectResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	fmt.Printf("Project %q created (id: %s)\n", resp.Project.Name, resp.Project.ID)
	return nil
}

// --- projects get ---

func newProjectsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <project-id>",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjectsGet(args[0])
		},
	}
}

func runProjectsGet(projectID string) error {
	data, err := globalClient.doRequest("GET", "/api/v1/projects/"+projectID, nil)
	if err != nil {
		return err
	}

	var resp projectResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}

	format, err := parseOutputFormat(outputFlag)
	if err != nil {
		return err
	}

	p := resp.Project
	headers := []string{"field", "value"}
	rows := [][]string{
		{"id", p.ID},
		{"name", p.Name},
		{"description", p.Description},
		{"db type", p.DBType},
		{"created", p.CreatedAt.Format(time.RFC3339)},
		{"updated", p.UpdatedAt.Format(time.RFC3339)},
	}

	return printOutput(os.Stdout, format, resp, headers, rows)
}

// --- projects delete ---

func newProjectsDeleteCmd() *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete a project and all of its versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return fmt.Errorf("deleting a project removes every version; re-run with --yes to confirm")
			}
			return runProjectsDelete(args[0])
		},
	}

	cmd.Flags().BoolVar(&confirm, "yes", false, "Confirm deletion")

	return cmd
}

func runProjectsDelete(projectID string) error {
	if _, err := globalClient.doRequest("DELETE", "/api/v1/projects/"+projectID, nil); err != nil {
		return err
	}
	fmt.Printf("Project %s deleted\n", projectID)
	return nil
}
