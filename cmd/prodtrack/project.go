package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fentz26/prodtrack/internal/controlplane"
	"github.com/fentz26/prodtrack/internal/models"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Args:  cobra.NoArgs,
	RunE:  runProjectList,
}

var projectCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectCreate,
}

var projectSetTreeCmd = &cobra.Command{
	Use:   "set-tree [project-id] [file-tree]",
	Short: "Select the file tree a project resolves paths with",
	Args:  cobra.ExactArgs(2),
	RunE:  runProjectSetTree,
}

var entityCmd = &cobra.Command{
	Use:   "entity",
	Short: "Manage assets, shots, sequences and episodes",
}

var entityListCmd = &cobra.Command{
	Use:   "list [project-id]",
	Short: "List the entities of a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runEntityList,
}

var entityCreateCmd = &cobra.Command{
	Use:   "create [project-id] [kind] [name]",
	Short: "Create an entity (kind: asset, shot, sequence, episode)",
	Args:  cobra.ExactArgs(3),
	RunE:  runEntityCreate,
}

var (
	projectCode     string
	projectFileTree string
	projectLabels   map[string]string

	entityKind      string
	entityParent    string
	entityAssetType string
	entityDesc      string
)

func init() {
	projectCmd.AddCommand(projectListCmd, projectCreateCmd, projectSetTreeCmd)
	entityCmd.AddCommand(entityListCmd, entityCreateCmd)

	projectCreateCmd.Flags().StringVar(&projectCode, "code", "", "Short project code")
	projectCreateCmd.Flags().StringVar(&projectFileTree, "file-tree", "", "File tree name (default: daemon default)")
	projectCreateCmd.Flags().StringToStringVar(&projectLabels, "label", nil, "Status label overrides, e.g. --label wip=Doing")

	entityListCmd.Flags().StringVar(&entityKind, "kind", "", "Filter by kind")
	entityCreateCmd.Flags().StringVar(&entityParent, "parent", "", "Parent entity ID (sequence for shots, episode for sequences)")
	entityCreateCmd.Flags().StringVar(&entityAssetType, "asset-type", "", "Asset type ID (assets only)")
	entityCreateCmd.Flags().StringVar(&entityDesc, "desc", "", "Description")
}

func runProjectList(cmd *cobra.Command, args []string) error {
	var projects []models.Project
	if err := apiGet("/projects", &projects); err != nil {
		return err
	}
	if len(projects) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No projects found.")
		return nil
	}
	rows := make([][]string, 0, len(projects))
	for _, p := range projects {
		tree := p.FileTree
		if tree == "" {
			tree = "(default)"
		}
		rows = append(rows, []string{p.ID, p.Name, p.Code, tree})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Name", "Code", "File tree"}, rows, nil))
	return nil
}

func runProjectCreate(cmd *cobra.Command, args []string) error {
	var p models.Project
	err := apiPost("/projects", controlplane.ProjectInput{
		Name:         args[0],
		Code:         projectCode,
		FileTree:     projectFileTree,
		StatusLabels: projectLabels,
	}, &p)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created project: %s\n", p.ID)
	return nil
}

func runProjectSetTree(cmd *cobra.Command, args []string) error {
	tree := args[1]
	var p models.Project
	if err := apiPatch("/projects/"+url.PathEscape(args[0]), controlplane.ProjectPatch{FileTree: &tree}, &p); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Project %s now uses file tree %q\n", p.Name, p.FileTree)
	return nil
}

func runEntityList(cmd *cobra.Command, args []string) error {
	var entities []models.Entity
	if err := apiGet("/projects/"+url.PathEscape(args[0])+"/entities"+query("kind", entityKind), &entities); err != nil {
		return err
	}
	if len(entities) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No entities found.")
		return nil
	}
	rows := make([][]string, 0, len(entities))
	for _, e := range entities {
		rows = append(rows, []string{e.ID, string(e.Kind), e.Name, e.ParentID, e.AssetTypeID})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Kind", "Name", "Parent", "Asset type"}, rows, nil))
	return nil
}

func runEntityCreate(cmd *cobra.Command, args []string) error {
	var e models.Entity
	err := apiPost("/projects/"+url.PathEscape(args[0])+"/entities", controlplane.EntityInput{
		Kind:        models.EntityKind(strings.ToLower(args[1])),
		Name:        args[2],
		ParentID:    entityParent,
		AssetTypeID: entityAssetType,
		Description: entityDesc,
	}, &e)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created %s: %s\n", e.Kind, e.ID)
	return nil
}
