package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fentz26/prodtrack/internal/models"
)

var personCmd = &cobra.Command{
	Use:   "person",
	Short: "Manage the people tasks are assigned to",
}

var taskTypeCmd = &cobra.Command{
	Use:     "tasktype",
	Aliases: []string{"task-type"},
	Short:   "Manage task types",
}

var departmentCmd = &cobra.Command{
	Use:   "department",
	Short: "Manage departments",
}

var assetTypeCmd = &cobra.Command{
	Use:     "assettype",
	Aliases: []string{"asset-type"},
	Short:   "Manage asset types",
}

var (
	personLastName string
	shortName      string
	departmentID   string
)

func init() {
	personCreate := &cobra.Command{
		Use:   "create [first-name] [email]",
		Short: "Create a person",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p models.Person
			in := models.Person{FirstName: args[0], LastName: personLastName, Email: args[1]}
			if err := apiPost("/persons", in, &p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created person: %s\n", p.ID)
			return nil
		},
	}
	personCreate.Flags().StringVar(&personLastName, "last-name", "", "Last name")
	personCmd.AddCommand(personCreate, &cobra.Command{
		Use:   "list",
		Short: "List persons",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var persons []models.Person
			if err := apiGet("/persons", &persons); err != nil {
				return err
			}
			rows := make([][]string, 0, len(persons))
			for _, p := range persons {
				rows = append(rows, []string{p.ID, p.FullName(), p.Email})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Name", "Email"}, rows, nil))
			return nil
		},
	})

	taskTypeCreate := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a task type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var tt models.TaskType
			in := models.TaskType{Name: args[0], ShortName: shortName, DepartmentID: departmentID}
			if err := apiPost("/task-types", in, &tt); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created task type: %s\n", tt.ID)
			return nil
		},
	}
	taskTypeCreate.Flags().StringVar(&shortName, "short", "", "Short name")
	taskTypeCreate.Flags().StringVar(&departmentID, "department", "", "Department ID")
	taskTypeCmd.AddCommand(taskTypeCreate, &cobra.Command{
		Use:   "list",
		Short: "List task types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var types []models.TaskType
			if err := apiGet("/task-types", &types); err != nil {
				return err
			}
			rows := make([][]string, 0, len(types))
			for _, tt := range types {
				rows = append(rows, []string{tt.ID, tt.Name, tt.ShortName, tt.DepartmentID})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Name", "Short", "Department"}, rows, nil))
			return nil
		},
	})

	departmentCmd.AddCommand(namedCreateCmd("department", "/departments"), namedListCmd("departments", "/departments"))
	assetTypeCmd.AddCommand(namedCreateCmd("asset type", "/asset-types"), namedListCmd("asset types", "/asset-types"))
}

// named is the shared shape of departments and asset types.
type named struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"short_name,omitempty"`
}

func namedCreateCmd(what, path string) *cobra.Command {
	var short string
	c := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a " + what,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out named
			if err := apiPost(path, named{Name: args[0], ShortName: short}, &out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s: %s\n", what, out.ID)
			return nil
		},
	}
	c.Flags().StringVar(&short, "short", "", "Short name")
	return c
}

func namedListCmd(what, path string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List " + what,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var items []named
			if err := apiGet(path, &items); err != nil {
				return err
			}
			rows := make([][]string, 0, len(items))
			for _, it := range items {
				rows = append(rows, []string{it.ID, it.Name, it.ShortName})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Name", "Short"}, rows, nil))
			return nil
		},
	}
}
