package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fentz26/prodtrack/internal/controlplane"
	"github.com/fentz26/prodtrack/internal/filetree"
)

var fileTreeCmd = &cobra.Command{
	Use:     "filetree",
	Aliases: []string{"file-tree"},
	Short:   "Inspect file tree template sets",
}

var fileTreeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the template sets loaded by the daemon",
	Args:  cobra.NoArgs,
	RunE:  runFileTreeList,
}

var fileTreeCheckCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Validate a template set file without a daemon",
	Args:  cobra.ExactArgs(1),
	RunE:  runFileTreeCheck,
}

var fileTreeTagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List the tags templates may use",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, tag := range filetree.Tags() {
			fmt.Fprintf(cmd.OutOrStdout(), "<%s>\n", tag)
		}
	},
}

func init() {
	fileTreeCmd.AddCommand(fileTreeListCmd, fileTreeCheckCmd, fileTreeTagsCmd)

	// Purely local.
	fileTreeCheckCmd.PersistentPreRun = skipConfig
	fileTreeTagsCmd.PersistentPreRun = skipConfig
}

func runFileTreeList(cmd *cobra.Command, args []string) error {
	var trees []controlplane.FileTreeSummary
	if err := apiGet("/file-trees", &trees); err != nil {
		return err
	}
	rows := make([][]string, 0, len(trees))
	for _, t := range trees {
		def := ""
		if t.Default {
			def = "yes"
		}
		rows = append(rows, []string{t.Name, strings.Join(t.Contexts, ", "), def, fmt.Sprint(len(t.Warnings))})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Name", "Contexts", "Default", "Warnings"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
	))
	return nil
}

func runFileTreeCheck(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	set, err := filetree.ParseFile(args[0], data)
	if err != nil {
		var malformed *filetree.MalformedTreeError
		if errors.As(err, &malformed) {
			for _, p := range malformed.Problems {
				fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", p)
			}
			return fmt.Errorf("%s: malformed file tree", args[0])
		}
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: ok (contexts: %s)\n", set.Name, strings.Join(set.Contexts(), ", "))
	for _, w := range set.Lint() {
		fmt.Fprintf(out, "  warning: %s\n", w)
	}
	return nil
}
