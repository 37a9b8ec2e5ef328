package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fentz26/prodtrack/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "prodtrack",
	Short: "prodtrack - production tracking daemon and CLI",
	Long: `prodtrack tracks the tasks of an animation or VFX production: which work
applies to which asset or shot, who does it, where its files live and how it
moves from todo to done.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, exists, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		loadedConfig, loadedConfigPath, configExists = cfg, path, exists
		if !cmd.Flags().Changed("api") {
			apiAddr = "http://" + cfg.Server.Listen
		}
		apiAddr = strings.TrimRight(apiAddr, "/")
		return nil
	},
	// No RunE - defaults to showing help when no subcommand is provided
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the prodtrack version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "prodtrack %s\n", version)
	},
}

var (
	apiAddr    string
	configPath string

	loadedConfig     *config.Config
	loadedConfigPath string
	configExists     bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "http://127.0.0.1:7466", "API server address (defaults to server.listen from the config)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ~/.config/prodtrack/config.toml)")

	// Add subcommands
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(entityCmd)
	rootCmd.AddCommand(personCmd)
	rootCmd.AddCommand(taskTypeCmd)
	rootCmd.AddCommand(departmentCmd)
	rootCmd.AddCommand(assetTypeCmd)
	rootCmd.AddCommand(fileTreeCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(versionCmd)

	versionCmd.PersistentPreRun = skipConfig
}

// skipConfig replaces the root pre-run for commands that must work without a
// readable config.
func skipConfig(cmd *cobra.Command, args []string) {}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
