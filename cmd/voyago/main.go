package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/voyago-dev/voyago/pkg/config"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "voyago",
		Short: "Voyago - conversational vacation-rental trip planner",
		Long:  "Voyago answers trip-planning conversations over a vacation-rental dataset: it extracts search filters, queries listings, measures distances to landmarks, and summarizes recommendations.",
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML configuration")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd(&configPath))
	cmd.AddCommand(newChatCmd(&configPath))
	cmd.AddCommand(newIngestCmd(&configPath))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "voyago %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadConfig(path)
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
