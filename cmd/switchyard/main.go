// Command switchyard runs the task router daemon and its operator tools.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/switchyard/internal/config"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "switchyard",
		Short: "Task router and gateway bridge",
		Long: `switchyard classifies incoming tasks, runs them through a staged
pipeline, and executes work dispatched by a remote gateway on a configured
model, reporting results back by callback.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file or directory")

	root.AddCommand(
		newStartCmd(&configPath),
		newConfigCmd(&configPath),
		newClassifyCmd(),
		newPolicyCmd(),
		newGatewayCmd(&configPath),
		newWatchCmd(),
		newVersionCmd(),
	)
	return root
}

// loadConfig loads path, or the discovered config when path is empty.
func loadConfig(cmd *cobra.Command, path string) (*config.Config, string, error) {
	if path == "" {
		discovered, err := config.DiscoverConfigPath()
		if err != nil {
			return nil, "", fmt.Errorf("discover config: %w", err)
		}
		path = discovered
		fmt.Fprintf(cmd.ErrOrStderr(), "Using discovered config: %s\n", path)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("load config: %w", err)
	}
	return cfg, path, nil
}
