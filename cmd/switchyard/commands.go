package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mattjoyce/switchyard/internal/capability"
	"github.com/mattjoyce/switchyard/internal/doctor"
	"github.com/mattjoyce/switchyard/internal/gateway"
	"github.com/mattjoyce/switchyard/internal/intent"
	"github.com/mattjoyce/switchyard/internal/log"
	"github.com/mattjoyce/switchyard/internal/policy"
	"github.com/mattjoyce/switchyard/internal/tui/watch"
)

var errConfigInvalid = errors.New("configuration invalid")

func newConfigCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
	}

	var jsonOut bool
	check := &cobra.Command{
		Use:     "check",
		Aliases: []string{"doctor"},
		Short:   "Validate configuration and report problems",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(cmd, *configPath)
			if err != nil {
				return err
			}
			result := doctor.New(cfg).Validate()
			if jsonOut {
				out, err := doctor.FormatJSON(result)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), out)
			} else {
				fmt.Fprint(cmd.OutOrStdout(), doctor.FormatHuman(result))
			}
			if !result.Valid {
				return errConfigInvalid
			}
			return nil
		},
	}
	check.Flags().BoolVar(&jsonOut, "json", false, "Output the report as JSON")

	cmd.AddCommand(check)
	return cmd
}

type classifyOutput struct {
	Query          string                `json:"query"`
	Classification intent.Classification `json:"classification"`
	TaskType       string                `json:"task_type"`
	Target         capability.Target     `json:"target"`
}

func newClassifyCmd() *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "classify <text>",
		Short: "Show how a query would be classified and routed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			taskType := intent.TaskType(query)
			return writeJSON(cmd.OutOrStdout(), classifyOutput{
				Query:          query,
				Classification: intent.Classify(query),
				TaskType:       taskType,
				Target:         capability.NewRouter().Route(taskType, remote),
			})
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "Route as if the gateway bridge were enabled")
	return cmd
}

func newPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect policy layer selection",
	}

	var (
		disabled bool
		layers   []string
	)
	sel := &cobra.Command{
		Use:   "select <text>",
		Short: "Show which policy layers a query would load",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var metadata map[string]any
			if len(layers) > 0 {
				metadata = map[string]any{policy.MetaLayersSelected: layers}
			}
			selection := policy.NewSelector(disabled).Select(strings.Join(args, " "), metadata)
			return writeJSON(cmd.OutOrStdout(), selection)
		},
	}
	sel.Flags().BoolVar(&disabled, "disabled", false, "Select with dynamic layers disabled")
	sel.Flags().StringSliceVar(&layers, "layers", nil, "Explicit layer names, as if passed in task metadata")

	cmd.AddCommand(sel)
	return cmd
}

func newGatewayCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Remote gateway tools",
	}
	probe := &cobra.Command{
		Use:   "probe",
		Short: "Check that the configured gateway answers its health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(cmd, *configPath)
			if err != nil {
				return err
			}
			client := gateway.New(gateway.Config{
				BaseURL:              cfg.Bridge.GatewayURL,
				SharedSecret:         cfg.Bridge.SharedSecret,
				Timeout:              cfg.Bridge.CallbackTimeout,
				ProbeAttempts:        cfg.Bridge.ProbeAttempts,
				ProbeInitialInterval: cfg.Bridge.ProbeInterval,
			}, log.New(cmd.ErrOrStderr(), cfg.Service.LogLevel, "text"))
			if err := client.Probe(cmd.Context()); err != nil {
				return fmt.Errorf("gateway probe: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "gateway reachable: %s\n", client.BaseURL())
			return nil
		},
	}
	cmd.AddCommand(probe)
	return cmd
}

func newWatchCmd() *cobra.Command {
	var apiURL, token string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live monitor of pipeline and bridge tasks",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if token == "" {
				return fmt.Errorf("an API token is required (--token or SWITCHYARD_TOKEN)")
			}
			return watch.Run(strings.TrimRight(apiURL, "/"), token)
		},
	}
	cmd.Flags().StringVar(&apiURL, "api-url", "http://127.0.0.1:8080", "switchyard API base URL")
	cmd.Flags().StringVar(&token, "token", os.Getenv("SWITCHYARD_TOKEN"), "Bearer token with events:ro scope")
	return cmd
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func newVersionCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versionInfo{Version: version, Commit: gitCommit, BuildTime: buildDate}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), info)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "switchyard %s (commit %s, built %s)\n", info.Version, info.Commit, info.BuildTime)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output version metadata as JSON")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
