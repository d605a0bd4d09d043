package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agent-command/subbot/internal/config"
	"github.com/spf13/cobra"
)

func executeCLI(args []string) error {
	rootCmd := newRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(context.Background())
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "subbot",
		Short:         "Discord sub-bot remotely controlled by a host process",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), flags)
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", config.DefaultPath, "Path to config file")
	rootCmd.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "Path to an optional .env file")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the sub-bot (default)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runDaemon(cmd.Context(), flags)
			},
		},
		newCheckConfigCommand(flags),
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "subbot version %s\n", Version)
			},
		},
	)
	return rootCmd
}

func newCheckConfigCommand(flags *globalFlags) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "check-config",
		Short: "Validate the config file and print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = loadEnv(flags.envFile)

			cfg, err := config.LoadConfig(flags.configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			status := map[string]any{
				"agent":             cfg.Agent.Name,
				"control_url":       cfg.Control.URL,
				"framing":           cfg.Framing().String(),
				"max_flood_count":   cfg.Commands.MaxFloodCount,
				"flood_interval":    cfg.FloodInterval().String(),
				"handshake_timeout": cfg.HandshakeTimeout().String(),
				"receive_timeout":   cfg.ReceiveTimeout().String(),
				"reconnect":         cfg.Control.Reconnect,
				"metrics_listen":    cfg.Metrics.Listen,
				"discord_token_set": cfg.RequireToken() == nil,
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(status)
			}

			fmt.Fprintf(out, "Config OK: %s\n", flags.configPath)
			fmt.Fprintf(out, "Agent:            %s\n", cfg.Agent.Name)
			fmt.Fprintf(out, "Control URL:      %s\n", cfg.Control.URL)
			fmt.Fprintf(out, "Framing:          %s\n", cfg.Framing())
			fmt.Fprintf(out, "Max flood count:  %d\n", cfg.Commands.MaxFloodCount)
			fmt.Fprintf(out, "Reconnect:        %v\n", cfg.Control.Reconnect)
			fmt.Fprintf(out, "Token set:        %v\n", status["discord_token_set"])
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	return cmd
}
