// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package main

import (
	"encoding/json"
	"fmt"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/keyward/keyward/internal/config"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configFile  string
	metricsFile string
}

// NewRootCmd creates the root command. A nil deps uses the defaults.
func NewRootCmd(deps *Deps) *cobra.Command {
	deps = deps.withDefaults()
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "keyward",
		Short: "Keyward - account credentials and session tokens",
		Long: `Keyward registers accounts, verifies passwords with argon2id and
issues signed session tokens.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "config file path")
	pf.String("log-format", "json", "log format (json or text)")
	pf.String("store", config.StorePostgres, "account store (postgres or memory)")
	pf.String("database-url", "", "PostgreSQL URL (default: $"+config.EnvDatabaseURL+")")
	pf.StringVar(&flags.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")

	cmd.AddCommand(newMigrateCmd(deps, flags))
	cmd.AddCommand(newAccountCmd(deps, flags))
	cmd.AddCommand(newTokenCmd(deps, flags))

	return cmd
}

// loadConfig resolves configuration for cmd from the config file, flags and environment.
func loadConfig(cmd *cobra.Command, flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configFile, cmd.Flags())
	if err != nil {
		return nil, err //nolint:wrapcheck // config errors carry their own codes
	}
	return cfg, nil
}

// printJSON writes v to the command's stdout as indented JSON.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return oops.Code("OUTPUT_FAILED").Wrap(err)
	}
	return nil
}

// formatError renders err as "<code>: <message>".
func formatError(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		if code := oopsErr.Code(); code != nil && code != "" {
			return fmt.Sprintf("%v: %s", code, oopsErr.Error())
		}
	}
	return "ERROR: " + err.Error()
}
