// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newTokenCmd(deps *Deps, flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Inspect session tokens",
	}
	cmd.AddCommand(newTokenVerifyCmd(deps, flags))
	return cmd
}

func newTokenVerifyCmd(deps *Deps, flags *globalFlags) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a session token and print its claims",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, deps, flags, func(ctx context.Context, a *app) error {
				claims, err := a.service.VerifyToken(ctx, token)
				if err != nil {
					return err //nolint:wrapcheck // workflow errors are coded
				}
				return printJSON(cmd, claims)
			})
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "session token")
	mustRequire(cmd, "token")
	return cmd
}
