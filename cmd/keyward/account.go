// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/keyward/keyward/internal/auth"
)

func newAccountCmd(deps *Deps, flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Register, log in, look up and list accounts",
	}
	cmd.AddCommand(newAccountRegisterCmd(deps, flags))
	cmd.AddCommand(newAccountLoginCmd(deps, flags))
	cmd.AddCommand(newAccountShowCmd(deps, flags))
	cmd.AddCommand(newAccountListCmd(deps, flags))
	return cmd
}

func newAccountRegisterCmd(deps *Deps, flags *globalFlags) *cobra.Command {
	var (
		in      auth.RegisterInput
		profile map[string]string
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and print its session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(profile) > 0 {
				in.Profile = make(map[string]any, len(profile))
				for k, v := range profile {
					in.Profile[k] = v
				}
			}
			return withApp(cmd, deps, flags, func(ctx context.Context, a *app) error {
				session, err := a.service.Register(ctx, in)
				if err != nil {
					return err //nolint:wrapcheck // workflow errors are coded
				}
				return printJSON(cmd, session)
			})
		},
	}

	cmd.Flags().StringVar(&in.Email, "email", "", "account email")
	cmd.Flags().StringVar(&in.Name, "name", "", "display name")
	cmd.Flags().StringVar(&in.Password, "password", "", "account password")
	cmd.Flags().StringToStringVar(&profile, "profile", nil, "profile fields as key=value")
	mustRequire(cmd, "email", "name", "password")
	return cmd
}

func newAccountLoginCmd(deps *Deps, flags *globalFlags) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Verify credentials and print a new session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, deps, flags, func(ctx context.Context, a *app) error {
				session, err := a.service.Login(ctx, email, password)
				if err != nil {
					return err //nolint:wrapcheck // workflow errors are coded
				}
				return printJSON(cmd, session)
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	mustRequire(cmd, "email", "password")
	return cmd
}

func newAccountShowCmd(deps *Deps, flags *globalFlags) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print an account by ID",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, deps, flags, func(ctx context.Context, a *app) error {
				view, err := a.service.FindByID(ctx, id)
				if err != nil {
					return err //nolint:wrapcheck // workflow errors are coded
				}
				return printJSON(cmd, view)
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "account ID")
	mustRequire(cmd, "id")
	return cmd
}

func newAccountListCmd(deps *Deps, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print all accounts, oldest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, deps, flags, func(ctx context.Context, a *app) error {
				views, err := a.service.List(ctx)
				if err != nil {
					return err //nolint:wrapcheck // workflow errors are coded
				}
				return printJSON(cmd, views)
			})
		},
	}
}

func mustRequire(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
}
