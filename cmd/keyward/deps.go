// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package main

import (
	"context"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/keyward/keyward/internal/auth"
	"github.com/keyward/keyward/internal/auth/memory"
	"github.com/keyward/keyward/internal/auth/postgres"
	"github.com/keyward/keyward/internal/config"
	"github.com/keyward/keyward/internal/logging"
	"github.com/keyward/keyward/internal/store"
)

// Deps contains injectable dependencies for the CLI.
// Nil fields use their default implementations.
type Deps struct {
	// StoreFactory opens the account store selected by cfg. The returned
	// func releases it.
	// Default: openStore
	StoreFactory func(ctx context.Context, cfg *config.Config) (auth.AccountStore, func(), error)

	// MigratorFactory opens a schema migrator for a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (SchemaMigrator, error)
}

// SchemaMigrator wraps the methods used from store.Migrator.
type SchemaMigrator interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
	Force(version int) error
	Status() (store.Status, error)
	Close() error
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.StoreFactory == nil {
		out.StoreFactory = openStore
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = func(databaseURL string) (SchemaMigrator, error) {
			m, err := store.NewMigrator(databaseURL)
			if err != nil {
				return nil, err //nolint:wrapcheck // store errors are coded
			}
			return m, nil
		}
	}
	return &out
}

// openStore returns the in-memory store or a PostgreSQL repository over a
// pooled connection.
func openStore(ctx context.Context, cfg *config.Config) (auth.AccountStore, func(), error) {
	switch cfg.Store {
	case config.StoreMemory:
		return memory.NewAccountStore(), func() {}, nil
	case config.StorePostgres:
		pool, err := store.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err //nolint:wrapcheck // store.Connect errors carry codes
		}
		return postgres.NewAccountRepository(pool), pool.Close, nil
	default:
		return nil, nil, oops.Code("CONFIG_INVALID").With("field", "store").Errorf("unknown store %q", cfg.Store)
	}
}

// app is the wired auth workflow for a single command invocation.
type app struct {
	service  *auth.Service
	registry *prometheus.Registry
	close    func()
}

func newApp(ctx context.Context, deps *Deps, cfg *config.Config, logOut io.Writer) (*app, error) {
	logger := logging.Setup("keyward", version, cfg.LogFormat, logOut)

	hasher, err := auth.NewArgon2idHasher(cfg.Hasher.Argon2Params())
	if err != nil {
		return nil, err //nolint:wrapcheck // coded by auth
	}
	issuer, err := auth.NewJWTIssuer(cfg.Token.JWTConfig())
	if err != nil {
		return nil, err //nolint:wrapcheck // coded by auth
	}

	accounts, closeStore, err := deps.StoreFactory(ctx, cfg)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	service, err := auth.NewService(accounts, hasher, issuer,
		auth.WithLogger(logger),
		auth.WithThrottle(auth.NewThrottle(cfg.Hasher.MaxConcurrent)),
		auth.WithMetrics(auth.NewMetrics(registry)),
	)
	if err != nil {
		closeStore()
		return nil, err //nolint:wrapcheck // coded by auth
	}

	return &app{service: service, registry: registry, close: closeStore}, nil
}

// finish releases the store and writes metrics when requested.
func (a *app) finish(metricsFile string) error {
	a.close()
	if metricsFile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(metricsFile, a.registry); err != nil {
		return oops.Code("METRICS_WRITE_FAILED").With("path", metricsFile).Wrap(err)
	}
	return nil
}

// withApp loads config, wires the workflow, runs fn and tears down.
func withApp(cmd *cobra.Command, deps *Deps, flags *globalFlags, fn func(ctx context.Context, a *app) error) (err error) {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, deps, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		if finishErr := a.finish(flags.metricsFile); err == nil {
			err = finishErr
		}
	}()

	return fn(ctx, a)
}
